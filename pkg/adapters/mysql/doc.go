// Package mysql provides the MySQL backend for bulk merges.
//
// Rows are staged in a TEMPORARY table and loaded with
// LOAD DATA LOCAL INFILE 'Reader::<name>', fed from memory through
// mysql.RegisterReaderHandler. The writer switches the server's
// local_infile setting on when it is off, which needs the privilege to
// set global variables.
//
// Generated keys are recovered without RETURNING: the insert runs under
// LOCK TABLES, LAST_INSERT_ID() gives the first key, and the keys of the
// call are the contiguous range that follows it. This relies on the
// default innodb_autoinc_lock_mode handing out one block per statement.
//
// LOCK TABLES implicitly commits an open transaction. Inserts and upserts
// into a table with an AUTO_INCREMENT column therefore cannot be rolled
// back together with earlier statements of a caller's transaction.
//
// Every statement is sent on its own, so multiStatements is not required.
package mysql
