// Package postgres provides the PostgreSQL backend for bulk merges.
//
// Rows are staged in a TEMP table created from the target with
// CREATE TEMP TABLE ... AS SELECT ... WHERE 1 = 0 and loaded with COPY
// through pgx.Conn.CopyFrom. The writer reaches the pgx connection through
// sql.Conn.Raw, so the database must be opened with the pgx stdlib driver,
// either sql.Open("pgx", dsn) or Open, which wraps a pgxpool.
//
// Generated keys come back through RETURNING. Upserts first update matched
// rows in a data-modifying CTE, delete them from the staging table, and then
// insert the rest.
//
// Columns declared as timestamp without time zone receive time values with
// their location dropped, keeping the wall clock as written.
package postgres
