// Package base holds the helpers shared by the backend dialects.
//
// # Components
//
// SQLAdapter quotes identifiers for one dialect and renders the recurring
// fragments of merge statements:
//   - QuoteTable() - [schema].[table], "schema"."table", `schema`.`table`
//   - KeyMatch() - primary key join predicate
//   - SetList() - assignments of every non-key column
//
// GenerateTempTableName builds staging table names that fit a backend's
// identifier limit. The random token is placed after a truncated copy of the
// target name and is never cut.
//
// DriverValue and IsNull normalise field values the way database/sql does,
// which lets the engine detect NULL key components before any DDL runs.
package base
