/*
Package adapters defines the contracts between the merge engine and a database backend.

# Two halves per backend

Every backend family provides a Dialect and a BulkWriter:

	┌─────────────────────────────────────────┐
	│    Merge engine (pkg/bulk)              │
	│  - schema + cache                       │
	│  - state machine, identity back-fill    │
	└─────────────────┬───────────────────────┘
	                  │
	┌─────────────────▼───────────────────────┐
	│  Backend{Dialect, Writer}               │  ← pkg/adapters/adapter.go
	│                                         │
	│  Dialect: catalog probes, temp table    │
	│           DDL, insert/update/upsert/    │
	│           delete scripts, temp names    │
	│  Writer:  native bulk load              │
	└─────────────────┬───────────────────────┘
	                  │
	        ┌─────────┼─────────┐
	        │         │         │
	┌───────▼────┐ ┌──▼──────┐ ┌▼─────────┐
	│ MS SQL     │ │ MySQL   │ │PostgreSQL│
	│ CopyIn     │ │LOAD DATA│ │ COPY     │
	└────────────┘ └─────────┘ └──────────┘

# Registration

Backend packages register themselves from init(), so importing them is enough:

	import (
	    "github.com/ruslano69/bulkmerge/pkg/adapters"
	    _ "github.com/ruslano69/bulkmerge/pkg/adapters/mssql"
	)

	backend, err := adapters.New("mssql")

# Scripts

Dialect methods return a Script: statements executed in order on one session.
A backend may pack several statements into one element when they must share a
batch (T-SQL table variables). Only the last statement may return rows.

# Errors

Writers wrap native failures in *WriteError. The wrapped driver error is kept,
so errors.As still reaches mssql.Error, *mysql.MySQLError or *pgconn.PgError.
*/
package adapters
