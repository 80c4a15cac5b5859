package mssql

import (
	"github.com/ruslano69/bulkmerge/pkg/adapters"
)

const (
	// AdapterType is the backend identifier used by the factory.
	AdapterType = "mssql"

	// DriverName is the database/sql driver this backend expects.
	DriverName = "sqlserver"
)

func init() {
	// Register SQL Server backend in factory
	adapters.Register(AdapterType, NewBackend)
}

// NewBackend returns the SQL Server dialect and CopyIn writer.
func NewBackend() adapters.Backend {
	return adapters.Backend{
		Name:    AdapterType,
		Dialect: NewDialect(),
		Writer:  NewWriter(),
	}
}
