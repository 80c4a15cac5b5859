package mysql

import (
	"github.com/ruslano69/bulkmerge/pkg/adapters"
)

const (
	// AdapterType is the backend identifier used by the factory.
	AdapterType = "mysql"

	// DriverName is the database/sql driver this backend expects.
	DriverName = "mysql"
)

func init() {
	// Register MySQL backend in factory
	adapters.Register(AdapterType, NewBackend)
}

// NewBackend returns the MySQL dialect and LOAD DATA writer.
func NewBackend() adapters.Backend {
	return adapters.Backend{
		Name:    AdapterType,
		Dialect: NewDialect(),
		Writer:  NewWriter(),
	}
}
