package bulk

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/ruslano69/bulkmerge/pkg/adapters"
)

// Connector is the database handle a call runs on: *sql.DB or *sql.Conn.
// With a *sql.DB the call checks out one connection and returns it when done;
// a *sql.Conn is used as is and left open.
type Connector interface {
	PingContext(ctx context.Context) error
}

// session is the single connection a call runs every statement on.
type session struct {
	conn  *sql.Conn
	tx    *sql.Tx
	owned bool
}

func openSession(ctx context.Context, db Connector, tx *sql.Tx) (*session, error) {
	switch h := db.(type) {
	case *sql.Conn:
		return &session{conn: h, tx: tx}, nil
	case *sql.DB:
		if tx != nil {
			return nil, ErrTxRequiresConn
		}
		conn, err := h.Conn(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to open connection: %w", err)
		}
		return &session{conn: conn, owned: true}, nil
	default:
		return nil, fmt.Errorf("%w: got %T", ErrUnsupportedConnector, db)
	}
}

// exec returns the transaction when set, otherwise the connection.
func (s *session) exec() adapters.Session {
	if s.tx != nil {
		return s.tx
	}
	return s.conn
}

// evict discards an owned connection instead of returning it to the pool.
// It reports whether the connection was discarded.
func (s *session) evict() bool {
	if !s.owned {
		return false
	}
	s.conn.Raw(func(any) error {
		return driver.ErrBadConn
	})
	return true
}

// close returns an owned connection to the pool.
func (s *session) close() error {
	if !s.owned {
		return nil
	}
	if err := s.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}
