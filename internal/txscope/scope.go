// Package txscope implements the Transaction Scope (§4.7): a scoped
// acquisition of the backing engine's reserved-lock transaction, commit
// on normal exit, rollback on failure, reentrant so a nested call runs
// directly against the already-open transaction instead of starting one.
package txscope

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// Querier is the subset of *sql.DB / *sql.Conn that write and read paths
// need. It lets Collection and Index Manager code run the same queries
// whether or not a transaction is currently open.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Scope coordinates the single reserved-lock transaction for one backing
// connection. §5 assumes one connection per database instance; Scope
// expects the caller to have configured its *sql.DB accordingly (see
// internal/store.Open, which sets SetMaxOpenConns(1)).
type Scope struct {
	db *sql.DB

	mu   sync.Mutex
	conn *sql.Conn // non-nil while a transaction is open
}

// New returns a Scope guarding db.
func New(db *sql.DB) *Scope {
	return &Scope{db: db}
}

// DB returns the Querier to use for read paths, which never open a
// transaction scope of their own (§5 "Reads ... do not open a
// transaction scope").
func (s *Scope) DB() Querier {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return s.conn
	}
	return s.db
}

// InTransaction reports whether a transaction is currently open on this
// scope.
func (s *Scope) InTransaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Run executes fn within a transaction scope. If a transaction is already
// open (a nested call from within another Run), fn executes directly
// against it with no inner BEGIN — single-level reentrancy, not
// savepoint-based (§4.7, §5). Otherwise Run issues BEGIN IMMEDIATE,
// commits when fn returns nil, and rolls back (re-raising) when fn
// returns an error or panics.
func (s *Scope) Run(ctx context.Context, fn func(ctx context.Context, q Querier) error) error {
	s.mu.Lock()
	if s.conn != nil {
		q := s.conn
		s.mu.Unlock()
		return fn(ctx, q)
	}
	s.mu.Unlock()

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("txscope: acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("txscope: begin immediate: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
	}()

	if err := runGuarded(ctx, conn, fn); err != nil {
		_, _ = conn.ExecContext(ctx, "ROLLBACK")
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("txscope: commit: %w", err)
	}
	return nil
}

// runGuarded converts a panic from fn into a rollback-then-repanic,
// matching the source library's "failure rolls back" contract for both
// errors and panics.
func runGuarded(ctx context.Context, conn *sql.Conn, fn func(ctx context.Context, q Querier) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			_, _ = conn.ExecContext(ctx, "ROLLBACK")
			panic(p)
		}
	}()
	return fn(ctx, conn)
}
