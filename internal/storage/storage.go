// Package storage provides the unit-of-work primitives shared by the
// persistence layers. Stores read their executor from the context so a
// single SQL transaction can span several stores.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// Execer is the subset of *sql.DB and *sql.Tx that stores use.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

// Exec returns the transaction bound to ctx if there is one, otherwise db.
func Exec(ctx context.Context, db *sql.DB) Execer {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db
}

// TxRunner runs a function atomically: either every store write inside
// fn is applied, or none are.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SQLRunner is a TxRunner backed by database transactions.
type SQLRunner struct {
	db *sql.DB
}

// NewSQLRunner creates a SQLRunner on the given database.
func NewSQLRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{db: db}
}

// RunInTx begins a transaction, binds it to the context, and commits if
// fn returns nil. Nested calls reuse the outer transaction.
func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Snapshotter is implemented by in-memory stores that can capture and
// restore their full state.
type Snapshotter interface {
	Snapshot() any
	Restore(snapshot any)
}

// MemoryRunner is a TxRunner for in-memory stores. It serializes
// transactions and rolls back by restoring snapshots taken before fn ran.
type MemoryRunner struct {
	mu     sync.Mutex
	stores []Snapshotter
}

// NewMemoryRunner creates a MemoryRunner over the given stores.
func NewMemoryRunner(stores ...Snapshotter) *MemoryRunner {
	return &MemoryRunner{stores: stores}
}

// RunInTx snapshots every registered store, runs fn, and restores the
// snapshots if fn fails.
func (r *MemoryRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshots := make([]any, len(r.stores))
	for i, s := range r.stores {
		snapshots[i] = s.Snapshot()
	}

	if err := fn(ctx); err != nil {
		for i, s := range r.stores {
			s.Restore(snapshots[i])
		}
		return err
	}
	return nil
}
