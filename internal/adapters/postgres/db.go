package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain/ports"
)

// DefaultLockTimeout bounds how long a transaction waits for a row lock
const DefaultLockTimeout = 5 * time.Second

// DBExecutor implements the DBPort interface for PostgreSQL
type DBExecutor struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewDBExecutor creates a new PostgreSQL database executor
func NewDBExecutor(pool *pgxpool.Pool, lockTimeout time.Duration) *DBExecutor {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &DBExecutor{pool: pool, lockTimeout: lockTimeout}
}

// Pool returns the underlying database connection pool
func (db *DBExecutor) Pool() *pgxpool.Pool {
	return db.pool
}

// Ping checks the connection
func (db *DBExecutor) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// WithTransaction executes a function within a database transaction.
// Serialization failures, deadlocks and lock timeouts surface as domain.ErrConcurrentModification.
func (db *DBExecutor) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return mapError(fmt.Errorf("begin transaction: %w", err))
	}

	// Ensure rollback on panic or error
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", db.lockTimeout.Milliseconds())); err != nil {
		_ = tx.Rollback(ctx)
		return mapError(fmt.Errorf("set lock timeout: %w", err))
	}

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return mapError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return mapError(fmt.Errorf("commit transaction: %w", err))
	}

	return nil
}

// WithReadOnlyTransaction executes a function within a read-only transaction
func (db *DBExecutor) WithReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return mapError(fmt.Errorf("begin read-only transaction: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback(ctx)
		return mapError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit read-only transaction: %w", err)
	}

	return nil
}

var _ ports.DBPort = (*DBExecutor)(nil)
