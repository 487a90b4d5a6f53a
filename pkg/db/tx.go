package db

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrTxDone is returned by Commit once the transaction has been committed or rolled back
var ErrTxDone = stderrors.New("transaction already committed or rolled back")

// Tx is a transaction bound to one pooled connection. Commit or Rollback
// finishes it and returns the connection to the pool; the connection is
// released exactly once whichever path runs. A Tx is owned by a single
// request and must not be shared between goroutines.
type Tx struct {
	pgx.Tx
	conn     Conn
	done     bool
	released bool
}

// Begin acquires a connection and starts a transaction on it
func Begin(ctx context.Context, a Acquirer) (*Tx, error) {
	return BeginTx(ctx, a, pgx.TxOptions{})
}

// BeginTx is Begin with driver transaction options
func BeginTx(ctx context.Context, a Acquirer, opts pgx.TxOptions) (*Tx, error) {
	conn, err := a.Acquire(ctx)
	if err != nil {
		return nil, MapError(fmt.Errorf("failed to acquire connection: %w", err))
	}

	tx, err := conn.BeginTx(ctx, opts)
	if err != nil {
		conn.Release()
		return nil, MapError(fmt.Errorf("failed to begin transaction: %w", err))
	}

	return &Tx{Tx: tx, conn: conn}, nil
}

// Commit commits the transaction and releases the connection. Calling it on
// a finished transaction returns ErrTxDone.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	defer t.release()

	if err := t.Tx.Commit(ctx); err != nil {
		return MapError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// Rollback aborts the transaction and releases the connection. It is a no-op
// on a finished transaction, so it can always be deferred. The rollback is
// sent even when ctx is already cancelled.
func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.release()

	if err := t.Tx.Rollback(context.WithoutCancel(ctx)); err != nil && !stderrors.Is(err, pgx.ErrTxClosed) {
		return MapError(fmt.Errorf("failed to rollback transaction: %w", err))
	}
	return nil
}

// Done reports whether Commit or Rollback has been called
func (t *Tx) Done() bool {
	return t.done
}

func (t *Tx) release() {
	if t.released {
		return
	}
	t.released = true
	t.conn.Release()
}

// WithTx runs fn inside a transaction. It commits when fn returns nil and
// rolls back when fn returns an error or panics; panics are re-raised after
// the rollback. fn may finish the transaction itself; WithTx then only
// releases the connection.
func WithTx(ctx context.Context, a Acquirer, fn func(ctx context.Context, tx pgx.Tx) error) (err error) {
	tx, err := Begin(ctx, a)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				err = stderrors.Join(err, rbErr)
			}
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}
	if tx.Done() {
		return nil
	}
	return tx.Commit(ctx)
}
