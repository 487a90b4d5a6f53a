package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PingTimeout bounds State.Ping
const PingTimeout = 5 * time.Second

// State holds the configuration and the connection pool shared by every
// handler of an application. Create it once at startup.
type State struct {
	Pool   *pgxpool.Pool
	Config Config
}

// NewState creates the pool described by cfg
func NewState(ctx context.Context, cfg Config) (*State, error) {
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the database: %w", err)
	}
	return &State{Pool: pool, Config: cfg}, nil
}

// Acquirer returns the pool as an Acquirer honouring Config.AcquireTimeout
func (s *State) Acquirer() Acquirer {
	return PoolAcquirer{Pool: s.Pool, Timeout: s.Config.AcquireTimeout}
}

// BeginTx starts a transaction. Finish it with CommitTx or RollbackTx; a
// deferred RollbackTx after CommitTx is harmless.
func (s *State) BeginTx(ctx context.Context) (*Tx, error) {
	return Begin(ctx, s.Acquirer())
}

// CommitTx commits tx and releases its connection
func (s *State) CommitTx(ctx context.Context, tx *Tx) error {
	return tx.Commit(ctx)
}

// RollbackTx rolls tx back and releases its connection
func (s *State) RollbackTx(ctx context.Context, tx *Tx) error {
	return tx.Rollback(ctx)
}

// WithTx runs fn in a transaction on the state's pool
func (s *State) WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return WithTx(ctx, s.Acquirer(), fn)
}

// Ping checks database connectivity
func (s *State) Ping(ctx context.Context) error {
	if s == nil || s.Pool == nil {
		return fmt.Errorf("connection pool is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, PingTimeout)
	defer cancel()
	return s.Pool.Ping(ctx)
}

// Close closes every connection in the pool
func (s *State) Close() {
	if s != nil && s.Pool != nil {
		s.Pool.Close()
	}
}
