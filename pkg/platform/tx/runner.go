package tx

import (
	"context"
	"database/sql"
	"sync"
	"time"

	dErrors "shebacred/pkg/domain-errors"
)

// Runner executes fn inside a transactional boundary. Stores called with the
// ctx handed to fn participate in the boundary.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// defaultTxTimeout bounds a transaction when the caller set no deadline.
const defaultTxTimeout = 5 * time.Second

func withDeadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func aborted(err error) error {
	return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
}

// SQLRunner runs fn in a database transaction carried through ctx. Nested
// calls join the outer transaction.
type SQLRunner struct {
	db      *sql.DB
	timeout time.Duration
}

func NewSQLRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{db: db}
}

func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return aborted(err)
	}
	ctx, cancel := withDeadline(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(WithTx(ctx, tx)); err != nil {
		return err
	}
	return tx.Commit()
}

// numShards spreads in-process locks so unrelated keys rarely contend.
const numShards = 128

// ShardedRunner serializes in-process transactions that share a lock key
// (see WithLockKey). It provides isolation for in-memory stores, not rollback:
// fn must validate before it mutates.
type ShardedRunner struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

func NewShardedRunner() *ShardedRunner {
	return &ShardedRunner{}
}

func (r *ShardedRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return aborted(err)
	}
	ctx, cancel := withDeadline(ctx, r.timeout)
	defer cancel()

	shard := r.selectShard(ctx)
	r.shards[shard].Lock()
	defer r.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return aborted(err)
	}
	return fn(ctx)
}

func (r *ShardedRunner) selectShard(ctx context.Context) int {
	if key, ok := ctx.Value(lockKeyCtx{}).(string); ok && key != "" {
		return int(fnv32a(key) % numShards)
	}
	return 0
}

func fnv32a(s string) uint32 {
	const (
		offset = 2166136261
		prime  = 16777619
	)
	h := uint32(offset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime
	}
	return h
}

type lockKeyCtx struct{}

// WithLockKey names the entity a transaction serializes on.
func WithLockKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, lockKeyCtx{}, key)
}
