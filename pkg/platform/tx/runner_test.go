package tx

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "shebacred/pkg/domain-errors"
)

func TestShardedRunner(t *testing.T) {
	t.Run("serializes the same key", func(t *testing.T) {
		runner := NewShardedRunner()
		ctx := WithLockKey(context.Background(), "doc-1")

		var inside, maxInside atomic.Int32
		var wg sync.WaitGroup
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := runner.RunInTx(ctx, func(context.Context) error {
					n := inside.Add(1)
					for {
						m := maxInside.Load()
						if n <= m || maxInside.CompareAndSwap(m, n) {
							break
						}
					}
					time.Sleep(time.Millisecond)
					inside.Add(-1)
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), maxInside.Load())
	})

	t.Run("returns fn error", func(t *testing.T) {
		boom := errors.New("boom")
		err := NewShardedRunner().RunInTx(context.Background(), func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
	})

	t.Run("cancelled context aborts before fn", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		err := NewShardedRunner().RunInTx(ctx, func(context.Context) error {
			called = true
			return nil
		})
		require.Error(t, err)
		assert.False(t, called)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
	})

	t.Run("applies a deadline", func(t *testing.T) {
		err := NewShardedRunner().RunInTx(context.Background(), func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			assert.True(t, ok)
			return nil
		})
		assert.NoError(t, err)
	})
}

func TestSQLRunnerJoinsExistingTx(t *testing.T) {
	outer := WithTx(context.Background(), &sql.Tx{})
	called := false
	err := NewSQLRunner(nil).RunInTx(outer, func(ctx context.Context) error {
		called = true
		_, ok := From(ctx)
		assert.True(t, ok)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}
