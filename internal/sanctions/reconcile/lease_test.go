package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "pldft/pkg/domain-errors"
)

func TestLocalLeases(t *testing.T) {
	leases := NewLocalLeases()
	ctx := context.Background()

	release, err := leases.Acquire(ctx, "sync:A")
	require.NoError(t, err)

	t.Run("other keys are independent", func(t *testing.T) {
		other, err := leases.Acquire(ctx, "sync:B")
		require.NoError(t, err)
		other()
	})

	t.Run("same key waits until context deadline", func(t *testing.T) {
		waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		_, err := leases.Acquire(waitCtx, "sync:A")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("release hands the key to the next waiter", func(t *testing.T) {
		acquired := make(chan struct{})
		go func() {
			next, err := leases.Acquire(ctx, "sync:A")
			if err == nil {
				next()
			}
			close(acquired)
		}()
		release()
		release() // idempotent
		select {
		case <-acquired:
		case <-time.After(time.Second):
			t.Fatal("waiter never acquired the lease")
		}
	})
}
