package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cartpulse/cartpulse/internal/domain/scheduledjob"
	"github.com/cartpulse/cartpulse/internal/types"
)

func TestClaimDueLeaseSemantics(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	lease := 2 * time.Minute

	store := NewInMemoryScheduledJobStore()
	due := scheduledjob.New("cart-1", "plan-1", "attempt-1", now.Add(-time.Minute))
	future := scheduledjob.New("cart-1", "plan-1", "attempt-2", now.Add(time.Hour))
	assert.NoError(t, store.Create(ctx, due))
	assert.NoError(t, store.Create(ctx, future))

	// only the due job is claimable
	claimed, err := store.ClaimDue(ctx, "worker-a", now, lease, 10)
	assert.NoError(t, err)
	assert.Len(t, claimed, 1)
	assert.Equal(t, due.ID, claimed[0].ID)
	assert.Equal(t, "worker-a", claimed[0].ClaimedBy)

	// a live claim is invisible to other workers
	claimed, err = store.ClaimDue(ctx, "worker-b", now.Add(time.Minute), lease, 10)
	assert.NoError(t, err)
	assert.Empty(t, claimed)

	// once the lease expires the claim is up for grabs again
	claimed, err = store.ClaimDue(ctx, "worker-b", now.Add(lease+time.Second), lease, 10)
	assert.NoError(t, err)
	assert.Len(t, claimed, 1)
	assert.Equal(t, "worker-b", claimed[0].ClaimedBy)
}

func TestClaimDueOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	store := NewInMemoryScheduledJobStore()
	late := scheduledjob.New("cart-1", "plan-1", "attempt-1", now.Add(-time.Minute))
	early := scheduledjob.New("cart-2", "plan-2", "attempt-2", now.Add(-time.Hour))
	assert.NoError(t, store.Create(ctx, late))
	assert.NoError(t, store.Create(ctx, early))

	claimed, err := store.ClaimDue(ctx, "worker-a", now, time.Minute, 1)
	assert.NoError(t, err)
	assert.Len(t, claimed, 1)
	assert.Equal(t, early.ID, claimed[0].ID)
}

func TestCompleteReleaseAndCancel(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	store := NewInMemoryScheduledJobStore()
	first := scheduledjob.New("cart-1", "plan-1", "attempt-1", now.Add(-time.Minute))
	second := scheduledjob.New("cart-1", "plan-1", "attempt-2", now.Add(time.Hour))
	assert.NoError(t, store.Create(ctx, first))
	assert.NoError(t, store.Create(ctx, second))

	claimed, err := store.ClaimDue(ctx, "worker-a", now, time.Minute, 10)
	assert.NoError(t, err)
	assert.Len(t, claimed, 1)

	// a released job is immediately claimable again
	assert.NoError(t, store.Release(ctx, first.ID))
	claimed, err = store.ClaimDue(ctx, "worker-b", now, time.Minute, 10)
	assert.NoError(t, err)
	assert.Len(t, claimed, 1)

	assert.NoError(t, store.Complete(ctx, first.ID))
	got, err := store.Get(ctx, first.ID)
	assert.NoError(t, err)
	assert.Equal(t, types.ScheduledJobStatusCompleted, got.Status)

	// cancel only touches pending jobs of the cart
	assert.NoError(t, store.CancelPendingByCart(ctx, "cart-1"))
	got, err = store.Get(ctx, second.ID)
	assert.NoError(t, err)
	assert.Equal(t, types.ScheduledJobStatusCancelled, got.Status)
	got, err = store.Get(ctx, first.ID)
	assert.NoError(t, err)
	assert.Equal(t, types.ScheduledJobStatusCompleted, got.Status)
}
