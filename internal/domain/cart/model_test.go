package cart

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	ierr "github.com/cartpulse/cartpulse/internal/errors"
	"github.com/cartpulse/cartpulse/internal/types"
)

func sampleItem(productID string, quantity int, price int64) Item {
	return Item{
		ProductID: productID,
		Name:      "product " + productID,
		Quantity:  quantity,
		UnitPrice: decimal.NewFromInt(price),
	}
}

func TestCartTotalTracksItems(t *testing.T) {
	c := NewCart("cust-1")
	assert.True(t, c.TotalValue.IsZero())

	c.AddItem(sampleItem("p1", 2, 50))
	assert.True(t, c.TotalValue.Equal(decimal.NewFromInt(100)))

	c.AddItem(sampleItem("p2", 1, 30))
	assert.True(t, c.TotalValue.Equal(decimal.NewFromInt(130)))

	// adding the same product merges lines
	c.AddItem(sampleItem("p1", 1, 50))
	assert.Len(t, c.Items, 2)
	assert.True(t, c.TotalValue.Equal(decimal.NewFromInt(180)))

	c.UpdateQuantity("p1", 1)
	assert.True(t, c.TotalValue.Equal(decimal.NewFromInt(80)))

	c.RemoveItem("p2")
	assert.True(t, c.TotalValue.Equal(decimal.NewFromInt(50)))

	// quantity zero removes the line
	c.UpdateQuantity("p1", 0)
	assert.Empty(t, c.Items)
	assert.True(t, c.TotalValue.IsZero())
}

func TestCartAbandonmentTransitions(t *testing.T) {
	now := time.Now().UTC()

	c := NewCart("cust-1")
	c.AddItem(sampleItem("p1", 1, 10))

	err := c.MarkAbandoned(now)
	assert.NoError(t, err)
	assert.Equal(t, types.CartStatusAbandoned, c.Status)
	assert.NotNil(t, c.AbandonedAt)

	// abandoning twice is rejected
	err = c.MarkAbandoned(now)
	assert.Error(t, err)
	assert.True(t, ierr.IsInvalidOperation(err))

	err = c.Reactivate(now.Add(time.Minute))
	assert.NoError(t, err)
	assert.Equal(t, types.CartStatusActive, c.Status)
	assert.Nil(t, c.AbandonedAt)

	// reactivating an active cart is rejected
	err = c.Reactivate(now.Add(time.Minute))
	assert.Error(t, err)
	assert.True(t, ierr.IsInvalidOperation(err))
}

func TestCartEmptyCannotAbandon(t *testing.T) {
	c := NewCart("cust-1")
	err := c.MarkAbandoned(time.Now().UTC())
	assert.Error(t, err)
	assert.True(t, ierr.IsInvalidOperation(err))
	assert.Equal(t, types.CartStatusActive, c.Status)
}

func TestCartConversion(t *testing.T) {
	now := time.Now().UTC()

	testCases := []struct {
		name          string
		setup         func(c *Cart)
		expectedError bool
	}{
		{
			name:  "converts_from_active",
			setup: func(c *Cart) {},
		},
		{
			name: "converts_from_abandoned",
			setup: func(c *Cart) {
				_ = c.MarkAbandoned(now)
			},
		},
		{
			name: "rejects_expired",
			setup: func(c *Cart) {
				c.MarkExpired(now)
			},
			expectedError: true,
		},
		{
			name: "rejects_already_converted",
			setup: func(c *Cart) {
				_ = c.MarkConverted(now)
			},
			expectedError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCart("cust-1")
			c.AddItem(sampleItem("p1", 1, 10))
			tc.setup(c)

			err := c.MarkConverted(now)
			if tc.expectedError {
				assert.Error(t, err)
				assert.True(t, ierr.IsInvalidOperation(err))
			} else {
				assert.NoError(t, err)
				assert.Equal(t, types.CartStatusConverted, c.Status)
			}
		})
	}
}

func TestCartRecoveryAttemptLog(t *testing.T) {
	c := NewCart("cust-1")

	// one plan attempt fanned out over two channels keeps one record each
	c.AppendRecoveryAttempt(RecoveryAttempt{
		ID:            "attempt-1",
		PlanAttemptID: "plan-attempt-1",
		Channel:       types.ChannelEmail,
		SentAt:        time.Now().UTC(),
	})
	c.AppendRecoveryAttempt(RecoveryAttempt{
		ID:            "attempt-2",
		PlanAttemptID: "plan-attempt-1",
		Channel:       types.ChannelWhatsApp,
		SentAt:        time.Now().UTC(),
	})

	attempt, found := c.FindRecoveryAttempt("attempt-2")
	assert.True(t, found)
	assert.Equal(t, types.ChannelWhatsApp, attempt.Channel)

	// mutations through the pointer stick
	attempt.Response = types.RecoveryResponseClicked
	again, _ := c.FindRecoveryAttempt("attempt-2")
	assert.Equal(t, types.RecoveryResponseClicked, again.Response)

	_, found = c.FindRecoveryAttempt("attempt-3")
	assert.False(t, found)
}
