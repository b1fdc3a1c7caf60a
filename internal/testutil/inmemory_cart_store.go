package testutil

import (
	"context"
	"time"

	"github.com/cartpulse/cartpulse/internal/domain/cart"
	ierr "github.com/cartpulse/cartpulse/internal/errors"
	"github.com/cartpulse/cartpulse/internal/types"
)

// InMemoryCartStore implements cart.Repository
type InMemoryCartStore struct {
	*InMemoryStore[*cart.Cart]
}

// NewInMemoryCartStore creates a new in-memory cart store
func NewInMemoryCartStore() *InMemoryCartStore {
	return &InMemoryCartStore{
		InMemoryStore: NewInMemoryStore[*cart.Cart](),
	}
}

func copyCart(c *cart.Cart) *cart.Cart {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Items = append([]cart.Item(nil), c.Items...)
	cp.RecoveryAttempts = append([]cart.RecoveryAttempt(nil), c.RecoveryAttempts...)
	if c.AbandonedAt != nil {
		t := *c.AbandonedAt
		cp.AbandonedAt = &t
	}
	return &cp
}

func (s *InMemoryCartStore) Create(ctx context.Context, c *cart.Cart) error {
	if err := s.InMemoryStore.Create(ctx, c.ID, copyCart(c)); err != nil {
		return ierr.NewError("cart already exists").
			WithHintf("Cart %s already exists", c.ID).
			Mark(ierr.ErrAlreadyExists)
	}
	return nil
}

func (s *InMemoryCartStore) Get(ctx context.Context, id string) (*cart.Cart, error) {
	c, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewError("cart not found").
			WithHintf("Cart %s does not exist", id).
			Mark(ierr.ErrNotFound)
	}
	return copyCart(c), nil
}

func (s *InMemoryCartStore) Update(ctx context.Context, c *cart.Cart) error {
	if err := s.InMemoryStore.Update(ctx, c.ID, copyCart(c)); err != nil {
		return ierr.NewError("cart not found").
			WithHintf("Cart %s does not exist", c.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (s *InMemoryCartStore) UpdateIfStatus(_ context.Context, c *cart.Cart, expected types.CartStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.items[c.ID]
	if !ok {
		return ierr.NewError("cart not found").
			WithHintf("Cart %s does not exist", c.ID).
			Mark(ierr.ErrNotFound)
	}
	if existing.Status != expected {
		return ierr.NewError("cart status changed").
			WithHintf("Cart %s is no longer in status %s", c.ID, expected).
			Mark(ierr.ErrConflict)
	}
	s.items[c.ID] = copyCart(c)
	return nil
}

func (s *InMemoryCartStore) ListActiveInactiveSince(ctx context.Context, cutoff time.Time) ([]*cart.Cart, error) {
	carts, err := s.List(ctx,
		func(_ context.Context, c *cart.Cart) bool {
			return c.Status == types.CartStatusActive &&
				len(c.Items) > 0 &&
				c.LastActivity.Before(cutoff)
		},
		func(i, j *cart.Cart) bool { return i.LastActivity.Before(j.LastActivity) },
	)
	if err != nil {
		return nil, err
	}
	result := make([]*cart.Cart, len(carts))
	for i, c := range carts {
		result[i] = copyCart(c)
	}
	return result, nil
}

func (s *InMemoryCartStore) ListByStatus(ctx context.Context, status types.CartStatus) ([]*cart.Cart, error) {
	carts, err := s.List(ctx,
		func(_ context.Context, c *cart.Cart) bool { return c.Status == status },
		func(i, j *cart.Cart) bool { return i.CreatedAt.Before(j.CreatedAt) },
	)
	if err != nil {
		return nil, err
	}
	result := make([]*cart.Cart, len(carts))
	for i, c := range carts {
		result[i] = copyCart(c)
	}
	return result, nil
}
