package testutil

import (
	"context"
	"maps"
	"sync"

	"github.com/samber/lo"

	"github.com/cartpulse/cartpulse/internal/domain/customer"
	ierr "github.com/cartpulse/cartpulse/internal/errors"
	"github.com/cartpulse/cartpulse/internal/types"
)

// InMemoryCustomerStore implements customer.Repository
type InMemoryCustomerStore struct {
	*InMemoryStore[*customer.Customer]

	mu            sync.Mutex
	messageCounts map[string]int64
	countErr      error
}

// NewInMemoryCustomerStore creates a new in-memory customer store
func NewInMemoryCustomerStore() *InMemoryCustomerStore {
	return &InMemoryCustomerStore{
		InMemoryStore: NewInMemoryStore[*customer.Customer](),
		messageCounts: make(map[string]int64),
	}
}

func copyCustomer(c *customer.Customer) *customer.Customer {
	if c == nil {
		return nil
	}

	cp := *c
	cp.Segments = lo.Map(c.Segments, func(s string, _ int) string { return s })
	if c.ContactPreferences != nil {
		cp.ContactPreferences = make(map[types.Channel]bool, len(c.ContactPreferences))
		maps.Copy(cp.ContactPreferences, c.ContactPreferences)
	}
	return &cp
}

// Add seeds a customer into the store
func (s *InMemoryCustomerStore) Add(c *customer.Customer) {
	_ = s.InMemoryStore.Create(context.Background(), c.ID, copyCustomer(c))
}

func (s *InMemoryCustomerStore) Get(ctx context.Context, id string) (*customer.Customer, error) {
	c, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewError("customer not found").
			WithHintf("Customer %s does not exist", id).
			Mark(ierr.ErrNotFound)
	}
	return copyCustomer(c), nil
}

func (s *InMemoryCustomerStore) Update(ctx context.Context, c *customer.Customer) error {
	if err := s.InMemoryStore.Update(ctx, c.ID, copyCustomer(c)); err != nil {
		return ierr.NewError("customer not found").
			WithHintf("Customer %s does not exist", c.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (s *InMemoryCustomerStore) UpdateSegments(ctx context.Context, id string, segments []string) error {
	c, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return ierr.NewError("customer not found").
			WithHintf("Customer %s does not exist", id).
			Mark(ierr.ErrNotFound)
	}
	cp := copyCustomer(c)
	cp.Segments = lo.Map(segments, func(s string, _ int) string { return s })
	return s.InMemoryStore.Update(ctx, id, cp)
}

func (s *InMemoryCustomerStore) CountMessages(ctx context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countErr != nil {
		return 0, s.countErr
	}
	return s.messageCounts[id], nil
}

// SetMessageCount fixes the message count returned for a customer
func (s *InMemoryCustomerStore) SetMessageCount(id string, count int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messageCounts[id] = count
}

// FailMessageCounts makes CountMessages return the given error
func (s *InMemoryCustomerStore) FailMessageCounts(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countErr = err
}
