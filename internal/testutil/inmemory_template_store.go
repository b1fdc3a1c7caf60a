package testutil

import (
	"context"

	"github.com/cartpulse/cartpulse/internal/domain/template"
	ierr "github.com/cartpulse/cartpulse/internal/errors"
	"github.com/cartpulse/cartpulse/internal/types"
)

// InMemoryTemplateStore implements template.Repository
type InMemoryTemplateStore struct {
	*InMemoryStore[*template.MessageTemplate]
}

// NewInMemoryTemplateStore creates a new in-memory template store
func NewInMemoryTemplateStore() *InMemoryTemplateStore {
	return &InMemoryTemplateStore{
		InMemoryStore: NewInMemoryStore[*template.MessageTemplate](),
	}
}

// Add seeds a template into the store
func (s *InMemoryTemplateStore) Add(t *template.MessageTemplate) {
	_ = s.InMemoryStore.Create(context.Background(), t.ID, t)
}

func (s *InMemoryTemplateStore) Get(ctx context.Context, id string) (*template.MessageTemplate, error) {
	t, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewError("template not found").
			WithHintf("Template %s does not exist", id).
			Mark(ierr.ErrTemplateNotFound)
	}
	return t, nil
}

func (s *InMemoryTemplateStore) FindByTags(ctx context.Context, channel types.Channel, category string, tags []string) (*template.MessageTemplate, error) {
	matches, err := s.List(ctx,
		func(_ context.Context, t *template.MessageTemplate) bool {
			return t.Active && t.Channel == channel && t.Category == category && t.HasTags(tags)
		},
		func(i, j *template.MessageTemplate) bool { return i.CreatedAt.Before(j.CreatedAt) },
	)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ierr.NewError("no matching template").
			WithHintf("No active %s template in category %s with tags %v", channel, category, tags).
			Mark(ierr.ErrTemplateNotFound)
	}
	return matches[0], nil
}
