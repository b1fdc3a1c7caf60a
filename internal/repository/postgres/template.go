package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/cartpulse/cartpulse/internal/domain/template"
	ierr "github.com/cartpulse/cartpulse/internal/errors"
	"github.com/cartpulse/cartpulse/internal/logger"
	"github.com/cartpulse/cartpulse/internal/postgres"
	"github.com/cartpulse/cartpulse/internal/types"
)

type templateRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewTemplateRepository creates a postgres backed message template repository
func NewTemplateRepository(db *postgres.DB, logger *logger.Logger) template.Repository {
	return &templateRepository{db: db, logger: logger}
}

const templateColumns = `id, name, channel, category, tags, subject, body, active, created_at, updated_at`

func scanTemplate(scan func(...interface{}) error) (*template.MessageTemplate, error) {
	var t template.MessageTemplate
	var tagsJSON []byte

	if err := scan(
		&t.ID,
		&t.Name,
		&t.Channel,
		&t.Category,
		&tagsJSON,
		&t.Subject,
		&t.Body,
		&t.Active,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &t.Tags); err != nil {
			return nil, err
		}
	}
	return &t, nil
}

func (r *templateRepository) Get(ctx context.Context, id string) (*template.MessageTemplate, error) {
	row := r.db.GetQuerier(ctx).QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM message_templates WHERE id = $1`, id)

	t, err := scanTemplate(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ierr.NewError("template not found").
			WithHintf("No template with id %s", id).
			Mark(ierr.ErrTemplateNotFound)
	}
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to fetch template").
			Mark(ierr.ErrDatabase)
	}
	return t, nil
}

func (r *templateRepository) FindByTags(ctx context.Context, channel types.Channel, category string, tags []string) (*template.MessageTemplate, error) {
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to marshal tags").
			Mark(ierr.ErrValidation)
	}

	// @> requires every requested tag to be present on the template
	query := `
	SELECT ` + templateColumns + `
	FROM message_templates
	WHERE channel = $1 AND category = $2 AND active AND tags @> $3
	ORDER BY updated_at DESC
	LIMIT 1
	`

	row := r.db.GetQuerier(ctx).QueryRowContext(ctx, query, channel, category, tagsJSON)
	t, err := scanTemplate(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ierr.NewError("no template matches").
			WithHintf("No %s template in category %s with tags %v", channel, category, tags).
			Mark(ierr.ErrTemplateNotFound)
	}
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to look up template").
			Mark(ierr.ErrDatabase)
	}
	return t, nil
}
