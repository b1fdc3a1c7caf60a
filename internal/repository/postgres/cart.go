package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cartpulse/cartpulse/internal/domain/cart"
	ierr "github.com/cartpulse/cartpulse/internal/errors"
	"github.com/cartpulse/cartpulse/internal/logger"
	"github.com/cartpulse/cartpulse/internal/postgres"
	"github.com/cartpulse/cartpulse/internal/types"
)

type cartRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewCartRepository creates a postgres backed cart repository
func NewCartRepository(db *postgres.DB, logger *logger.Logger) cart.Repository {
	return &cartRepository{db: db, logger: logger}
}

const cartColumns = `id, customer_id, items, status, total_value, last_activity, abandoned_at, recovery_attempts, created_at, updated_at`

func scanCart(scan func(...interface{}) error) (*cart.Cart, error) {
	var c cart.Cart
	var itemsJSON, attemptsJSON []byte

	if err := scan(
		&c.ID,
		&c.CustomerID,
		&itemsJSON,
		&c.Status,
		&c.TotalValue,
		&c.LastActivity,
		&c.AbandonedAt,
		&attemptsJSON,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &c.Items); err != nil {
			return nil, err
		}
	}
	if len(attemptsJSON) > 0 {
		if err := json.Unmarshal(attemptsJSON, &c.RecoveryAttempts); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

func (r *cartRepository) Create(ctx context.Context, c *cart.Cart) error {
	query := `
	INSERT INTO carts (` + cartColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	itemsJSON, attemptsJSON, err := marshalCart(c)
	if err != nil {
		return err
	}

	_, err = r.db.GetQuerier(ctx).ExecContext(ctx, query,
		c.ID,
		c.CustomerID,
		itemsJSON,
		c.Status,
		c.TotalValue,
		c.LastActivity,
		c.AbandonedAt,
		attemptsJSON,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to insert cart").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *cartRepository) Get(ctx context.Context, id string) (*cart.Cart, error) {
	row := r.db.GetQuerier(ctx).QueryRowContext(ctx,
		`SELECT `+cartColumns+` FROM carts WHERE id = $1`, id)

	c, err := scanCart(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ierr.NewError("cart not found").
			WithHintf("No cart with id %s", id).
			Mark(ierr.ErrNotFound)
	}
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to fetch cart").
			Mark(ierr.ErrDatabase)
	}
	return c, nil
}

func (r *cartRepository) Update(ctx context.Context, c *cart.Cart) error {
	query := `
	UPDATE carts SET
		items = $2, status = $3, total_value = $4, last_activity = $5,
		abandoned_at = $6, recovery_attempts = $7, updated_at = $8
	WHERE id = $1
	`

	itemsJSON, attemptsJSON, err := marshalCart(c)
	if err != nil {
		return err
	}

	res, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		c.ID,
		itemsJSON,
		c.Status,
		c.TotalValue,
		c.LastActivity,
		c.AbandonedAt,
		attemptsJSON,
		c.UpdatedAt,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update cart").
			Mark(ierr.ErrDatabase)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ierr.NewError("cart not found").
			WithHintf("No cart with id %s", c.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *cartRepository) UpdateIfStatus(ctx context.Context, c *cart.Cart, expected types.CartStatus) error {
	query := `
	UPDATE carts SET
		items = $2, status = $3, total_value = $4, last_activity = $5,
		abandoned_at = $6, recovery_attempts = $7, updated_at = $8
	WHERE id = $1 AND status = $9
	`

	itemsJSON, attemptsJSON, err := marshalCart(c)
	if err != nil {
		return err
	}

	res, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		c.ID,
		itemsJSON,
		c.Status,
		c.TotalValue,
		c.LastActivity,
		c.AbandonedAt,
		attemptsJSON,
		c.UpdatedAt,
		expected,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update cart").
			Mark(ierr.ErrDatabase)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ierr.NewError("cart status changed").
			WithHintf("Cart %s is no longer in status %s", c.ID, expected).
			Mark(ierr.ErrConflict)
	}
	return nil
}

func (r *cartRepository) ListActiveInactiveSince(ctx context.Context, cutoff time.Time) ([]*cart.Cart, error) {
	query := `
	SELECT ` + cartColumns + `
	FROM carts
	WHERE status = $1 AND last_activity < $2 AND jsonb_array_length(items) > 0
	ORDER BY last_activity
	`
	return r.list(ctx, query, types.CartStatusActive, cutoff)
}

func (r *cartRepository) ListByStatus(ctx context.Context, status types.CartStatus) ([]*cart.Cart, error) {
	query := `SELECT ` + cartColumns + ` FROM carts WHERE status = $1 ORDER BY last_activity`
	return r.list(ctx, query, status)
}

func (r *cartRepository) list(ctx context.Context, query string, args ...interface{}) ([]*cart.Cart, error) {
	rows, err := r.db.GetQuerier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list carts").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var carts []*cart.Cart
	for rows.Next() {
		c, err := scanCart(rows.Scan)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan cart").
				Mark(ierr.ErrDatabase)
		}
		carts = append(carts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to iterate carts").
			Mark(ierr.ErrDatabase)
	}
	return carts, nil
}

func marshalCart(c *cart.Cart) ([]byte, []byte, error) {
	itemsJSON, err := json.Marshal(c.Items)
	if err != nil {
		return nil, nil, ierr.WithError(err).
			WithHint("Failed to marshal cart items").
			Mark(ierr.ErrValidation)
	}
	attemptsJSON, err := json.Marshal(c.RecoveryAttempts)
	if err != nil {
		return nil, nil, ierr.WithError(err).
			WithHint("Failed to marshal recovery attempts").
			Mark(ierr.ErrValidation)
	}
	return itemsJSON, attemptsJSON, nil
}
