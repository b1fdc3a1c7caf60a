package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/cartpulse/cartpulse/internal/domain/customer"
	ierr "github.com/cartpulse/cartpulse/internal/errors"
	"github.com/cartpulse/cartpulse/internal/logger"
	"github.com/cartpulse/cartpulse/internal/postgres"
)

type customerRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewCustomerRepository creates a postgres backed customer repository
func NewCustomerRepository(db *postgres.DB, logger *logger.Logger) customer.Repository {
	return &customerRepository{db: db, logger: logger}
}

func (r *customerRepository) Get(ctx context.Context, id string) (*customer.Customer, error) {
	query := `
	SELECT
		id, external_id, name, email, phone, type, loyalty_tier,
		total_orders, total_spent, average_order_value,
		first_purchase_date, last_purchase_date,
		contact_preferences, segments, created_at, updated_at
	FROM customers
	WHERE id = $1
	`

	var c customer.Customer
	var prefsJSON, segmentsJSON []byte

	err := r.db.GetQuerier(ctx).QueryRowContext(ctx, query, id).Scan(
		&c.ID,
		&c.ExternalID,
		&c.Name,
		&c.Email,
		&c.Phone,
		&c.Type,
		&c.LoyaltyTier,
		&c.Metrics.TotalOrders,
		&c.Metrics.TotalSpent,
		&c.Metrics.AverageOrderValue,
		&c.Metrics.FirstPurchaseDate,
		&c.Metrics.LastPurchaseDate,
		&prefsJSON,
		&segmentsJSON,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ierr.NewError("customer not found").
			WithHintf("No customer with id %s", id).
			Mark(ierr.ErrNotFound)
	}
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to fetch customer").
			Mark(ierr.ErrDatabase)
	}

	if len(prefsJSON) > 0 {
		if err := json.Unmarshal(prefsJSON, &c.ContactPreferences); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Corrupt contact preferences").
				Mark(ierr.ErrDatabase)
		}
	}
	if len(segmentsJSON) > 0 {
		if err := json.Unmarshal(segmentsJSON, &c.Segments); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Corrupt segments snapshot").
				Mark(ierr.ErrDatabase)
		}
	}

	return &c, nil
}

func (r *customerRepository) Update(ctx context.Context, c *customer.Customer) error {
	query := `
	UPDATE customers SET
		name = $2, email = $3, phone = $4, type = $5, loyalty_tier = $6,
		total_orders = $7, total_spent = $8, average_order_value = $9,
		first_purchase_date = $10, last_purchase_date = $11,
		contact_preferences = $12, segments = $13, updated_at = $14
	WHERE id = $1
	`

	prefsJSON, err := json.Marshal(c.ContactPreferences)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to marshal contact preferences").
			Mark(ierr.ErrValidation)
	}
	segmentsJSON, err := json.Marshal(c.Segments)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to marshal segments").
			Mark(ierr.ErrValidation)
	}

	res, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		c.ID,
		c.Name,
		c.Email,
		c.Phone,
		c.Type,
		c.LoyaltyTier,
		c.Metrics.TotalOrders,
		c.Metrics.TotalSpent,
		c.Metrics.AverageOrderValue,
		c.Metrics.FirstPurchaseDate,
		c.Metrics.LastPurchaseDate,
		prefsJSON,
		segmentsJSON,
		c.UpdatedAt,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update customer").
			Mark(ierr.ErrDatabase)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ierr.NewError("customer not found").
			WithHintf("No customer with id %s", c.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *customerRepository) UpdateSegments(ctx context.Context, id string, segments []string) error {
	segmentsJSON, err := json.Marshal(segments)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to marshal segments").
			Mark(ierr.ErrValidation)
	}

	res, err := r.db.GetQuerier(ctx).ExecContext(ctx,
		`UPDATE customers SET segments = $2, updated_at = NOW() WHERE id = $1`,
		id, segmentsJSON,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to persist segments snapshot").
			Mark(ierr.ErrDatabase)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ierr.NewError("customer not found").
			WithHintf("No customer with id %s", id).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *customerRepository) CountMessages(ctx context.Context, id string) (int64, error) {
	var count int64
	err := r.db.GetQuerier(ctx).GetContext(ctx, &count,
		`SELECT COUNT(*) FROM messages WHERE customer_id = $1`, id)
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count customer messages").
			Mark(ierr.ErrDatabase)
	}
	return count, nil
}
