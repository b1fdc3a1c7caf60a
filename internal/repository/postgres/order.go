package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cartpulse/cartpulse/internal/domain/order"
	ierr "github.com/cartpulse/cartpulse/internal/errors"
	"github.com/cartpulse/cartpulse/internal/logger"
	"github.com/cartpulse/cartpulse/internal/postgres"
	"github.com/cartpulse/cartpulse/internal/types"
)

type orderRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewOrderRepository creates a postgres backed order repository
func NewOrderRepository(db *postgres.DB, logger *logger.Logger) order.Repository {
	return &orderRepository{db: db, logger: logger}
}

const orderColumns = `id, customer_id, cart_id, total, items, status, created_at`

func (r *orderRepository) scanOrder(scan func(...interface{}) error) (*order.Order, error) {
	var o order.Order
	var cartID sql.NullString
	var itemsJSON []byte

	if err := scan(
		&o.ID,
		&o.CustomerID,
		&cartID,
		&o.Total,
		&itemsJSON,
		&o.Status,
		&o.CreatedAt,
	); err != nil {
		return nil, err
	}

	o.CartID = cartID.String
	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
			return nil, err
		}
	}
	return &o, nil
}

func (r *orderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	row := r.db.GetQuerier(ctx).QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)

	o, err := r.scanOrder(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ierr.NewError("order not found").
			WithHintf("No order with id %s", id).
			Mark(ierr.ErrNotFound)
	}
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to fetch order").
			Mark(ierr.ErrDatabase)
	}
	return o, nil
}

func (r *orderRepository) ListByCustomer(ctx context.Context, customerID string) ([]*order.Order, error) {
	rows, err := r.db.GetQuerier(ctx).QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE customer_id = $1 ORDER BY created_at`, customerID)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list customer orders").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var orders []*order.Order
	for rows.Next() {
		o, err := r.scanOrder(rows.Scan)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan order").
				Mark(ierr.ErrDatabase)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to iterate orders").
			Mark(ierr.ErrDatabase)
	}
	return orders, nil
}

func (r *orderRepository) RevenueByPeriod(ctx context.Context, start, end time.Time, granularity types.WindowGranularity) ([]*order.RevenueBucket, error) {
	if !granularity.Validate() {
		return nil, ierr.NewError("invalid granularity").
			WithHintf("Granularity %s is not one of hour, day, week, month", granularity).
			Mark(ierr.ErrValidation)
	}

	// date_trunc's unit argument matches the granularity names directly
	query := `
	SELECT
		date_trunc($1, created_at) AS period,
		COALESCE(SUM(total), 0) AS revenue,
		COUNT(*) AS order_count
	FROM orders
	WHERE status = 'completed' AND created_at >= $2 AND created_at <= $3
	GROUP BY period
	ORDER BY period
	`

	rows, err := r.db.GetQuerier(ctx).QueryContext(ctx, query, string(granularity), start, end)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to aggregate revenue").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var buckets []*order.RevenueBucket
	for rows.Next() {
		var b order.RevenueBucket
		if err := rows.Scan(&b.Period, &b.Revenue, &b.OrderCount); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan revenue bucket").
				Mark(ierr.ErrDatabase)
		}
		buckets = append(buckets, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to iterate revenue buckets").
			Mark(ierr.ErrDatabase)
	}
	return buckets, nil
}

func (r *orderRepository) RepeatPurchaseRate(ctx context.Context) (float64, error) {
	// Grouping by customer keeps zero-order customers out of the denominator
	query := `
	SELECT COALESCE(AVG(CASE WHEN order_count > 1 THEN 1.0 ELSE 0.0 END), 0)
	FROM (
		SELECT customer_id, COUNT(*) AS order_count
		FROM orders
		WHERE status = 'completed'
		GROUP BY customer_id
	) per_customer
	`

	var rate float64
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &rate, query); err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to compute repeat purchase rate").
			Mark(ierr.ErrDatabase)
	}
	return rate, nil
}
