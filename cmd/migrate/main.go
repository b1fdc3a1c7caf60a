package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/cartpulse/cartpulse/internal/config"
	"github.com/cartpulse/cartpulse/internal/logger"
)

// schema holds the DDL for the retention core, applied idempotently
var schema = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		id                  TEXT PRIMARY KEY,
		external_id         TEXT NOT NULL DEFAULT '',
		name                TEXT NOT NULL DEFAULT '',
		email               TEXT NOT NULL DEFAULT '',
		phone               TEXT NOT NULL DEFAULT '',
		type                TEXT NOT NULL DEFAULT 'individual',
		loyalty_tier        TEXT NOT NULL DEFAULT '',
		total_orders        INTEGER NOT NULL DEFAULT 0,
		total_spent         NUMERIC(20,2) NOT NULL DEFAULT 0,
		average_order_value NUMERIC(20,2) NOT NULL DEFAULT 0,
		first_purchase_date TIMESTAMPTZ,
		last_purchase_date  TIMESTAMPTZ,
		contact_preferences JSONB NOT NULL DEFAULT '{}',
		segments            JSONB NOT NULL DEFAULT '[]',
		created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS messages (
		id          TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL REFERENCES customers (id),
		channel     TEXT NOT NULL,
		body        TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_customer ON messages (customer_id)`,

	`CREATE TABLE IF NOT EXISTS orders (
		id          TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL REFERENCES customers (id),
		cart_id     TEXT NOT NULL DEFAULT '',
		total       NUMERIC(20,2) NOT NULL DEFAULT 0,
		items       JSONB NOT NULL DEFAULT '[]',
		status      TEXT NOT NULL DEFAULT 'completed',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders (customer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders (created_at)`,

	`CREATE TABLE IF NOT EXISTS carts (
		id                TEXT PRIMARY KEY,
		customer_id       TEXT NOT NULL REFERENCES customers (id),
		items             JSONB NOT NULL DEFAULT '[]',
		status            TEXT NOT NULL DEFAULT 'active',
		total_value       NUMERIC(20,2) NOT NULL DEFAULT 0,
		last_activity     TIMESTAMPTZ NOT NULL DEFAULT now(),
		abandoned_at      TIMESTAMPTZ,
		recovery_attempts JSONB NOT NULL DEFAULT '[]',
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_carts_status_activity ON carts (status, last_activity)`,

	`CREATE TABLE IF NOT EXISTS message_templates (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		channel    TEXT NOT NULL,
		category   TEXT NOT NULL,
		tags       JSONB NOT NULL DEFAULT '[]',
		subject    TEXT NOT NULL DEFAULT '',
		body       TEXT NOT NULL DEFAULT '',
		active     BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_templates_lookup ON message_templates (channel, category, active)`,

	`CREATE TABLE IF NOT EXISTS scheduled_jobs (
		id         TEXT PRIMARY KEY,
		cart_id    TEXT NOT NULL,
		plan_id    TEXT NOT NULL,
		attempt_id TEXT NOT NULL,
		run_at     TIMESTAMPTZ NOT NULL,
		status     TEXT NOT NULL DEFAULT 'pending',
		claimed_by TEXT NOT NULL DEFAULT '',
		claimed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scheduled_jobs_due ON scheduled_jobs (status, run_at)`,
	`CREATE INDEX IF NOT EXISTS idx_scheduled_jobs_cart ON scheduled_jobs (cart_id, status)`,
}

func main() {
	dryRun := flag.Bool("dry-run", false, "Print migration SQL without executing it")
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	if *dryRun {
		logger.Info("Dry run mode - printing migration SQL without executing")
		for _, stmt := range schema {
			fmt.Fprintln(os.Stdout, stmt+";")
		}
		return
	}

	dsn := cfg.Postgres.GetDSN()
	logger.Infow("Connecting to database", "host", cfg.Postgres.Host)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		logger.Fatalw("Failed to connect to postgres", "error", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("Running database migrations...")
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			logger.Fatalw("Failed to apply migration", "error", err, "statement", stmt)
		}
	}
	logger.Info("Migration completed successfully")

	fmt.Println("Migration process completed")
}
