package repository

import (
	"github.com/cartpulse/cartpulse/internal/domain/cart"
	"github.com/cartpulse/cartpulse/internal/domain/customer"
	"github.com/cartpulse/cartpulse/internal/domain/order"
	"github.com/cartpulse/cartpulse/internal/domain/scheduledjob"
	"github.com/cartpulse/cartpulse/internal/domain/template"
	"github.com/cartpulse/cartpulse/internal/logger"
	"github.com/cartpulse/cartpulse/internal/postgres"
	postgresRepo "github.com/cartpulse/cartpulse/internal/repository/postgres"
)

func NewCustomerRepository(db *postgres.DB, logger *logger.Logger) customer.Repository {
	return postgresRepo.NewCustomerRepository(db, logger)
}

func NewOrderRepository(db *postgres.DB, logger *logger.Logger) order.Repository {
	return postgresRepo.NewOrderRepository(db, logger)
}

func NewCartRepository(db *postgres.DB, logger *logger.Logger) cart.Repository {
	return postgresRepo.NewCartRepository(db, logger)
}

func NewTemplateRepository(db *postgres.DB, logger *logger.Logger) template.Repository {
	return postgresRepo.NewTemplateRepository(db, logger)
}

func NewScheduledJobRepository(db *postgres.DB, logger *logger.Logger) scheduledjob.Repository {
	return postgresRepo.NewScheduledJobRepository(db, logger)
}
