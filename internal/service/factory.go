package service

import (
	"github.com/cartpulse/cartpulse/internal/cache"
	"github.com/cartpulse/cartpulse/internal/config"
	"github.com/cartpulse/cartpulse/internal/dispatch"
	"github.com/cartpulse/cartpulse/internal/domain/cart"
	"github.com/cartpulse/cartpulse/internal/domain/customer"
	"github.com/cartpulse/cartpulse/internal/domain/experiment"
	"github.com/cartpulse/cartpulse/internal/domain/order"
	"github.com/cartpulse/cartpulse/internal/domain/scheduledjob"
	"github.com/cartpulse/cartpulse/internal/domain/template"
	"github.com/cartpulse/cartpulse/internal/logger"
	"github.com/cartpulse/cartpulse/internal/postgres"
	"github.com/cartpulse/cartpulse/internal/publisher"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     *postgres.DB
	Cache  cache.Cache

	// Repositories
	CustomerRepo customer.Repository
	OrderRepo    order.Repository
	CartRepo     cart.Repository
	TemplateRepo template.Repository
	JobRepo      scheduledjob.Repository

	// Experiments is the immutable registry loaded once per process lifetime
	Experiments *experiment.Registry

	// Collaborators
	Dispatcher     dispatch.Dispatcher
	EventPublisher publisher.EventPublisher
}

// NewServiceParams wires common service dependencies
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db *postgres.DB,
	cache cache.Cache,
	customerRepo customer.Repository,
	orderRepo order.Repository,
	cartRepo cart.Repository,
	templateRepo template.Repository,
	jobRepo scheduledjob.Repository,
	experiments *experiment.Registry,
	dispatcher dispatch.Dispatcher,
	eventPublisher publisher.EventPublisher,
) ServiceParams {
	return ServiceParams{
		Logger:         logger,
		Config:         config,
		DB:             db,
		Cache:          cache,
		CustomerRepo:   customerRepo,
		OrderRepo:      orderRepo,
		CartRepo:       cartRepo,
		TemplateRepo:   templateRepo,
		JobRepo:        jobRepo,
		Experiments:    experiments,
		Dispatcher:     dispatcher,
		EventPublisher: eventPublisher,
	}
}
