package main

import (
	"context"
	"time"

	"go.uber.org/fx"

	"github.com/cartpulse/cartpulse/internal/cache"
	"github.com/cartpulse/cartpulse/internal/config"
	"github.com/cartpulse/cartpulse/internal/dispatch"
	"github.com/cartpulse/cartpulse/internal/domain/experiment"
	"github.com/cartpulse/cartpulse/internal/httpclient"
	"github.com/cartpulse/cartpulse/internal/logger"
	"github.com/cartpulse/cartpulse/internal/postgres"
	"github.com/cartpulse/cartpulse/internal/publisher"
	pubsubmemory "github.com/cartpulse/cartpulse/internal/pubsub/memory"
	"github.com/cartpulse/cartpulse/internal/repository"
	"github.com/cartpulse/cartpulse/internal/scheduler"
	"github.com/cartpulse/cartpulse/internal/sentry"
	"github.com/cartpulse/cartpulse/internal/service"
)

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			// Config
			config.NewConfig,

			// Logger
			provideLogger,

			// Monitoring
			sentry.NewSentryService,

			// Cache
			cache.NewRedisClient,
			cache.NewRedisCache,
			provideCache,

			// Postgres
			postgres.NewDB,

			// Notification bus
			pubsubmemory.NewPubSub,
			publisher.NewEventPublisher,

			// HTTP Client
			httpclient.NewDefaultClient,

			// Repositories
			repository.NewCustomerRepository,
			repository.NewOrderRepository,
			repository.NewCartRepository,
			repository.NewTemplateRepository,
			repository.NewScheduledJobRepository,

			// Experiments
			provideExperimentRegistry,

			// Dispatch
			dispatch.NewEmailDispatcher,
			dispatch.NewWhatsAppDispatcher,
			dispatch.NewRouter,
			provideDispatcher,
		),
	)

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,

			service.NewSegmentationService,
			service.NewAnalyticsService,
			service.NewExperimentService,
			service.NewRecoveryService,
		),
	)

	// Scheduler
	opts = append(opts,
		fx.Provide(scheduler.New),
		fx.Invoke(
			sentry.RegisterHooks,
			startScheduler,
		),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideLogger(cfg *config.Configuration) (*logger.Logger, error) {
	return logger.NewLogger(cfg.Logging.Level)
}

func provideCache(redisCache *cache.RedisCache) cache.Cache {
	return redisCache
}

func provideExperimentRegistry() *experiment.Registry {
	return experiment.DefaultRegistry()
}

func provideDispatcher(router *dispatch.Router) dispatch.Dispatcher {
	return router
}

func startScheduler(lc fx.Lifecycle, sched *scheduler.Scheduler, log *logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting cartpulse scheduler")
			sched.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			sched.Stop()
			return nil
		},
	})
}
