package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/cartpulse/cartpulse/internal/cache"
	"github.com/cartpulse/cartpulse/internal/config"
	"github.com/cartpulse/cartpulse/internal/logger"
	"github.com/cartpulse/cartpulse/internal/types"
)

// Stores holds all the repository implementations for testing
type Stores struct {
	CustomerRepo *InMemoryCustomerStore
	OrderRepo    *InMemoryOrderStore
	CartRepo     *InMemoryCartStore
	TemplateRepo *InMemoryTemplateStore
	JobRepo      *InMemoryScheduledJobStore
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx        context.Context
	stores     Stores
	cache      cache.Cache
	publisher  *InMemoryEventPublisher
	dispatcher *RecordingDispatcher
	logger     *logger.Logger
	config     *config.Configuration
	now        time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	var err error
	s.logger, err = logger.NewLogger(types.LogLevelError)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}
	s.config = TestConfig()
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Now().UTC()
	s.cache = cache.NewInMemoryCache()
	s.publisher = NewInMemoryEventPublisher()
	s.dispatcher = NewRecordingDispatcher()
	s.stores = Stores{
		CustomerRepo: NewInMemoryCustomerStore(),
		OrderRepo:    NewInMemoryOrderStore(),
		CartRepo:     NewInMemoryCartStore(),
		TemplateRepo: NewInMemoryTemplateStore(),
		JobRepo:      NewInMemoryScheduledJobStore(),
	}
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.stores.CustomerRepo.Clear()
	s.stores.OrderRepo.Clear()
	s.stores.CartRepo.Clear()
	s.stores.TemplateRepo.Clear()
	s.stores.JobRepo.Clear()
	s.cache.Flush(s.ctx)
	s.publisher.Clear()
	s.dispatcher.Clear()
}

// TestConfig returns a configuration with the production defaults used in
// unit tests
func TestConfig() *config.Configuration {
	return &config.Configuration{
		Deployment: config.DeploymentConfig{Mode: types.ModeLocal},
		Logging:    config.LoggingConfig{Level: types.LogLevelError},
		Cache:      config.CacheConfig{Enabled: true},
		Recovery: config.RecoveryConfig{
			AbandonmentThresholdMinutes: 30,
			PlanTTLHours:                168,
			HighValueCartThreshold:      1000,
			RecoveryBaseURL:             "https://shop.test",
			AttemptWindows:              config.DefaultAttemptWindows(),
		},
		Analytics: config.AnalyticsConfig{
			WindowSeconds:          300,
			SegmentCacheTTLMinutes: 60,
		},
		Scheduler: config.SchedulerConfig{
			PollIntervalSeconds:  1,
			SweepIntervalMinutes: 5,
			ClaimBatchSize:       50,
			LeaseSeconds:         120,
		},
	}
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetStores returns the in-memory stores
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetCache returns the test cache
func (s *BaseServiceTestSuite) GetCache() cache.Cache {
	return s.cache
}

// GetPublisher returns the recording publisher
func (s *BaseServiceTestSuite) GetPublisher() *InMemoryEventPublisher {
	return s.publisher
}

// GetDispatcher returns the recording dispatcher
func (s *BaseServiceTestSuite) GetDispatcher() *RecordingDispatcher {
	return s.dispatcher
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetNow returns the time captured at test setup
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now
}
