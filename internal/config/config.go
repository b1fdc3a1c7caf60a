package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/cartpulse/cartpulse/internal/types"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Postgres   PostgresConfig   `validate:"required"`
	Redis      RedisConfig      `validate:"required"`
	Cache      CacheConfig
	Email      EmailConfig
	WhatsApp   WhatsAppConfig
	Recovery   RecoveryConfig  `validate:"required"`
	Analytics  AnalyticsConfig `validate:"required"`
	Scheduler  SchedulerConfig `validate:"required"`
	Sentry     SentryConfig
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// GetDSN returns the postgres connection string
func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

type RedisConfig struct {
	Address  string
	Username string
	Password string
	DB       int
}

type CacheConfig struct {
	Enabled bool
}

type EmailConfig struct {
	Enabled     bool
	APIKey      string
	FromAddress string
	ReplyTo     string
}

type WhatsAppConfig struct {
	Enabled    bool
	GatewayURL string
	APIKey     string
}

// AttemptWindow describes one scheduled recovery attempt: how long after
// abandonment it fires and which channels it targets by default. The final
// channel list per attempt is the intersection with the customer's allowed
// channels.
type AttemptWindow struct {
	OffsetHours int
	Channels    []string
}

func (w AttemptWindow) Offset() time.Duration {
	return time.Duration(w.OffsetHours) * time.Hour
}

type RecoveryConfig struct {
	AbandonmentThresholdMinutes int             `validate:"gt=0"`
	PlanTTLHours                int             `validate:"gt=0"`
	HighValueCartThreshold      float64         `validate:"gt=0"`
	RecoveryBaseURL             string          `validate:"required"`
	AttemptWindows              []AttemptWindow `validate:"min=1"`
}

func (c RecoveryConfig) AbandonmentThreshold() time.Duration {
	return time.Duration(c.AbandonmentThresholdMinutes) * time.Minute
}

func (c RecoveryConfig) PlanTTL() time.Duration {
	return time.Duration(c.PlanTTLHours) * time.Hour
}

type AnalyticsConfig struct {
	WindowSeconds          int `validate:"gt=0"`
	SegmentCacheTTLMinutes int `validate:"gt=0"`
}

func (c AnalyticsConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

func (c AnalyticsConfig) SegmentCacheTTL() time.Duration {
	return time.Duration(c.SegmentCacheTTLMinutes) * time.Minute
}

type SchedulerConfig struct {
	PollIntervalSeconds  int `validate:"gt=0"`
	SweepIntervalMinutes int `validate:"gt=0"`
	ClaimBatchSize       int `validate:"gt=0"`
	LeaseSeconds         int `validate:"gt=0"`
}

func (c SchedulerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c SchedulerConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}

func (c SchedulerConfig) Lease() time.Duration {
	return time.Duration(c.LeaseSeconds) * time.Second
}

type SentryConfig struct {
	Enabled     bool
	DSN         string
	Environment string
	SampleRate  float64
}

func NewConfig() (*Configuration, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/cartpulse")

	v.SetEnvPrefix("CARTPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file if exists
	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", string(types.ModeLocal))
	v.SetDefault("logging.level", string(types.LogLevelInfo))

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.dbname", "cartpulse")
	v.SetDefault("postgres.sslmode", "disable")

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.enabled", true)

	v.SetDefault("recovery.abandonmentthresholdminutes", 30)
	v.SetDefault("recovery.planttlhours", 7*24)
	v.SetDefault("recovery.highvaluecartthreshold", 1000)
	v.SetDefault("recovery.recoverybaseurl", "https://shop.cartpulse.io/cart/recover")
	v.SetDefault("recovery.attemptwindows", DefaultAttemptWindows())

	v.SetDefault("analytics.windowseconds", 300)
	v.SetDefault("analytics.segmentcachettlminutes", 60)

	v.SetDefault("scheduler.pollintervalseconds", 15)
	v.SetDefault("scheduler.sweepintervalminutes", 5)
	v.SetDefault("scheduler.claimbatchsize", 50)
	v.SetDefault("scheduler.leaseseconds", 120)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.samplerate", 1.0)
}

// DefaultAttemptWindows is the stock recovery cadence: a fast whatsapp nudge,
// a next-day follow up on both channels and a last-call email.
func DefaultAttemptWindows() []AttemptWindow {
	return []AttemptWindow{
		{OffsetHours: 1, Channels: []string{string(types.ChannelWhatsApp)}},
		{OffsetHours: 24, Channels: []string{string(types.ChannelEmail), string(types.ChannelWhatsApp)}},
		{OffsetHours: 72, Channels: []string{string(types.ChannelEmail)}},
	}
}

// Validate validates the configuration
func (c Configuration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}
