package types

type RunMode string

const (
	// ModeLocal runs the scheduler loops and the notification bus in one process
	ModeLocal RunMode = "local"
	// ModeWorker runs only the scheduler loops (sweeper + attempt poller)
	ModeWorker RunMode = "worker"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)
