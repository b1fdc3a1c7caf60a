package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cartpulse/cartpulse/internal/types"
)

// Logger wraps zap.SugaredLogger to provide logging functionality
type Logger struct {
	*zap.SugaredLogger
}

// Global logger for convenience
var L *Logger

// NewLogger creates and returns a new Logger instance honouring the
// configured level
func NewLogger(level types.LogLevel) (*Logger, error) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	switch level {
	case types.LogLevelDebug:
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case types.LogLevelWarn:
		config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case types.LogLevelError:
		config.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	}

	zapLogger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{
		SugaredLogger: zapLogger.Sugar(),
	}, nil
}

// Initialize default logger and set it as global while also using Dependency
// Injection. The logger is used in scripts and tests where wiring the full
// app is overkill; everywhere else prefer the injected instance.
func init() {
	L, _ = NewLogger(types.LogLevelInfo)
}

// GetLogger returns the global logger, creating it if needed
func GetLogger() *Logger {
	if L == nil {
		L, _ = NewLogger(types.LogLevelInfo)
	}
	return L
}
