package observability

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	loggerMu sync.RWMutex
	logger   *zap.SugaredLogger = zap.NewNop().Sugar()
)

// InitLoggerFromEnv initializes the global zap logger from environment variables.
// SR_LOG_LEVEL selects the level (debug, info, warn, error; default info) and
// SR_LOG_FORMAT selects the encoding (json or console; default json).
func InitLoggerFromEnv() (*zap.Logger, error) {
	level := zapcore.InfoLevel
	switch strings.ToLower(os.Getenv("SR_LOG_LEVEL")) {
	case "debug":
		level = zapcore.DebugLevel
	case "warn", "warning":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	if strings.ToLower(os.Getenv("SR_LOG_FORMAT")) == "console" {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	SetLogger(l)
	return l, nil
}

// SetLogger replaces the global logger. Safe for concurrent use.
func SetLogger(l *zap.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = l.Sugar()
}

func get() *zap.SugaredLogger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...interface{}) { get().Debugf(format, args...) }

// Infof logs a formatted message at info level.
func Infof(format string, args ...interface{}) { get().Infof(format, args...) }

// Warnf logs a formatted message at warn level.
func Warnf(format string, args ...interface{}) { get().Warnf(format, args...) }

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...interface{}) { get().Errorf(format, args...) }

// Fatalf logs a formatted message at fatal level and exits.
func Fatalf(format string, args ...interface{}) { get().Fatalf(format, args...) }
