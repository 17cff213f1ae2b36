// Package log holds the process-wide zap logger of the command line tools.
package log

import (
	"fmt"

	"go.uber.org/zap"
)

var (
	baseLogger *zap.Logger
	sugared    *zap.SugaredLogger
)

// Init builds the package-level logger: a development logger with debug
// output when debug is set, a production logger otherwise.
func Init(debug bool) error {
	var zapLogger *zap.Logger
	var err error

	if debug {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %w", err)
	}

	baseLogger = zapLogger
	sugared = zapLogger.Sugar()
	return nil
}

// Logger returns the base logger for libraries that take a *zap.Logger.
// Before Init it returns a no-op logger.
func Logger() *zap.Logger {
	if baseLogger == nil {
		return zap.NewNop()
	}
	return baseLogger
}

// Sugar returns the sugared logger.
func Sugar() *zap.SugaredLogger {
	if sugared == nil {
		return Logger().Sugar()
	}
	return sugared
}

// Sync flushes any buffered log entries.
func Sync() {
	if baseLogger != nil {
		_ = baseLogger.Sync()
	}
}

func Debugw(msg string, keysAndValues ...any) {
	Sugar().Debugw(msg, keysAndValues...)
}

func Infow(msg string, keysAndValues ...any) {
	Sugar().Infow(msg, keysAndValues...)
}

func Warnw(msg string, keysAndValues ...any) {
	Sugar().Warnw(msg, keysAndValues...)
}

func Errorw(msg string, keysAndValues ...any) {
	Sugar().Errorw(msg, keysAndValues...)
}
