// Package observability provides the shared CLI logger.
package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the process-wide logger. It defaults to a no-op logger so
// packages can log before InitCLILogger runs.
var CLILogger = zap.NewNop()

// InitCLILogger configures CLILogger for terminal use. Log output goes to
// stderr so stdout stays clean for command output. Verbose forces debug
// level regardless of the configured level string.
func InitCLILogger(level string, verbose bool) {
	lvl := zapcore.InfoLevel
	if parsed, err := zapcore.ParseLevel(level); err == nil {
		lvl = parsed
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true

	logger, err := cfg.Build()
	if err != nil {
		// Building a development config only fails on bad output paths.
		logger = zap.NewNop()
	}
	CLILogger = logger
}

// Sync flushes buffered log entries. Safe to call on a no-op logger.
func Sync() {
	_ = CLILogger.Sync()
}
