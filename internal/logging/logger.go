package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

// LogLevelEnvVar is the environment variable that controls logging verbosity.
// When unset or empty, logging is silent (no zap output).
// Valid values: "debug", "info", "warn", "error"
const LogLevelEnvVar = "PROVISIONER_LOG_LEVEL"

// Initialize creates a new logger with the specified level.
// If level is empty, it checks PROVISIONER_LOG_LEVEL.
// If neither is set, logging is disabled (silent mode).
func Initialize(level string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}

	if level == "" {
		logger = zap.NewNop()
		return nil
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(parseLevel(level)),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	var err error
	logger, err = config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	return nil
}

// InitializeFromEnv initializes the logger from PROVISIONER_LOG_LEVEL.
// The operator CLI uses this so its styled output is not interleaved with
// log lines unless asked for.
func InitializeFromEnv() error {
	return Initialize("")
}

// SetLogger replaces the global logger. Tests use it with zaptest/observer
// style cores.
func SetLogger(l *zap.Logger) {
	logger = l
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		// Unknown level - use info as default when explicitly set to something
		return zapcore.InfoLevel
	}
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// Fatal logs a fatal message and exits
func Fatal(msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, fields...)
}

// LogTransition logs a provisioning state machine transition
func LogTransition(from, to string) {
	Info("Provisioning state changed",
		zap.String("from", from),
		zap.String("to", to),
	)
}

// LogDecision logs a decision point of the boot pass (mode chosen, forced
// restart, proceed).
func LogDecision(decision string, fields ...zap.Field) {
	Info(decision, append([]zap.Field{zap.String("event", "decision")}, fields...)...)
}

// LogStoreOp logs the outcome of a persisted-configuration operation
func LogStoreOp(op string, path string, size int, err error) {
	if err != nil {
		Warn("Configuration store operation failed",
			zap.String("op", op),
			zap.String("path", path),
			zap.Error(err),
		)
		return
	}
	Info("Configuration store operation succeeded",
		zap.String("op", op),
		zap.String("path", path),
		zap.Int("bytes", size),
	)
}

// LogPortalEvent logs a captive portal lifecycle event
func LogPortalEvent(event string, ssid string, fields ...zap.Field) {
	Info("Portal event",
		append([]zap.Field{
			zap.String("event", event),
			zap.String("ssid", ssid),
		}, fields...)...,
	)
}

// LogHTTPRequest logs an HTTP request served by the portal
func LogHTTPRequest(remoteAddr string, method string, path string, status int) {
	Debug("HTTP request served",
		zap.String("remote_addr", remoteAddr),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status_code", status),
	)
}

// Sync flushes any buffered log entries
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
