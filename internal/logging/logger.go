package logging

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

// LogLevelEnvVar is the environment variable that controls logging verbosity.
// When unset or empty, logging is silent (no zap output).
// Valid values: "debug", "info", "warn", "error"
const LogLevelEnvVar = "WIFIPORTAL_LOG_LEVEL"

// Initialize creates a new logger with the specified level.
// If level is empty, it checks WIFIPORTAL_LOG_LEVEL environment variable.
// If neither is set, logging is disabled (silent mode).
func Initialize(level string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}

	if level == "" {
		logger = zap.NewNop()
		return nil
	}

	zapLevel, err := parseLevel(level)
	if err != nil {
		// Unknown level explicitly set, fall back to info rather than silence
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	logger, err = config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	return nil
}

// InitializeFromEnv initializes the logger from the WIFIPORTAL_LOG_LEVEL
// environment variable.
func InitializeFromEnv() error {
	return Initialize("")
}

func parseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

// Named returns a child of the global logger scoped to a component.
func Named(component string) *zap.Logger {
	return GetLogger().Named(component)
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

// LogConnectAttempt logs the start of a station connection attempt.
func LogConnectAttempt(ssid string, source string, timeout time.Duration) {
	Info("Connecting to network",
		zap.String("ssid", ssid),
		zap.String("source", source),
		zap.Duration("timeout", timeout),
	)
}

// LogConnectResult logs how a station connection attempt ended.
func LogConnectResult(ssid string, connected bool, status string, elapsed time.Duration) {
	fields := []zap.Field{
		zap.String("ssid", ssid),
		zap.Bool("connected", connected),
		zap.String("status", status),
		zap.Duration("elapsed", elapsed),
	}
	if connected {
		Info("Connection established", fields...)
		return
	}
	Warn("Connection failed", fields...)
}

// LogPortalEvent logs a configuration portal lifecycle event.
func LogPortalEvent(apName string, event string, fields ...zap.Field) {
	Info("Portal event",
		append([]zap.Field{
			zap.String("ap_name", apName),
			zap.String("event", event),
		}, fields...)...,
	)
}

// LogHTTPRequest logs a handled portal HTTP request
func LogHTTPRequest(remoteAddr string, method string, path string, status int, duration time.Duration) {
	Debug("HTTP request",
		zap.String("remote_addr", remoteAddr),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", status),
		zap.Duration("duration", duration),
	)
}

// LogDNSQuery logs a captive DNS question and the address it was answered with.
func LogDNSQuery(remoteAddr string, name string, qtype string, answer string) {
	Debug("DNS query",
		zap.String("remote_addr", remoteAddr),
		zap.String("name", name),
		zap.String("qtype", qtype),
		zap.String("answer", answer),
	)
}

// Sync flushes any buffered log entries
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
