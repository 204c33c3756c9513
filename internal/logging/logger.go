package logging

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// FormatJSON selects structured production output.
	FormatJSON = "json"
	// FormatConsole selects human readable development output.
	FormatConsole = "console"

	errorMessageInvalidLogLevel  = "logging: invalid log level"
	errorMessageInvalidLogFormat = "logging: invalid log format"
	errorMessageBuildLogger      = "logging: build logger"
)

var (
	// ErrInvalidLogLevel indicates the configured level is not recognized by zap.
	ErrInvalidLogLevel = errors.New(errorMessageInvalidLogLevel)
	// ErrInvalidLogFormat indicates the configured format is neither json nor console.
	ErrInvalidLogFormat = errors.New(errorMessageInvalidLogFormat)
)

// NewLogger builds a zap logger for the given level and output format.
// Empty values fall back to info and json.
func NewLogger(level string, format string) (*zap.Logger, error) {
	normalizedLevel := strings.ToLower(strings.TrimSpace(level))
	if normalizedLevel == "" {
		normalizedLevel = zapcore.InfoLevel.String()
	}
	parsedLevel, levelErr := zapcore.ParseLevel(normalizedLevel)
	if levelErr != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLogLevel, level)
	}

	var loggerConfig zap.Config
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatJSON:
		loggerConfig = zap.NewProductionConfig()
	case FormatConsole:
		loggerConfig = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidLogFormat, format)
	}
	loggerConfig.Level = zap.NewAtomicLevelAt(parsedLevel)

	logger, buildErr := loggerConfig.Build()
	if buildErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageBuildLogger, buildErr)
	}
	return logger, nil
}
