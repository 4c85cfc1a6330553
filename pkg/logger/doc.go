// Package logger builds the slog loggers the service components share:
// JSON for production, text for development, level and static attributes
// driven by environment config.
package logger
