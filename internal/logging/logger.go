package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a production ready structured logger at the given level.
// Unknown level names fall back to info.
func NewLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// WithOperation enriches the logger with operation and analysis identifiers.
func WithOperation(logger *zap.Logger, operation, analysisID string) *zap.Logger {
	fields := []zap.Field{zap.String("operation", operation)}
	if analysisID != "" {
		fields = append(fields, zap.String("analysis_id", analysisID))
	}
	return logger.With(fields...)
}
