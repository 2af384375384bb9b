package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config holds the process settings read from the environment.
type Config struct {
	HTTPAddr            string
	GRPCAddr            string
	DatabaseDSN         string
	RedisAddr           string
	ModelPath           string
	OnnxRuntimeLibPath  string
	ModelThreads        int
	SessionPoolSize     int
	RecommendationCount int
	ResultTTL           time.Duration
	ShutdownTimeout     time.Duration
	LogLevel            string
}

// Default returns the settings used when no environment overrides exist.
func Default() Config {
	return Config{
		HTTPAddr:            ":8080",
		DatabaseDSN:         "host=postgres user=postgres password=postgres dbname=skinscan port=5432 sslmode=disable",
		RedisAddr:           "redis:6379",
		ModelPath:           "./models/skin_analysis_model.onnx",
		SessionPoolSize:     2,
		RecommendationCount: 3,
		ResultTTL:           30 * time.Minute,
		ShutdownTimeout:     15 * time.Second,
		LogLevel:            "info",
	}
}

// Lookup matches os.LookupEnv so tests can supply their own environment.
type Lookup func(key string) (string, bool)

// Load reads the configuration from the process environment.
func Load() Config {
	return LoadFrom(os.LookupEnv, nil)
}

// LoadFrom reads the configuration through lookup. Malformed numeric or
// duration values keep their defaults and are reported on logger when it is
// not nil.
func LoadFrom(lookup Lookup, logger *zap.Logger) Config {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := reader{lookup: lookup, logger: logger}
	cfg := Default()

	cfg.HTTPAddr = r.str("HTTP_ADDR", cfg.HTTPAddr)
	cfg.GRPCAddr = r.str("GRPC_ADDR", cfg.GRPCAddr)
	cfg.DatabaseDSN = r.str("DATABASE_DSN", cfg.DatabaseDSN)
	cfg.RedisAddr = r.str("REDIS_ADDR", cfg.RedisAddr)
	cfg.ModelPath = r.str("MODEL_PATH", cfg.ModelPath)
	cfg.OnnxRuntimeLibPath = r.str("ONNXRUNTIME_LIB", cfg.OnnxRuntimeLibPath)
	cfg.LogLevel = r.str("LOG_LEVEL", cfg.LogLevel)
	cfg.ModelThreads = r.positiveInt("MODEL_THREADS", cfg.ModelThreads)
	cfg.SessionPoolSize = r.positiveInt("SESSION_POOL_SIZE", cfg.SessionPoolSize)
	cfg.RecommendationCount = r.positiveInt("RECOMMENDATION_COUNT", cfg.RecommendationCount)
	cfg.ResultTTL = r.duration("RESULT_TTL", cfg.ResultTTL)
	cfg.ShutdownTimeout = r.duration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)

	return cfg
}

type reader struct {
	lookup Lookup
	logger *zap.Logger
}

func (r reader) str(key, fallback string) string {
	if value, ok := r.lookup(key); ok {
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}
	return fallback
}

func (r reader) positiveInt(key string, fallback int) int {
	raw := r.str(key, "")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		r.logger.Warn("ignoring invalid integer setting", zap.String("key", key), zap.String("value", raw))
		return fallback
	}
	return value
}

func (r reader) duration(key string, fallback time.Duration) time.Duration {
	raw := r.str(key, "")
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		r.logger.Warn("ignoring invalid duration setting", zap.String("key", key), zap.String("value", raw))
		return fallback
	}
	return value
}
