package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/skinscan/internal/analysis"
	"github.com/example/skinscan/internal/config"
	"github.com/example/skinscan/internal/handlers"
	"github.com/example/skinscan/internal/logging"
	"github.com/example/skinscan/internal/repository"
	"github.com/example/skinscan/internal/scorer"
	"github.com/example/skinscan/internal/scorer/onnxscorer"
	"github.com/example/skinscan/internal/scorer/tflitescorer"
	"github.com/example/skinscan/internal/usecase"
)

func main() {
	logger, err := logging.NewLogger(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	cfg := config.LoadFrom(os.LookupEnv, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db := initDatabase(ctx, cfg.DatabaseDSN, logger)
	analysisRepo := repository.NewAnalysisRepository(db, logger)
	if err := analysisRepo.AutoMigrate(ctx); err != nil {
		logger.Fatal("auto migrate failed", zap.Error(err))
	}
	journalRepo := repository.NewJournalRepository(db, logger)

	redisCtx, redisCancel := context.WithTimeout(ctx, 5*time.Second)
	defer redisCancel()
	redisClient := initRedis(redisCtx, cfg.RedisAddr, logger)
	defer redisClient.Close()

	pool := newSessionPool(ctx, cfg, logger)
	defer pool.Close()

	cache := usecase.NewRedisCache(redisClient)
	analysisUC := usecase.NewAnalysisUseCase(analysisRepo, cache, pool, logger).
		WithResultTTL(cfg.ResultTTL).
		WithRecommendationCount(cfg.RecommendationCount)
	journalUC := usecase.NewJournalUseCase(journalRepo, logger)

	if cfg.GRPCAddr != "" {
		grpcServer, err := startGRPCServer(ctx, cfg, logger)
		if err != nil {
			logger.Fatal("failed to start gRPC server", zap.Error(err))
		}
		defer grpcServer.GracefulStop()
	}

	r := gin.Default()
	r.MaxMultipartMemory = handlers.MaxUploadSize
	handlers.RegisterRoutes(r, analysisUC, journalUC)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	logger.Info("skin analysis API listening",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("model_source", string(pool.Source())),
		zap.Int("sessions", pool.Size()))
	if err := serveHTTPServer(server, cfg.ShutdownTimeout, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func initDatabase(ctx context.Context, dsn string, zapLogger *zap.Logger) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		zapLogger.Fatal("failed to access db handle", zap.Error(err))
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		zapLogger.Fatal("database ping failed", zap.Error(err))
	}

	return db
}

func initRedis(ctx context.Context, addr string, zapLogger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	return client
}

// loadScorer opens the backend named by cfg.ModelPath: a grpc:// address,
// a .tflite file, or an ONNX model otherwise.
func loadScorer(ctx context.Context, cfg config.Config, logger *zap.Logger) (scorer.Scorer, error) {
	opts := scorer.Options{
		InputSize:          analysis.InputSize,
		NumThreads:         cfg.ModelThreads,
		OnnxRuntimeLibPath: cfg.OnnxRuntimeLibPath,
	}

	path := cfg.ModelPath
	switch {
	case strings.HasPrefix(path, scorer.RemotePrefix):
		return scorer.DialRemote(ctx, strings.TrimPrefix(path, scorer.RemotePrefix), logger)
	case strings.EqualFold(filepath.Ext(path), ".tflite"):
		sc, err := tflitescorer.New(path, opts)
		if err != nil {
			return nil, err
		}
		return sc, nil
	default:
		sc, err := onnxscorer.New(path, opts)
		if err != nil {
			return nil, err
		}
		return sc, nil
	}
}

func newSessionPool(ctx context.Context, cfg config.Config, logger *zap.Logger) *usecase.SessionPool {
	size := cfg.SessionPoolSize
	if size <= 0 {
		size = 1
	}

	sessions := make([]usecase.Analyzer, 0, size)
	for i := 0; i < size; i++ {
		session := analysis.NewSession(func() (scorer.Scorer, error) {
			return loadScorer(ctx, cfg, logger)
		})
		if err := session.LoadErr(); err != nil {
			logger.Warn("model unavailable, session will use fallback analysis",
				zap.Int("session", i),
				zap.String("model_path", cfg.ModelPath),
				zap.Error(err))
		}
		sessions = append(sessions, session)
	}
	return usecase.NewSessionPool(sessions...)
}

// startGRPCServer serves the standard health service and, when a local
// model loads, the scoring service backed by it.
func startGRPCServer(ctx context.Context, cfg config.Config, logger *zap.Logger) (*grpc.Server, error) {
	listener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return nil, err
	}
	return serveGRPC(ctx, listener, cfg, logger), nil
}

func serveGRPC(ctx context.Context, listener net.Listener, cfg config.Config, logger *zap.Logger) *grpc.Server {
	server := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)

	sc, err := loadScorer(ctx, cfg, logger)
	if err != nil {
		logger.Warn("scoring service disabled", zap.Error(err))
		healthServer.SetServingStatus("skinscan.v1.Scorer", healthpb.HealthCheckResponse_NOT_SERVING)
	} else {
		scorer.RegisterScorerServer(server, sc)
		healthServer.SetServingStatus("skinscan.v1.Scorer", healthpb.HealthCheckResponse_SERVING)
	}

	go func() {
		logger.Info("gRPC server listening", zap.String("addr", listener.Addr().String()))
		if err := server.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("gRPC server failed", zap.Error(err))
		}
		if sc != nil {
			_ = sc.Close()
		}
	}()
	return server
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
