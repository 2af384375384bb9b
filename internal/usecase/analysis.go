package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/skinscan/internal/analysis"
	"github.com/example/skinscan/internal/catalog"
	"github.com/example/skinscan/internal/logging"
	"github.com/example/skinscan/internal/repository"
	"github.com/example/skinscan/internal/retry"
)

const processingMarker = "processing"

// ErrAnalysisPending reports a result lookup for an analysis still running.
var ErrAnalysisPending = errors.New("analysis still in progress")

// AnalysisRepository defines the persistence operations needed by the use case.
type AnalysisRepository interface {
	SaveLog(ctx context.Context, log *repository.AnalysisLog) error
	FindByAnalysisID(ctx context.Context, analysisID string) (*repository.AnalysisLog, error)
	FindDuplicatesByHash(ctx context.Context, hash, excludeAnalysisID string) ([]*repository.AnalysisLog, error)
	AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error)
}

// ProgressEvent is one checkpoint reported while analyzing.
type ProgressEvent struct {
	Phase   int     `json:"phase"`
	Percent float32 `json:"percent"`
}

// AnalysisReport is what callers get back for an analysis.
type AnalysisReport struct {
	AnalysisID string          `json:"analysis_id"`
	Result     analysis.Result `json:"result"`
	Source     analysis.Source `json:"source"`
	Progress   []ProgressEvent `json:"progress,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// DuplicateReport lists earlier analyses of the same photo.
type DuplicateReport struct {
	Request    *repository.AnalysisLog
	Duplicates []*repository.AnalysisLog
}

type cachedAnalysis struct {
	AnalysisID string    `json:"analysis_id"`
	Source     string    `json:"source"`
	Transport  string    `json:"transport"`
	CreatedAt  time.Time `json:"created_at"`
}

// AnalysisUseCase runs analyses and serves their results.
type AnalysisUseCase struct {
	repo            AnalysisRepository
	cache           Cache
	pool            *SessionPool
	logger          *zap.Logger
	policy          retry.Policy
	resultTTL       time.Duration
	recommendations int
	now             func() time.Time
}

// NewAnalysisUseCase constructs a new use case instance.
func NewAnalysisUseCase(repo AnalysisRepository, cache Cache, pool *SessionPool, logger *zap.Logger) *AnalysisUseCase {
	return &AnalysisUseCase{
		repo:            repo,
		cache:           cache,
		pool:            pool,
		logger:          logger.Named("analysis_usecase"),
		policy:          retry.DefaultPolicy,
		resultTTL:       30 * time.Minute,
		recommendations: catalog.DefaultRecommendationCount,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// WithResultTTL sets how long results stay in the cache.
func (uc *AnalysisUseCase) WithResultTTL(ttl time.Duration) *AnalysisUseCase {
	if ttl > 0 {
		uc.resultTTL = ttl
	}
	return uc
}

// WithRecommendationCount sets how many products accompany a result.
func (uc *AnalysisUseCase) WithRecommendationCount(n int) *AnalysisUseCase {
	if n > 0 {
		uc.recommendations = n
	}
	return uc
}

// ModelSource reports whether analyses currently use the model.
func (uc *AnalysisUseCase) ModelSource() analysis.Source {
	return uc.pool.Source()
}

// Analyze runs the pipeline on image, which may be empty, then persists and
// caches the outcome.
func (uc *AnalysisUseCase) Analyze(ctx context.Context, image []byte) (*AnalysisReport, error) {
	analysisID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.analyze", analysisID)

	cacheKey := resultKey(analysisID)
	if err := retry.Do(ctx, uc.policy, uc.logger, "cache.set.processing", analysisID, func() error {
		return uc.cache.Set(ctx, cacheKey, processingMarker, time.Minute)
	}); err != nil {
		opLogger.Error("failed to set processing flag", zap.Error(err))
		return nil, err
	}

	var progress []ProgressEvent
	started := uc.now()
	outcome, err := uc.pool.Analyze(ctx, image, func(phase int, percent float32) {
		progress = append(progress, ProgressEvent{Phase: phase, Percent: percent})
		opLogger.Debug("analysis progress", zap.Int("phase", phase), zap.Float32("percent", percent))
	})
	if err != nil {
		wrapped := logging.NewOperationError("usecase.acquire_session", analysisID, err)
		opLogger.Error("no analysis session available", zap.Error(wrapped))
		return nil, wrapped
	}
	latency := uc.now().Sub(started)

	if outcome.Cause != nil {
		opLogger.Warn("analysis used fallback generator", zap.Error(outcome.Cause))
	}

	result := outcome.Result
	result.RecommendedProducts = catalog.Recommend(result.SkinType, uc.recommendations, nil)

	log := &repository.AnalysisLog{
		AnalysisID:     analysisID,
		SkinType:       string(result.SkinType),
		Confidence:     result.Confidence,
		HydrationLevel: result.HydrationLevel,
		TextureScore:   result.TextureScore,
		Source:         string(outcome.Source),
		SHA1Hash:       photoHash(image),
		LatencyMs:      latency.Milliseconds(),
		CreatedAt:      started,
	}
	log.SetConcerns(result.Concerns)
	if outcome.Cause != nil {
		log.FailureReason = outcome.Cause.Error()
	}
	if err := uc.repo.SaveLog(ctx, log); err != nil {
		wrapped := logging.NewOperationError("usecase.save_log", analysisID, err)
		opLogger.Error("failed to persist analysis log", zap.Error(wrapped))
		return nil, wrapped
	}

	serialized, err := json.Marshal(cachedAnalysis{
		AnalysisID: analysisID,
		Source:     log.Source,
		Transport:  analysis.Marshal(result),
		CreatedAt:  log.CreatedAt,
	})
	if err != nil {
		opLogger.Error("failed to serialize analysis result", zap.Error(err))
		return nil, err
	}

	if err := retry.Do(ctx, uc.policy, uc.logger, "cache.set.result", analysisID, func() error {
		return uc.cache.Set(ctx, cacheKey, string(serialized), uc.resultTTL)
	}); err != nil {
		opLogger.Error("failed to cache analysis result", zap.Error(err))
		return nil, err
	}

	opLogger.Info("analysis completed",
		zap.String("skin_type", string(result.SkinType)),
		zap.String("source", log.Source),
		zap.Int64("latency_ms", log.LatencyMs))

	return &AnalysisReport{
		AnalysisID: analysisID,
		Result:     result,
		Source:     outcome.Source,
		Progress:   progress,
		CreatedAt:  log.CreatedAt,
	}, nil
}

// GetResult returns a finished analysis from the cache, or from persistence
// when the cache no longer holds it. Products are drawn afresh on each call.
func (uc *AnalysisUseCase) GetResult(ctx context.Context, analysisID string) (*AnalysisReport, error) {
	opLogger := logging.WithOperation(uc.logger, "usecase.get_result", analysisID)

	cached, err := uc.cachedResult(ctx, analysisID)
	switch {
	case err == nil && cached == processingMarker:
		return nil, ErrAnalysisPending
	case err == nil:
		var payload cachedAnalysis
		if err := json.Unmarshal([]byte(cached), &payload); err != nil {
			opLogger.Warn("failed to decode cached result", zap.Error(err))
			break
		}
		result := analysis.Unmarshal(payload.Transport)
		result.RecommendedProducts = catalog.Recommend(result.SkinType, uc.recommendations, nil)
		return &AnalysisReport{
			AnalysisID: analysisID,
			Result:     result,
			Source:     analysis.Source(payload.Source),
			CreatedAt:  payload.CreatedAt,
		}, nil
	case !errors.Is(err, redis.Nil):
		opLogger.Warn("failed to read cache", zap.Error(err))
	}

	log, err := uc.repo.FindByAnalysisID(ctx, analysisID)
	if err != nil {
		return nil, err
	}
	result := log.Result()
	result.RecommendedProducts = catalog.Recommend(result.SkinType, uc.recommendations, nil)
	return &AnalysisReport{
		AnalysisID: log.AnalysisID,
		Result:     result,
		Source:     analysis.Source(log.Source),
		CreatedAt:  log.CreatedAt,
	}, nil
}

// GetTransport returns the transport string of a finished analysis.
func (uc *AnalysisUseCase) GetTransport(ctx context.Context, analysisID string) (string, error) {
	report, err := uc.GetResult(ctx, analysisID)
	if err != nil {
		return "", err
	}
	return analysis.Marshal(report.Result), nil
}

// GetDuplicateReport builds a duplicate detection report for an analysis.
func (uc *AnalysisUseCase) GetDuplicateReport(ctx context.Context, analysisID string) (*DuplicateReport, error) {
	log, err := uc.repo.FindByAnalysisID(ctx, analysisID)
	if err != nil {
		return nil, err
	}

	duplicates := []*repository.AnalysisLog{}
	if log.SHA1Hash != "" {
		duplicates, err = uc.repo.FindDuplicatesByHash(ctx, log.SHA1Hash, log.AnalysisID)
		if err != nil {
			return nil, err
		}
	}

	return &DuplicateReport{
		Request:    log,
		Duplicates: duplicates,
	}, nil
}

func (uc *AnalysisUseCase) cachedResult(ctx context.Context, analysisID string) (string, error) {
	var result string
	err := retry.Do(ctx, uc.policy, uc.logger, "cache.get.result", analysisID, func() error {
		value, err := uc.cache.Get(ctx, resultKey(analysisID))
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

func photoHash(image []byte) string {
	if len(image) == 0 {
		return ""
	}
	sum := sha1.Sum(image)
	return hex.EncodeToString(sum[:])
}
