package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/skinscan/internal/analysis"
	"github.com/example/skinscan/internal/retry"
)

// ErrNotFound reports a lookup that matched no row.
var ErrNotFound = errors.New("record not found")

// AnalysisLog represents a persisted skin analysis.
type AnalysisLog struct {
	ID             uint      `gorm:"primaryKey"`
	AnalysisID     string    `gorm:"column:analysis_id;uniqueIndex;size:64"`
	SkinType       string    `gorm:"column:skin_type;size:32;index"`
	Confidence     float32   `gorm:"column:confidence"`
	HydrationLevel float32   `gorm:"column:hydration_level"`
	TextureScore   float32   `gorm:"column:texture_score"`
	Concerns       string    `gorm:"column:concerns;type:text"`
	Source         string    `gorm:"column:source;size:16"`
	FailureReason  string    `gorm:"column:failure_reason;type:text"`
	SHA1Hash       string    `gorm:"column:sha1_hash;size:40;index"`
	LatencyMs      int64     `gorm:"column:latency_ms"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (AnalysisLog) TableName() string {
	return "analysis_logs"
}

// SetConcerns stores concerns as a JSON array so any label text survives.
func (l *AnalysisLog) SetConcerns(concerns []string) {
	if concerns == nil {
		concerns = []string{}
	}
	encoded, err := json.Marshal(concerns)
	if err != nil {
		l.Concerns = "[]"
		return
	}
	l.Concerns = string(encoded)
}

// ConcernList expands the stored concerns. A column that does not hold a
// JSON array is read as a single label.
func (l *AnalysisLog) ConcernList() []string {
	if l.Concerns == "" {
		return []string{}
	}
	var concerns []string
	if err := json.Unmarshal([]byte(l.Concerns), &concerns); err != nil {
		return []string{l.Concerns}
	}
	if concerns == nil {
		concerns = []string{}
	}
	return concerns
}

// Result rebuilds the analysis result recorded by the log.
func (l *AnalysisLog) Result() analysis.Result {
	return analysis.Result{
		SkinType:            analysis.SkinType(l.SkinType),
		Confidence:          l.Confidence,
		Concerns:            l.ConcernList(),
		HydrationLevel:      l.HydrationLevel,
		TextureScore:        l.TextureScore,
		RecommendedProducts: []string{},
	}
}

// MetricsAggregation captures aggregated analysis statistics.
type MetricsAggregation struct {
	TotalCount        int64
	FallbackCount     int64
	AverageConfidence float64
	AverageLatencyMs  float64
	SkinTypeCounts    map[string]int64 `gorm:"-"`
}

// AnalysisRepository provides persistence APIs for analysis logs.
type AnalysisRepository struct {
	db     *gorm.DB
	logger *zap.Logger
	policy retry.Policy
}

// NewAnalysisRepository creates a new repository instance.
func NewAnalysisRepository(db *gorm.DB, logger *zap.Logger) *AnalysisRepository {
	return &AnalysisRepository{
		db:     db,
		logger: logger.Named("analysis_repository"),
		policy: retry.DefaultPolicy,
	}
}

// AutoMigrate ensures the analysis and journal schemas are available.
func (r *AnalysisRepository) AutoMigrate(ctx context.Context) error {
	return r.executeWithRetry(ctx, "repository.auto_migrate", "", func() error {
		return r.db.WithContext(ctx).AutoMigrate(&AnalysisLog{}, &JournalEntry{})
	})
}

// SaveLog persists an analysis log entry.
func (r *AnalysisRepository) SaveLog(ctx context.Context, log *AnalysisLog) error {
	return r.executeWithRetry(ctx, "repository.save_log", log.AnalysisID, func() error {
		return r.db.WithContext(ctx).Create(log).Error
	})
}

// FindByAnalysisID retrieves the log of one analysis.
func (r *AnalysisRepository) FindByAnalysisID(ctx context.Context, analysisID string) (*AnalysisLog, error) {
	var log AnalysisLog
	err := r.executeWithRetry(ctx, "repository.find_by_analysis_id", analysisID, func() error {
		return notFound(r.db.WithContext(ctx).First(&log, "analysis_id = ?", analysisID).Error)
	})
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// FindDuplicatesByHash lists earlier analyses of the same photo, newest first.
func (r *AnalysisRepository) FindDuplicatesByHash(ctx context.Context, hash, excludeAnalysisID string) ([]*AnalysisLog, error) {
	var logs []*AnalysisLog
	err := r.executeWithRetry(ctx, "repository.find_duplicates_by_hash", excludeAnalysisID, func() error {
		return r.db.WithContext(ctx).
			Where("sha1_hash = ? AND analysis_id <> ?", hash, excludeAnalysisID).
			Order("created_at DESC").
			Find(&logs).Error
	})
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// AggregateMetrics summarizes every persisted analysis.
func (r *AnalysisRepository) AggregateMetrics(ctx context.Context) (*MetricsAggregation, error) {
	agg := &MetricsAggregation{SkinTypeCounts: map[string]int64{}}
	err := r.executeWithRetry(ctx, "repository.aggregate_metrics", "", func() error {
		return r.db.WithContext(ctx).Model(&AnalysisLog{}).
			Select("COUNT(*) AS total_count, "+
				"COALESCE(SUM(CASE WHEN source = ? THEN 1 ELSE 0 END), 0) AS fallback_count, "+
				"COALESCE(AVG(confidence), 0) AS average_confidence, "+
				"COALESCE(AVG(latency_ms), 0) AS average_latency_ms", string(analysis.SourceFallback)).
			Scan(agg).Error
	})
	if err != nil {
		return nil, err
	}

	var rows []struct {
		SkinType string
		Count    int64
	}
	err = r.executeWithRetry(ctx, "repository.count_skin_types", "", func() error {
		return r.db.WithContext(ctx).Model(&AnalysisLog{}).
			Select("skin_type, COUNT(*) AS count").
			Group("skin_type").
			Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		agg.SkinTypeCounts[row.SkinType] = row.Count
	}
	return agg, nil
}

func (r *AnalysisRepository) executeWithRetry(ctx context.Context, operation, analysisID string, fn func() error) error {
	return retry.Do(ctx, r.policy, r.logger, operation, analysisID, fn)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
