package usecase

import "context"

// MetricsSummary represents aggregated analysis insights.
type MetricsSummary struct {
	TotalAnalyses     int64            `json:"total_analyses"`
	FallbackAnalyses  int64            `json:"fallback_analyses"`
	FallbackRate      float64          `json:"fallback_rate"`
	AverageConfidence float64          `json:"average_confidence"`
	AverageLatencyMs  float64          `json:"average_latency_ms"`
	SkinTypes         map[string]int64 `json:"skin_types"`
}

// GetMetricsSummary aggregates analysis metrics from persisted logs.
func (uc *AnalysisUseCase) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	aggregation, err := uc.repo.AggregateMetrics(ctx)
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{
		TotalAnalyses:     aggregation.TotalCount,
		FallbackAnalyses:  aggregation.FallbackCount,
		AverageConfidence: aggregation.AverageConfidence,
		AverageLatencyMs:  aggregation.AverageLatencyMs,
		SkinTypes:         aggregation.SkinTypeCounts,
	}
	if summary.SkinTypes == nil {
		summary.SkinTypes = map[string]int64{}
	}

	if aggregation.TotalCount > 0 {
		summary.FallbackRate = float64(aggregation.FallbackCount) / float64(aggregation.TotalCount)
	}

	return summary, nil
}
