package analysis

import (
	"fmt"

	"github.com/example/skinscan/internal/scorer"
)

// Decode interprets a raw model output vector. Scores are used as is: the
// confidence is the winning raw class score, not a probability.
func Decode(output []float32) (Result, error) {
	if len(output) != OutputLen {
		return Result{}, fmt.Errorf("%w: expected %d outputs, got %d", scorer.ErrInference, OutputLen, len(output))
	}
	if err := scorer.CheckOutput(output); err != nil {
		return Result{}, err
	}

	best := 0
	for i := 1; i < skinTypeScoresEnd; i++ {
		if output[i] > output[best] {
			best = i
		}
	}

	concerns := make([]string, 0, len(ConcernLabels))
	for i, label := range ConcernLabels {
		if output[concernScoresFrom+i] > ConcernThreshold {
			concerns = append(concerns, label)
		}
	}

	return Result{
		SkinType:            SkinTypes[best],
		Confidence:          output[best],
		Concerns:            concerns,
		HydrationLevel:      output[hydrationIndex],
		TextureScore:        output[textureIndex],
		RecommendedProducts: []string{},
	}, nil
}
