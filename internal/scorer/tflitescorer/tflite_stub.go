//go:build !tflite

package tflitescorer

import (
	"context"
	"fmt"

	"github.com/example/skinscan/internal/scorer"
)

// Supported reports whether this build links the TFLite runtime.
const Supported = false

// Scorer is unavailable without the tflite build tag.
type Scorer struct{}

// New always fails: rebuild with -tags tflite and libtensorflowlite_c
// installed to load .tflite models.
func New(modelPath string, _ scorer.Options) (*Scorer, error) {
	return nil, fmt.Errorf("%w: %s needs a build with the tflite tag", scorer.ErrModelLoad, modelPath)
}

func (*Scorer) Score(context.Context, []float32) ([]float32, error) {
	return nil, scorer.ErrInference
}

func (*Scorer) Close() error { return nil }
