package scorer

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// OutputSize is the length of every valid score vector.
const OutputSize = 12

var (
	// ErrModelLoad reports a model artifact that could not be found or loaded.
	ErrModelLoad = errors.New("model load failed")
	// ErrInference reports a scoring call that failed or returned malformed output.
	ErrInference = errors.New("inference failed")
)

// Scorer maps a preprocessed image tensor to the raw model output vector.
// Implementations are not required to be safe for concurrent use.
type Scorer interface {
	Score(ctx context.Context, tensor []float32) ([]float32, error)
	Close() error
}

// Options tunes local model backends.
type Options struct {
	InputSize  int // square input side, 224 when zero
	NumThreads int // intra-op threads, runtime default when zero

	InputName  string // ONNX input node, "input" when empty
	OutputName string // ONNX output node, "output" when empty

	OnnxRuntimeLibPath string // shared library, runtime default when empty
}

// WithDefaults fills zero values.
func (o Options) WithDefaults() Options {
	if o.InputSize <= 0 {
		o.InputSize = 224
	}
	if o.InputName == "" {
		o.InputName = "input"
	}
	if o.OutputName == "" {
		o.OutputName = "output"
	}
	return o
}

// TensorLen is the number of floats a tensor for these options holds.
func (o Options) TensorLen() int {
	o = o.WithDefaults()
	return o.InputSize * o.InputSize * 3
}

// CheckOutput validates the shape of a score vector and rejects NaN or
// infinite scores.
func CheckOutput(out []float32) error {
	if len(out) != OutputSize {
		return fmt.Errorf("%w: expected %d scores, got %d", ErrInference, OutputSize, len(out))
	}
	for i, v := range out {
		if f := float64(v); math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: score %d is not finite: %v", ErrInference, i, v)
		}
	}
	return nil
}
