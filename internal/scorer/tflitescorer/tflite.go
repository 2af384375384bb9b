//go:build tflite

package tflitescorer

import (
	"context"
	"fmt"

	"github.com/mattn/go-tflite"

	"github.com/example/skinscan/internal/scorer"
)

// Supported reports whether this build links the TFLite runtime.
const Supported = true

// Scorer runs a TensorFlow Lite model whose single input takes the
// interleaved RGB tensor and whose first output holds the 12 scores.
type Scorer struct {
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
}

// New loads the model at modelPath and allocates its tensors.
func New(modelPath string, opts scorer.Options) (*Scorer, error) {
	model := tflite.NewModelFromFile(modelPath)
	if model == nil {
		return nil, fmt.Errorf("%w: cannot load %s", scorer.ErrModelLoad, modelPath)
	}

	options := tflite.NewInterpreterOptions()
	if opts.NumThreads > 0 {
		options.SetNumThread(opts.NumThreads)
	}

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("%w: cannot create interpreter for %s", scorer.ErrModelLoad, modelPath)
	}

	s := &Scorer{model: model, options: options, interpreter: interpreter}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		s.Close()
		return nil, fmt.Errorf("%w: tensor allocation failed", scorer.ErrModelLoad)
	}
	return s, nil
}

// Score runs one inference.
func (s *Scorer) Score(_ context.Context, tensor []float32) ([]float32, error) {
	input := s.interpreter.GetInputTensor(0)
	if input == nil {
		return nil, fmt.Errorf("%w: model has no input tensor", scorer.ErrInference)
	}
	if want := int(input.ByteSize()); want != len(tensor)*4 {
		return nil, fmt.Errorf("%w: input expects %d bytes, got %d", scorer.ErrInference, want, len(tensor)*4)
	}
	if status := input.CopyFromBuffer(tensor); status != tflite.OK {
		return nil, fmt.Errorf("%w: copying input failed", scorer.ErrInference)
	}

	if status := s.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("%w: invoke failed", scorer.ErrInference)
	}

	output := s.interpreter.GetOutputTensor(0)
	if output == nil {
		return nil, fmt.Errorf("%w: model has no output tensor", scorer.ErrInference)
	}
	out := append([]float32(nil), output.Float32s()...)
	if err := scorer.CheckOutput(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the interpreter, its options and the model.
func (s *Scorer) Close() error {
	if s.interpreter != nil {
		s.interpreter.Delete()
	}
	if s.options != nil {
		s.options.Delete()
	}
	if s.model != nil {
		s.model.Delete()
	}
	return nil
}
