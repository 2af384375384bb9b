package onnxscorer

import (
	"context"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/example/skinscan/internal/scorer"
)

var (
	envOnce sync.Once
	envErr  error
)

// Scorer runs an ONNX model with pre-allocated NHWC input [1,N,N,3] and
// output [1,12] tensors.
type Scorer struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// New loads the model at modelPath. The runtime environment is initialized
// once per process and shared by every Scorer.
func New(modelPath string, opts scorer.Options) (*Scorer, error) {
	opts = opts.WithDefaults()

	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: %v", scorer.ErrModelLoad, err)
	}

	envOnce.Do(func() {
		if opts.OnnxRuntimeLibPath != "" {
			ort.SetSharedLibraryPath(opts.OnnxRuntimeLibPath)
		}
		envErr = ort.InitializeEnvironment()
	})
	if envErr != nil {
		return nil, fmt.Errorf("%w: failed to initialize ONNX environment: %v", scorer.ErrModelLoad, envErr)
	}

	size := int64(opts.InputSize)
	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, size, size, 3))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create input tensor: %v", scorer.ErrModelLoad, err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, scorer.OutputSize))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("%w: failed to create output tensor: %v", scorer.ErrModelLoad, err)
	}

	var sessionOptions *ort.SessionOptions
	if opts.NumThreads > 0 {
		sessionOptions, err = ort.NewSessionOptions()
		if err == nil {
			defer sessionOptions.Destroy()
			err = sessionOptions.SetIntraOpNumThreads(opts.NumThreads)
		}
		if err != nil {
			inputTensor.Destroy()
			outputTensor.Destroy()
			return nil, fmt.Errorf("%w: failed to configure session: %v", scorer.ErrModelLoad, err)
		}
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{opts.InputName}, []string{opts.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		sessionOptions)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("%w: failed to create ONNX session: %v", scorer.ErrModelLoad, err)
	}

	return &Scorer{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Score copies tensor into the input buffer, runs the model and returns a
// copy of the output.
func (s *Scorer) Score(_ context.Context, tensor []float32) ([]float32, error) {
	input := s.inputTensor.GetData()
	if len(tensor) != len(input) {
		return nil, fmt.Errorf("%w: expected %d input values, got %d", scorer.ErrInference, len(input), len(tensor))
	}
	copy(input, tensor)

	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("%w: %v", scorer.ErrInference, err)
	}

	out := append([]float32(nil), s.outputTensor.GetData()...)
	if err := scorer.CheckOutput(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the session and its tensors. The shared environment stays
// initialized.
func (s *Scorer) Close() error {
	if s.inputTensor != nil {
		s.inputTensor.Destroy()
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
	}
	if s.session != nil {
		return s.session.Destroy()
	}
	return nil
}
