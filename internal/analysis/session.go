package analysis

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/example/skinscan/internal/scorer"
)

// ModelLoader acquires the scoring handle for a session.
type ModelLoader func() (scorer.Scorer, error)

type inferrer interface {
	infer(ctx context.Context, tensor []float32) (Result, error)
	source() Source
	close() error
}

type modelInference struct {
	scorer scorer.Scorer
}

func (m modelInference) infer(ctx context.Context, tensor []float32) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: scorer panicked: %v", scorer.ErrInference, r)
		}
	}()

	output, err := m.scorer.Score(ctx, tensor)
	if err != nil {
		if !errors.Is(err, scorer.ErrInference) {
			err = fmt.Errorf("%w: %w", scorer.ErrInference, err)
		}
		return Result{}, err
	}
	return Decode(output)
}

func (m modelInference) source() Source { return SourceModel }

func (m modelInference) close() error { return m.scorer.Close() }

type randomFallback struct {
	gen *Generator
}

func (f randomFallback) infer(context.Context, []float32) (Result, error) {
	return f.gen.Generate(), nil
}

func (f randomFallback) source() Source { return SourceFallback }

func (f randomFallback) close() error { return nil }

// Session binds one model handle, or the fallback generator when the handle
// could not be loaded, for any number of sequential analyses. A Session must
// not run Analyze concurrently.
type Session struct {
	strategy inferrer
	fallback *Generator
	loadErr  error
}

// Option customizes a Session.
type Option func(*sessionOptions)

type sessionOptions struct {
	rng *rand.Rand
}

// WithRand makes the fallback generator draw from rng.
func WithRand(rng *rand.Rand) Option {
	return func(o *sessionOptions) { o.rng = rng }
}

// NewSession loads the model through load once. A nil loader or a load
// failure leaves the session on the fallback generator for its lifetime.
func NewSession(load ModelLoader, opts ...Option) *Session {
	var o sessionOptions
	for _, opt := range opts {
		opt(&o)
	}

	s := &Session{fallback: NewGenerator(o.rng)}

	var (
		sc  scorer.Scorer
		err error
	)
	if load == nil {
		err = errors.New("no model configured")
	} else {
		sc, err = load()
		if err == nil && sc == nil {
			err = errors.New("loader returned no scorer")
		}
	}

	if err != nil {
		if !errors.Is(err, scorer.ErrModelLoad) {
			err = fmt.Errorf("%w: %w", scorer.ErrModelLoad, err)
		}
		s.loadErr = err
		s.strategy = randomFallback{gen: s.fallback}
		return s
	}
	s.strategy = modelInference{scorer: sc}
	return s
}

// Source reports which path analyses on this session take by default.
func (s *Session) Source() Source { return s.strategy.source() }

// LoadErr returns why the model is unavailable, or nil.
func (s *Session) LoadErr() error { return s.loadErr }

// Close releases the model handle.
func (s *Session) Close() error { return s.strategy.close() }

// Analyze runs the pipeline on image and always returns a complete result.
// Decode, model and inference failures are reported in Outcome.Cause and
// answered by the fallback generator. Cancellation of ctx does not abort a
// running analysis.
func (s *Session) Analyze(ctx context.Context, image []byte, progress ProgressFunc) Outcome {
	ctx = context.WithoutCancel(ctx)
	tracker := newProgressTracker(progress)

	if len(image) == 0 {
		return s.runFallback(tracker, evenCheckpoints(noImagePhases), ErrNoImage)
	}
	if s.strategy.source() == SourceFallback {
		reportAll(tracker, fallbackCheckpoints[:])
		result, _ := s.strategy.infer(ctx, nil)
		return Outcome{Result: result, Source: SourceFallback, Cause: s.loadErr}
	}

	tracker.report(0, modelCheckpoints[0])
	img, err := DecodeImage(image)
	if err != nil {
		return s.runFallback(tracker, fallbackCheckpoints[:], err)
	}
	tracker.report(1, modelCheckpoints[1])

	scaled := scaleToInput(img)
	tracker.report(2, modelCheckpoints[2])

	tensor := encodeTensor(scaled)
	tracker.report(3, modelCheckpoints[3])

	result, err := s.strategy.infer(ctx, tensor)
	if err != nil {
		return s.runFallback(tracker, fallbackCheckpoints[:], err)
	}
	tracker.report(4, modelCheckpoints[4])
	tracker.report(5, modelCheckpoints[5])

	return Outcome{Result: result, Source: s.strategy.source()}
}

func (s *Session) runFallback(tracker *progressTracker, checkpoints []float32, cause error) Outcome {
	reportAll(tracker, checkpoints)
	return Outcome{Result: s.fallback.Generate(), Source: SourceFallback, Cause: cause}
}
