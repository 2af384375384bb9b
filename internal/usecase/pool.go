package usecase

import (
	"context"

	"github.com/example/skinscan/internal/analysis"
)

// Analyzer is the part of analysis.Session the use case relies on.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, progress analysis.ProgressFunc) analysis.Outcome
	Source() analysis.Source
	Close() error
}

// SessionPool hands each analysis an exclusive session so a model handle
// never serves two calls at once.
type SessionPool struct {
	sessions chan Analyzer
	all      []Analyzer
}

// NewSessionPool builds a pool over sessions. It must not be empty.
func NewSessionPool(sessions ...Analyzer) *SessionPool {
	p := &SessionPool{sessions: make(chan Analyzer, len(sessions)), all: sessions}
	for _, s := range sessions {
		p.sessions <- s
	}
	return p
}

// Analyze waits for a free session, giving up if ctx ends first. Once a
// session is acquired the analysis runs to completion.
func (p *SessionPool) Analyze(ctx context.Context, image []byte, progress analysis.ProgressFunc) (analysis.Outcome, error) {
	var s Analyzer
	select {
	case s = <-p.sessions:
	case <-ctx.Done():
		return analysis.Outcome{}, ctx.Err()
	}
	defer func() { p.sessions <- s }()

	return s.Analyze(ctx, image, progress), nil
}

// Source reports whether the pooled sessions run the model or the fallback.
func (p *SessionPool) Source() analysis.Source {
	for _, s := range p.all {
		if s.Source() == analysis.SourceModel {
			return analysis.SourceModel
		}
	}
	return analysis.SourceFallback
}

// Size is the number of sessions in the pool.
func (p *SessionPool) Size() int {
	return len(p.all)
}

// Close releases every session.
func (p *SessionPool) Close() error {
	var firstErr error
	for _, s := range p.all {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
