package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/skinscan/internal/analysis"
)

type stubAnalyzer struct {
	source  analysis.Source
	block   chan struct{}
	calls   int
	closed  bool
	closeEr error
}

func (s *stubAnalyzer) Analyze(ctx context.Context, image []byte, progress analysis.ProgressFunc) analysis.Outcome {
	s.calls++
	if s.block != nil {
		<-s.block
	}
	return analysis.Outcome{Result: analysis.Result{SkinType: analysis.Normal}, Source: s.source}
}

func (s *stubAnalyzer) Source() analysis.Source { return s.source }

func (s *stubAnalyzer) Close() error {
	s.closed = true
	return s.closeEr
}

func TestSessionPoolReturnsSessionAfterUse(t *testing.T) {
	session := &stubAnalyzer{source: analysis.SourceModel}
	pool := NewSessionPool(session)

	for i := 0; i < 3; i++ {
		if _, err := pool.Analyze(context.Background(), nil, nil); err != nil {
			t.Fatalf("analysis %d: unexpected error %v", i, err)
		}
	}
	if session.calls != 3 {
		t.Fatalf("expected 3 calls on the single session, got %d", session.calls)
	}
}

func TestSessionPoolWaitRespectsContext(t *testing.T) {
	busy := &stubAnalyzer{block: make(chan struct{})}
	pool := NewSessionPool(busy)

	done := make(chan struct{})
	go func() {
		defer close(done)
		pool.Analyze(context.Background(), nil, nil)
	}()

	// wait for the goroutine to hold the only session
	deadline := time.Now().Add(time.Second)
	for len(pool.sessions) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := pool.Analyze(ctx, nil, nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	close(busy.block)
	<-done
}

func TestSessionPoolSource(t *testing.T) {
	fallback := NewSessionPool(&stubAnalyzer{source: analysis.SourceFallback})
	if got := fallback.Source(); got != analysis.SourceFallback {
		t.Fatalf("expected fallback, got %s", got)
	}
	mixed := NewSessionPool(&stubAnalyzer{source: analysis.SourceFallback}, &stubAnalyzer{source: analysis.SourceModel})
	if got := mixed.Source(); got != analysis.SourceModel {
		t.Fatalf("expected model, got %s", got)
	}
	if mixed.Size() != 2 {
		t.Fatalf("expected size 2, got %d", mixed.Size())
	}
}

func TestSessionPoolCloseClosesAll(t *testing.T) {
	a := &stubAnalyzer{closeEr: errors.New("first")}
	b := &stubAnalyzer{}
	pool := NewSessionPool(a, b)

	if err := pool.Close(); err == nil || err.Error() != "first" {
		t.Fatalf("expected first close error, got %v", err)
	}
	if !a.closed || !b.closed {
		t.Fatal("expected every session to be closed")
	}
}
