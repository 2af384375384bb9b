package repository

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/skinscan/internal/analysis"
	"github.com/example/skinscan/internal/logging"
	"github.com/example/skinscan/internal/retry"
)

type transientTestError struct{}

func (transientTestError) Error() string   { return "transient" }
func (transientTestError) Timeout() bool   { return true }
func (transientTestError) Temporary() bool { return true }

func testRepository(attempts int) *AnalysisRepository {
	return &AnalysisRepository{
		logger: zap.NewNop(),
		policy: retry.Policy{Attempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond},
	}
}

func TestExecuteWithRetryRetriesTransientErrors(t *testing.T) {
	repo := testRepository(3)

	attempts := 0
	err := repo.executeWithRetry(context.Background(), "test.operation", "a-1", func() error {
		attempts++
		if attempts < 2 {
			return transientTestError{}
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestExecuteWithRetryReturnsOperationError(t *testing.T) {
	repo := testRepository(2)

	attempts := 0
	err := repo.executeWithRetry(context.Background(), "test.operation", "a-2", func() error {
		attempts++
		return errors.New("boom")
	})

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}

	var opErr *logging.OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %T", err)
	}
	if opErr.Operation != "test.operation" {
		t.Fatalf("unexpected operation: %s", opErr.Operation)
	}
	if opErr.AnalysisID != "a-2" {
		t.Fatalf("unexpected analysis id: %s", opErr.AnalysisID)
	}
}

func TestExecuteWithRetryKeepsNotFound(t *testing.T) {
	repo := testRepository(3)

	attempts := 0
	err := repo.executeWithRetry(context.Background(), "test.find", "a-3", func() error {
		attempts++
		return notFound(gorm.ErrRecordNotFound)
	})

	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected not-found to skip retries, got %d attempts", attempts)
	}
}

func TestAnalysisLogConcernsRoundTrip(t *testing.T) {
	var log AnalysisLog
	if got := log.ConcernList(); len(got) != 0 || got == nil {
		t.Fatalf("expected empty non-nil list, got %#v", got)
	}

	log.SetConcerns([]string{"Large pores", "Excess oil production"})
	if log.Concerns != `["Large pores","Excess oil production"]` {
		t.Fatalf("unexpected column value: %q", log.Concerns)
	}
	if got := log.ConcernList(); !reflect.DeepEqual(got, []string{"Large pores", "Excess oil production"}) {
		t.Fatalf("unexpected concerns: %#v", got)
	}

	log.SetConcerns(nil)
	if got := log.ConcernList(); len(got) != 0 || got == nil {
		t.Fatalf("expected empty non-nil list, got %#v", got)
	}
}

func TestAnalysisLogConcernsKeepSeparatorCharacters(t *testing.T) {
	want := []string{"Oily | shiny", "Pores [T-zone]", `say "hi", ok`}
	var log AnalysisLog
	log.SetConcerns(want)
	if got := log.ConcernList(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %#v, got %#v", want, got)
	}
}

func TestAnalysisLogResult(t *testing.T) {
	log := AnalysisLog{SkinType: "Dry", Confidence: 0.9, HydrationLevel: 0.7, TextureScore: 0.8, Concerns: `["Flakiness"]`}
	got := log.Result()
	want := analysis.Result{
		SkinType:            analysis.Dry,
		Confidence:          0.9,
		Concerns:            []string{"Flakiness"},
		HydrationLevel:      0.7,
		TextureScore:        0.8,
		RecommendedProducts: []string{},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestTableNames(t *testing.T) {
	if (AnalysisLog{}).TableName() != "analysis_logs" {
		t.Fatal("unexpected analysis table name")
	}
	if (JournalEntry{}).TableName() != "journal" {
		t.Fatal("unexpected journal table name")
	}
	if journalRef(7) != "journal-7" {
		t.Fatalf("unexpected journal ref: %s", journalRef(7))
	}
}
