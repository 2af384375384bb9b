package usecase

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/example/skinscan/internal/repository"
)

// ErrInvalidJournalEntry reports an entry that fails validation.
var ErrInvalidJournalEntry = errors.New("invalid journal entry")

// JournalRepository defines the journal persistence operations.
type JournalRepository interface {
	Create(ctx context.Context, entry *repository.JournalEntry) error
	List(ctx context.Context) ([]repository.JournalEntry, error)
	Find(ctx context.Context, id uint) (*repository.JournalEntry, error)
	Update(ctx context.Context, entry *repository.JournalEntry) error
	Delete(ctx context.Context, id uint) error
}

// JournalUseCase validates and stores product journal entries.
type JournalUseCase struct {
	repo   JournalRepository
	logger *zap.Logger
}

// NewJournalUseCase constructs a new journal use case.
func NewJournalUseCase(repo JournalRepository, logger *zap.Logger) *JournalUseCase {
	return &JournalUseCase{repo: repo, logger: logger.Named("journal_usecase")}
}

// Create stores a new entry.
func (uc *JournalUseCase) Create(ctx context.Context, productName, duration string, helpful bool) (*repository.JournalEntry, error) {
	entry, err := newEntry(0, productName, duration, helpful)
	if err != nil {
		return nil, err
	}
	if err := uc.repo.Create(ctx, entry); err != nil {
		uc.logger.Error("failed to create journal entry", zap.Error(err))
		return nil, err
	}
	return entry, nil
}

// List returns all entries.
func (uc *JournalUseCase) List(ctx context.Context) ([]repository.JournalEntry, error) {
	entries, err := uc.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []repository.JournalEntry{}
	}
	return entries, nil
}

// Update replaces the editable fields of the entry with id and returns the
// stored row.
func (uc *JournalUseCase) Update(ctx context.Context, id uint, productName, duration string, helpful bool) (*repository.JournalEntry, error) {
	entry, err := newEntry(id, productName, duration, helpful)
	if err != nil {
		return nil, err
	}
	if err := uc.repo.Update(ctx, entry); err != nil {
		return nil, err
	}
	stored, err := uc.repo.Find(ctx, id)
	if err != nil {
		uc.logger.Error("failed to reload journal entry", zap.Uint("id", id), zap.Error(err))
		return nil, err
	}
	return stored, nil
}

// Delete removes the entry with id.
func (uc *JournalUseCase) Delete(ctx context.Context, id uint) error {
	return uc.repo.Delete(ctx, id)
}

func newEntry(id uint, productName, duration string, helpful bool) (*repository.JournalEntry, error) {
	productName = strings.TrimSpace(productName)
	if productName == "" {
		return nil, errors.Join(ErrInvalidJournalEntry, errors.New("product name is required"))
	}
	if len(productName) > 255 {
		return nil, errors.Join(ErrInvalidJournalEntry, errors.New("product name is too long"))
	}
	return &repository.JournalEntry{
		ID:          id,
		ProductName: productName,
		Duration:    strings.TrimSpace(duration),
		Helpful:     helpful,
	}, nil
}
