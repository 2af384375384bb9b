package repository

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/skinscan/internal/retry"
)

// JournalEntry records how a product worked out.
type JournalEntry struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ProductName string    `gorm:"column:product_name;size:255" json:"product_name"`
	Duration    string    `gorm:"column:duration;size:64" json:"duration"`
	Helpful     bool      `gorm:"column:helpful" json:"helpful"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// TableName overrides the default table name.
func (JournalEntry) TableName() string {
	return "journal"
}

// JournalRepository stores journal entries in a single table.
type JournalRepository struct {
	db     *gorm.DB
	logger *zap.Logger
	policy retry.Policy
}

// NewJournalRepository creates a new repository instance.
func NewJournalRepository(db *gorm.DB, logger *zap.Logger) *JournalRepository {
	return &JournalRepository{db: db, logger: logger.Named("journal_repository"), policy: retry.DefaultPolicy}
}

// Create inserts entry and fills its id.
func (r *JournalRepository) Create(ctx context.Context, entry *JournalEntry) error {
	return r.executeWithRetry(ctx, "repository.journal_create", "", func() error {
		return r.db.WithContext(ctx).Create(entry).Error
	})
}

// List returns every entry, oldest first.
func (r *JournalRepository) List(ctx context.Context) ([]JournalEntry, error) {
	var entries []JournalEntry
	err := r.executeWithRetry(ctx, "repository.journal_list", "", func() error {
		return r.db.WithContext(ctx).Order("id ASC").Find(&entries).Error
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Find returns the entry with id.
func (r *JournalRepository) Find(ctx context.Context, id uint) (*JournalEntry, error) {
	var entry JournalEntry
	err := r.executeWithRetry(ctx, "repository.journal_find", journalRef(id), func() error {
		return notFound(r.db.WithContext(ctx).First(&entry, id).Error)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Update overwrites the editable columns of entry.
func (r *JournalRepository) Update(ctx context.Context, entry *JournalEntry) error {
	return r.executeWithRetry(ctx, "repository.journal_update", journalRef(entry.ID), func() error {
		res := r.db.WithContext(ctx).Model(&JournalEntry{}).Where("id = ?", entry.ID).Updates(map[string]interface{}{
			"product_name": entry.ProductName,
			"duration":     entry.Duration,
			"helpful":      entry.Helpful,
			"updated_at":   time.Now().UTC(),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Delete removes the entry with id.
func (r *JournalRepository) Delete(ctx context.Context, id uint) error {
	return r.executeWithRetry(ctx, "repository.journal_delete", journalRef(id), func() error {
		res := r.db.WithContext(ctx).Delete(&JournalEntry{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *JournalRepository) executeWithRetry(ctx context.Context, operation, ref string, fn func() error) error {
	return retry.Do(ctx, r.policy, r.logger, operation, ref, fn)
}

func journalRef(id uint) string {
	return "journal-" + strconv.FormatUint(uint64(id), 10)
}
