package repository

import (
	"context"
	"errors"
	"time"

	"github.com/zhumao520/TweetAnalyst-sub001/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StateRepository persists TTL-backed key/value entries. Expiry semantics
// (lazy deletion, sweeps) live in the statestore service; this layer only
// reads and writes rows.
type StateRepository interface {
	Get(ctx context.Context, key string) (*domain.StateEntry, error)
	Upsert(ctx context.Context, e *domain.StateEntry) error
	SetExpiry(ctx context.Context, key string, expiresAt time.Time) error
	Delete(ctx context.Context, key string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type GormStateRepo struct {
	db *gorm.DB
}

func NewGormStateRepo(db *gorm.DB) *GormStateRepo {
	return &GormStateRepo{db: db}
}

func (r *GormStateRepo) Get(ctx context.Context, key string) (*domain.StateEntry, error) {
	var model StateEntryModel
	err := r.db.WithContext(ctx).First(&model, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return stateEntryModelToDomain(&model), nil
}

func (r *GormStateRepo) Upsert(ctx context.Context, e *domain.StateEntry) error {
	model := stateEntryModelFromDomain(e)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
		}).
		Create(model).Error
	if err != nil {
		return err
	}
	if e != nil {
		*e = *stateEntryModelToDomain(model)
	}
	return nil
}

func (r *GormStateRepo) SetExpiry(ctx context.Context, key string, expiresAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&StateEntryModel{}).
		Where("key = ?", key).
		Update("expires_at", expiresAt)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormStateRepo) Delete(ctx context.Context, key string) error {
	result := r.db.WithContext(ctx).Delete(&StateEntryModel{}, "key = ?", key)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormStateRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Delete(&StateEntryModel{}, "expires_at IS NOT NULL AND expires_at < ?", now)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
