package repository

import (
	"context"
	"errors"

	"github.com/zhumao520/TweetAnalyst-sub001/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProviderRepository persists ranked providers and their health counters.
// RecordOutcome is the sole counter mutator and must not lose updates under
// concurrent callers.
type ProviderRepository interface {
	Upsert(ctx context.Context, p *domain.Provider) error
	GetByID(ctx context.Context, id string) (*domain.Provider, error)
	ListActive(ctx context.Context) ([]domain.Provider, error)
	RecordOutcome(ctx context.Context, id string, success bool, lastError *string) error
	SetActive(ctx context.Context, id string, active bool) error
}

type GormProviderRepo struct {
	db *gorm.DB
}

func NewGormProviderRepo(db *gorm.DB) *GormProviderRepo {
	return &GormProviderRepo{db: db}
}

// Upsert inserts a provider or, on a name conflict, refreshes its priority
// and active flag. Counters are never touched here.
func (r *GormProviderRepo) Upsert(ctx context.Context, p *domain.Provider) error {
	model := providerModelFromDomain(p)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"priority", "is_active", "updated_at"}),
		}).
		Create(model).Error
	if err != nil {
		return err
	}

	// Re-read so callers observe the surviving row, not the candidate.
	var stored ProviderModel
	if err := r.db.WithContext(ctx).First(&stored, "name = ?", model.Name).Error; err != nil {
		return err
	}
	if p != nil {
		*p = *providerModelToDomain(&stored)
	}
	return nil
}

func (r *GormProviderRepo) GetByID(ctx context.Context, id string) (*domain.Provider, error) {
	var model ProviderModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return providerModelToDomain(&model), nil
}

func (r *GormProviderRepo) ListActive(ctx context.Context) ([]domain.Provider, error) {
	var models []ProviderModel
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("priority ASC, name ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	providers := make([]domain.Provider, 0, len(models))
	for i := range models {
		providers = append(providers, *providerModelToDomain(&models[i]))
	}

	return providers, nil
}

func (r *GormProviderRepo) RecordOutcome(ctx context.Context, id string, success bool, lastError *string) error {
	updates := map[string]any{
		"request_count": gorm.Expr("request_count + 1"),
	}
	if success {
		updates["success_count"] = gorm.Expr("success_count + 1")
	} else {
		updates["error_count"] = gorm.Expr("error_count + 1")
		if lastError != nil {
			updates["last_error"] = *lastError
		}
	}

	result := r.db.WithContext(ctx).
		Model(&ProviderModel{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormProviderRepo) SetActive(ctx context.Context, id string, active bool) error {
	result := r.db.WithContext(ctx).
		Model(&ProviderModel{}).
		Where("id = ?", id).
		Update("is_active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
