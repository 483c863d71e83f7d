package repository

import (
	"context"
	"errors"
	"time"

	"github.com/zhumao520/TweetAnalyst-sub001/internal/domain"
	"gorm.io/gorm"
)

type ListParams struct {
	Status   *domain.Status
	Tag      *string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// NotificationRepository persists notifications. All status transitions are
// explicit typed operations; there is no generic field update.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	List(ctx context.Context, params ListParams) ([]domain.Notification, int64, error)

	// ClaimDue atomically moves up to limit due pending notifications to
	// sending and returns them. A notification claimed by one caller is
	// invisible to concurrent claims.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error)

	// MarkSent finishes a claimed notification successfully.
	MarkSent(ctx context.Context, id string, sentAt time.Time) error

	// ScheduleRetry returns a claimed notification to pending with a new
	// scheduled_for, bumping attempt_count and recording diagnostics.
	ScheduleRetry(ctx context.Context, id string, scheduledFor time.Time, errMsg, errDetails string) error

	// MarkFailed terminally fails a claimed notification, bumping
	// attempt_count and recording diagnostics.
	MarkFailed(ctx context.Context, id string, errMsg, errDetails string) error

	// RequeueStale returns notifications that have sat in sending since
	// before olderThan to pending, reporting how many were recovered.
	RequeueStale(ctx context.Context, olderThan time.Time) (int64, error)
}

type GormNotificationRepo struct {
	db *gorm.DB
}

func NewGormNotificationRepo(db *gorm.DB) *GormNotificationRepo {
	return &GormNotificationRepo{db: db}
}

func (r *GormNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	model := notificationModelFromDomain(n)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if n != nil {
		*n = *notificationModelToDomain(model)
	}
	return nil
}

func (r *GormNotificationRepo) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	var model NotificationModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return notificationModelToDomain(&model), nil
}

func (r *GormNotificationRepo) List(ctx context.Context, params ListParams) ([]domain.Notification, int64, error) {
	query := r.db.WithContext(ctx).Model(&NotificationModel{})

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Tag != nil {
		query = query.Where("tag = ?", *params.Tag)
	}
	if params.From != nil {
		query = query.Where("created_at >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("created_at <= ?", *params.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []NotificationModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	notifications := make([]domain.Notification, 0, len(models))
	for i := range models {
		notifications = append(notifications, *notificationModelToDomain(&models[i]))
	}

	return notifications, total, nil
}

func (r *GormNotificationRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error) {
	if limit < 1 {
		limit = 1
	}

	var models []NotificationModel
	err := r.db.WithContext(ctx).Raw(`
		UPDATE notifications
		SET status = ?, updated_at = ?
		WHERE id IN (
			SELECT id FROM notifications
			WHERE status = ? AND (scheduled_for IS NULL OR scheduled_for <= ?)
			ORDER BY created_at ASC
			LIMIT ?
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *`,
		domain.StatusSending, now, domain.StatusPending, now, limit,
	).Scan(&models).Error
	if err != nil {
		return nil, err
	}

	claimed := make([]domain.Notification, 0, len(models))
	for i := range models {
		claimed = append(claimed, *notificationModelToDomain(&models[i]))
	}

	return claimed, nil
}

func (r *GormNotificationRepo) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND status = ?", id, domain.StatusSending).
		Updates(map[string]any{
			"status":  domain.StatusSent,
			"sent_at": sentAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormNotificationRepo) ScheduleRetry(ctx context.Context, id string, scheduledFor time.Time, errMsg, errDetails string) error {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND status = ?", id, domain.StatusSending).
		Updates(map[string]any{
			"status":        domain.StatusPending,
			"scheduled_for": scheduledFor,
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"error_message": errMsg,
			"error_details": errDetails,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormNotificationRepo) RequeueStale(ctx context.Context, olderThan time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("status = ? AND updated_at < ?", domain.StatusSending, olderThan).
		Update("status", domain.StatusPending)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *GormNotificationRepo) MarkFailed(ctx context.Context, id string, errMsg, errDetails string) error {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND status = ?", id, domain.StatusSending).
		Updates(map[string]any{
			"status":        domain.StatusFailed,
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"error_message": errMsg,
			"error_details": errDetails,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}
