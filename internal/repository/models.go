package repository

import (
	"time"

	"github.com/zhumao520/TweetAnalyst-sub001/internal/domain"
)

// NotificationModel is the persistence model for the notifications table.
type NotificationModel struct {
	ID           string         `gorm:"type:uuid;primaryKey"`
	Title        *string        `gorm:"type:varchar(255)"`
	Message      string         `gorm:"type:text;not null"`
	Tag          *string        `gorm:"type:varchar(100)"`
	Targets      *string        `gorm:"type:text"`
	Status       domain.Status  `gorm:"type:varchar(20);not null"`
	AttemptCount int            `gorm:"not null;default:0"`
	MaxAttempts  int            `gorm:"not null;default:3"`
	ErrorMessage *string        `gorm:"type:text"`
	ErrorDetails *string        `gorm:"type:text"`
	AccountID    *string        `gorm:"type:varchar(100)"`
	PostID       *string        `gorm:"type:varchar(100)"`
	MetaData     map[string]any `gorm:"type:jsonb;serializer:json"`
	ScheduledFor *time.Time     `gorm:"type:timestamptz"`
	SentAt       *time.Time     `gorm:"type:timestamptz"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (NotificationModel) TableName() string {
	return "notifications"
}

// ProviderModel is the persistence model for the providers table.
type ProviderModel struct {
	ID           string  `gorm:"type:uuid;primaryKey"`
	Name         string  `gorm:"type:varchar(100);not null;uniqueIndex"`
	Priority     int     `gorm:"not null;default:0"`
	IsActive     bool    `gorm:"not null;default:true"`
	RequestCount int64   `gorm:"not null;default:0"`
	SuccessCount int64   `gorm:"not null;default:0"`
	ErrorCount   int64   `gorm:"not null;default:0"`
	LastError    *string `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (ProviderModel) TableName() string {
	return "providers"
}

// StateEntryModel is the persistence model for the state_entries table.
type StateEntryModel struct {
	Key       string     `gorm:"type:varchar(255);primaryKey;column:key"`
	Value     string     `gorm:"type:text;not null"`
	ExpiresAt *time.Time `gorm:"type:timestamptz;index"`
	UpdatedAt time.Time
}

func (StateEntryModel) TableName() string {
	return "state_entries"
}

func notificationModelFromDomain(n *domain.Notification) *NotificationModel {
	if n == nil {
		return nil
	}

	return &NotificationModel{
		ID:           n.ID,
		Title:        n.Title,
		Message:      n.Message,
		Tag:          n.Tag,
		Targets:      n.Targets,
		Status:       n.Status,
		AttemptCount: n.AttemptCount,
		MaxAttempts:  n.MaxAttempts,
		ErrorMessage: n.ErrorMessage,
		ErrorDetails: n.ErrorDetails,
		AccountID:    n.AccountID,
		PostID:       n.PostID,
		MetaData:     n.MetaData,
		ScheduledFor: n.ScheduledFor,
		SentAt:       n.SentAt,
		CreatedAt:    n.CreatedAt,
		UpdatedAt:    n.UpdatedAt,
	}
}

func notificationModelToDomain(m *NotificationModel) *domain.Notification {
	if m == nil {
		return nil
	}

	return &domain.Notification{
		ID:           m.ID,
		Title:        m.Title,
		Message:      m.Message,
		Tag:          m.Tag,
		Targets:      m.Targets,
		Status:       m.Status,
		AttemptCount: m.AttemptCount,
		MaxAttempts:  m.MaxAttempts,
		ErrorMessage: m.ErrorMessage,
		ErrorDetails: m.ErrorDetails,
		AccountID:    m.AccountID,
		PostID:       m.PostID,
		MetaData:     m.MetaData,
		ScheduledFor: m.ScheduledFor,
		SentAt:       m.SentAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func providerModelFromDomain(p *domain.Provider) *ProviderModel {
	if p == nil {
		return nil
	}

	return &ProviderModel{
		ID:           p.ID,
		Name:         p.Name,
		Priority:     p.Priority,
		IsActive:     p.IsActive,
		RequestCount: p.RequestCount,
		SuccessCount: p.SuccessCount,
		ErrorCount:   p.ErrorCount,
		LastError:    p.LastError,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func providerModelToDomain(m *ProviderModel) *domain.Provider {
	if m == nil {
		return nil
	}

	return &domain.Provider{
		ID:           m.ID,
		Name:         m.Name,
		Priority:     m.Priority,
		IsActive:     m.IsActive,
		RequestCount: m.RequestCount,
		SuccessCount: m.SuccessCount,
		ErrorCount:   m.ErrorCount,
		LastError:    m.LastError,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func stateEntryModelFromDomain(e *domain.StateEntry) *StateEntryModel {
	if e == nil {
		return nil
	}

	return &StateEntryModel{
		Key:       e.Key,
		Value:     e.Value,
		ExpiresAt: e.ExpiresAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func stateEntryModelToDomain(m *StateEntryModel) *domain.StateEntry {
	if m == nil {
		return nil
	}

	return &domain.StateEntry{
		Key:       m.Key,
		Value:     m.Value,
		ExpiresAt: m.ExpiresAt,
		UpdatedAt: m.UpdatedAt,
	}
}
