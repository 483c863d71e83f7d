package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/dispatch"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/domain"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/repository"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100
)

type NotificationDispatcher interface {
	Enqueue(ctx context.Context, draft dispatch.Draft) (*domain.Notification, error)
	GetStatus(ctx context.Context, id string) (*domain.Notification, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.Notification, int64, error)
}

type NotificationHandler struct {
	dispatcher NotificationDispatcher
}

func NewNotificationHandler(dispatcher NotificationDispatcher) (*NotificationHandler, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("notification dispatcher is required")
	}
	return &NotificationHandler{dispatcher: dispatcher}, nil
}

func RegisterNotificationRoutes(router fiber.Router, dispatcher NotificationDispatcher) error {
	h, err := NewNotificationHandler(dispatcher)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/notifications", h.CreateNotification)
	v1.Get("/notifications/:id", h.GetNotification)
	v1.Get("/notifications", h.ListNotifications)

	return nil
}

type createNotificationRequest struct {
	Title       *string        `json:"title"`
	Message     string         `json:"message"`
	Tag         *string        `json:"tag"`
	Targets     *string        `json:"targets"`
	MaxAttempts *int           `json:"maxAttempts,omitempty"`
	AccountID   *string        `json:"accountId"`
	PostID      *string        `json:"postId"`
	MetaData    map[string]any `json:"metadata,omitempty"`
}

type notificationResponse struct {
	ID           string         `json:"id"`
	Title        *string        `json:"title,omitempty"`
	Message      string         `json:"message"`
	Tag          *string        `json:"tag,omitempty"`
	Targets      *string        `json:"targets,omitempty"`
	Status       string         `json:"status"`
	AttemptCount int            `json:"attemptCount"`
	MaxAttempts  int            `json:"maxAttempts"`
	ErrorMessage *string        `json:"errorMessage,omitempty"`
	AccountID    *string        `json:"accountId,omitempty"`
	PostID       *string        `json:"postId,omitempty"`
	MetaData     map[string]any `json:"metadata,omitempty"`
	ScheduledFor *time.Time     `json:"scheduledFor,omitempty"`
	SentAt       *time.Time     `json:"sentAt,omitempty"`
	CreatedAt    time.Time      `json:"createdAt,omitempty"`
	UpdatedAt    time.Time      `json:"updatedAt,omitempty"`
}

type listNotificationsResponse struct {
	Data []notificationResponse `json:"data"`
	Meta listMeta               `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

func (h *NotificationHandler) CreateNotification(c *fiber.Ctx) error {
	var req createNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	draft := dispatch.Draft{
		Title:     req.Title,
		Message:   req.Message,
		Tag:       req.Tag,
		Targets:   req.Targets,
		AccountID: req.AccountID,
		PostID:    req.PostID,
		MetaData:  req.MetaData,
	}
	if req.MaxAttempts != nil {
		draft.MaxAttempts = *req.MaxAttempts
	}

	created, err := h.dispatcher.Enqueue(c.UserContext(), draft)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(toNotificationResponse(created))
}

func (h *NotificationHandler) GetNotification(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	notification, err := h.dispatcher.GetStatus(c.UserContext(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toNotificationResponse(notification))
}

func (h *NotificationHandler) ListNotifications(c *fiber.Ctx) error {
	params, err := parseListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	notifications, total, err := h.dispatcher.List(c.UserContext(), params)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(listNotificationsResponse{
		Data: toNotificationResponses(notifications),
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func parseListParams(c *fiber.Ctx) (repository.ListParams, error) {
	params := repository.ListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.ListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.ListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseStatusFromString(rawStatus)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Status = &status
	}

	if tag := strings.TrimSpace(c.Query("tag")); tag != "" {
		params.Tag = &tag
	}

	from, err := parseRFC3339Query(c.Query("from"), "from")
	if err != nil {
		return repository.ListParams{}, err
	}
	to, err := parseRFC3339Query(c.Query("to"), "to")
	if err != nil {
		return repository.ListParams{}, err
	}
	params.From = from
	params.To = to

	return params, nil
}

func parseRFC3339Query(value string, field string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC3339", domain.ErrValidation, field)
	}
	return &t, nil
}

func toNotificationResponses(notifications []domain.Notification) []notificationResponse {
	responses := make([]notificationResponse, 0, len(notifications))
	for _, notification := range notifications {
		n := notification
		responses = append(responses, toNotificationResponse(&n))
	}
	return responses
}

func toNotificationResponse(n *domain.Notification) notificationResponse {
	if n == nil {
		return notificationResponse{}
	}

	return notificationResponse{
		ID:           n.ID,
		Title:        n.Title,
		Message:      n.Message,
		Tag:          n.Tag,
		Targets:      n.Targets,
		Status:       n.Status.String(),
		AttemptCount: n.AttemptCount,
		MaxAttempts:  n.MaxAttempts,
		ErrorMessage: n.ErrorMessage,
		AccountID:    n.AccountID,
		PostID:       n.PostID,
		MetaData:     n.MetaData,
		ScheduledFor: n.ScheduledFor,
		SentAt:       n.SentAt,
		CreatedAt:    n.CreatedAt,
		UpdatedAt:    n.UpdatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
