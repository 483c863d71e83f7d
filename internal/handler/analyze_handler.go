package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/analyzer"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/dispatch"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/domain"
)

const verdictTag = "ai_verdict"

type AnalyzeHandler struct {
	analyzer   *analyzer.Service
	dispatcher NotificationDispatcher
}

func NewAnalyzeHandler(svc *analyzer.Service, dispatcher NotificationDispatcher) (*AnalyzeHandler, error) {
	if svc == nil {
		return nil, fmt.Errorf("analyzer service is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("notification dispatcher is required")
	}
	return &AnalyzeHandler{analyzer: svc, dispatcher: dispatcher}, nil
}

func RegisterAnalyzeRoutes(router fiber.Router, svc *analyzer.Service, dispatcher NotificationDispatcher) error {
	h, err := NewAnalyzeHandler(svc, dispatcher)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/analyze", h.AnalyzePost)

	return nil
}

type analyzeRequest struct {
	AccountID string `json:"accountId"`
	PostID    string `json:"postId"`
	Content   string `json:"content"`
}

type analyzeResponse struct {
	ShouldPush     bool    `json:"shouldPush"`
	Confidence     float64 `json:"confidence"`
	Summary        string  `json:"summary"`
	NotificationID string  `json:"notificationId,omitempty"`
}

// AnalyzePost classifies a post and, on a push verdict, enqueues a
// notification carrying the verdict summary. Enqueue deduplication keys on
// the account and post ids, so re-analyzing the same post within the window
// does not produce a second notification.
func (h *AnalyzeHandler) AnalyzePost(c *fiber.Ctx) error {
	var req analyzeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	verdict, err := h.analyzer.Analyze(c.UserContext(), analyzer.Post{
		AccountID: strings.TrimSpace(req.AccountID),
		PostID:    strings.TrimSpace(req.PostID),
		Content:   req.Content,
	})
	if err != nil {
		if errors.Is(err, domain.ErrNoProvider) {
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}
		return toHTTPError(err)
	}

	resp := analyzeResponse{
		ShouldPush: verdict.ShouldPush,
		Confidence: verdict.Confidence,
		Summary:    verdict.Summary,
	}

	if verdict.ShouldPush {
		tag := verdictTag
		draft := dispatch.Draft{
			Message: verdict.Summary,
			Tag:     &tag,
			MetaData: map[string]any{
				"confidence": verdict.Confidence,
			},
		}
		if req.AccountID != "" {
			accountID := strings.TrimSpace(req.AccountID)
			draft.AccountID = &accountID
		}
		if req.PostID != "" {
			postID := strings.TrimSpace(req.PostID)
			draft.PostID = &postID
		}

		n, err := h.dispatcher.Enqueue(c.UserContext(), draft)
		if err != nil {
			return toHTTPError(err)
		}
		resp.NotificationID = n.ID
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}
