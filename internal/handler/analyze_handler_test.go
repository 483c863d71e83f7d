package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/analyzer"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/dispatch"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/domain"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/registry"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/transport"
	"go.uber.org/zap"
)

type stubAnalyzeClient struct {
	classifyFn func(ctx context.Context, provider domain.Provider, post analyzer.Post) (*analyzer.Classification, error)
}

func (s *stubAnalyzeClient) Classify(ctx context.Context, provider domain.Provider, post analyzer.Post) (*analyzer.Classification, error) {
	return s.classifyFn(ctx, provider, post)
}

func newAnalyzeTestApp(t *testing.T, client analyzer.Client, dispatcher NotificationDispatcher, providers map[string]*domain.Provider) *fiber.App {
	t.Helper()

	reg, err := registry.NewRegistry(&stubProviderRepo{providers: providers}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	svc, err := analyzer.NewService(reg, client, zap.NewNop())
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	app := fiber.New(fiber.Config{ErrorHandler: transport.ErrorHandler(zap.NewNop())})
	if err := RegisterAnalyzeRoutes(app, svc, dispatcher); err != nil {
		t.Fatalf("RegisterAnalyzeRoutes() error = %v", err)
	}
	return app
}

func analyzeProviders() map[string]*domain.Provider {
	return map[string]*domain.Provider{
		"p1": {ID: "p1", Name: "openai", Priority: 1, IsActive: true},
	}
}

func TestAnalyzeIntegration_PushVerdictEnqueues(t *testing.T) {
	t.Parallel()

	client := &stubAnalyzeClient{
		classifyFn: func(ctx context.Context, provider domain.Provider, post analyzer.Post) (*analyzer.Classification, error) {
			return &analyzer.Classification{ShouldPush: true, Confidence: 0.92, Summary: "major announcement"}, nil
		},
	}

	var enqueued *dispatch.Draft
	dispatcher := &stubDispatcher{
		enqueueFn: func(ctx context.Context, draft dispatch.Draft) (*domain.Notification, error) {
			enqueued = &draft
			return &domain.Notification{ID: "n-pushed", Message: draft.Message, Status: domain.StatusPending}, nil
		},
	}

	app := newAnalyzeTestApp(t, client, dispatcher, analyzeProviders())

	body := `{"accountId":"elonmusk","postId":"tw-1","content":"we are going to mars"}`
	resp, respBody := performRequest(t, app, http.MethodPost, "/v1/analyze", body)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(respBody))
	}

	var parsed analyzeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if !parsed.ShouldPush || parsed.NotificationID != "n-pushed" {
		t.Fatalf("response = %+v, want push verdict with notification id", parsed)
	}

	if enqueued == nil {
		t.Fatal("push verdict should enqueue a notification")
	}
	if enqueued.Tag == nil || *enqueued.Tag != "ai_verdict" {
		t.Fatalf("tag = %v, want ai_verdict", enqueued.Tag)
	}
	if enqueued.AccountID == nil || *enqueued.AccountID != "elonmusk" {
		t.Fatalf("account id = %v, want elonmusk", enqueued.AccountID)
	}
	if enqueued.PostID == nil || *enqueued.PostID != "tw-1" {
		t.Fatalf("post id = %v, want tw-1", enqueued.PostID)
	}
}

func TestAnalyzeIntegration_SkipVerdictDoesNotEnqueue(t *testing.T) {
	t.Parallel()

	client := &stubAnalyzeClient{
		classifyFn: func(ctx context.Context, provider domain.Provider, post analyzer.Post) (*analyzer.Classification, error) {
			return &analyzer.Classification{ShouldPush: false, Confidence: 0.3, Summary: "routine chatter"}, nil
		},
	}
	dispatcher := &stubDispatcher{
		enqueueFn: func(ctx context.Context, draft dispatch.Draft) (*domain.Notification, error) {
			t.Fatal("skip verdict must not enqueue")
			return nil, nil
		},
	}

	app := newAnalyzeTestApp(t, client, dispatcher, analyzeProviders())

	resp, respBody := performRequest(t, app, http.MethodPost, "/v1/analyze", `{"postId":"tw-2","content":"gm"}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(respBody))
	}

	var parsed analyzeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed.ShouldPush || parsed.NotificationID != "" {
		t.Fatalf("response = %+v, want skip verdict without notification", parsed)
	}
}

func TestAnalyzeIntegration_NoProviderIs503(t *testing.T) {
	t.Parallel()

	client := &stubAnalyzeClient{
		classifyFn: func(ctx context.Context, provider domain.Provider, post analyzer.Post) (*analyzer.Classification, error) {
			return nil, errors.New("unreachable")
		},
	}

	app := newAnalyzeTestApp(t, client, &stubDispatcher{}, map[string]*domain.Provider{})

	resp, _ := performRequest(t, app, http.MethodPost, "/v1/analyze", `{"content":"anything"}`)
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 without active providers", resp.StatusCode)
	}
}

func TestAnalyzeIntegration_EmptyContentIs400(t *testing.T) {
	t.Parallel()

	client := &stubAnalyzeClient{
		classifyFn: func(ctx context.Context, provider domain.Provider, post analyzer.Post) (*analyzer.Classification, error) {
			return nil, nil
		},
	}

	app := newAnalyzeTestApp(t, client, &stubDispatcher{}, analyzeProviders())

	resp, _ := performRequest(t, app, http.MethodPost, "/v1/analyze", `{"content":"  "}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for empty content", resp.StatusCode)
	}
}
