package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/domain"
)

const (
	defaultAnalyzeTimeout = 30 * time.Second

	// The model is instructed to answer with this JSON shape only.
	systemPrompt = `You classify social media posts for a monitoring system. ` +
		`Reply with a single JSON object: {"should_push": bool, "confidence": number between 0 and 1, "summary": string}. ` +
		`Set should_push to true only when the post is newsworthy for the monitored audience.`
)

// HTTPClient calls an OpenAI-compatible chat-completions endpoint. The
// provider's name is passed through as a vendor hint in the request metadata;
// model and credentials are fixed per deployment.
type HTTPClient struct {
	client  *resty.Client
	baseURL string
	apiKey  string
	model   string
}

func NewHTTPClient(baseURL, apiKey, model string, timeout time.Duration) (*HTTPClient, error) {
	trimmedURL := strings.TrimSpace(baseURL)
	if trimmedURL == "" {
		return nil, fmt.Errorf("analyzer base URL is required")
	}
	if _, err := url.ParseRequestURI(trimmedURL); err != nil {
		return nil, fmt.Errorf("invalid analyzer base URL: %w", err)
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("analyzer model is required")
	}
	if timeout <= 0 {
		timeout = defaultAnalyzeTimeout
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(0)

	return &HTTPClient{
		client:  client,
		baseURL: strings.TrimRight(trimmedURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		model:   strings.TrimSpace(model),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	User     string        `json:"user,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *HTTPClient) Classify(ctx context.Context, provider domain.Provider, post Post) (*Classification, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("analyzer client is not initialized")
	}

	reqBody := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: post.Content},
		},
		User: provider.Name,
	}

	request := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody)
	if c.apiKey != "" {
		request.SetHeader("Authorization", "Bearer "+c.apiKey)
	}

	response, err := request.Post(c.baseURL + "/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("analysis endpoint returned status %d: %s", response.StatusCode(), strings.TrimSpace(response.String()))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(response.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode analysis response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("analysis endpoint error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("analysis response contained no choices")
	}

	return parseVerdict(parsed.Choices[0].Message.Content)
}

// parseVerdict extracts the JSON verdict from the model's reply. Models often
// wrap JSON in code fences, so those are stripped before decoding.
func parseVerdict(content string) (*Classification, error) {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var verdict Classification
	if err := json.Unmarshal([]byte(trimmed), &verdict); err != nil {
		return nil, fmt.Errorf("failed to parse verdict %q: %w", content, err)
	}

	if verdict.Confidence < 0 || verdict.Confidence > 1 {
		return nil, fmt.Errorf("verdict confidence %v out of range", verdict.Confidence)
	}

	return &verdict, nil
}
