package handler

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/domain"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/registry"
)

type ProviderHandler struct {
	registry *registry.Registry
}

func NewProviderHandler(reg *registry.Registry) (*ProviderHandler, error) {
	if reg == nil {
		return nil, fmt.Errorf("provider registry is required")
	}
	return &ProviderHandler{registry: reg}, nil
}

func RegisterProviderRoutes(router fiber.Router, reg *registry.Registry) error {
	h, err := NewProviderHandler(reg)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/providers", h.ListProviders)
	v1.Get("/providers/:id", h.GetProvider)
	v1.Post("/providers/:id/active", h.SetProviderActive)

	return nil
}

type providerResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Priority     int       `json:"priority"`
	IsActive     bool      `json:"isActive"`
	RequestCount int64     `json:"requestCount"`
	SuccessCount int64     `json:"successCount"`
	ErrorCount   int64     `json:"errorCount"`
	LastError    *string   `json:"lastError,omitempty"`
	CreatedAt    time.Time `json:"createdAt,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt,omitempty"`
}

type setProviderActiveRequest struct {
	Active *bool `json:"active"`
}

func (h *ProviderHandler) ListProviders(c *fiber.Ctx) error {
	providers, err := h.registry.ActiveProviders(c.UserContext())
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]providerResponse, 0, len(providers))
	for i := range providers {
		responses = append(responses, toProviderResponse(&providers[i]))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": responses})
}

func (h *ProviderHandler) GetProvider(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return toHTTPError(fmt.Errorf("%w: provider id is required", domain.ErrValidation))
	}

	provider, err := h.registry.Get(c.UserContext(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toProviderResponse(provider))
}

func (h *ProviderHandler) SetProviderActive(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return toHTTPError(fmt.Errorf("%w: provider id is required", domain.ErrValidation))
	}

	var req setProviderActiveRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Active == nil {
		return toHTTPError(fmt.Errorf("%w: active is required", domain.ErrValidation))
	}

	if err := h.registry.SetActive(c.UserContext(), id, *req.Active); err != nil {
		return toHTTPError(err)
	}

	provider, err := h.registry.Get(c.UserContext(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toProviderResponse(provider))
}

func toProviderResponse(p *domain.Provider) providerResponse {
	if p == nil {
		return providerResponse{}
	}

	return providerResponse{
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
