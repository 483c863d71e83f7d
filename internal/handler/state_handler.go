package handler

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/domain"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/statestore"
)

type StateHandler struct {
	store *statestore.Store
}

func NewStateHandler(store *statestore.Store) (*StateHandler, error) {
	if store == nil {
		return nil, fmt.Errorf("state store is required")
	}
	return &StateHandler{store: store}, nil
}

func RegisterStateRoutes(router fiber.Router, store *statestore.Store) error {
	h, err := NewStateHandler(store)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/state/:key", h.GetState)
	v1.Put("/state/:key", h.SetState)
	v1.Delete("/state/:key", h.DeleteState)
	v1.Post("/state/cleanup", h.CleanupState)

	return nil
}

type setStateRequest struct {
	Value      string `json:"value"`
	TTLSeconds int    `json:"ttlSeconds,omitempty"`
}

type stateResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (h *StateHandler) GetState(c *fiber.Ctx) error {
	key := c.Params("key")
	if key == "" {
		return toHTTPError(fmt.Errorf("%w: state key is required", domain.ErrValidation))
	}

	value, ok, err := h.store.Get(c.UserContext(), key)
	if err != nil {
		return toHTTPError(err)
	}
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "state key not found")
	}

	return c.Status(fiber.StatusOK).JSON(stateResponse{Key: key, Value: value})
}

func (h *StateHandler) SetState(c *fiber.Ctx) error {
	key := c.Params("key")
	if key == "" {
		return toHTTPError(fmt.Errorf("%w: state key is required", domain.ErrValidation))
	}

	var req setStateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	ttl := time.Duration(req.TTLSeconds) * time.Second
	if err := h.store.Set(c.UserContext(), key, req.Value, ttl); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(stateResponse{Key: key, Value: req.Value})
}

func (h *StateHandler) DeleteState(c *fiber.Ctx) error {
	key := c.Params("key")
	if key == "" {
		return toHTTPError(fmt.Errorf("%w: state key is required", domain.ErrValidation))
	}

	if err := h.store.Delete(c.UserContext(), key); err != nil {
		return toHTTPError(err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *StateHandler) CleanupState(c *fiber.Ctx) error {
	removed, err := h.store.Cleanup(c.UserContext())
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"removed": removed})
}
