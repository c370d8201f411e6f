package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"ecom-support/internal/domain/entity"
	"ecom-support/internal/domain/repository"
	"ecom-support/internal/usecase"
)

// ChatHandler exposes the inference façade to the storefront UI.
type ChatHandler struct {
	facade  *usecase.Facade
	limiter repository.RateLimiter
	presets usecase.Presets
	logger  *zap.Logger
}

func NewChatHandler(facade *usecase.Facade, limiter repository.RateLimiter, presets usecase.Presets, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{facade: facade, limiter: limiter, presets: presets, logger: logger}
}

type chatRequest struct {
	Page        string               `json:"page"`
	Question    string               `json:"question"`
	SubmitCount int                  `json:"submit_count"`
	History     []entity.ChatMessage `json:"history"`
}

type chatResponse struct {
	Reply   *entity.Reply        `json:"reply,omitempty"`
	History []entity.ChatMessage `json:"history"`
}

type inferenceRequest struct {
	Question          string   `json:"question"`
	TopK              *int     `json:"top_k"`
	Temperature       *float32 `json:"temperature"`
	TopP              *float32 `json:"top_p"`
	MaxNewTokens      *int     `json:"max_new_tokens"`
	AdditionalContext string   `json:"additional_context"`
}

type inferenceResponse struct {
	Reply string `json:"reply"`
}

type productSummary struct {
	Name  string `json:"name"`
	Page  string `json:"page"`
	Price string `json:"price"`
}

// HandleChat answers one chat turn and returns the caller's transcript with
// the new turn appended. A non-positive submit count or an empty question
// returns an empty transcript.
func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, fmt.Errorf("%w: %v", entity.ErrInvalidRequest, err))
	}
	if req.SubmitCount <= 0 || req.Question == "" {
		return c.Status(fiber.StatusOK).JSON(chatResponse{History: []entity.ChatMessage{}})
	}
	if err := h.checkLimit(c); err != nil {
		return h.fail(c, err)
	}

	reply, err := h.facade.Chat(c.UserContext(), req.Page, req.Question)
	if err != nil {
		return h.fail(c, err)
	}

	history := append(req.History, entity.ChatMessage{Question: req.Question, Answer: reply.Text})
	return c.Status(fiber.StatusOK).JSON(chatResponse{Reply: &reply, History: history})
}

func (h *ChatHandler) HandleProductInference(c *fiber.Ctx) error {
	return h.handleInference(c, h.presets.Product, h.facade.ProductInference)
}

func (h *ChatHandler) HandleUserInference(c *fiber.Ctx) error {
	return h.handleInference(c, h.presets.User, h.facade.UserInference)
}

type inferFunc func(ctx context.Context, question string, cfg entity.SamplingConfig, additionalContext string) (string, error)

func (h *ChatHandler) handleInference(c *fiber.Ctx, preset entity.SamplingConfig, infer inferFunc) error {
	var req inferenceRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, fmt.Errorf("%w: %v", entity.ErrInvalidRequest, err))
	}
	if req.Question == "" {
		return h.fail(c, fmt.Errorf("%w: question is required", entity.ErrInvalidRequest))
	}
	if err := h.checkLimit(c); err != nil {
		return h.fail(c, err)
	}

	reply, err := infer(c.UserContext(), req.Question, req.sampling(preset), req.AdditionalContext)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(inferenceResponse{Reply: reply})
}

func (h *ChatHandler) HandleProducts(c *fiber.Ctx) error {
	records := h.facade.Catalog()
	out := make([]productSummary, len(records))
	for i, r := range records {
		out[i] = productSummary{
			Name:  r.Name(),
			Page:  entity.PageSlug(r.Name()),
			Price: r.Price.String(),
		}
	}
	return c.JSON(out)
}

func (h *ChatHandler) HandleOrders(c *fiber.Ctx) error {
	return c.JSON(h.facade.Orders())
}

func (r inferenceRequest) sampling(preset entity.SamplingConfig) entity.SamplingConfig {
	cfg := preset
	if r.TopK != nil {
		cfg.TopK = *r.TopK
	}
	if r.Temperature != nil {
		cfg.Temperature = *r.Temperature
	}
	if r.TopP != nil {
		cfg.TopP = *r.TopP
	}
	if r.MaxNewTokens != nil {
		cfg.MaxNewTokens = *r.MaxNewTokens
	}
	return cfg
}

func (h *ChatHandler) checkLimit(c *fiber.Ctx) error {
	if h.limiter == nil {
		return nil
	}
	clientID := c.Get("X-Client-ID", c.IP())
	ctx := c.UserContext()

	allowed, err := h.limiter.CheckLimit(ctx, clientID)
	if err != nil {
		// Limiter outages must not take the chat down.
		h.logger.Warn("rate limiter check failed", zap.Error(err))
		return nil
	}
	if !allowed {
		return entity.ErrRateLimitExceeded
	}
	if err := h.limiter.Increment(ctx, clientID); err != nil {
		h.logger.Warn("rate limiter increment failed", zap.Error(err))
	}
	return nil
}

// fail maps domain errors to HTTP status codes.
func (h *ChatHandler) fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, entity.ErrRateLimitExceeded):
		status, msg = fiber.StatusTooManyRequests, err.Error()
	case errors.Is(err, entity.ErrInvalidRequest):
		status, msg = fiber.StatusBadRequest, err.Error()
	case errors.Is(err, entity.ErrModelUnavailable):
		status, msg = fiber.StatusServiceUnavailable, "assistant is temporarily unavailable"
	}
	if status >= fiber.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("request_id", requestID(c)),
			zap.String("path", c.Path()),
			zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}
