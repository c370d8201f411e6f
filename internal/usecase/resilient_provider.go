package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"ecom-support/internal/domain/entity"
	"ecom-support/internal/domain/repository"
)

// ResilientProvider retries the tuned model and, when it stays down, asks a
// general-purpose fallback model once.
type ResilientProvider struct {
	primary    repository.Generator
	fallback   repository.Generator // optional
	label      string
	maxRetries int
	baseDelay  time.Duration
	timeout    time.Duration
	logger     *zap.Logger
}

func NewResilientProvider(label string, primary, fallback repository.Generator, timeout time.Duration, logger *zap.Logger) *ResilientProvider {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ResilientProvider{
		primary:    primary,
		fallback:   fallback,
		label:      label,
		maxRetries: 2, // 3 attempts on the primary
		baseDelay:  500 * time.Millisecond,
		timeout:    timeout,
		logger:     logger,
	}
}

func (r *ResilientProvider) Generate(ctx context.Context, prompt string, cfg entity.SamplingConfig) (*entity.Completion, error) {
	resCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.executeWithRetry(resCtx, r.primary, prompt, cfg)
	if err == nil {
		return resp, nil
	}
	if r.fallback == nil || ctx.Err() != nil {
		return nil, err
	}

	r.logger.Warn("primary model exhausted, switching to fallback",
		zap.String("model", r.label),
		zap.Error(err))

	resp, err = r.fallback.Generate(resCtx, prompt, cfg)
	if err != nil {
		return nil, fmt.Errorf("both primary and fallback failed: %w", err)
	}

	if resp.Metadata == nil {
		resp.Metadata = make(map[string]any)
	}
	resp.Metadata["fallback_used"] = true

	return resp, nil
}

func (r *ResilientProvider) executeWithRetry(ctx context.Context, p repository.Generator, prompt string, cfg entity.SamplingConfig) (*entity.Completion, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		resp, err := p.Generate(ctx, prompt, cfg)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !r.isRetryable(err) || attempt == r.maxRetries {
			break
		}

		wait := r.calculateBackoff(attempt)
		r.logger.Debug("retrying generation",
			zap.String("model", r.label),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait),
			zap.Error(err))

		select {
		case <-time.After(wait):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (r *ResilientProvider) isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	// rate limits, server errors and a model still loading
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "500") ||
		strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") ||
		strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "deadline")
}

func (r *ResilientProvider) calculateBackoff(attempt int) time.Duration {
	backoff := float64(r.baseDelay) * float64(int(1)<<attempt)
	jitter := (rand.Float64() * 0.2) * backoff // 20% jitter
	return time.Duration(backoff + jitter)
}
