package usecase

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"ecom-support/internal/domain/dialogue"
	"ecom-support/internal/domain/entity"
	"ecom-support/internal/domain/repository"
)

// DefaultMaxContextTokens matches the context window the tuned models were
// trained with.
const DefaultMaxContextTokens = 1024

// minContextTokens keeps at least the assistant marker and the question tail.
const minContextTokens = 32

var tokenPattern = regexp.MustCompile(`\w+|[^\w\s]`)

// GenerationEngine routes prompts to the model tuned for a record kind.
type GenerationEngine struct {
	models           map[entity.Kind]repository.Generator
	maxContextTokens int
	logger           *zap.Logger
}

func NewGenerationEngine(product, user repository.Generator, maxContextTokens int, logger *zap.Logger) *GenerationEngine {
	if maxContextTokens <= 0 {
		maxContextTokens = DefaultMaxContextTokens
	}
	if maxContextTokens < minContextTokens {
		maxContextTokens = minContextTokens
	}
	return &GenerationEngine{
		models: map[entity.Kind]repository.Generator{
			entity.KindProduct: product,
			entity.KindUser:    user,
		},
		maxContextTokens: maxContextTokens,
		logger:           logger,
	}
}

// Generate samples a continuation of prompt and returns the prompt the model
// actually saw followed by the continuation, markers included.
func (e *GenerationEngine) Generate(ctx context.Context, kind entity.Kind, prompt string, cfg entity.SamplingConfig) (string, error) {
	model, ok := e.models[kind]
	if !ok || model == nil {
		return "", fmt.Errorf("%w: %q", entity.ErrUnknownKind, kind)
	}

	input := TruncatePrompt(prompt, e.maxContextTokens)
	if len(input) < len(prompt) {
		e.logger.Warn("prompt truncated to context window",
			zap.String("kind", string(kind)),
			zap.Int("max_tokens", e.maxContextTokens),
			zap.Int("dropped_bytes", len(prompt)-len(input)))
	}

	start := time.Now()
	out, err := model.Generate(ctx, input, cfg)
	if err != nil {
		return "", fmt.Errorf("%s model: %w: %w", kind, entity.ErrModelUnavailable, err)
	}

	e.logger.Debug("generation complete",
		zap.String("kind", string(kind)),
		zap.String("model", out.Model),
		zap.Int("output_tokens", out.OutputTokens),
		zap.Duration("latency", time.Since(start)))

	return input + out.Text, nil
}

// FitPrompt renders an inference prompt that fits the context window.
// Field values are shortened from their tail, description first and
// product_name last, so the markers, the field names and the question
// survive. Only a question that overflows on its own falls back to
// TruncatePrompt.
func (e *GenerationEngine) FitPrompt(fields []entity.Field, question string) string {
	prompt := dialogue.RenderInference(fields, question)
	over := CountTokens(prompt) - e.maxContextTokens
	if over <= 0 {
		return prompt
	}

	fitted := make([]entity.Field, len(fields))
	copy(fitted, fields)
	for _, i := range shrinkOrder(fitted) {
		if over <= 0 {
			break
		}
		n := CountTokens(fitted[i].Value)
		if n == 0 {
			continue
		}
		keep := max(n-over, 0)
		fitted[i].Value = headTokens(fitted[i].Value, keep)
		over -= n - keep
		if keep == 0 {
			// the whole "name:" line goes with an empty value
			over -= CountTokens(fitted[i].Name) + 1
		}
	}

	prompt = dialogue.RenderInference(fitted, question)
	if CountTokens(prompt) > e.maxContextTokens {
		return TruncatePrompt(prompt, e.maxContextTokens)
	}
	return prompt
}

// shrinkOrder lists field positions in the order their values give way:
// description, then the others from last to first.
func shrinkOrder(fields []entity.Field) []int {
	order := make([]int, 0, len(fields))
	for i, f := range fields {
		if f.Name == "description" {
			order = append(order, i)
		}
	}
	for i := len(fields) - 1; i >= 0; i-- {
		if fields[i].Name != "description" {
			order = append(order, i)
		}
	}
	return order
}

// headTokens keeps the first n tokens of s.
func headTokens(s string, n int) string {
	if n <= 0 {
		return ""
	}
	locs := tokenPattern.FindAllStringIndex(s, n)
	if len(locs) < n {
		return s
	}
	return s[:locs[n-1][1]]
}

// CountTokens approximates the model tokenizer: words and single
// punctuation characters each count as one token.
func CountTokens(text string) int {
	return len(tokenPattern.FindAllStringIndex(text, -1))
}

// TruncatePrompt keeps the last maxTokens tokens of prompt. The tail carries
// the question and the trailing assistant marker, so the head is what goes.
func TruncatePrompt(prompt string, maxTokens int) string {
	if maxTokens <= 0 {
		return prompt
	}
	locs := tokenPattern.FindAllStringIndex(prompt, -1)
	if len(locs) <= maxTokens {
		return prompt
	}
	return prompt[locs[len(locs)-maxTokens][0]:]
}
