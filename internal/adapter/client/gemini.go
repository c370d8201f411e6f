package client

import (
	"context"
	"errors"
	"time"

	"google.golang.org/genai"

	"ecom-support/internal/domain/entity"
)

// GeminiClient continues a prompt with a hosted Gemini model. It is used as
// the fallback when a tuned model cannot answer.
type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGeminiClientFromClient(c *genai.Client, model string) *GeminiClient {
	return &GeminiClient{
		client: c,
		model:  model,
	}
}

func (g *GeminiClient) Generate(ctx context.Context, prompt string, cfg entity.SamplingConfig) (*entity.Completion, error) {
	start := time.Now()
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), generationConfig(cfg))
	if err != nil {
		return nil, err
	}
	if result == nil || len(result.Candidates) == 0 {
		return nil, errors.New("no candidates returned")
	}

	out := &entity.Completion{
		Text:    result.Text(),
		Model:   g.model,
		Latency: time.Since(start),
	}
	if u := result.UsageMetadata; u != nil {
		out.PromptTokens = int(u.PromptTokenCount)
		out.OutputTokens = int(u.CandidatesTokenCount)
	}
	return out, nil
}

func generationConfig(cfg entity.SamplingConfig) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(cfg.Temperature),
		TopK:            genai.Ptr(float32(cfg.TopK)),
		TopP:            genai.Ptr(cfg.TopP),
		MaxOutputTokens: int32(cfg.MaxNewTokens),
	}
}
