package client

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// semanticSimilarity asks for vectors tuned for symmetric comparison, since
// records and questions are embedded with the same model and settings.
const semanticSimilarity = "SEMANTIC_SIMILARITY"

// GenaiEmbedder produces sentence embeddings with a hosted Google model.
type GenaiEmbedder struct {
	client     *genai.Client
	model      string // e.g., "text-embedding-004"
	dimensions int32  // 0 keeps the model's native size
}

func NewGenaiEmbedder(c *genai.Client, model string, dimensions int) *GenaiEmbedder {
	return &GenaiEmbedder{
		client:     c,
		model:      model,
		dimensions: int32(dimensions),
	}
}

func (e *GenaiEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	cfg := &genai.EmbedContentConfig{TaskType: semanticSimilarity}
	if e.dimensions > 0 {
		cfg.OutputDimensionality = genai.Ptr(e.dimensions)
	}
	res, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), cfg)
	if err != nil {
		return nil, fmt.Errorf("embedding with %s: %w", e.model, err)
	}
	if res == nil || len(res.Embeddings) == 0 || len(res.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("%s returned no embedding", e.model)
	}
	return res.Embeddings[0].Values, nil
}
