package repository

import (
	"context"

	"ecom-support/internal/domain/entity"
)

// VectorIndex holds one embedding per record, addressed by the record's
// position in its collection.
type VectorIndex interface {
	Build(ctx context.Context, vectors [][]float32) error
	// Nearest returns the position with the highest cosine similarity.
	// Ties go to the lowest position.
	Nearest(ctx context.Context, vector []float32) (int, float32, error)
}

type RateLimiter interface {
	CheckLimit(ctx context.Context, clientID string) (bool, error)
	Increment(ctx context.Context, clientID string) error
}

// Generator continues a raw prompt. The returned text is the continuation
// only, with structural markers left intact.
type Generator interface {
	Generate(ctx context.Context, prompt string, cfg entity.SamplingConfig) (*entity.Completion, error)
}

type Embedder interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}
