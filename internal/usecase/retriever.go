package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ecom-support/internal/domain/entity"
	"ecom-support/internal/domain/repository"
)

// RecordIndex keeps a record collection and its embeddings side by side.
// Position i of the vector index always belongs to records[i]; neither
// side is ever reordered or mutated after BuildIndex returns. Records only
// leave the index as clones.
type RecordIndex[R entity.Owned[R]] struct {
	kind     entity.Kind
	records  []R
	embedder repository.Embedder
	vectors  repository.VectorIndex
	logger   *zap.Logger
}

// BuildIndex embeds every record once. An empty collection is a
// configuration error and is reported as entity.ErrEmptyCollection.
func BuildIndex[R entity.Owned[R]](ctx context.Context, records []R, emb repository.Embedder, vi repository.VectorIndex, logger *zap.Logger) (*RecordIndex[R], error) {
	var zero R
	kind := zero.Kind()
	if len(records) == 0 {
		return nil, fmt.Errorf("build %s index: %w", kind, entity.ErrEmptyCollection)
	}

	vectors := make([][]float32, len(records))
	for i, r := range records {
		vec, err := emb.CreateEmbedding(ctx, r.EmbeddingText())
		if err != nil {
			return nil, fmt.Errorf("embed %s record %d (%q): %w", kind, i, r.Name(), err)
		}
		vectors[i] = vec
	}
	if err := vi.Build(ctx, vectors); err != nil {
		return nil, fmt.Errorf("build %s index: %w", kind, err)
	}

	owned := make([]R, len(records))
	for i, r := range records {
		owned[i] = r.Clone()
	}

	logger.Info("record index built",
		zap.String("kind", string(kind)),
		zap.Int("records", len(owned)),
		zap.Int("dimension", len(vectors[0])))

	return &RecordIndex[R]{
		kind:     kind,
		records:  owned,
		embedder: emb,
		vectors:  vi,
		logger:   logger,
	}, nil
}

// Retrieve embeds query with the index's embedder and returns a copy of the
// best matching record together with its cosine similarity.
func (ix *RecordIndex[R]) Retrieve(ctx context.Context, query string) (R, float32, error) {
	var zero R
	vec, err := ix.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		return zero, 0, fmt.Errorf("embedding query: %w", err)
	}
	pos, score, err := ix.vectors.Nearest(ctx, vec)
	if err != nil {
		return zero, 0, fmt.Errorf("searching %s index: %w", ix.kind, err)
	}
	if pos < 0 || pos >= len(ix.records) {
		return zero, 0, fmt.Errorf("searching %s index: position %d out of range", ix.kind, pos)
	}
	return ix.records[pos].Clone(), score, nil
}

func (ix *RecordIndex[R]) Kind() entity.Kind { return ix.kind }

func (ix *RecordIndex[R]) Len() int { return len(ix.records) }

// Records returns a copy of the indexed collection in index order.
func (ix *RecordIndex[R]) Records() []R {
	out := make([]R, len(ix.records))
	for i, r := range ix.records {
		out[i] = r.Clone()
	}
	return out
}
