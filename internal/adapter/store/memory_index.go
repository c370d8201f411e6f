package store

import (
	"context"
	"math"
	"sync"

	"ecom-support/internal/domain/entity"
)

// MemoryIndex is an exhaustive in-process cosine index.
type MemoryIndex struct {
	mu      sync.RWMutex
	vectors [][]float32
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

// Build replaces the indexed vectors. Position i of vectors stays position i.
func (m *MemoryIndex) Build(ctx context.Context, vectors [][]float32) error {
	owned := make([][]float32, len(vectors))
	for i, v := range vectors {
		owned[i] = append([]float32(nil), v...)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors = owned
	return nil
}

// Nearest scans every vector. A later vector only wins with a strictly
// higher score, so ties resolve to the lowest position.
func (m *MemoryIndex) Nearest(ctx context.Context, vector []float32) (int, float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.vectors) == 0 {
		return -1, 0, entity.ErrEmptyCollection
	}
	best, bestScore := 0, CosineSimilarity(vector, m.vectors[0])
	for i := 1; i < len(m.vectors); i++ {
		if s := CosineSimilarity(vector, m.vectors[i]); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best, bestScore, nil
}

// CosineSimilarity returns 0 when either vector has zero norm or the
// dimensions differ.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
