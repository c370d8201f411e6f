package usecase

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"

	"ecom-support/internal/domain/entity"
)

var wordPattern = regexp.MustCompile(`[a-z]+`)

// keywordEmbedder counts vocabulary words, enough to make retrieval behave
// like a real sentence embedder on small fixtures.
type keywordEmbedder struct {
	vocab []string
	fail  bool
	calls int
	mu    sync.Mutex
}

func newKeywordEmbedder(vocab ...string) *keywordEmbedder {
	return &keywordEmbedder{vocab: vocab}
}

func (e *keywordEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.fail {
		return nil, errors.New("embedding backend down")
	}
	vec := make([]float32, len(e.vocab)+1)
	vec[len(e.vocab)] = 0.01 // keeps every vector non-zero
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		for i, v := range e.vocab {
			if w == v {
				vec[i]++
			}
		}
	}
	return vec, nil
}

// scriptedGenerator returns a fixed continuation and records every call.
type scriptedGenerator struct {
	mu      sync.Mutex
	reply   string
	errs    []error
	prompts []string
	cfgs    []entity.SamplingConfig
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string, cfg entity.SamplingConfig) (*entity.Completion, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	g.cfgs = append(g.cfgs, cfg)
	if len(g.errs) > 0 {
		err := g.errs[0]
		g.errs = g.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &entity.Completion{Text: g.reply, Model: "scripted"}, nil
}

func (g *scriptedGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

func (g *scriptedGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}
