// Package app wires the process-wide, read-only state: record indices,
// embedding model and generation models. Everything is built once by New
// and released by Close.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"ecom-support/internal/adapter/client"
	"ecom-support/internal/adapter/store"
	"ecom-support/internal/config"
	"ecom-support/internal/domain/dialogue"
	"ecom-support/internal/domain/entity"
	"ecom-support/internal/domain/repository"
	"ecom-support/internal/usecase"
)

// App owns every long-lived handle of the service.
type App struct {
	Facade   *usecase.Facade
	Limiter  repository.RateLimiter // nil when rate limiting is off
	Embedder repository.Embedder
	Product  repository.Generator
	User     repository.Generator

	logger  *zap.Logger
	closers []func() error
}

// New loads records, builds both embedding indices and connects the models.
// Any failure here is fatal for the process.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	products, err := store.LoadProducts(cfg.Data.ProductsFile, logger)
	if err != nil {
		return nil, err
	}
	users, err := store.LoadUsers(cfg.Data.UsersFile, logger)
	if err != nil {
		return nil, err
	}

	var genaiClient *genai.Client
	if cfg.Models.Google.Configured() {
		genaiClient, err = genai.NewClient(ctx, genaiConfig(cfg.Models.Google))
		if err != nil {
			return nil, fmt.Errorf("failed to init genai client: %w", err)
		}
	}

	switch cfg.Embedder.Type {
	case "genai":
		a.Embedder = client.NewGenaiEmbedder(genaiClient, cfg.Embedder.Model, cfg.Embedder.Dimensions)
	default:
		a.Embedder = client.NewOllamaEmbedder(cfg.Models.OllamaURL, cfg.Embedder.Model)
	}

	productVectors, userVectors, err := a.vectorIndices(cfg.VectorStore)
	if err != nil {
		return nil, err
	}

	productIndex, err := usecase.BuildIndex(ctx, products, a.Embedder, productVectors, logger)
	if err != nil {
		return nil, err
	}
	userIndex, err := usecase.BuildIndex(ctx, users, a.Embedder, userVectors, logger)
	if err != nil {
		return nil, err
	}

	var fallback repository.Generator
	if cfg.Models.FallbackModel != "" && genaiClient != nil {
		fallback = client.NewGeminiClientFromClient(genaiClient, cfg.Models.FallbackModel)
	}
	m := cfg.Models
	a.Product = usecase.NewResilientProvider(m.ProductModel,
		client.NewOllamaGenerator(m.OllamaURL, m.ProductModel, m.MaxContextTokens, m.Timeout),
		fallback, m.Timeout, logger)
	a.User = usecase.NewResilientProvider(m.UserModel,
		client.NewOllamaGenerator(m.OllamaURL, m.UserModel, m.MaxContextTokens, m.Timeout),
		fallback, m.Timeout, logger)

	layout, err := dialogue.ParseLayout(m.PromptLayout)
	if err != nil {
		return nil, err
	}
	engine := usecase.NewGenerationEngine(a.Product, a.User, m.MaxContextTokens, logger)
	a.Facade = usecase.NewFacade(productIndex, userIndex, engine, usecase.Presets{
		Product: cfg.Sampling.Product,
		User:    cfg.Sampling.User,
	}, layout, logger)

	if cfg.RateLimit.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RateLimit.RedisAddr})
		a.closers = append(a.closers, rdb.Close)
		a.Limiter = store.NewRedisLimiter(rdb, cfg.RateLimit.Requests, cfg.RateLimit.Window)
	}

	ok = true
	return a, nil
}

func (a *App) vectorIndices(cfg config.VectorStoreConfig) (repository.VectorIndex, repository.VectorIndex, error) {
	if cfg.Type != "qdrant" {
		return store.NewMemoryIndex(), store.NewMemoryIndex(), nil
	}
	qClient, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.QdrantHost,
		Port:   cfg.QdrantPort,
		APIKey: cfg.QdrantAPIKey,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}
	a.closers = append(a.closers, qClient.Close)
	return store.NewQdrantIndex(qClient, cfg.CollectionPrefix+"_"+string(entity.KindProduct), a.logger),
		store.NewQdrantIndex(qClient, cfg.CollectionPrefix+"_"+string(entity.KindUser), a.logger),
		nil
}

// Warm sends one throwaway request through the embedder and both models so
// the first user does not pay for model loading.
func (a *App) Warm(ctx context.Context) {
	warmCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if _, err := a.Embedder.CreateEmbedding(warmCtx, "warmup"); err != nil {
		a.logger.Warn("embedder warm-up failed", zap.Error(err))
	}
	warmCfg := entity.SamplingConfig{MaxNewTokens: 1, Temperature: 0, TopK: 1, TopP: 1}
	for name, gen := range map[string]repository.Generator{"product": a.Product, "user": a.User} {
		if _, err := gen.Generate(warmCtx, ".", warmCfg); err != nil {
			a.logger.Warn("model warm-up failed", zap.String("model", name), zap.Error(err))
		}
	}
	a.logger.Info("warm-up complete")
}

// Close releases every connection opened by New.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}

func genaiConfig(g config.GoogleConfig) *genai.ClientConfig {
	if g.Project != "" {
		return &genai.ClientConfig{
			Project:  g.Project,
			Location: g.Location,
			Backend:  genai.BackendVertexAI,
		}
	}
	return &genai.ClientConfig{
		APIKey:  g.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
}
