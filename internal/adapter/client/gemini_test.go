package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"ecom-support/internal/domain/entity"
)

func newTestGenaiClient(t *testing.T, handler http.HandlerFunc) *genai.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      "test-key",
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: server.URL},
	})
	require.NoError(t, err)
	return c
}

func TestGeminiClient_Generate(t *testing.T) {
	var body map[string]any
	c := newTestGenaiClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "It costs $199."}]}}],
			"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 5, "totalTokenCount": 17}
		}`))
	})

	g := NewGeminiClientFromClient(c, "gemini-2.5-flash")
	cfg := entity.SamplingConfig{MaxNewTokens: 128, Temperature: 0.2, TopK: 20, TopP: 0.9}
	out, err := g.Generate(context.Background(), "<|assistant|>", cfg)
	require.NoError(t, err)

	assert.Equal(t, "It costs $199.", out.Text)
	assert.Equal(t, 12, out.PromptTokens)
	assert.Equal(t, 5, out.OutputTokens)

	genCfg, ok := body["generationConfig"].(map[string]any)
	require.True(t, ok, "generationConfig missing from request")
	assert.EqualValues(t, 20, genCfg["topK"])
	assert.EqualValues(t, 128, genCfg["maxOutputTokens"])
}

func TestGenaiEmbedder_CreateEmbedding(t *testing.T) {
	c := newTestGenaiClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"embeddings": [{"values": [0.5, 0.25]}]}`))
	})

	vec, err := NewGenaiEmbedder(c, "text-embedding-004", 0).CreateEmbedding(context.Background(), "projector")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25}, vec)
}

func TestGenaiEmbedder_EmptyResult(t *testing.T) {
	c := newTestGenaiClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"embeddings": []}`))
	})

	_, err := NewGenaiEmbedder(c, "text-embedding-004", 256).CreateEmbedding(context.Background(), "projector")
	assert.ErrorContains(t, err, "returned no embedding")
}

func TestGenerationConfig(t *testing.T) {
	cfg := generationConfig(entity.SamplingConfig{MaxNewTokens: 256, Temperature: 0.3, TopK: 50, TopP: 1})
	assert.Equal(t, int32(256), cfg.MaxOutputTokens)
	assert.Equal(t, float32(50), *cfg.TopK)
	assert.Equal(t, float32(1), *cfg.TopP)
	assert.InDelta(t, 0.3, *cfg.Temperature, 1e-6)
}
