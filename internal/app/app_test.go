package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ecom-support/internal/config"
	"ecom-support/internal/domain/entity"
)

const productsJSON = `[
  {"product_name": "Portable Projector", "price": "$199", "warranty": "1 year", "description": "Pocket sized projector."},
  {"product_name": "Fancy house plant", "price": 29.99, "refundable": true, "description": "Money plant."}
]`

const usersJSON = `[
  {"product_name": "Microwave", "price": "$89", "order_status": "shipped", "location": "Denver"},
  {"product_name": "Microwave", "price": "$90", "order_status": "ordered", "location": "Austin"}
]`

// fakeOllama answers the two Ollama endpoints the service uses.
func fakeOllama(t *testing.T, generated *atomic.Int32) *httptest.Server {
	t.Helper()
	words := []string{"projector", "plant", "microwave"}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		prompt, _ := req["prompt"].(string)

		switch r.URL.Path {
		case "/api/embeddings":
			vec := []float32{0, 0, 0, 0.01}
			for i, word := range words {
				if strings.Contains(strings.ToLower(prompt), word) {
					vec[i] = 1
				}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"embedding": vec})
		case "/api/generate":
			generated.Add(1)
			assert.Equal(t, true, req["raw"])
			reply := "Happy to help.<|end|>"
			if req["model"] == "user-model" {
				reply = "Moving it now. change_location<|end|>"
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"response": reply, "done": true, "eval_count": 5})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func testConfig(t *testing.T, ollamaURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	products := filepath.Join(dir, "products.json")
	users := filepath.Join(dir, "user.json")
	require.NoError(t, os.WriteFile(products, []byte(productsJSON), 0o600))
	require.NoError(t, os.WriteFile(users, []byte(usersJSON), 0o600))

	cfg := config.Defaults()
	cfg.Data = config.DataConfig{ProductsFile: products, UsersFile: users}
	cfg.Embedder.Model = "all-minilm"
	cfg.Models.OllamaURL = ollamaURL
	cfg.Models.ProductModel = "product-model"
	cfg.Models.UserModel = "user-model"
	return cfg
}

func TestNew_ServesBothInferencePaths(t *testing.T) {
	var generated atomic.Int32
	srv := fakeOllama(t, &generated)
	defer srv.Close()

	a, err := New(context.Background(), testConfig(t, srv.URL), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.Len(t, a.Facade.Catalog(), 2)
	orders := a.Facade.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, entity.Scalar("shipped"), orders[0].OrderStatus)

	reply, err := a.Facade.Chat(context.Background(), "Portable_Projector", "What is the warranty?")
	require.NoError(t, err)
	assert.Equal(t, entity.Reply{Kind: entity.KindProduct, Text: "Happy to help."}, reply)

	reply, err = a.Facade.Chat(context.Background(), "user", "Ship my microwave to Austin")
	require.NoError(t, err)
	assert.Equal(t, "Moving it now. change_location(Product shipping location has been changed)", reply.Text)
	assert.EqualValues(t, 2, generated.Load())
	assert.Nil(t, a.Limiter)
}

func TestNew_MissingRecords(t *testing.T) {
	var generated atomic.Int32
	srv := fakeOllama(t, &generated)
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	cfg.Data.UsersFile = filepath.Join(t.TempDir(), "missing.json")

	_, err := New(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestNew_EmptyCollection(t *testing.T) {
	var generated atomic.Int32
	srv := fakeOllama(t, &generated)
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	require.NoError(t, os.WriteFile(cfg.Data.ProductsFile, []byte(`[]`), 0o600))

	_, err := New(context.Background(), cfg, zap.NewNop())
	assert.ErrorIs(t, err, entity.ErrEmptyCollection)
}

func TestWarm(t *testing.T) {
	var generated atomic.Int32
	srv := fakeOllama(t, &generated)
	defer srv.Close()

	a, err := New(context.Background(), testConfig(t, srv.URL), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	a.Warm(context.Background())
	assert.EqualValues(t, 2, generated.Load())
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(config.ObservabilityConfig{LogLevel: "debug", LogFormat: "console"})
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = NewLogger(config.ObservabilityConfig{LogLevel: "loud", LogFormat: "json"})
	assert.Error(t, err)
}
