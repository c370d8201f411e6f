package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ecom-support/internal/domain/entity"
)

const defaultOllamaURL = "http://localhost:11434"

// OllamaGenerator serves a tuned causal model through Ollama. Prompts are
// sent in raw mode so no chat template is applied on top of ours, and the
// marker tokens come back verbatim in the continuation.
type OllamaGenerator struct {
	baseURL    string
	model      string
	contextLen int
	client     *http.Client
}

func NewOllamaGenerator(baseURL, model string, contextLen int, timeout time.Duration) *OllamaGenerator {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &OllamaGenerator{
		baseURL:    baseURL,
		model:      model,
		contextLen: contextLen,
		client:     &http.Client{Timeout: timeout},
	}
}

type ollamaOptions struct {
	Temperature float32 `json:"temperature"`
	TopK        int     `json:"top_k"`
	TopP        float32 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
	NumCtx      int     `json:"num_ctx,omitempty"`
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Raw     bool          `json:"raw"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaGenerateResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func (a *OllamaGenerator) Generate(ctx context.Context, prompt string, cfg entity.SamplingConfig) (*entity.Completion, error) {
	start := time.Now()
	reqBody := ollamaGenerateRequest{
		Model:  a.model,
		Prompt: prompt,
		Raw:    true,
		Stream: false,
		Options: ollamaOptions{
			Temperature: cfg.Temperature,
			TopK:        cfg.TopK,
			TopP:        cfg.TopP,
			NumPredict:  cfg.MaxNewTokens,
			NumCtx:      a.contextLen,
		},
	}

	var genResp ollamaGenerateResponse
	if err := a.post(ctx, "/api/generate", reqBody, &genResp); err != nil {
		return nil, err
	}

	return &entity.Completion{
		Text:         genResp.Response,
		Model:        a.model,
		PromptTokens: genResp.PromptEvalCount,
		OutputTokens: genResp.EvalCount,
		Latency:      time.Since(start),
	}, nil
}

func (a *OllamaGenerator) post(ctx context.Context, path string, body, out any) error {
	return postJSON(ctx, a.client, a.baseURL+path, body, out)
}

// OllamaEmbedder produces sentence embeddings with a local Ollama model.
type OllamaEmbedder struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewOllamaEmbedder(baseURL, model string) *OllamaEmbedder {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if model == "" {
		model = "all-minilm"
	}
	return &OllamaEmbedder{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (a *OllamaEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	var embedResp ollamaEmbedResponse
	err := postJSON(ctx, a.client, a.baseURL+"/api/embeddings", ollamaEmbedRequest{Model: a.model, Prompt: text}, &embedResp)
	if err != nil {
		return nil, err
	}
	if len(embedResp.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned an empty embedding for model %s", a.model)
	}
	return embedResp.Embedding, nil
}

func postJSON(ctx context.Context, client *http.Client, url string, body, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("calling Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
