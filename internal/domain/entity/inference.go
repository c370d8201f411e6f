package entity

import "time"

// SamplingConfig controls stochastic decoding for one generation call.
type SamplingConfig struct {
	MaxNewTokens int     `json:"max_new_tokens" yaml:"max_new_tokens"`
	Temperature  float32 `json:"temperature" yaml:"temperature"`
	TopK         int     `json:"top_k" yaml:"top_k"`
	TopP         float32 `json:"top_p" yaml:"top_p"`
}

// Normalize replaces out-of-range values with the ones from defaults so a
// malformed request never reaches a model.
func (c SamplingConfig) Normalize(defaults SamplingConfig) SamplingConfig {
	out := c
	if out.MaxNewTokens <= 0 {
		out.MaxNewTokens = defaults.MaxNewTokens
	}
	if out.Temperature < 0 {
		out.Temperature = defaults.Temperature
	}
	if out.TopK <= 0 {
		out.TopK = defaults.TopK
	}
	if out.TopP <= 0 || out.TopP > 1 {
		out.TopP = defaults.TopP
	}
	return out
}

// Completion is the continuation produced by a Generator.
type Completion struct {
	Text         string         `json:"text"`
	Model        string         `json:"model"`
	PromptTokens int            `json:"prompt_tokens"`
	OutputTokens int            `json:"output_tokens"`
	Latency      time.Duration  `json:"latency"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Reply is what a chat turn returns to the caller.
type Reply struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text"`
}

// ChatMessage is one turn of the caller-owned transcript.
type ChatMessage struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
