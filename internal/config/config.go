package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ecom-support/internal/domain/dialogue"
	"ecom-support/internal/domain/entity"
)

// Config is the complete application configuration.
type Config struct {
	Environment   string              `yaml:"environment"`
	Version       string              `yaml:"version"`
	Server        ServerConfig        `yaml:"server"`
	Data          DataConfig          `yaml:"data"`
	Embedder      EmbedderConfig      `yaml:"embedder"`
	Models        ModelsConfig        `yaml:"models"`
	VectorStore   VectorStoreConfig   `yaml:"vector_store"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Sampling      SamplingConfig      `yaml:"sampling"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

// DataConfig points at the two record files loaded at startup.
type DataConfig struct {
	ProductsFile string `yaml:"products_file"`
	UsersFile    string `yaml:"users_file"`
}

// EmbedderConfig selects the sentence-embedding backend: "ollama" or "genai".
type EmbedderConfig struct {
	Type       string `yaml:"type"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"` // genai only, 0 keeps the native size
}

// ModelsConfig describes the two tuned generators and the optional hosted
// fallback.
type ModelsConfig struct {
	OllamaURL        string        `yaml:"ollama_url"`
	ProductModel     string        `yaml:"product_model"`
	UserModel        string        `yaml:"user_model"`
	MaxContextTokens int           `yaml:"max_context_tokens"`
	Timeout          time.Duration `yaml:"timeout"`
	FallbackModel    string        `yaml:"fallback_model"`
	PromptLayout     string        `yaml:"prompt_layout"` // shared or schema
	Google           GoogleConfig  `yaml:"google"`
}

// GoogleConfig configures the genai client. With a project set the Vertex AI
// backend is used, otherwise the Gemini API with APIKey.
type GoogleConfig struct {
	Project  string `yaml:"project"`
	Location string `yaml:"location"`
	APIKey   string `yaml:"api_key"`
}

// VectorStoreConfig selects "memory" or "qdrant".
type VectorStoreConfig struct {
	Type             string `yaml:"type"`
	QdrantHost       string `yaml:"qdrant_host"`
	QdrantPort       int    `yaml:"qdrant_port"`
	QdrantAPIKey     string `yaml:"qdrant_api_key"`
	CollectionPrefix string `yaml:"collection_prefix"`
}

// RateLimitConfig enables per-client limiting when RedisAddr is set.
type RateLimitConfig struct {
	RedisAddr string        `yaml:"redis_addr"`
	Requests  int           `yaml:"requests"`
	Window    time.Duration `yaml:"window"`
}

// SamplingConfig holds the per-mode sampling presets.
type SamplingConfig struct {
	Product entity.SamplingConfig `yaml:"product"`
	User    entity.SamplingConfig `yaml:"user"`
}

type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // json or console
}

// New loads .env, then the optional YAML file named by CONFIG_FILE, then
// lets environment variables override both.
func New() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Environment: "development",
		Version:     "dev",
		Server:      ServerConfig{Port: "8080"},
		Data: DataConfig{
			ProductsFile: "assets/products.json",
			UsersFile:    "assets/user.json",
		},
		Embedder: EmbedderConfig{Type: "ollama"},
		Models: ModelsConfig{
			OllamaURL:        "http://localhost:11434",
			ProductModel:     "ecom_bot_prod",
			UserModel:        "ecom_bot_user",
			MaxContextTokens: 1024,
			Timeout:          120 * time.Second,
			PromptLayout:     "shared",
		},
		VectorStore: VectorStoreConfig{
			Type:             "memory",
			QdrantHost:       "localhost",
			QdrantPort:       6334,
			CollectionPrefix: "ecom_support",
		},
		RateLimit: RateLimitConfig{Requests: 30, Window: time.Minute},
		Sampling: SamplingConfig{
			Product: entity.SamplingConfig{MaxNewTokens: 256, Temperature: 0.3, TopK: 50, TopP: 1.0},
			User:    entity.SamplingConfig{MaxNewTokens: 256, Temperature: 0.2, TopK: 20, TopP: 1.0},
		},
		Observability: ObservabilityConfig{LogLevel: "info", LogFormat: "json"},
	}
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.Version = getEnv("APP_VERSION", cfg.Version)
	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)

	cfg.Data.ProductsFile = getEnv("PRODUCTS_FILE", cfg.Data.ProductsFile)
	cfg.Data.UsersFile = getEnv("USERS_FILE", cfg.Data.UsersFile)

	cfg.Embedder.Type = getEnv("EMBEDDER", cfg.Embedder.Type)
	cfg.Embedder.Model = getEnv("EMBED_MODEL", cfg.Embedder.Model)
	cfg.Embedder.Dimensions = getEnvAsInt("EMBED_DIMENSIONS", cfg.Embedder.Dimensions)
	if cfg.Embedder.Model == "" {
		cfg.Embedder.Model = defaultEmbedModel(cfg.Embedder.Type)
	}

	m := &cfg.Models
	m.OllamaURL = getEnv("OLLAMA_URL", m.OllamaURL)
	m.ProductModel = getEnv("PRODUCT_MODEL", m.ProductModel)
	m.UserModel = getEnv("USER_MODEL", m.UserModel)
	m.MaxContextTokens = getEnvAsInt("MAX_CONTEXT_TOKENS", m.MaxContextTokens)
	m.Timeout = getEnvAsDuration("GENERATION_TIMEOUT", m.Timeout)
	m.FallbackModel = getEnv("FALLBACK_MODEL", m.FallbackModel)
	m.PromptLayout = getEnv("PROMPT_LAYOUT", m.PromptLayout)
	m.Google.Project = getEnv("GOOGLE_CLOUD_PROJECT", m.Google.Project)
	m.Google.Location = getEnv("GOOGLE_CLOUD_LOCATION", m.Google.Location)
	m.Google.APIKey = getEnv("GOOGLE_API_KEY", m.Google.APIKey)

	vs := &cfg.VectorStore
	vs.Type = getEnv("VECTOR_STORE", vs.Type)
	vs.QdrantHost = getEnv("QDRANT_HOST", vs.QdrantHost)
	vs.QdrantPort = getEnvAsInt("QDRANT_PORT", vs.QdrantPort)
	vs.QdrantAPIKey = getEnv("QDRANT_API_KEY", vs.QdrantAPIKey)
	vs.CollectionPrefix = getEnv("QDRANT_COLLECTION_PREFIX", vs.CollectionPrefix)

	cfg.RateLimit.RedisAddr = getEnv("REDIS_ADDR", cfg.RateLimit.RedisAddr)
	cfg.RateLimit.Requests = getEnvAsInt("RATE_LIMIT_REQUESTS", cfg.RateLimit.Requests)
	cfg.RateLimit.Window = getEnvAsDuration("RATE_LIMIT_WINDOW", cfg.RateLimit.Window)

	cfg.Sampling.Product = samplingFromEnv("PRODUCT", cfg.Sampling.Product)
	cfg.Sampling.User = samplingFromEnv("USER", cfg.Sampling.User)

	cfg.Observability.LogLevel = getEnv("LOG_LEVEL", cfg.Observability.LogLevel)
	cfg.Observability.LogFormat = getEnv("LOG_FORMAT", cfg.Observability.LogFormat)
}

func samplingFromEnv(prefix string, def entity.SamplingConfig) entity.SamplingConfig {
	return entity.SamplingConfig{
		MaxNewTokens: getEnvAsInt(prefix+"_MAX_NEW_TOKENS", def.MaxNewTokens),
		Temperature:  float32(getEnvAsFloat(prefix+"_TEMPERATURE", float64(def.Temperature))),
		TopK:         getEnvAsInt(prefix+"_TOP_K", def.TopK),
		TopP:         float32(getEnvAsFloat(prefix+"_TOP_P", float64(def.TopP))),
	}
}

func defaultEmbedModel(embedder string) string {
	if embedder == "genai" {
		return "text-embedding-004"
	}
	return "all-minilm"
}

// Validate checks that the selected backends are known and their required
// settings are present.
func (c *Config) Validate() error {
	if c.Data.ProductsFile == "" || c.Data.UsersFile == "" {
		return errors.New("both PRODUCTS_FILE and USERS_FILE are required")
	}
	switch c.Embedder.Type {
	case "ollama":
	case "genai":
		if !c.Models.Google.Configured() {
			return errors.New("genai embedder requires GOOGLE_CLOUD_PROJECT or GOOGLE_API_KEY")
		}
	default:
		return fmt.Errorf("unknown embedder %q", c.Embedder.Type)
	}
	if c.Models.ProductModel == "" || c.Models.UserModel == "" {
		return errors.New("PRODUCT_MODEL and USER_MODEL are required")
	}
	if _, err := dialogue.ParseLayout(c.Models.PromptLayout); err != nil {
		return err
	}
	if c.Models.FallbackModel != "" && !c.Models.Google.Configured() {
		return errors.New("FALLBACK_MODEL requires GOOGLE_CLOUD_PROJECT or GOOGLE_API_KEY")
	}
	switch c.VectorStore.Type {
	case "memory":
	case "qdrant":
		if c.VectorStore.QdrantHost == "" {
			return errors.New("qdrant vector store requires QDRANT_HOST")
		}
	default:
		return fmt.Errorf("unknown vector store %q", c.VectorStore.Type)
	}
	if c.Observability.LogLevel == "" {
		return errors.New("log level is required")
	}
	return nil
}

// Configured reports whether enough is set to build a genai client.
func (g GoogleConfig) Configured() bool {
	return g.Project != "" || g.APIKey != ""
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
