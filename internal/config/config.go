package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	LLM       LLMConfig       `toml:"llm"`
	Expansion LLMConfig       `toml:"expansion"`
	Router    LLMConfig       `toml:"router"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Reranker  RerankerConfig  `toml:"reranker"`
	Database  DatabaseConfig  `toml:"database"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Chunking  ChunkingConfig  `toml:"chunking"`
	Observer  ObserverConfig  `toml:"observer"`
}

// LLMConfig points at one OpenAI-compatible chat endpoint. The [expansion]
// and [router] sections reuse the [llm] values for anything left unset, so a
// single endpoint configuration covers all three roles.
type LLMConfig struct {
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
	APIKey  string `toml:"api_key"`
	RPM     int    `toml:"rpm"` // 0 = no client-side rate limit
	TPM     int    `toml:"tpm"`
}

type EmbeddingConfig struct {
	BaseURL    string `toml:"base_url"`
	Model      string `toml:"model"`
	APIKey     string `toml:"api_key"`
	Dimensions int    `toml:"dimensions"`
	RPM        int    `toml:"rpm"`
}

type RerankerConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

type DatabaseConfig struct {
	Driver      string `toml:"driver"` // "sqlite" or "postgres"
	Path        string `toml:"path"`
	PostgresURL string `toml:"postgres_url"`
}

type RetrievalConfig struct {
	PerQueryTopK  int     `toml:"per_query_top_k"`
	RerankTopN    int     `toml:"rerank_top_n"`
	MaxVariants   int     `toml:"max_variants"`
	GateThreshold float64 `toml:"gate_threshold"`
	HistoryLimit  int     `toml:"history_limit"`
}

type ChunkingConfig struct {
	FineChunkSize    int `toml:"fine_chunk_size"`
	OverlapSentences int `toml:"overlap_sentences"`
	CoarseTarget     int `toml:"coarse_target"`
	CoarseOverlap    int `toml:"coarse_overlap"`
}

type ObserverConfig struct {
	Enabled bool                       `toml:"enabled"`
	Pricing map[string]ObserverPricing `toml:"pricing"`
}

type ObserverPricing struct {
	Input  float64 `toml:"input"`
	Output float64 `toml:"output"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		LLM:       LLMConfig{BaseURL: "https://api.openai.com/v1", Model: "gpt-4o-mini"},
		Embedding: EmbeddingConfig{BaseURL: "https://api.openai.com/v1", Model: "text-embedding-3-small", Dimensions: 1536},
		Reranker:  RerankerConfig{BaseURL: "http://localhost:8080"},
		Database:  DatabaseConfig{Driver: "sqlite", Path: "paperbase.db"},
		Retrieval: RetrievalConfig{PerQueryTopK: 5, RerankTopN: 3, MaxVariants: 3, GateThreshold: -2.0, HistoryLimit: 6},
		Chunking:  ChunkingConfig{FineChunkSize: 256, OverlapSentences: 2, CoarseTarget: 1024, CoarseOverlap: 128},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "paperbase.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	// Env overrides
	if v := os.Getenv("PAPERBASE_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("PAPERBASE_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("PAPERBASE_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("PAPERBASE_EMBEDDING_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("PAPERBASE_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("PAPERBASE_RERANKER_BASE_URL"); v != "" {
		cfg.Reranker.BaseURL = v
	}
	if v := os.Getenv("PAPERBASE_RERANKER_API_KEY"); v != "" {
		cfg.Reranker.APIKey = v
	}
	if v := os.Getenv("PAPERBASE_POSTGRES_URL"); v != "" {
		cfg.Database.Driver = "postgres"
		cfg.Database.PostgresURL = v
	}
	if os.Getenv("PAPERBASE_OBSERVER_ENABLED") == "true" || os.Getenv("PAPERBASE_OBSERVER_ENABLED") == "1" {
		cfg.Observer.Enabled = true
	}

	// Fallbacks: expansion and router ride the chat endpoint unless
	// pointed elsewhere.
	if cfg.Expansion.BaseURL == "" {
		cfg.Expansion.BaseURL = cfg.LLM.BaseURL
	}
	if cfg.Expansion.Model == "" {
		cfg.Expansion.Model = cfg.LLM.Model
	}
	if cfg.Expansion.APIKey == "" {
		cfg.Expansion.APIKey = cfg.LLM.APIKey
	}
	if cfg.Router.BaseURL == "" {
		cfg.Router.BaseURL = cfg.LLM.BaseURL
	}
	if cfg.Router.Model == "" {
		cfg.Router.Model = cfg.LLM.Model
	}
	if cfg.Router.APIKey == "" {
		cfg.Router.APIKey = cfg.LLM.APIKey
	}

	return cfg
}

// Validate reports fatal configuration problems. A missing credential for a
// required collaborator fails startup instead of surfacing mid-request.
func (c Config) Validate() error {
	if c.LLM.Model == "" {
		return fmt.Errorf("config: llm.model is required")
	}
	if c.LLM.APIKey == "" && c.LLM.BaseURL == "https://api.openai.com/v1" {
		return fmt.Errorf("config: llm.api_key is required for the hosted OpenAI endpoint (set PAPERBASE_LLM_API_KEY)")
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("config: embedding.model is required")
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("config: embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Reranker.BaseURL == "" {
		return fmt.Errorf("config: reranker.base_url is required")
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("config: database.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.PostgresURL == "" {
			return fmt.Errorf("config: database.postgres_url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown database.driver %q (want sqlite or postgres)", c.Database.Driver)
	}
	if c.Retrieval.PerQueryTopK <= 0 || c.Retrieval.RerankTopN <= 0 {
		return fmt.Errorf("config: retrieval.per_query_top_k and retrieval.rerank_top_n must be positive")
	}
	if c.Chunking.FineChunkSize <= 0 || c.Chunking.CoarseTarget <= 0 {
		return fmt.Errorf("config: chunking sizes must be positive")
	}
	return nil
}
