// Package config loads and validates service configuration from a YAML
// file plus environment overrides, grounded on the teacher's
// internal/config package (typed sub-configs, $-env expansion, a Load
// entrypoint) but re-scoped to the task engine / turn driver / retrieval
// pipeline instead of chat-channel configuration.
package config

import "time"

// Config is the root configuration for the service.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	LLM         LLMConfig         `yaml:"llm"`
	Storage     StorageConfig     `yaml:"storage"`
	Executor    ExecutorConfig    `yaml:"executor"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig configures the HTTP/gRPC-adjacent surface (health, metrics).
type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr"`
	MetricsAddr     string        `yaml:"metrics_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig configures the task/conversation/usage persistence layer.
type StorageConfig struct {
	Driver      string `yaml:"driver"` // "memory" or "postgres"
	PostgresDSN string `yaml:"postgres_dsn"`
	RedisAddr   string `yaml:"redis_addr"`
}

// ExecutorConfig tunes the task scheduler (§4.2).
type ExecutorConfig struct {
	WorkerCount       int           `yaml:"worker_count"`
	BackpressureK     int           `yaml:"backpressure_k"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	DefaultMaxRetries int           `yaml:"default_max_retries"`
}

// RetrievalConfig tunes the hybrid retrieval pipeline (§4.7).
type RetrievalConfig struct {
	QdrantAddr      string  `yaml:"qdrant_addr"`
	Collection      string  `yaml:"collection"`
	HybridAlpha     float64 `yaml:"hybrid_alpha"`
	VectorTopK      int     `yaml:"vector_top_k"`
	KeywordTopK     int     `yaml:"keyword_top_k"`
	ContextBudget   int     `yaml:"context_budget_tokens"`
}

// ObservabilityConfig configures logging, metrics, and tracing.
type ObservabilityConfig struct {
	LogLevel    string  `yaml:"log_level"`
	LogFormat   string  `yaml:"log_format"`
	TraceSample float64 `yaml:"trace_sample_ratio"`
}

// Default returns a Config with sane defaults, mirroring the teacher's
// per-section Default*Config constructors collapsed into one entrypoint.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			MetricsAddr:     ":9090",
			ShutdownTimeout: 10 * time.Second,
		},
		LLM: LLMConfig{
			DefaultProvider: "anthropic",
			FallbackChain:   []string{"openai", "bedrock"},
		},
		Storage: StorageConfig{
			Driver: "memory",
		},
		Executor: ExecutorConfig{
			WorkerCount:       8,
			BackpressureK:     8,
			PollInterval:      200 * time.Millisecond,
			DefaultMaxRetries: 3,
		},
		Retrieval: RetrievalConfig{
			Collection:    "knowledge",
			HybridAlpha:   0.5,
			VectorTopK:    20,
			KeywordTopK:   20,
			ContextBudget: 4000,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			TraceSample: 1.0,
		},
	}
}
