package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads a YAML config file, expands ${VAR} references against the
// process environment (after loading an optional .env file via godotenv,
// matching the teacher's loader.go env-expansion step), and merges it onto
// Default().
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: load env file: %w", err)
		}
	}

	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field invariants that YAML unmarshalling can't.
func (c *Config) Validate() error {
	if c.Executor.WorkerCount <= 0 {
		return fmt.Errorf("executor.worker_count must be positive")
	}
	if c.Executor.BackpressureK <= 0 {
		return fmt.Errorf("executor.backpressure_k must be positive")
	}
	if c.Retrieval.HybridAlpha < 0 || c.Retrieval.HybridAlpha > 1 {
		return fmt.Errorf("retrieval.hybrid_alpha must be in [0,1]")
	}
	if c.Storage.Driver != "memory" && c.Storage.Driver != "postgres" {
		return fmt.Errorf("storage.driver must be \"memory\" or \"postgres\"")
	}
	if c.Storage.Driver == "postgres" && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("storage.postgres_dsn is required when storage.driver=postgres")
	}
	return nil
}
