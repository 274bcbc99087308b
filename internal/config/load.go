package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional config
// file. Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("llm.models", []string{"gemini-2.0-flash"})
	v.SetDefault("llm.embedding_model", "text-embedding-004")
	v.SetDefault("llm.max_retries", 5)
	v.SetDefault("llm.initial_delay", time.Second)
	v.SetDefault("llm.failure_reset_window", time.Minute)
	v.SetDefault("pipeline.page_chunk_size", 10)
	v.SetDefault("pipeline.max_file_bytes", 50*1024*1024)
	v.SetDefault("pipeline.max_pages", 500)
	v.SetDefault("pipeline.similarity_top_k", 15)
	v.SetDefault("pipeline.similarity_threshold", 0.7)

	// Optional config file, e.g. config.yaml in the working directory.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Missing file is fine; environment variables may supply everything.
	}

	// Environment variables with EXAMIO_ prefix, e.g. EXAMIO_DATABASE_URL.
	v.SetEnvPrefix("EXAMIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Comma-separated lists are accepted for env-supplied keys/models.
	cfg.LLM.APIKeys = splitList(cfg.LLM.APIKeys)
	cfg.LLM.Models = splitList(cfg.LLM.Models)

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// splitList expands any comma-separated entries and drops empty ones, so that
// EXAMIO_LLM_API_KEYS="k1,k2,k3" yields three keys.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, entry := range in {
		for _, part := range strings.Split(entry, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
