package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm" validate:"required"`
	Pipeline PipelineConfig `mapstructure:"pipeline" validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// LLMConfig contains all generation-provider settings: the credential pool,
// the model fallback list, and retry behavior.
type LLMConfig struct {
	// APIKeys is the ordered list of provider API keys the credential pool
	// rotates through. At least one key is required.
	APIKeys []string `mapstructure:"api_keys" validate:"required,min=1"`

	// Models is the ordered list of model identifiers, tried in fallback order.
	Models []string `mapstructure:"models" validate:"required,min=1"`

	// EmbeddingModel is the model used for embedding calls.
	EmbeddingModel string `mapstructure:"embedding_model" validate:"required"`

	// MaxRetries bounds attempts for a single provider call chain.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0"`

	// InitialDelay is the base backoff delay between retries.
	InitialDelay time.Duration `mapstructure:"initial_delay"`

	// FailureResetWindow is how long key/model failure records are kept
	// before the pool clears them, modeling quota windows that reset.
	FailureResetWindow time.Duration `mapstructure:"failure_reset_window"`
}

// PipelineConfig contains document-pipeline settings.
type PipelineConfig struct {
	// PageChunkSize is the number of pages per chunk when splitting a PDF.
	PageChunkSize int `mapstructure:"page_chunk_size" validate:"required,gt=0"`

	// MaxFileBytes is the upload size ceiling.
	MaxFileBytes int64 `mapstructure:"max_file_bytes" validate:"required,gt=0"`

	// MaxPages is the page-count ceiling for an uploaded document.
	MaxPages int `mapstructure:"max_pages" validate:"required,gt=0"`

	// SimilarityTopK and SimilarityThreshold control narrow-search retrieval.
	SimilarityTopK      int     `mapstructure:"similarity_top_k" validate:"required,gt=0"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" validate:"gte=0,lte=1"`
}

// StorageConfig contains object-storage settings for uploaded source files.
type StorageConfig struct {
	Bucket string `mapstructure:"bucket" validate:"required"`
}
