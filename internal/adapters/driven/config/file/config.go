package file

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// Storage backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config is the complete configuration surface.
type Config struct {
	Storage   StorageConfig   `toml:"storage" envPrefix:"STORAGE_"`
	Log       LogConfig       `toml:"log" envPrefix:"LOG_"`
	Indexing  IndexingConfig  `toml:"indexing" envPrefix:"INDEXING_"`
	Deletion  DeletionConfig  `toml:"deletion" envPrefix:"DELETION_"`
	Scheduler SchedulerConfig `toml:"scheduler" envPrefix:"SCHEDULER_"`
	Models    ModelConfig     `toml:"models" envPrefix:"MODELS_"`
}

// StorageConfig selects the relational backend.
type StorageConfig struct {
	Backend      string `toml:"backend" env:"BACKEND"`
	DataDir      string `toml:"data_dir" env:"DATA_DIR"`
	PostgresDSN  string `toml:"postgres_dsn" env:"POSTGRES_DSN"`
	MaxOpenConns int    `toml:"max_open_conns" env:"MAX_OPEN_CONNS"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Mode  string `toml:"mode" env:"MODE"`
	Level string `toml:"level" env:"LEVEL"`
}

// IndexingConfig configures the indexing runner and chunker.
type IndexingConfig struct {
	Stores       []string `toml:"stores" env:"STORES" envSeparator:","`
	Workers      int      `toml:"workers" env:"WORKERS"`
	ChunkSize    int      `toml:"chunk_size" env:"CHUNK_SIZE"`
	ChunkOverlap int      `toml:"chunk_overlap" env:"CHUNK_OVERLAP"`
}

// DeletionConfig throttles physical deletes.
type DeletionConfig struct {
	RatePerSecond float64 `toml:"rate_per_second" env:"RATE_PER_SECOND"`
	Burst         int     `toml:"burst" env:"BURST"`
}

// SchedulerConfig configures the refresh loop.
type SchedulerConfig struct {
	Enabled       bool     `toml:"enabled" env:"ENABLED"`
	TickInterval  Duration `toml:"tick_interval" env:"TICK_INTERVAL"`
	MaxConcurrent int      `toml:"max_concurrent" env:"MAX_CONCURRENT"`
}

// ModelConfig is passed through to the embedding side unchanged.
type ModelConfig struct {
	DocumentEncoderModel    string `toml:"document_encoder_model" env:"DOCUMENT_ENCODER_MODEL"`
	DocEmbeddingDim         int    `toml:"doc_embedding_dim" env:"DOC_EMBEDDING_DIM"`
	DocEmbeddingContextSize int    `toml:"doc_embedding_context_size" env:"DOC_EMBEDDING_CONTEXT_SIZE"`
	QueryMaxContextSize     int    `toml:"query_max_context_size" env:"QUERY_MAX_CONTEXT_SIZE"`
	BatchSizeEncodeChunks   int    `toml:"batch_size_encode_chunks" env:"BATCH_SIZE_ENCODE_CHUNKS"`
	InternalModelVersion    string `toml:"internal_model_version" env:"INTERNAL_MODEL_VERSION"`
}

// Duration is a time.Duration that reads and writes as "90s" or "5m".
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Backend:      BackendSQLite,
			MaxOpenConns: 10,
		},
		Log: LogConfig{
			Mode:  "development",
			Level: "info",
		},
		Indexing: IndexingConfig{
			Stores:       []string{string(domain.StoreVector), string(domain.StoreKeyword)},
			Workers:      4,
			ChunkSize:    512,
			ChunkOverlap: 64,
		},
		Deletion: DeletionConfig{
			RatePerSecond: 50,
			Burst:         10,
		},
		Scheduler: SchedulerConfig{
			Enabled:       true,
			TickInterval:  Duration{10 * time.Second},
			MaxConcurrent: 2,
		},
		Models: ModelConfig{
			DocumentEncoderModel:    "sentence-transformers/all-distilroberta-v1",
			DocEmbeddingDim:         768,
			DocEmbeddingContextSize: 512,
			QueryMaxContextSize:     256,
			BatchSizeEncodeChunks:   8,
			InternalModelVersion:    "openai-chat-completion",
		},
	}
}

// StoreTypes parses the configured store list.
func (c *Config) StoreTypes() ([]domain.StoreType, error) {
	seen := make(map[domain.StoreType]bool)
	out := make([]domain.StoreType, 0, len(c.Indexing.Stores))
	for _, s := range c.Indexing.Stores {
		st, err := domain.ParseStoreType(s)
		if err != nil {
			return nil, err
		}
		if !seen[st] {
			seen[st] = true
			out = append(out, st)
		}
	}
	return out, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Backend {
	case BackendSQLite:
	case BackendPostgres:
		if strings.TrimSpace(c.Storage.PostgresDSN) == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q must be sqlite or postgres", c.Storage.Backend))
	}

	stores, err := c.StoreTypes()
	if err != nil {
		errs = append(errs, fmt.Errorf("indexing.stores: %w", err))
	} else if len(stores) == 0 {
		errs = append(errs, errors.New("indexing.stores must name at least one store"))
	}
	if c.Indexing.Workers < 1 {
		errs = append(errs, errors.New("indexing.workers must be at least 1"))
	}
	if c.Indexing.ChunkSize < 1 {
		errs = append(errs, errors.New("indexing.chunk_size must be positive"))
	}
	if c.Indexing.ChunkOverlap < 0 || c.Indexing.ChunkOverlap >= c.Indexing.ChunkSize {
		errs = append(errs, errors.New("indexing.chunk_overlap must be in [0, chunk_size)"))
	}
	if c.Deletion.RatePerSecond <= 0 {
		errs = append(errs, errors.New("deletion.rate_per_second must be positive"))
	}
	if c.Deletion.Burst < 1 {
		errs = append(errs, errors.New("deletion.burst must be at least 1"))
	}
	if c.Scheduler.TickInterval.Duration <= 0 {
		errs = append(errs, errors.New("scheduler.tick_interval must be positive"))
	}
	if c.Scheduler.MaxConcurrent < 1 {
		errs = append(errs, errors.New("scheduler.max_concurrent must be at least 1"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, errors.Join(errs...))
	}
	return nil
}
