package postprocessors

import (
	"github.com/custodia-labs/sercha-ingest/internal/postprocessors/chunker"
)

// DefaultStages is the pipeline used when none is configured.
var DefaultStages = []string{"chunker", "metadata"}

// RegisterDefaults registers all built-in processors with the registry.
func RegisterDefaults(r *Registry) {
	r.Register("chunker", buildChunker)
	r.Register("metadata", buildMetadata)
}

// NewDefaultPipeline builds the default stages with the given chunking settings.
func NewDefaultPipeline(chunkSize, overlap int) (*Pipeline, error) {
	r := NewRegistry()
	RegisterDefaults(r)
	return r.BuildPipeline(DefaultStages, map[string]any{
		"chunk_size": chunkSize,
		"overlap":    overlap,
	})
}

// buildChunker creates a chunker processor from generic config.
// Supported config keys:
//   - chunk_size (int): Characters per chunk
//   - overlap (int): Overlapping characters between chunks
func buildChunker(cfg map[string]any) (Processor, error) {
	var opts []chunker.Option

	if cfg != nil {
		if size, ok := getIntFromConfig(cfg, "chunk_size"); ok {
			opts = append(opts, chunker.WithChunkSize(size))
		}
		if overlap, ok := getIntFromConfig(cfg, "overlap"); ok {
			opts = append(opts, chunker.WithOverlap(overlap))
		}
	}

	return chunker.New(opts...), nil
}

func buildMetadata(_ map[string]any) (Processor, error) {
	return NewMetadataProcessor(), nil
}

// getIntFromConfig extracts an int from a generic config map.
// Handles the int, int64 and float64 types TOML and JSON decoding produce.
func getIntFromConfig(cfg map[string]any, key string) (int, bool) {
	val, ok := cfg[key]
	if !ok {
		return 0, false
	}

	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
