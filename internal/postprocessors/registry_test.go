package postprocessors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

func TestRegistry_RegisterAndBuild(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Has("mock"))

	r.Register("mock", func(_ map[string]any) (Processor, error) {
		return &mockProcessor{name: "mock"}, nil
	})
	assert.True(t, r.Has("mock"))

	p, err := r.Build("mock", nil)
	require.NoError(t, err)
	assert.Equal(t, "mock", p.Name())
}

func TestRegistry_BuildUnknown(t *testing.T) {
	_, err := NewRegistry().Build("nope", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRegistry_BuildPipelineUnknownStage(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)
	_, err := r.BuildPipeline([]string{"chunker", "nope"}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRegisterDefaults(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)
	assert.Equal(t, []string{"chunker", "metadata"}, r.Names())
}

func TestGetIntFromConfig(t *testing.T) {
	cfg := map[string]any{"a": 1, "b": int64(2), "c": float64(3), "d": "4"}

	tests := []struct {
		key  string
		want int
		ok   bool
	}{
		{"a", 1, true},
		{"b", 2, true},
		{"c", 3, true},
		{"d", 0, false},
		{"missing", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := getIntFromConfig(cfg, tt.key)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}
