// Package memory provides an in-memory document index per store type.
//
// It stands in for a vector or keyword store driver. Failures can be
// injected per chunk so callers can exercise partial-deletion paths.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

var _ driven.DocumentIndex = (*Index)(nil)

// ErrInjected is returned for chunk ids registered with FailWrites or FailDeletes.
var ErrInjected = errors.New("memory index: injected failure")

// Index holds chunk payloads for one store type.
type Index struct {
	storeType domain.StoreType

	mu          sync.RWMutex
	chunks      map[string]domain.ChunkPayload
	failWrites  map[string]bool
	failDeletes map[string]bool
}

// New creates an empty index for storeType.
func New(storeType domain.StoreType) *Index {
	return &Index{
		storeType:   storeType,
		chunks:      make(map[string]domain.ChunkPayload),
		failWrites:  make(map[string]bool),
		failDeletes: make(map[string]bool),
	}
}

// NewSet creates one index per store type.
func NewSet(types ...domain.StoreType) []driven.DocumentIndex {
	out := make([]driven.DocumentIndex, 0, len(types))
	for _, t := range types {
		out = append(out, New(t))
	}
	return out
}

// StoreType returns the store type this index serves.
func (i *Index) StoreType() domain.StoreType {
	return i.storeType
}

// Write stores or replaces a chunk payload.
func (i *Index) Write(ctx context.Context, chunk domain.ChunkPayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.failWrites[chunk.ID] {
		return fmt.Errorf("write %s: %w", chunk.ID, ErrInjected)
	}
	chunk.Metadata = cloneMetadata(chunk.Metadata)
	i.chunks[chunk.ID] = chunk
	return nil
}

// Delete removes a chunk. Deleting an absent chunk succeeds.
func (i *Index) Delete(ctx context.Context, chunkID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.failDeletes[chunkID] {
		return fmt.Errorf("delete %s: %w", chunkID, ErrInjected)
	}
	delete(i.chunks, chunkID)
	return nil
}

// FailWrites makes writes of the given chunk ids fail until Heal.
func (i *Index) FailWrites(ids ...string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, id := range ids {
		i.failWrites[id] = true
	}
}

// FailDeletes makes deletes of the given chunk ids fail until Heal.
func (i *Index) FailDeletes(ids ...string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, id := range ids {
		i.failDeletes[id] = true
	}
}

// Heal clears every injected failure.
func (i *Index) Heal() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.failWrites = make(map[string]bool)
	i.failDeletes = make(map[string]bool)
}

// Get returns a stored chunk.
func (i *Index) Get(chunkID string) (domain.ChunkPayload, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	c, ok := i.chunks[chunkID]
	if ok {
		c.Metadata = cloneMetadata(c.Metadata)
	}
	return c, ok
}

// IDs returns the stored chunk ids, sorted.
func (i *Index) IDs() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	ids := make([]string, 0, len(i.chunks))
	for id := range i.chunks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of stored chunks.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.chunks)
}

func cloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
