package connectors

import (
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-ingest/internal/connectors/filesystem"
	"github.com/custodia-labs/sercha-ingest/internal/connectors/github"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Ensure Factory implements the interface.
var _ driven.ConnectorFactory = (*Factory)(nil)

// Factory resolves drivers by document source.
type Factory struct {
	mu      sync.RWMutex
	drivers map[domain.DocumentSource]driven.Connector
}

// NewFactory creates a factory holding the given drivers.
func NewFactory(drivers ...driven.Connector) *Factory {
	f := &Factory{drivers: make(map[domain.DocumentSource]driven.Connector)}
	for _, d := range drivers {
		f.Register(d)
	}
	return f
}

// NewDefaultFactory registers the built-in drivers.
func NewDefaultFactory() *Factory {
	return NewFactory(filesystem.New(), github.New())
}

// Register adds or replaces the driver for its source.
func (f *Factory) Register(d driven.Connector) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drivers[d.Source()] = d
}

// Driver returns the driver for source.
func (f *Factory) Driver(source domain.DocumentSource) (driven.Connector, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	d, ok := f.drivers[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedSource, source)
	}
	return d, nil
}

// Sources lists the sources that have a driver, sorted.
func (f *Factory) Sources() []domain.DocumentSource {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]domain.DocumentSource, 0, len(f.drivers))
	for s := range f.drivers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
