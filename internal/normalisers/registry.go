package normalisers

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// MIMETypeKey is the metadata key a connector sets to select a normaliser.
const MIMETypeKey = "mime_type"

// Normaliser converts one document's content into plain text.
type Normaliser interface {
	// Name identifies the normaliser in metadata and logs.
	Name() string

	// MIMETypes lists the MIME types this normaliser accepts.
	MIMETypes() []string

	// Priority breaks ties when several normalisers accept a type. Higher wins.
	Priority() int

	// Normalise returns doc with Content (and possibly Title) rewritten.
	Normalise(ctx context.Context, doc domain.SourceDocument) (domain.SourceDocument, error)
}

// Registry selects a normaliser by MIME type.
type Registry struct {
	mu     sync.RWMutex
	byType map[string][]Normaliser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byType: make(map[string][]Normaliser)}
}

// NewDefaultRegistry registers the built-in normalisers.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewPlaintext())
	r.Register(NewMarkdown())
	r.Register(NewHTML())
	return r
}

// Register adds n for each of its MIME types.
func (r *Registry) Register(n Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range n.MIMETypes() {
		t = strings.ToLower(t)
		list := append(r.byType[t], n)
		sort.SliceStable(list, func(i, j int) bool { return list[i].Priority() > list[j].Priority() })
		r.byType[t] = list
	}
}

// Lookup returns the highest priority normaliser for mimeType.
func (r *Registry) Lookup(mimeType string) (Normaliser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.byType[strings.ToLower(strings.TrimSpace(mimeType))]
	if len(list) == 0 {
		return nil, false
	}
	return list[0], true
}

// Normalise runs the matching normaliser. Documents without a MIME type or
// with one no normaliser accepts pass through unchanged.
func (r *Registry) Normalise(ctx context.Context, doc domain.SourceDocument) (domain.SourceDocument, error) {
	if err := ctx.Err(); err != nil {
		return doc, err
	}
	n, ok := r.Lookup(doc.Metadata[MIMETypeKey])
	if !ok {
		return doc, nil
	}
	out, err := n.Normalise(ctx, doc)
	if err != nil {
		return doc, err
	}
	out.Metadata = withMetadata(out.Metadata, "normaliser", n.Name())
	return out, nil
}

func withMetadata(src map[string]string, key, value string) map[string]string {
	dst := make(map[string]string, len(src)+1)
	for k, v := range src {
		dst[k] = v
	}
	dst[key] = value
	return dst
}

// titleFromURI makes "release-notes_v2.md" read as "release notes v2".
func titleFromURI(uri string) string {
	name := filepath.Base(uri)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ReplaceAll(name, "_", " ")
	return strings.ReplaceAll(name, "-", " ")
}
