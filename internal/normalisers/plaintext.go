package normalisers

import (
	"context"
	"strings"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// Plaintext is the fallback for text formats that need no rewriting beyond
// line ending cleanup.
type Plaintext struct{}

// NewPlaintext creates a plaintext normaliser.
func NewPlaintext() *Plaintext {
	return &Plaintext{}
}

func (*Plaintext) Name() string { return "plaintext" }

func (*Plaintext) Priority() int { return 5 }

func (*Plaintext) MIMETypes() []string {
	return []string{
		"text/plain",
		"text/x-go",
		"text/x-python",
		"text/x-rust",
		"text/x-java",
		"text/x-c",
		"text/x-c++",
		"text/x-ruby",
		"text/x-shellscript",
		"text/x-sql",
		"text/csv",
		"text/yaml",
		"text/toml",
		"text/javascript",
		"text/typescript",
		"text/css",
		"application/json",
		"application/xml",
	}
}

func (*Plaintext) Normalise(_ context.Context, doc domain.SourceDocument) (domain.SourceDocument, error) {
	doc.Content = strings.ReplaceAll(doc.Content, "\r\n", "\n")
	doc.Content = strings.TrimRight(doc.Content, "\n")
	if doc.Title == "" {
		doc.Title = titleFromURI(doc.URI)
	}
	return doc, nil
}
