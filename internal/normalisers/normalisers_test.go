package normalisers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

func doc(mime, content string) domain.SourceDocument {
	return domain.SourceDocument{
		ID:       "file:///notes/release-notes_v2.md",
		URI:      "file:///notes/release-notes_v2.md",
		Content:  content,
		Metadata: map[string]string{MIMETypeKey: mime},
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r := NewDefaultRegistry()

	n, ok := r.Lookup("text/markdown")
	require.True(t, ok)
	assert.Equal(t, "markdown", n.Name())

	n, ok = r.Lookup(" TEXT/HTML ")
	require.True(t, ok)
	assert.Equal(t, "html", n.Name())

	n, ok = r.Lookup("text/x-go")
	require.True(t, ok)
	assert.Equal(t, "plaintext", n.Name())

	_, ok = r.Lookup("application/pdf")
	assert.False(t, ok)
}

type fixedNormaliser struct {
	name     string
	priority int
}

func (f fixedNormaliser) Name() string        { return f.name }
func (f fixedNormaliser) Priority() int       { return f.priority }
func (f fixedNormaliser) MIMETypes() []string { return []string{"text/plain"} }
func (f fixedNormaliser) Normalise(_ context.Context, d domain.SourceDocument) (domain.SourceDocument, error) {
	d.Content = f.name
	return d, nil
}

func TestRegistry_HighestPriorityWins(t *testing.T) {
	r := NewRegistry()
	r.Register(fixedNormaliser{name: "low", priority: 1})
	r.Register(fixedNormaliser{name: "high", priority: 9})
	r.Register(fixedNormaliser{name: "mid", priority: 4})

	out, err := r.Normalise(context.Background(), doc("text/plain", "x"))
	require.NoError(t, err)
	assert.Equal(t, "high", out.Content)
	assert.Equal(t, "high", out.Metadata["normaliser"])
}

func TestRegistry_PassesThroughUnknownTypes(t *testing.T) {
	r := NewDefaultRegistry()
	in := doc("application/octet-stream", "**raw**")

	out, err := r.Normalise(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	in.Metadata = nil
	out, err = r.Normalise(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "**raw**", out.Content)
}

func TestRegistry_DoesNotMutateInputMetadata(t *testing.T) {
	in := doc("text/plain", "x")
	_, err := NewDefaultRegistry().Normalise(context.Background(), in)
	require.NoError(t, err)
	assert.NotContains(t, in.Metadata, "normaliser")
}

func TestRegistry_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDefaultRegistry().Normalise(ctx, doc("text/plain", "x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMarkdown_Normalise(t *testing.T) {
	content := "# Release Notes\n\nSome **bold** and *italic* text with a [link](http://x.io).\n\n" +
		"![logo](logo.png)\n\n```\ncode()\n```\n\n- first\n- second\n1. one\n> quoted\n\n---\n"

	out, err := NewMarkdown().Normalise(context.Background(), doc("text/markdown", content))
	require.NoError(t, err)

	assert.Equal(t, "Release Notes", out.Title)
	assert.Contains(t, out.Content, "Some bold and italic text with a link.")
	assert.Contains(t, out.Content, "first\nsecond\none\nquoted")
	assert.NotContains(t, out.Content, "code()")
	assert.NotContains(t, out.Content, "logo")
	assert.NotContains(t, out.Content, "#")
	assert.NotContains(t, out.Content, "---")
}

func TestMarkdown_TitleFallsBackToURI(t *testing.T) {
	out, err := NewMarkdown().Normalise(context.Background(), doc("text/markdown", "no heading"))
	require.NoError(t, err)
	assert.Equal(t, "release notes v2", out.Title)
}

func TestMarkdown_KeepsConnectorTitle(t *testing.T) {
	in := doc("text/markdown", "no heading")
	in.Title = "From Connector"
	out, err := NewMarkdown().Normalise(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "From Connector", out.Title)
}

func TestHTML_Normalise(t *testing.T) {
	content := `<html><head><title>Q3 &amp; Q4 Plan</title><style>p{}</style></head>
<body><!-- hidden --><script>alert(1)</script>
<h1>Plan</h1><p>First   paragraph<br>continued</p><div>Caf&eacute;</div></body></html>`

	out, err := NewHTML().Normalise(context.Background(), doc("text/html", content))
	require.NoError(t, err)

	assert.Equal(t, "Q3 & Q4 Plan", out.Title)
	assert.Equal(t, "Plan\nFirst paragraph\ncontinued\nCafé", out.Content)
}

func TestHTML_TitleFallsBackToURI(t *testing.T) {
	out, err := NewHTML().Normalise(context.Background(), doc("text/html", "<p>hi</p>"))
	require.NoError(t, err)
	assert.Equal(t, "release notes v2", out.Title)
	assert.Equal(t, "hi", out.Content)
}

func TestPlaintext_Normalise(t *testing.T) {
	out, err := NewPlaintext().Normalise(context.Background(), doc("text/plain", "line one\r\nline two\r\n\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", out.Content)
	assert.Equal(t, "release notes v2", out.Title)
}
