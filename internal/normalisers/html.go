package normalisers

import (
	"context"
	"html"
	"regexp"
	"strings"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

var (
	htmlTitle    = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	htmlDropped  = regexp.MustCompile(`(?is)<(script|style|noscript|head|svg)\b[^>]*>.*?</(script|style|noscript|head|svg)>`)
	htmlComment  = regexp.MustCompile(`(?s)<!--.*?-->`)
	htmlBlock    = regexp.MustCompile(`(?i)</?(p|div|section|article|header|footer|nav|aside|main|h[1-6]|li|ul|ol|table|tr|blockquote|pre)\b[^>]*>`)
	htmlBreak    = regexp.MustCompile(`(?i)<(br|hr)\s*/?>`)
	htmlTag      = regexp.MustCompile(`<[^>]+>`)
	htmlSpaceRun = regexp.MustCompile(`[ \t]+`)
)

// HTML extracts readable text and the <title>.
type HTML struct{}

// NewHTML creates an HTML normaliser.
func NewHTML() *HTML {
	return &HTML{}
}

func (*HTML) Name() string { return "html" }

func (*HTML) Priority() int { return 50 }

func (*HTML) MIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

func (*HTML) Normalise(_ context.Context, doc domain.SourceDocument) (domain.SourceDocument, error) {
	if m := htmlTitle.FindStringSubmatch(doc.Content); len(m) > 1 {
		if title := strings.TrimSpace(html.UnescapeString(m[1])); title != "" {
			doc.Title = title
		}
	}
	if doc.Title == "" {
		doc.Title = titleFromURI(doc.URI)
	}
	doc.Content = stripHTML(doc.Content)
	return doc, nil
}

func stripHTML(content string) string {
	content = htmlDropped.ReplaceAllString(content, "")
	content = htmlComment.ReplaceAllString(content, "")
	content = htmlBlock.ReplaceAllString(content, "\n")
	content = htmlBreak.ReplaceAllString(content, "\n")
	content = htmlTag.ReplaceAllString(content, "")
	content = html.UnescapeString(content)
	content = htmlSpaceRun.ReplaceAllString(content, " ")

	lines := strings.Split(content, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
