package normalisers

import (
	"context"
	"regexp"
	"strings"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

var (
	mdCodeBlock  = regexp.MustCompile("(?s)```[^`]*```")
	mdInlineCode = regexp.MustCompile("`[^`]+`")
	mdImage      = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	mdLink       = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	mdHeading    = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdEmphasis   = regexp.MustCompile(`(\*\*|__|\*)`)
	mdBlockquote = regexp.MustCompile(`(?m)^>\s*`)
	mdRule       = regexp.MustCompile(`(?m)^[-*_]{3,}\s*$`)
	mdBullet     = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	mdNumbered   = regexp.MustCompile(`(?m)^\s*\d+\.\s+`)
	mdBlankRuns  = regexp.MustCompile(`\n{3,}`)
)

// Markdown strips formatting and takes the first H1 as the title.
type Markdown struct{}

// NewMarkdown creates a markdown normaliser.
func NewMarkdown() *Markdown {
	return &Markdown{}
}

func (*Markdown) Name() string { return "markdown" }

func (*Markdown) Priority() int { return 50 }

func (*Markdown) MIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

func (*Markdown) Normalise(_ context.Context, doc domain.SourceDocument) (domain.SourceDocument, error) {
	if title := markdownTitle(doc.Content); title != "" {
		doc.Title = title
	} else if doc.Title == "" {
		doc.Title = titleFromURI(doc.URI)
	}
	doc.Content = stripMarkdown(doc.Content)
	return doc, nil
}

func markdownTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:])
		}
	}
	return ""
}

// stripMarkdown handles the common constructs only; it is not a parser.
func stripMarkdown(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = mdCodeBlock.ReplaceAllString(content, "")
	content = mdInlineCode.ReplaceAllString(content, "")
	content = mdImage.ReplaceAllString(content, "")
	content = mdLink.ReplaceAllString(content, "$1")
	content = mdHeading.ReplaceAllString(content, "")
	content = mdRule.ReplaceAllString(content, "")
	content = mdEmphasis.ReplaceAllString(content, "")
	content = mdBlockquote.ReplaceAllString(content, "")
	content = mdBullet.ReplaceAllString(content, "")
	content = mdNumbered.ReplaceAllString(content, "")
	content = mdBlankRuns.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}
