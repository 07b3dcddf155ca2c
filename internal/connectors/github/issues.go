package github

import (
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// buildIssueDocument turns an issue and its comments into a source document.
// The issue's HTML URL is the document identity.
func buildIssueDocument(owner, repo string, issue *gh.Issue, comments []*gh.IssueComment) domain.SourceDocument {
	var b strings.Builder
	b.WriteString(issue.GetTitle())
	if body := strings.TrimSpace(issue.GetBody()); body != "" {
		b.WriteString("\n\n")
		b.WriteString(body)
	}
	for _, c := range comments {
		body := strings.TrimSpace(c.GetBody())
		if body == "" {
			continue
		}
		b.WriteString("\n\n")
		b.WriteString(c.GetUser().GetLogin())
		b.WriteString(": ")
		b.WriteString(body)
	}

	labels := make([]string, 0, len(issue.Labels))
	for _, l := range issue.Labels {
		labels = append(labels, l.GetName())
	}
	assignees := make([]string, 0, len(issue.Assignees))
	for _, a := range issue.Assignees {
		assignees = append(assignees, a.GetLogin())
	}

	kind := "issue"
	if issue.IsPullRequest() {
		kind = "pull_request"
	}

	return domain.SourceDocument{
		ID:      issue.GetHTMLURL(),
		Content: b.String(),
		Title:   issue.GetTitle(),
		URI:     issue.GetHTMLURL(),
		Metadata: map[string]string{
			"type":       kind,
			"owner":      owner,
			"repo":       repo,
			"number":     strconv.Itoa(issue.GetNumber()),
			"state":      issue.GetState(),
			"author":     issue.GetUser().GetLogin(),
			"labels":     strings.Join(labels, ","),
			"assignees":  strings.Join(assignees, ","),
			"created_at": issue.GetCreatedAt().UTC().Format(time.RFC3339),
		},
		UpdatedAt: issue.GetUpdatedAt().UTC(),
	}
}
