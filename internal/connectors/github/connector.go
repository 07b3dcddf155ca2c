package github

import (
	"context"
	"encoding/json"
	"fmt"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Ensure Connector implements the interface.
var _ driven.Connector = (*Connector)(nil)

// Connector pulls issues from one GitHub repository per connector row.
type Connector struct {
	baseURL string
	rate    float64
	burst   int
}

// Option configures a Connector.
type Option func(*Connector)

// WithBaseURL points the driver at a different API root, such as a GitHub
// Enterprise server.
func WithBaseURL(u string) Option {
	return func(c *Connector) {
		c.baseURL = u
	}
}

// WithRateLimit overrides the proactive request rate.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Connector) {
		c.rate = perSecond
		c.burst = burst
	}
}

// New creates a GitHub connector.
func New(opts ...Option) *Connector {
	c := &Connector{rate: DefaultRate, burst: 1}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Source returns the document source this driver serves.
func (c *Connector) Source() domain.DocumentSource {
	return domain.SourceGitHub
}

func (c *Connector) client(ctx context.Context, credential json.RawMessage) (*Client, error) {
	cred, err := ParseCredential(credential)
	if err != nil {
		return nil, err
	}
	return NewClient(ctx, cred.AccessToken, c.baseURL, NewRateLimiter(c.rate, c.burst))
}

// Validate checks the config and that the token can read the repository.
func (c *Connector) Validate(ctx context.Context, config, credential json.RawMessage) error {
	cfg, err := ParseConfig(config)
	if err != nil {
		return err
	}
	client, err := c.client(ctx, credential)
	if err != nil {
		return err
	}

	if _, err := client.GetRepository(ctx, cfg.Owner, cfg.Repo); err != nil {
		switch {
		case IsNotFound(err):
			return fmt.Errorf("%w: %s/%s", ErrRepoNotFound, cfg.Owner, cfg.Repo)
		case IsUnauthorized(err):
			return fmt.Errorf("%w: github token rejected", domain.ErrForbidden)
		default:
			return err
		}
	}
	return nil
}

// Pull streams issues updated after req.Since, oldest update first.
func (c *Connector) Pull(ctx context.Context, req driven.PullRequest) (<-chan domain.SourceDocument, <-chan error) {
	docs := make(chan domain.SourceDocument)
	errs := make(chan error, 1)

	go func() {
		defer close(docs)
		defer close(errs)

		if err := c.pull(ctx, req, docs); err != nil {
			errs <- err
		}
	}()

	return docs, errs
}

func (c *Connector) pull(ctx context.Context, req driven.PullRequest, docs chan<- domain.SourceDocument) error {
	cfg, err := ParseConfig(req.Config)
	if err != nil {
		return err
	}
	client, err := c.client(ctx, req.Credential)
	if err != nil {
		return err
	}

	opts := &gh.IssueListByRepoOptions{
		State:       cfg.State,
		Sort:        "updated",
		Direction:   "asc",
		ListOptions: gh.ListOptions{PerPage: 100},
	}
	if req.Since != nil {
		opts.Since = *req.Since
	}

	err = client.ListIssues(ctx, cfg.Owner, cfg.Repo, opts, func(issues []*gh.Issue) error {
		for _, issue := range issues {
			if issue.IsPullRequest() && !cfg.IncludePullRequests {
				continue
			}
			// The API's since filter is inclusive.
			if req.Since != nil && !issue.GetUpdatedAt().After(*req.Since) {
				continue
			}

			comments, err := issueComments(ctx, client, cfg, issue)
			if err != nil {
				return err
			}

			select {
			case docs <- buildIssueDocument(cfg.Owner, cfg.Repo, issue, comments):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("pull %s/%s: %w", cfg.Owner, cfg.Repo, err)
	}
	return nil
}

func issueComments(ctx context.Context, client *Client, cfg *Config, issue *gh.Issue) ([]*gh.IssueComment, error) {
	if !cfg.Comments() || issue.GetComments() == 0 {
		return nil, nil
	}
	comments, err := client.ListIssueComments(ctx, cfg.Owner, cfg.Repo, issue.GetNumber())
	if err != nil {
		return nil, fmt.Errorf("issue %d comments: %w", issue.GetNumber(), err)
	}
	return comments, nil
}
