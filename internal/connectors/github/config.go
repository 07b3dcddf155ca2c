package github

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// Config holds the parsed connector configuration.
type Config struct {
	Owner               string `json:"owner"`
	Repo                string `json:"repo"`
	State               string `json:"state,omitempty"`
	IncludePullRequests bool   `json:"include_pull_requests,omitempty"`
	IncludeComments     *bool  `json:"include_comments,omitempty"`
}

// Credential is the credential payload the driver reads.
type Credential struct {
	AccessToken string `json:"github_access_token"`
}

// ParseConfig decodes a connector config and applies defaults.
func ParseConfig(raw json.RawMessage) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%w: github config: %w", domain.ErrInvalidInput, err)
	}
	cfg.Owner = strings.TrimSpace(cfg.Owner)
	cfg.Repo = strings.TrimSpace(cfg.Repo)
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, ErrConfigMissingRepo
	}

	switch strings.ToLower(cfg.State) {
	case "":
		cfg.State = "all"
	case "open", "closed", "all":
		cfg.State = strings.ToLower(cfg.State)
	default:
		return nil, fmt.Errorf("%w: %q", ErrConfigInvalidState, cfg.State)
	}
	return &cfg, nil
}

// Comments reports whether issue comments should be fetched.
func (c *Config) Comments() bool {
	return c.IncludeComments == nil || *c.IncludeComments
}

// ParseCredential decodes the credential payload.
func ParseCredential(raw json.RawMessage) (*Credential, error) {
	var cred Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return nil, fmt.Errorf("%w: github credential: %w", domain.ErrInvalidInput, err)
	}
	if strings.TrimSpace(cred.AccessToken) == "" {
		return nil, ErrMissingToken
	}
	return &cred, nil
}
