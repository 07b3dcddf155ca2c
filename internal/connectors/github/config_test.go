package github

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Config
		wantErr error
	}{
		{
			name: "defaults state to all",
			raw:  `{"owner":"acme","repo":"widgets"}`,
			want: Config{Owner: "acme", Repo: "widgets", State: "all"},
		},
		{
			name: "normalises state",
			raw:  `{"owner":" acme ","repo":"widgets","state":"OPEN"}`,
			want: Config{Owner: "acme", Repo: "widgets", State: "open"},
		},
		{name: "missing repo", raw: `{"owner":"acme"}`, wantErr: ErrConfigMissingRepo},
		{name: "bad state", raw: `{"owner":"a","repo":"b","state":"merged"}`, wantErr: ErrConfigInvalidState},
		{name: "malformed", raw: `{`, wantErr: domain.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConfig(json.RawMessage(tt.raw))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *cfg)
		})
	}
}

func TestConfig_Comments(t *testing.T) {
	off := false
	assert.True(t, (&Config{}).Comments())
	assert.False(t, (&Config{IncludeComments: &off}).Comments())
}

func TestParseCredential(t *testing.T) {
	cred, err := ParseCredential(json.RawMessage(`{"github_access_token":"ghp_x"}`))
	require.NoError(t, err)
	assert.Equal(t, "ghp_x", cred.AccessToken)

	_, err = ParseCredential(json.RawMessage(`{"github_access_token":"  "}`))
	require.ErrorIs(t, err, ErrMissingToken)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
