package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConnector() *Connector {
	return &Connector{
		Name:      "docs",
		Source:    SourceFile,
		InputType: InputPoll,
		Config:    json.RawMessage(`{"path":"/tmp/docs"}`),
	}
}

func TestConnector_Validate(t *testing.T) {
	hour := time.Hour
	tooShort := 10 * time.Millisecond

	tests := []struct {
		name    string
		mutate  func(c *Connector)
		wantErr bool
	}{
		{"valid", func(c *Connector) {}, false},
		{"valid with refresh", func(c *Connector) { c.RefreshFreq = &hour }, false},
		{"empty name", func(c *Connector) { c.Name = "  " }, true},
		{"unknown source", func(c *Connector) { c.Source = "notion" }, true},
		{"unknown input type", func(c *Connector) { c.InputType = "stream" }, true},
		{"sub-second refresh", func(c *Connector) { c.RefreshFreq = &tooShort }, true},
		{"missing config", func(c *Connector) { c.Config = nil }, true},
		{"array config", func(c *Connector) { c.Config = json.RawMessage(`[1,2]`) }, true},
		{"null config", func(c *Connector) { c.Config = json.RawMessage(`null`) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConnector()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConnector_DueForRefresh(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	hour := time.Hour
	c := validConnector()

	assert.False(t, c.DueForRefresh(nil, now), "no refresh frequency")

	c.RefreshFreq = &hour
	assert.True(t, c.DueForRefresh(nil, now), "never indexed")

	recent := now.Add(-30 * time.Minute)
	assert.False(t, c.DueForRefresh(&recent, now))

	old := now.Add(-time.Hour)
	assert.True(t, c.DueForRefresh(&old, now))
}

func TestConnector_Schedulable(t *testing.T) {
	c := validConnector()
	assert.True(t, c.Schedulable())

	c.Disabled = true
	assert.False(t, c.Schedulable())

	c.Disabled = false
	c.InputType = InputEvent
	assert.False(t, c.Schedulable())
}

func TestConnector_RefreshSeconds(t *testing.T) {
	c := validConnector()
	assert.Nil(t, c.RefreshSeconds())

	d := 90 * time.Second
	c.RefreshFreq = &d
	secs := c.RefreshSeconds()
	require.NotNil(t, secs)
	assert.Equal(t, int64(90), *secs)

	back := RefreshFromSeconds(secs)
	require.NotNil(t, back)
	assert.Equal(t, d, *back)
	assert.Nil(t, RefreshFromSeconds(nil))
}

func TestDocumentSource_Valid(t *testing.T) {
	for _, s := range DocumentSources() {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, DocumentSource("gmail").Valid())
}
