package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DocumentSource identifies the kind of system a connector reads from.
type DocumentSource string

// Known document sources.
const (
	SourceWeb         DocumentSource = "web"
	SourceSlack       DocumentSource = "slack"
	SourceGoogleDrive DocumentSource = "google_drive"
	SourceGitHub      DocumentSource = "github"
	SourceConfluence  DocumentSource = "confluence"
	SourceFile        DocumentSource = "file"
)

// DocumentSources lists every known source in display order.
func DocumentSources() []DocumentSource {
	return []DocumentSource{SourceWeb, SourceSlack, SourceGoogleDrive, SourceGitHub, SourceConfluence, SourceFile}
}

// Valid reports whether s is a known source.
func (s DocumentSource) Valid() bool {
	for _, known := range DocumentSources() {
		if s == known {
			return true
		}
	}
	return false
}

// InputType describes how a connector produces documents.
type InputType string

const (
	// InputLoadState connectors dump the full current state on every run.
	InputLoadState InputType = "load_state"

	// InputPoll connectors return documents changed since a watermark.
	InputPoll InputType = "poll"

	// InputEvent connectors are pushed to and never scheduled.
	InputEvent InputType = "event"
)

// Valid reports whether t is a known input type.
func (t InputType) Valid() bool {
	switch t {
	case InputLoadState, InputPoll, InputEvent:
		return true
	}
	return false
}

// Connector is a configured content source.
type Connector struct {
	// ID is the store-assigned identifier.
	ID int64

	// Name is the human-readable name.
	Name string

	// Source is the kind of system this connector reads from.
	Source DocumentSource

	// InputType is how the connector produces documents.
	InputType InputType

	// Config is the connector-specific configuration, a JSON object.
	Config json.RawMessage

	// RefreshFreq is how often the scheduler re-indexes pairs of this connector.
	// Nil means never auto-refresh. Stored as whole seconds.
	RefreshFreq *time.Duration

	// Disabled connectors are skipped by the scheduler and refused by the indexer.
	Disabled bool

	// CreatedAt is when the connector was created.
	CreatedAt time.Time

	// UpdatedAt is when the connector was last updated.
	UpdatedAt time.Time
}

// Validate checks the connector fields before it is stored.
func (c *Connector) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: connector name is required", ErrInvalidInput)
	}
	if !c.Source.Valid() {
		return fmt.Errorf("%w: unknown source %q", ErrInvalidInput, c.Source)
	}
	if !c.InputType.Valid() {
		return fmt.Errorf("%w: unknown input type %q", ErrInvalidInput, c.InputType)
	}
	if c.RefreshFreq != nil && *c.RefreshFreq < time.Second {
		return fmt.Errorf("%w: refresh frequency must be at least one second", ErrInvalidInput)
	}
	return validateJSONObject(c.Config, "connector config")
}

// Schedulable reports whether the scheduler may start runs for this connector.
func (c *Connector) Schedulable() bool {
	return !c.Disabled && c.InputType != InputEvent
}

// DueForRefresh reports whether a pair last indexed at lastSuccess needs a new run at now.
// Connectors without a refresh frequency are never due.
func (c *Connector) DueForRefresh(lastSuccess *time.Time, now time.Time) bool {
	if c.RefreshFreq == nil {
		return false
	}
	if lastSuccess == nil {
		return true
	}
	return !now.Before(lastSuccess.Add(*c.RefreshFreq))
}

// RefreshSeconds returns the refresh frequency in seconds, or nil.
func (c *Connector) RefreshSeconds() *int64 {
	if c.RefreshFreq == nil {
		return nil
	}
	secs := int64(*c.RefreshFreq / time.Second)
	return &secs
}

// RefreshFromSeconds converts a stored seconds value back to a duration.
func RefreshFromSeconds(secs *int64) *time.Duration {
	if secs == nil {
		return nil
	}
	d := time.Duration(*secs) * time.Second
	return &d
}

func validateJSONObject(raw json.RawMessage, what string) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return fmt.Errorf("%w: %s is required", ErrInvalidInput, what)
	}
	var obj map[string]any
	if err := json.Unmarshal(trimmed, &obj); err != nil || obj == nil {
		return fmt.Errorf("%w: %s must be a JSON object", ErrInvalidInput, what)
	}
	return nil
}
