package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

const timeLayout = "2006-01-02 15:04:05"

func parseID(what, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s id must be a positive integer, got %q", domain.ErrInvalidInput, what, s)
	}
	return id, nil
}

// parsePair reads a connector id and credential id from the first two args.
func parsePair(args []string) (domain.PairKey, error) {
	connectorID, err := parseID("connector", args[0])
	if err != nil {
		return domain.PairKey{}, err
	}
	credentialID, err := parseID("credential", args[1])
	if err != nil {
		return domain.PairKey{}, err
	}
	return domain.PairKey{ConnectorID: connectorID, CredentialID: credentialID}, nil
}

func parseKind(s string) (domain.AttemptKind, error) {
	kind := domain.AttemptKind(s)
	if !kind.Valid() {
		return "", fmt.Errorf("%w: kind must be %q or %q", domain.ErrInvalidInput, domain.KindIndex, domain.KindDeletion)
	}
	return kind, nil
}

// readJSON returns inline JSON, or the contents of file when inline is empty.
func readJSON(inline, file, what string) (json.RawMessage, error) {
	if inline != "" && file != "" {
		return nil, fmt.Errorf("%w: give %s inline or as a file, not both", domain.ErrInvalidInput, what)
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", what, err)
		}
		return json.RawMessage(data), nil
	}
	if inline == "" {
		return json.RawMessage(`{}`), nil
	}
	return json.RawMessage(inline), nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.UTC().Format(timeLayout)
}

func formatStatus(s *domain.AttemptStatus) string {
	if s == nil {
		return "none"
	}
	return s.String()
}

func formatRefresh(d *time.Duration) string {
	if d == nil {
		return "manual"
	}
	return d.String()
}

func formatParent(id *int64) string {
	if id == nil {
		return "(deleted)"
	}
	return strconv.FormatInt(*id, 10)
}
