// Package filesystem implements a connector driver that walks a local
// directory tree and emits one document per regular file.
package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Ensure Connector implements the interface.
var _ driven.Connector = (*Connector)(nil)

// MaxFileSize bounds the files the driver reads. Larger files are skipped.
const MaxFileSize = 10 << 20

// Config is the connector configuration stored on the connector row.
type Config struct {
	Root string `json:"root"`
}

// Connector reads documents from the local filesystem. It holds no state
// between pulls; the root directory comes from the connector config.
type Connector struct{}

// New creates a filesystem connector.
func New() *Connector {
	return &Connector{}
}

// Source returns the document source this driver serves.
func (c *Connector) Source() domain.DocumentSource {
	return domain.SourceFile
}

// ParseConfig decodes and checks the connector config.
func ParseConfig(raw json.RawMessage) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%w: filesystem config: %w", domain.ErrInvalidInput, err)
	}
	if strings.TrimSpace(cfg.Root) == "" {
		return nil, fmt.Errorf("%w: filesystem config: root is required", domain.ErrInvalidInput)
	}
	return &cfg, nil
}

// Validate checks that the root exists and is a directory. The credential
// is not used.
func (c *Connector) Validate(ctx context.Context, config, _ json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cfg, err := ParseConfig(config)
	if err != nil {
		return err
	}
	return checkRoot(cfg.Root)
}

func checkRoot(root string) error {
	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("directory does not exist: %s", root)
	}
	if err != nil {
		return fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", root)
	}
	return nil
}

// Pull walks the root and emits files modified after req.Since.
// Hidden files and directories are skipped.
func (c *Connector) Pull(ctx context.Context, req driven.PullRequest) (<-chan domain.SourceDocument, <-chan error) {
	docs := make(chan domain.SourceDocument)
	errs := make(chan error, 1)

	go func() {
		defer close(docs)
		defer close(errs)

		cfg, err := ParseConfig(req.Config)
		if err != nil {
			errs <- err
			return
		}
		root, err := filepath.Abs(cfg.Root)
		if err != nil {
			errs <- fmt.Errorf("resolve root: %w", err)
			return
		}
		if err := checkRoot(root); err != nil {
			errs <- err
			return
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if path != root && isHidden(d.Name()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return fmt.Errorf("stat %s: %w", path, err)
			}
			if info.Size() > MaxFileSize {
				return nil
			}
			modified := info.ModTime().UTC()
			if req.Since != nil && !modified.After(*req.Since) {
				return nil
			}

			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}

			doc := buildDocument(root, path, content, info.Size(), modified)
			select {
			case docs <- doc:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			errs <- fmt.Errorf("walk %s: %w", root, err)
		}
	}()

	return docs, errs
}

func buildDocument(root, path string, content []byte, size int64, modified time.Time) domain.SourceDocument {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	name := filepath.Base(path)
	uri := "file://" + filepath.ToSlash(path)

	return domain.SourceDocument{
		ID:      uri,
		Content: string(content),
		Title:   name,
		URI:     uri,
		Metadata: map[string]string{
			"filename":  name,
			"path":      filepath.ToSlash(rel),
			"extension": strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), "."),
			"mime_type": detectMIMEType(name),
			"size":      strconv.FormatInt(size, 10),
		},
		UpdatedAt: modified,
	}
}

// isHidden reports whether a path has a component starting with a dot.
// "." and ".." are not hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "" || part == "." || part == ".." {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

var fallbackMIMETypes = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".go":       "text/x-go",
	".py":       "text/x-python",
	".rs":       "text/x-rust",
	".ts":       "text/typescript",
	".yaml":     "text/yaml",
	".yml":      "text/yaml",
	".toml":     "text/toml",
	".sh":       "text/x-shellscript",
	".sql":      "text/x-sql",
}

// detectMIMEType returns the media type for a filename without parameters.
func detectMIMEType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return "text/plain"
	}
	if t, ok := fallbackMIMETypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if i := strings.Index(t, ";"); i >= 0 {
			t = t[:i]
		}
		return strings.TrimSpace(t)
	}
	return "application/octet-stream"
}
