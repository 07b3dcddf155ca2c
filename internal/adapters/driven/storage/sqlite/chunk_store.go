package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// ==================== Chunk Store ====================

var _ driven.ChunkStore = (*chunkStore)(nil)

type chunkStore struct {
	store *Store
}

// Put upserts one chunk row.
func (c *chunkStore) Put(ctx context.Context, chunk domain.Chunk) error {
	return c.PutBatch(ctx, []domain.Chunk{chunk})
}

// PutBatch upserts chunk rows all-or-nothing.
func (c *chunkStore) PutBatch(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	for _, chunk := range chunks {
		if err := chunk.Validate(); err != nil {
			return err
		}
	}

	return c.store.withTx(ctx, func(tx *sql.Tx) error {
		checked := make(map[string]bool)
		for _, chunk := range chunks {
			if checked[chunk.DocumentID] {
				continue
			}
			found, err := exists(ctx, tx, `SELECT 1 FROM documents WHERE id = ?`, chunk.DocumentID)
			if err != nil {
				return fmt.Errorf("checking document: %w", err)
			}
			if !found {
				return fmt.Errorf("chunk %s: %w", chunk.ID, domain.ErrOrphanChunk)
			}
			checked[chunk.DocumentID] = true
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (id, document_store_type, document_id) VALUES (?, ?, ?)
			ON CONFLICT(id, document_store_type) DO UPDATE SET document_id = excluded.document_id
		`)
		if err != nil {
			return fmt.Errorf("preparing chunk insert: %w", err)
		}
		defer stmt.Close()

		for _, chunk := range chunks {
			if _, err := stmt.ExecContext(ctx, chunk.ID, string(chunk.StoreType), chunk.DocumentID); err != nil {
				return fmt.Errorf("inserting chunk %s: %w", chunk.ID, err)
			}
		}
		return nil
	})
}

// Delete removes named chunk rows of one store type and prunes the
// documents they belonged to.
func (c *chunkStore) Delete(ctx context.Context, storeType domain.StoreType, chunkIDs []string) (int, error) {
	if len(chunkIDs) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(chunkIDs)+1)
	args = append(args, string(storeType))
	for _, id := range chunkIDs {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunkIDs)), ",")

	var removed int
	err := c.store.withTx(ctx, func(tx *sql.Tx) error {
		documentIDs, err := scanStrings(ctx, tx,
			`SELECT DISTINCT document_id FROM chunks WHERE document_store_type = ? AND id IN (`+placeholders+`)`, args...)
		if err != nil {
			return fmt.Errorf("querying chunk documents: %w", err)
		}
		removed, err = execCount(ctx, tx,
			`DELETE FROM chunks WHERE document_store_type = ? AND id IN (`+placeholders+`)`, args...)
		if err != nil {
			return fmt.Errorf("deleting chunks: %w", err)
		}
		for _, documentID := range documentIDs {
			if _, err := pruneDocument(ctx, tx, documentID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// DeleteForDocumentAndStore removes one document's rows for one store type
// and prunes the document.
func (c *chunkStore) DeleteForDocumentAndStore(ctx context.Context, documentID string, storeType domain.StoreType) (int, error) {
	var removed int
	err := c.store.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		removed, err = execCount(ctx, tx, `
			DELETE FROM chunks WHERE document_id = ? AND document_store_type = ?
		`, documentID, string(storeType))
		if err != nil {
			return fmt.Errorf("deleting document chunks: %w", err)
		}
		if removed == 0 {
			return nil
		}
		_, err = pruneDocument(ctx, tx, documentID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func execCount(ctx context.Context, tx *sql.Tx, query string, args ...any) (int, error) {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading affected rows: %w", err)
	}
	return int(n), nil
}

func scanStrings(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]string, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	//nolint:prealloc // size unknown from query
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// CountForDocument counts a document's rows across store types.
func (c *chunkStore) CountForDocument(ctx context.Context, documentID string) (int, error) {
	var count int
	err := c.store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE document_id = ?`, documentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}

// ListForDocument returns a document's rows for one store type.
func (c *chunkStore) ListForDocument(ctx context.Context, documentID string, storeType domain.StoreType) ([]domain.Chunk, error) {
	rows, err := c.store.db.QueryContext(ctx, `
		SELECT id, document_store_type, document_id FROM chunks
		WHERE document_id = ? AND document_store_type = ? ORDER BY id
	`, documentID, string(storeType))
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	//nolint:prealloc // size unknown from query
	var chunks []domain.Chunk
	for rows.Next() {
		var (
			chunk domain.Chunk
			st    string
		)
		if err := rows.Scan(&chunk.ID, &st, &chunk.DocumentID); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunk.StoreType = domain.StoreType(st)
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// StoreTypesForDocument returns the store types holding rows for a document.
func (c *chunkStore) StoreTypesForDocument(ctx context.Context, documentID string) ([]domain.StoreType, error) {
	rows, err := c.store.db.QueryContext(ctx, `
		SELECT DISTINCT document_store_type FROM chunks WHERE document_id = ?
		ORDER BY document_store_type
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunk store types: %w", err)
	}
	defer rows.Close()

	//nolint:prealloc // size unknown from query
	var types []domain.StoreType
	for rows.Next() {
		var st string
		if err := rows.Scan(&st); err != nil {
			return nil, fmt.Errorf("scanning store type: %w", err)
		}
		types = append(types, domain.StoreType(st))
	}
	return types, rows.Err()
}
