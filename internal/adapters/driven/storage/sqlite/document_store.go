package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// ==================== Document Store ====================

var _ driven.DocumentStore = (*documentStore)(nil)

type documentStore struct {
	store *Store
}

// UpsertAttribution inserts the document and attribution rows if missing.
func (d *documentStore) UpsertAttribution(ctx context.Context, documentID string, key domain.PairKey) error {
	if err := domain.ValidateDocumentID(documentID); err != nil {
		return err
	}
	return d.store.withTx(ctx, func(tx *sql.Tx) error {
		connectorFound, err := exists(ctx, tx, `SELECT 1 FROM connectors WHERE id = ?`, key.ConnectorID)
		if err != nil {
			return fmt.Errorf("checking connector: %w", err)
		}
		if !connectorFound {
			return fmt.Errorf("connector %d: %w", key.ConnectorID, domain.ErrNotFound)
		}
		credentialFound, err := exists(ctx, tx, `SELECT 1 FROM credentials WHERE id = ?`, key.CredentialID)
		if err != nil {
			return fmt.Errorf("checking credential: %w", err)
		}
		if !credentialFound {
			return fmt.Errorf("credential %d: %w", key.CredentialID, domain.ErrNotFound)
		}

		if err := checkNotPurging(ctx, tx, documentID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO documents (id, created_at) VALUES (?, ?)
			ON CONFLICT(id) DO NOTHING
		`, documentID, d.store.clock()); err != nil {
			return fmt.Errorf("inserting document: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO document_by_connector_credential_pair (document_id, connector_id, credential_id)
			VALUES (?, ?, ?)
			ON CONFLICT DO NOTHING
		`, documentID, key.ConnectorID, key.CredentialID); err != nil {
			return fmt.Errorf("inserting attribution: %w", err)
		}
		return nil
	})
}

// RemoveAttribution removes the attribution and prunes the document if eligible.
func (d *documentStore) RemoveAttribution(ctx context.Context, documentID string, key domain.PairKey) (bool, error) {
	detached, err := d.Detach(ctx, documentID, key)
	return detached.Deleted, err
}

// Detach removes the attribution, counts the pairs left and prunes the
// document in one transaction.
func (d *documentStore) Detach(ctx context.Context, documentID string, key domain.PairKey) (domain.Detachment, error) {
	var detached domain.Detachment
	err := d.store.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM document_by_connector_credential_pair
			WHERE document_id = ? AND connector_id = ? AND credential_id = ?
		`, documentID, key.ConnectorID, key.CredentialID); err != nil {
			return fmt.Errorf("deleting attribution: %w", err)
		}
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM document_by_connector_credential_pair WHERE document_id = ?
		`, documentID).Scan(&detached.Remaining); err != nil {
			return fmt.Errorf("counting attributions: %w", err)
		}
		var err error
		detached.Deleted, err = pruneDocument(ctx, tx, documentID)
		return err
	})
	if err != nil {
		return domain.Detachment{}, err
	}
	return detached, nil
}

// ListUnattributed returns documents that only chunk rows still hold.
func (d *documentStore) ListUnattributed(ctx context.Context) ([]string, error) {
	rows, err := d.store.db.QueryContext(ctx, `
		SELECT id FROM documents d
		WHERE NOT EXISTS (
			SELECT 1 FROM document_by_connector_credential_pair a WHERE a.document_id = d.id
		)
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying unattributed documents: %w", err)
	}
	defer rows.Close()

	//nolint:prealloc // size unknown from query
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning document id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Prune deletes the document if nothing refers to it.
func (d *documentStore) Prune(ctx context.Context, documentID string) (bool, error) {
	var deleted bool
	err := d.store.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		deleted, err = pruneDocument(ctx, tx, documentID)
		return err
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// pruneDocument evaluates eligibility and deletes in the same statement.
func pruneDocument(ctx context.Context, tx *sql.Tx, documentID string) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		DELETE FROM documents
		WHERE id = ?
		  AND NOT EXISTS (SELECT 1 FROM document_by_connector_credential_pair WHERE document_id = ?)
		  AND NOT EXISTS (SELECT 1 FROM chunks WHERE document_id = ?)
	`, documentID, documentID, documentID)
	if err != nil {
		return false, fmt.Errorf("pruning document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading pruned rows: %w", err)
	}
	return n > 0, nil
}

// checkNotPurging refuses a document that exists without attributions
// unless it can be pruned on the spot.
func checkNotPurging(ctx context.Context, tx *sql.Tx, documentID string) error {
	orphaned, err := exists(ctx, tx, `
		SELECT 1 FROM documents d
		WHERE d.id = ?
		  AND NOT EXISTS (SELECT 1 FROM document_by_connector_credential_pair WHERE document_id = d.id)
	`, documentID)
	if err != nil {
		return fmt.Errorf("checking document: %w", err)
	}
	if !orphaned {
		return nil
	}
	pruned, err := pruneDocument(ctx, tx, documentID)
	if err != nil {
		return err
	}
	if !pruned {
		return fmt.Errorf("document %s: %w", documentID, domain.ErrDocumentPurging)
	}
	return nil
}

// ListAttributedPairs returns the pairs attributing a document.
func (d *documentStore) ListAttributedPairs(ctx context.Context, documentID string) ([]domain.PairKey, error) {
	rows, err := d.store.db.QueryContext(ctx, `
		SELECT connector_id, credential_id FROM document_by_connector_credential_pair
		WHERE document_id = ? ORDER BY connector_id, credential_id
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying attributions: %w", err)
	}
	defer rows.Close()

	//nolint:prealloc // size unknown from query
	var keys []domain.PairKey
	for rows.Next() {
		var key domain.PairKey
		if err := rows.Scan(&key.ConnectorID, &key.CredentialID); err != nil {
			return nil, fmt.Errorf("scanning attribution: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Get retrieves a document.
func (d *documentStore) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	var doc domain.Document
	err := d.store.db.QueryRowContext(ctx,
		`SELECT id, created_at FROM documents WHERE id = ?`, documentID).Scan(&doc.ID, &doc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	doc.CreatedAt = doc.CreatedAt.UTC()
	return &doc, nil
}

// ListForPair returns the documents attributed to a pair.
func (d *documentStore) ListForPair(ctx context.Context, key domain.PairKey) ([]string, error) {
	rows, err := d.store.db.QueryContext(ctx, `
		SELECT document_id FROM document_by_connector_credential_pair
		WHERE connector_id = ? AND credential_id = ? ORDER BY document_id
	`, key.ConnectorID, key.CredentialID)
	if err != nil {
		return nil, fmt.Errorf("querying pair documents: %w", err)
	}
	defer rows.Close()

	//nolint:prealloc // size unknown from query
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning document id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountForPair counts the documents attributed to a pair.
func (d *documentStore) CountForPair(ctx context.Context, key domain.PairKey) (int, error) {
	var count int
	err := d.store.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM document_by_connector_credential_pair
		WHERE connector_id = ? AND credential_id = ?
	`, key.ConnectorID, key.CredentialID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting pair documents: %w", err)
	}
	return count, nil
}
