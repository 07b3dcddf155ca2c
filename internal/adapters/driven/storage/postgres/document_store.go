package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

var _ driven.DocumentStore = (*documentStore)(nil)

type documentStore struct {
	store *Store
}

// UpsertAttribution inserts the document and attribution rows if missing.
func (d *documentStore) UpsertAttribution(ctx context.Context, documentID string, key domain.PairKey) error {
	if err := domain.ValidateDocumentID(documentID); err != nil {
		return err
	}
	return d.store.withTx(ctx, func(tx *gorm.DB) error {
		connectorFound, err := exists(tx, &connectorRow{}, "id = ?", key.ConnectorID)
		if err != nil {
			return fmt.Errorf("checking connector: %w", err)
		}
		if !connectorFound {
			return fmt.Errorf("connector %d: %w", key.ConnectorID, domain.ErrNotFound)
		}
		credentialFound, err := exists(tx, &credentialRow{}, "id = ?", key.CredentialID)
		if err != nil {
			return fmt.Errorf("checking credential: %w", err)
		}
		if !credentialFound {
			return fmt.Errorf("credential %d: %w", key.CredentialID, domain.ErrNotFound)
		}

		found, err := lockDocument(tx, documentID)
		if err != nil {
			return err
		}
		if found {
			if err := checkNotPurging(tx, documentID); err != nil {
				return err
			}
		}

		doc := documentRow{ID: documentID, CreatedAt: d.store.clock()}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&doc).Error; err != nil {
			return fmt.Errorf("inserting document: %w", err)
		}
		attribution := attributionRow{
			DocumentID:   documentID,
			ConnectorID:  key.ConnectorID,
			CredentialID: key.CredentialID,
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&attribution).Error; err != nil {
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

// Detach removes the attribution under the document row lock, counts the
// pairs left and prunes the document if eligible.
func (d *documentStore) Detach(ctx context.Context, documentID string, key domain.PairKey) (domain.Detachment, error) {
	var detached domain.Detachment
	err := d.store.withTx(ctx, func(tx *gorm.DB) error {
		found, err := lockDocument(tx, documentID)
		if err != nil || !found {
			return err
		}
		err = tx.Delete(&attributionRow{}, "document_id = ? AND connector_id = ? AND credential_id = ?",
			documentID, key.ConnectorID, key.CredentialID).Error
		if err != nil {
			return fmt.Errorf("deleting attribution: %w", err)
		}
		var remaining int64
		if err := tx.Model(&attributionRow{}).Where("document_id = ?", documentID).Count(&remaining).Error; err != nil {
			return fmt.Errorf("counting attributions: %w", err)
		}
		detached.Remaining = int(remaining)
		detached.Deleted, err = pruneDocument(tx, documentID)
		return err
	})
	if err != nil {
		return domain.Detachment{}, err
	}
	return detached, nil
}

// ListUnattributed returns documents that only chunk rows still hold.
func (d *documentStore) ListUnattributed(ctx context.Context) ([]string, error) {
	var ids []string
	err := d.store.db.WithContext(ctx).Model(&documentRow{}).
		Where("NOT EXISTS (?)", d.store.db.Model(&attributionRow{}).Select("1").
			Where("document_by_connector_credential_pair.document_id = documents.id")).
		Order("id").Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("querying unattributed documents: %w", err)
	}
	return ids, nil
}

// Prune deletes the document if nothing refers to it.
func (d *documentStore) Prune(ctx context.Context, documentID string) (bool, error) {
	var deleted bool
	err := d.store.withTx(ctx, func(tx *gorm.DB) error {
		found, err := lockDocument(tx, documentID)
		if err != nil || !found {
			return err
		}
		deleted, err = pruneDocument(tx, documentID)
		return err
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// lockDocument takes the document row lock. Chunk writers hold a share
// lock on the same row, so eligibility is evaluated after they commit.
func lockDocument(tx *gorm.DB, documentID string) (bool, error) {
	var row documentRow
	err := tx.Clauses(lockForUpdate).Where("id = ?", documentID).Take(&row).Error
	if notFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("locking document: %w", err)
	}
	return true, nil
}

// pruneDocument deletes a locked document with no attributions and no chunks.
func pruneDocument(tx *gorm.DB, documentID string) (bool, error) {
	attributed, err := exists(tx, &attributionRow{}, "document_id = ?", documentID)
	if err != nil {
		return false, fmt.Errorf("checking attributions: %w", err)
	}
	if attributed {
		return false, nil
	}
	chunked, err := exists(tx, &chunkRow{}, "document_id = ?", documentID)
	if err != nil {
		return false, fmt.Errorf("checking chunks: %w", err)
	}
	if chunked {
		return false, nil
	}
	res := tx.Delete(&documentRow{}, "id = ?", documentID)
	if res.Error != nil {
		return false, fmt.Errorf("pruning document: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// checkNotPurging refuses a locked document that has no attributions
// unless it can be pruned on the spot.
func checkNotPurging(tx *gorm.DB, documentID string) error {
	attributed, err := exists(tx, &attributionRow{}, "document_id = ?", documentID)
	if err != nil {
		return fmt.Errorf("checking attributions: %w", err)
	}
	if attributed {
		return nil
	}
	pruned, err := pruneDocument(tx, documentID)
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
	var rows []attributionRow
	err := d.store.db.WithContext(ctx).Where("document_id = ?", documentID).
		Order("connector_id, credential_id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("querying attributions: %w", err)
	}
	keys := make([]domain.PairKey, 0, len(rows))
	for _, row := range rows {
		keys = append(keys, domain.PairKey{ConnectorID: row.ConnectorID, CredentialID: row.CredentialID})
	}
	return keys, nil
}

// Get retrieves a document.
func (d *documentStore) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	var row documentRow
	err := d.store.db.WithContext(ctx).Where("id = ?", documentID).Take(&row).Error
	if notFound(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading document: %w", err)
	}
	return &domain.Document{ID: row.ID, CreatedAt: row.CreatedAt.UTC()}, nil
}

// ListForPair returns the documents attributed to a pair.
func (d *documentStore) ListForPair(ctx context.Context, key domain.PairKey) ([]string, error) {
	var ids []string
	err := d.store.db.WithContext(ctx).Model(&attributionRow{}).
		Where("connector_id = ? AND credential_id = ?", key.ConnectorID, key.CredentialID).
		Order("document_id").Pluck("document_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("querying pair documents: %w", err)
	}
	return ids, nil
}

// CountForPair counts the documents attributed to a pair.
func (d *documentStore) CountForPair(ctx context.Context, key domain.PairKey) (int, error) {
	var n int64
	err := d.store.db.WithContext(ctx).Model(&attributionRow{}).
		Where("connector_id = ? AND credential_id = ?", key.ConnectorID, key.CredentialID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("counting pair documents: %w", err)
	}
	return int(n), nil
}
