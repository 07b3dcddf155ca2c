package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

var _ driven.ChunkStore = (*chunkStore)(nil)

type chunkStore struct {
	store *Store
}

// Put upserts one chunk row.
func (c *chunkStore) Put(ctx context.Context, chunk domain.Chunk) error {
	return c.PutBatch(ctx, []domain.Chunk{chunk})
}

// PutBatch upserts chunk rows all-or-nothing. Parent documents are share
// locked for the duration so they cannot be pruned underneath the insert.
func (c *chunkStore) PutBatch(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docIDs := make([]string, 0, len(chunks))
	seen := make(map[string]bool)
	for _, chunk := range chunks {
		if err := chunk.Validate(); err != nil {
			return err
		}
		if !seen[chunk.DocumentID] {
			seen[chunk.DocumentID] = true
			docIDs = append(docIDs, chunk.DocumentID)
		}
	}

	return c.store.withTx(ctx, func(tx *gorm.DB) error {
		var found []string
		err := tx.Model(&documentRow{}).Clauses(clause.Locking{Strength: "SHARE"}).
			Where("id IN ?", docIDs).Pluck("id", &found).Error
		if err != nil {
			return fmt.Errorf("checking documents: %w", err)
		}
		present := make(map[string]bool, len(found))
		for _, id := range found {
			present[id] = true
		}
		for _, chunk := range chunks {
			if !present[chunk.DocumentID] {
				return fmt.Errorf("chunk %s: %w", chunk.ID, domain.ErrOrphanChunk)
			}
		}

		rows := make([]chunkRow, 0, len(chunks))
		for _, chunk := range chunks {
			rows = append(rows, chunkRow{
				ID:                chunk.ID,
				DocumentStoreType: string(chunk.StoreType),
				DocumentID:        chunk.DocumentID,
			})
		}
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}, {Name: "document_store_type"}},
			DoUpdates: clause.AssignmentColumns([]string{"document_id"}),
		}).Create(&rows).Error
		if err != nil {
			return fmt.Errorf("inserting chunks: %w", err)
		}
		return nil
	})
}

// Delete removes named chunk rows of one store type and prunes the
// documents they belonged to. Document locks are taken before chunk rows
// so the order matches Detach and PutBatch.
func (c *chunkStore) Delete(ctx context.Context, storeType domain.StoreType, chunkIDs []string) (int, error) {
	if len(chunkIDs) == 0 {
		return 0, nil
	}
	var removed int
	err := c.store.withTx(ctx, func(tx *gorm.DB) error {
		var docIDs []string
		err := tx.Model(&chunkRow{}).Distinct("document_id").
			Where("document_store_type = ? AND id IN ?", string(storeType), chunkIDs).
			Order("document_id").Pluck("document_id", &docIDs).Error
		if err != nil {
			return fmt.Errorf("querying chunk documents: %w", err)
		}
		for _, id := range docIDs {
			if _, err := lockDocument(tx, id); err != nil {
				return err
			}
		}
		res := tx.Delete(&chunkRow{}, "document_store_type = ? AND id IN ?", string(storeType), chunkIDs)
		if res.Error != nil {
			return fmt.Errorf("deleting chunks: %w", res.Error)
		}
		removed = int(res.RowsAffected)
		for _, id := range docIDs {
			if _, err := pruneDocument(tx, id); err != nil {
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

// DeleteForDocumentAndStore removes every chunk of a document in one store
// and prunes the document.
func (c *chunkStore) DeleteForDocumentAndStore(ctx context.Context, documentID string, storeType domain.StoreType) (int, error) {
	var removed int
	err := c.store.withTx(ctx, func(tx *gorm.DB) error {
		found, err := lockDocument(tx, documentID)
		if err != nil || !found {
			return err
		}
		res := tx.Delete(&chunkRow{}, "document_id = ? AND document_store_type = ?", documentID, string(storeType))
		if res.Error != nil {
			return fmt.Errorf("deleting document chunks: %w", res.Error)
		}
		removed = int(res.RowsAffected)
		if removed == 0 {
			return nil
		}
		_, err = pruneDocument(tx, documentID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// CountForDocument counts chunks of a document across store types.
func (c *chunkStore) CountForDocument(ctx context.Context, documentID string) (int, error) {
	var n int64
	err := c.store.db.WithContext(ctx).Model(&chunkRow{}).Where("document_id = ?", documentID).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return int(n), nil
}

// ListForDocument returns a document's chunks in one store ordered by ID.
func (c *chunkStore) ListForDocument(ctx context.Context, documentID string, storeType domain.StoreType) ([]domain.Chunk, error) {
	var rows []chunkRow
	err := c.store.db.WithContext(ctx).
		Where("document_id = ? AND document_store_type = ?", documentID, string(storeType)).
		Order("id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	chunks := make([]domain.Chunk, 0, len(rows))
	for _, row := range rows {
		chunks = append(chunks, domain.Chunk{
			ID:         row.ID,
			StoreType:  domain.StoreType(row.DocumentStoreType),
			DocumentID: row.DocumentID,
		})
	}
	return chunks, nil
}

// StoreTypesForDocument returns the store types holding chunks of a document.
func (c *chunkStore) StoreTypesForDocument(ctx context.Context, documentID string) ([]domain.StoreType, error) {
	var types []string
	err := c.store.db.WithContext(ctx).Model(&chunkRow{}).
		Where("document_id = ?", documentID).
		Distinct("document_store_type").Order("document_store_type").
		Pluck("document_store_type", &types).Error
	if err != nil {
		return nil, fmt.Errorf("querying chunk store types: %w", err)
	}
	out := make([]domain.StoreType, 0, len(types))
	for _, t := range types {
		out = append(out, domain.StoreType(t))
	}
	return out, nil
}
