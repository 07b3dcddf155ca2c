package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

var _ driven.PairStore = (*pairStore)(nil)

type pairStore struct {
	store *Store
}

// Create binds a connector to a credential.
func (p *pairStore) Create(ctx context.Context, pair *domain.Pair) error {
	return p.store.withTx(ctx, func(tx *gorm.DB) error {
		connectorFound, err := exists(tx, &connectorRow{}, "id = ?", pair.ConnectorID)
		if err != nil {
			return fmt.Errorf("checking connector: %w", err)
		}
		credentialFound, err := exists(tx, &credentialRow{}, "id = ?", pair.CredentialID)
		if err != nil {
			return fmt.Errorf("checking credential: %w", err)
		}
		if !connectorFound || !credentialFound {
			return domain.ErrNotFound
		}

		now := p.store.clock()
		row := pairFromDomain(pair)
		row.CreatedAt = now
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return fmt.Errorf("inserting pair: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrAlreadyBound
		}
		pair.CreatedAt = now
		return nil
	})
}

// Get retrieves a pair.
func (p *pairStore) Get(ctx context.Context, key domain.PairKey) (*domain.Pair, error) {
	return getPair(p.store.db.WithContext(ctx), key, false)
}

// Update applies fn to the row-locked pair inside one transaction.
func (p *pairStore) Update(ctx context.Context, key domain.PairKey, fn func(*domain.Pair) error) (*domain.Pair, error) {
	var updated *domain.Pair
	err := p.store.withTx(ctx, func(tx *gorm.DB) error {
		pair, err := getPair(tx, key, true)
		if err != nil {
			return err
		}
		if err := fn(pair); err != nil {
			return err
		}
		pair.PairKey = key
		row := pairFromDomain(pair)
		err = tx.Model(&pairRow{}).
			Where("connector_id = ? AND credential_id = ?", key.ConnectorID, key.CredentialID).
			Updates(map[string]any{
				"last_successful_index_time": row.LastSuccessfulIndexTime,
				"last_attempt_status":        row.LastAttemptStatus,
				"total_docs_indexed":         row.TotalDocsIndexed,
			}).Error
		if err != nil {
			return fmt.Errorf("updating pair: %w", err)
		}
		updated = pair
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete unbinds a pair that no attempt holds.
func (p *pairStore) Delete(ctx context.Context, key domain.PairKey) error {
	return p.store.withTx(ctx, func(tx *gorm.DB) error {
		if _, err := getPair(tx, key, true); err != nil {
			return err
		}

		held, err := exists(tx, &leaseRow{}, "connector_id = ? AND credential_id = ?",
			key.ConnectorID, key.CredentialID)
		if err != nil {
			return fmt.Errorf("checking pair lease: %w", err)
		}
		if held {
			return domain.ErrHasLiveAttempt
		}

		err = tx.Delete(&pairRow{}, "connector_id = ? AND credential_id = ?",
			key.ConnectorID, key.CredentialID).Error
		if err != nil {
			return fmt.Errorf("deleting pair: %w", err)
		}
		return nil
	})
}

// List returns all pairs.
func (p *pairStore) List(ctx context.Context) ([]domain.Pair, error) {
	return p.list(p.store.db.WithContext(ctx).Order("connector_id, credential_id"))
}

// ListForConnector returns the pairs of one connector.
func (p *pairStore) ListForConnector(ctx context.Context, connectorID int64) ([]domain.Pair, error) {
	return p.list(p.store.db.WithContext(ctx).Where("connector_id = ?", connectorID).Order("credential_id"))
}

func (p *pairStore) list(q *gorm.DB) ([]domain.Pair, error) {
	var rows []pairRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying pairs: %w", err)
	}
	pairs := make([]domain.Pair, 0, len(rows))
	for _, row := range rows {
		pair, err := row.toDomain()
		if err != nil {
			return nil, fmt.Errorf("decoding pair: %w", err)
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// getPair loads a pair, taking a row lock when lock is set.
func getPair(tx *gorm.DB, key domain.PairKey, lock bool) (*domain.Pair, error) {
	if lock {
		tx = tx.Clauses(lockForUpdate)
	}
	var row pairRow
	err := tx.Where("connector_id = ? AND credential_id = ?", key.ConnectorID, key.CredentialID).
		Take(&row).Error
	if notFound(err) {
		return nil, domain.ErrNotBound
	}
	if err != nil {
		return nil, fmt.Errorf("loading pair: %w", err)
	}
	pair, err := row.toDomain()
	if err != nil {
		return nil, fmt.Errorf("decoding pair: %w", err)
	}
	return &pair, nil
}
