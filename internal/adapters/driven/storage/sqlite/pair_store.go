package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// ==================== Pair Store ====================

var _ driven.PairStore = (*pairStore)(nil)

type pairStore struct {
	store *Store
}

const pairColumns = `connector_id, credential_id, last_successful_index_time, last_attempt_status, total_docs_indexed, created_at`

// Create binds a connector to a credential.
func (p *pairStore) Create(ctx context.Context, pair *domain.Pair) error {
	return p.store.withTx(ctx, func(tx *sql.Tx) error {
		connectorFound, err := exists(ctx, tx, `SELECT 1 FROM connectors WHERE id = ?`, pair.ConnectorID)
		if err != nil {
			return fmt.Errorf("checking connector: %w", err)
		}
		credentialFound, err := exists(ctx, tx, `SELECT 1 FROM credentials WHERE id = ?`, pair.CredentialID)
		if err != nil {
			return fmt.Errorf("checking credential: %w", err)
		}
		if !connectorFound || !credentialFound {
			return domain.ErrNotFound
		}

		now := p.store.clock()
		res, err := tx.ExecContext(ctx, `
			INSERT INTO connector_credential_pairs (`+pairColumns+`)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(connector_id, credential_id) DO NOTHING
		`, pair.ConnectorID, pair.CredentialID, nullTime(pair.LastSuccessfulIndexTime),
			nullStatus(pair.LastAttemptStatus), pair.TotalDocsIndexed, now)
		if err != nil {
			return fmt.Errorf("inserting pair: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrAlreadyBound
		}
		pair.CreatedAt = now
		return nil
	})
}

// Get retrieves a pair.
func (p *pairStore) Get(ctx context.Context, key domain.PairKey) (*domain.Pair, error) {
	return getPair(ctx, p.store.db, key)
}

// Update applies fn to the stored pair inside one transaction.
func (p *pairStore) Update(ctx context.Context, key domain.PairKey, fn func(*domain.Pair) error) (*domain.Pair, error) {
	var updated *domain.Pair
	err := p.store.withTx(ctx, func(tx *sql.Tx) error {
		pair, err := getPair(ctx, tx, key)
		if err != nil {
			return err
		}
		if err := fn(pair); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE connector_credential_pairs
			SET last_successful_index_time = ?, last_attempt_status = ?, total_docs_indexed = ?
			WHERE connector_id = ? AND credential_id = ?
		`, nullTime(pair.LastSuccessfulIndexTime), nullStatus(pair.LastAttemptStatus),
			pair.TotalDocsIndexed, key.ConnectorID, key.CredentialID)
		if err != nil {
			return fmt.Errorf("updating pair: %w", err)
		}
		pair.PairKey = key
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
	return p.store.withTx(ctx, func(tx *sql.Tx) error {
		bound, err := exists(ctx, tx, `
			SELECT 1 FROM connector_credential_pairs WHERE connector_id = ? AND credential_id = ?
		`, key.ConnectorID, key.CredentialID)
		if err != nil {
			return fmt.Errorf("checking pair: %w", err)
		}
		if !bound {
			return domain.ErrNotBound
		}

		held, err := exists(ctx, tx, `
			SELECT 1 FROM pair_leases WHERE connector_id = ? AND credential_id = ?
		`, key.ConnectorID, key.CredentialID)
		if err != nil {
			return fmt.Errorf("checking pair lease: %w", err)
		}
		if held {
			return domain.ErrHasLiveAttempt
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM connector_credential_pairs WHERE connector_id = ? AND credential_id = ?
		`, key.ConnectorID, key.CredentialID); err != nil {
			return fmt.Errorf("deleting pair: %w", err)
		}
		return nil
	})
}

// List returns all pairs.
func (p *pairStore) List(ctx context.Context) ([]domain.Pair, error) {
	return p.list(ctx, `SELECT `+pairColumns+` FROM connector_credential_pairs
		ORDER BY connector_id, credential_id`)
}

// ListForConnector returns the pairs of one connector.
func (p *pairStore) ListForConnector(ctx context.Context, connectorID int64) ([]domain.Pair, error) {
	return p.list(ctx, `SELECT `+pairColumns+` FROM connector_credential_pairs
		WHERE connector_id = ? ORDER BY credential_id`, connectorID)
}

func (p *pairStore) list(ctx context.Context, query string, args ...any) ([]domain.Pair, error) {
	rows, err := p.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying pairs: %w", err)
	}
	defer rows.Close()

	//nolint:prealloc // size unknown from query
	var pairs []domain.Pair
	for rows.Next() {
		pair, err := scanPair(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning pair: %w", err)
		}
		pairs = append(pairs, *pair)
	}
	return pairs, rows.Err()
}

func getPair(ctx context.Context, q queryer, key domain.PairKey) (*domain.Pair, error) {
	row := q.QueryRowContext(ctx, `SELECT `+pairColumns+` FROM connector_credential_pairs
		WHERE connector_id = ? AND credential_id = ?`, key.ConnectorID, key.CredentialID)
	pair, err := scanPair(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotBound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning pair: %w", err)
	}
	return pair, nil
}

func scanPair(row scanner) (*domain.Pair, error) {
	var (
		pair        domain.Pair
		lastSuccess sql.NullTime
		lastStatus  sql.NullString
	)
	if err := row.Scan(&pair.ConnectorID, &pair.CredentialID, &lastSuccess, &lastStatus,
		&pair.TotalDocsIndexed, &pair.CreatedAt); err != nil {
		return nil, err
	}
	if lastSuccess.Valid {
		t := lastSuccess.Time.UTC()
		pair.LastSuccessfulIndexTime = &t
	}
	if lastStatus.Valid {
		status, err := domain.ParseAttemptStatus(lastStatus.String)
		if err != nil {
			return nil, err
		}
		pair.LastAttemptStatus = &status
	}
	pair.CreatedAt = pair.CreatedAt.UTC()
	return &pair, nil
}
