package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

var _ driven.AttemptStore = (*attemptStore)(nil)

type attemptStore struct {
	store *Store
}

var attemptTableNames = map[domain.AttemptKind]string{
	domain.KindIndex:    "index_attempts",
	domain.KindDeletion: "deletion_attempts",
}

func tableFor(kind domain.AttemptKind) (string, error) {
	name, ok := attemptTableNames[kind]
	if !ok {
		return "", fmt.Errorf("%w: unknown attempt kind %q", domain.ErrInvalidInput, kind)
	}
	return name, nil
}

// scoped returns a session on the attempt table of kind. index_attempts
// carries no num_docs_deleted column, so it is omitted from writes there.
func scoped(tx *gorm.DB, kind domain.AttemptKind) (*gorm.DB, error) {
	name, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	tx = tx.Table(name)
	if kind == domain.KindIndex {
		tx = tx.Omit("num_docs_deleted")
	}
	return tx, nil
}

// Create inserts a NotStarted attempt for a bound pair.
func (a *attemptStore) Create(ctx context.Context, kind domain.AttemptKind, key domain.PairKey) (*domain.Attempt, error) {
	if _, err := tableFor(kind); err != nil {
		return nil, err
	}
	var created *domain.Attempt
	err := a.store.withTx(ctx, func(tx *gorm.DB) error {
		if _, err := getPair(tx, key, false); err != nil {
			return err
		}
		attempt, err := a.insert(tx, kind, key)
		created = attempt
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Begin creates and starts an attempt in one transaction.
func (a *attemptStore) Begin(ctx context.Context, kind domain.AttemptKind, key domain.PairKey) (*domain.Attempt, error) {
	if _, err := tableFor(kind); err != nil {
		return nil, err
	}
	var started *domain.Attempt
	err := a.store.withTx(ctx, func(tx *gorm.DB) error {
		if _, err := getPair(tx, key, true); err != nil {
			return err
		}
		attempt, err := a.insert(tx, kind, key)
		if err != nil {
			return err
		}
		if err := a.start(tx, attempt); err != nil {
			return err
		}
		started = attempt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return started, nil
}

// Start moves a NotStarted attempt to InProgress and takes the pair lease.
func (a *attemptStore) Start(ctx context.Context, kind domain.AttemptKind, id int64) (*domain.Attempt, error) {
	if _, err := tableFor(kind); err != nil {
		return nil, err
	}
	var started *domain.Attempt
	err := a.store.withTx(ctx, func(tx *gorm.DB) error {
		attempt, err := getAttempt(tx, kind, id)
		if err != nil {
			return err
		}
		key, ok := attempt.Pair()
		if !ok {
			return domain.ErrNotBound
		}
		if _, err := getPair(tx, key, true); err != nil {
			return err
		}
		if err := a.start(tx, attempt); err != nil {
			return err
		}
		started = attempt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return started, nil
}

// Complete finishes an InProgress attempt and releases the pair lease.
func (a *attemptStore) Complete(ctx context.Context, kind domain.AttemptKind, id int64, out domain.Outcome) (*domain.Attempt, error) {
	if _, err := tableFor(kind); err != nil {
		return nil, err
	}
	var completed *domain.Attempt
	err := a.store.withTx(ctx, func(tx *gorm.DB) error {
		attempt, err := getAttempt(tx, kind, id)
		if err != nil {
			return err
		}
		if err := attempt.Complete(a.store.clock(), out); err != nil {
			return err
		}

		row := attemptFromDomain(attempt)
		updates := map[string]any{
			"status":       row.Status,
			"error_msg":    row.ErrorMsg,
			"time_updated": row.TimeUpdated,
		}
		if kind == domain.KindDeletion {
			updates["num_docs_deleted"] = row.NumDocsDeleted
		}
		q, err := scoped(tx, kind)
		if err != nil {
			return err
		}
		res := q.Where("id = ? AND status = ?", id, domain.StatusInProgress.String()).Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("completing attempt: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s attempt %d changed concurrently", domain.ErrInvalidTransition, kind, id)
		}

		if key, ok := attempt.Pair(); ok {
			err := tx.Delete(&leaseRow{},
				"connector_id = ? AND credential_id = ? AND attempt_kind = ? AND attempt_id = ?",
				key.ConnectorID, key.CredentialID, string(kind), id).Error
			if err != nil {
				return fmt.Errorf("releasing pair lease: %w", err)
			}
		}
		completed = attempt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

// Get retrieves an attempt.
func (a *attemptStore) Get(ctx context.Context, kind domain.AttemptKind, id int64) (*domain.Attempt, error) {
	return getAttempt(a.store.db.WithContext(ctx), kind, id)
}

// ListForPair returns attempts for a pair newest first.
func (a *attemptStore) ListForPair(ctx context.Context, kind domain.AttemptKind, key domain.PairKey, limit int) ([]domain.Attempt, error) {
	q, err := scoped(a.store.db.WithContext(ctx), kind)
	if err != nil {
		return nil, err
	}
	q = q.Where("connector_id = ? AND credential_id = ?", key.ConnectorID, key.CredentialID).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return listAttempts(q, kind)
}

// ListInProgress returns every InProgress attempt of a kind.
func (a *attemptStore) ListInProgress(ctx context.Context, kind domain.AttemptKind) ([]domain.Attempt, error) {
	q, err := scoped(a.store.db.WithContext(ctx), kind)
	if err != nil {
		return nil, err
	}
	return listAttempts(q.Where("status = ?", domain.StatusInProgress.String()).Order("id"), kind)
}

// Holder returns the lease on a pair.
func (a *attemptStore) Holder(ctx context.Context, key domain.PairKey) (*domain.PairLease, error) {
	var row leaseRow
	err := a.store.db.WithContext(ctx).
		Where("connector_id = ? AND credential_id = ?", key.ConnectorID, key.CredentialID).
		Take(&row).Error
	if notFound(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading pair lease: %w", err)
	}
	return &domain.PairLease{
		PairKey:    domain.PairKey{ConnectorID: row.ConnectorID, CredentialID: row.CredentialID},
		Kind:       domain.AttemptKind(row.AttemptKind),
		AttemptID:  row.AttemptID,
		AcquiredAt: row.AcquiredAt.UTC(),
	}, nil
}

func (a *attemptStore) insert(tx *gorm.DB, kind domain.AttemptKind, key domain.PairKey) (*domain.Attempt, error) {
	attempt := domain.NewAttempt(kind, key, a.store.clock())
	row := attemptFromDomain(attempt)
	q, err := scoped(tx, kind)
	if err != nil {
		return nil, err
	}
	if err := q.Create(&row).Error; err != nil {
		return nil, fmt.Errorf("inserting %s attempt: %w", kind, err)
	}
	attempt.ID = row.ID
	return attempt, nil
}

// start applies the NotStarted -> InProgress transition and takes the lease.
// The caller holds the pair row lock.
func (a *attemptStore) start(tx *gorm.DB, attempt *domain.Attempt) error {
	if err := attempt.Start(a.store.clock()); err != nil {
		return err
	}
	key, ok := attempt.Pair()
	if !ok {
		return domain.ErrNotBound
	}

	lease := leaseRow{
		ConnectorID:  key.ConnectorID,
		CredentialID: key.CredentialID,
		AttemptKind:  string(attempt.Kind),
		AttemptID:    attempt.ID,
		AcquiredAt:   attempt.UpdatedAt,
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&lease)
	if res.Error != nil {
		return fmt.Errorf("acquiring pair lease: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrConcurrentAttemptExists
	}

	q, err := scoped(tx, attempt.Kind)
	if err != nil {
		return err
	}
	res = q.Where("id = ? AND status = ?", attempt.ID, domain.StatusNotStarted.String()).
		Updates(map[string]any{
			"status":       attempt.Status.String(),
			"time_updated": attempt.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("starting attempt: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s attempt %d changed concurrently", domain.ErrInvalidTransition, attempt.Kind, attempt.ID)
	}
	return nil
}

func getAttempt(tx *gorm.DB, kind domain.AttemptKind, id int64) (*domain.Attempt, error) {
	q, err := scoped(tx, kind)
	if err != nil {
		return nil, err
	}
	var row attemptRow
	err = q.Where("id = ?", id).Take(&row).Error
	if notFound(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading attempt: %w", err)
	}
	attempt, err := row.toDomain(kind)
	if err != nil {
		return nil, fmt.Errorf("decoding attempt: %w", err)
	}
	return &attempt, nil
}

func listAttempts(q *gorm.DB, kind domain.AttemptKind) ([]domain.Attempt, error) {
	var rows []attemptRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying %s attempts: %w", kind, err)
	}
	attempts := make([]domain.Attempt, 0, len(rows))
	for _, row := range rows {
		attempt, err := row.toDomain(kind)
		if err != nil {
			return nil, fmt.Errorf("decoding attempt: %w", err)
		}
		attempts = append(attempts, attempt)
	}
	return attempts, nil
}
