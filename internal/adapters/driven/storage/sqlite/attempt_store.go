package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// ==================== Attempt Store ====================

var _ driven.AttemptStore = (*attemptStore)(nil)

type attemptStore struct {
	store *Store
}

// attemptTable maps an attempt kind to its table.
type attemptTable struct {
	kind    domain.AttemptKind
	name    string
	columns string
}

var attemptTables = map[domain.AttemptKind]attemptTable{
	domain.KindIndex: {
		kind:    domain.KindIndex,
		name:    "index_attempts",
		columns: `id, connector_id, credential_id, status, error_msg, 0, time_created, time_updated`,
	},
	domain.KindDeletion: {
		kind:    domain.KindDeletion,
		name:    "deletion_attempts",
		columns: `id, connector_id, credential_id, status, error_msg, num_docs_deleted, time_created, time_updated`,
	},
}

func tableFor(kind domain.AttemptKind) (attemptTable, error) {
	t, ok := attemptTables[kind]
	if !ok {
		return attemptTable{}, fmt.Errorf("%w: unknown attempt kind %q", domain.ErrInvalidInput, kind)
	}
	return t, nil
}

// Create inserts a NotStarted attempt for a bound pair.
func (a *attemptStore) Create(ctx context.Context, kind domain.AttemptKind, key domain.PairKey) (*domain.Attempt, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	var created *domain.Attempt
	err = a.store.withTx(ctx, func(tx *sql.Tx) error {
		attempt, err := a.insert(ctx, tx, t, key)
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
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	var started *domain.Attempt
	err = a.store.withTx(ctx, func(tx *sql.Tx) error {
		attempt, err := a.insert(ctx, tx, t, key)
		if err != nil {
			return err
		}
		if err := a.start(ctx, tx, t, attempt); err != nil {
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
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	var started *domain.Attempt
	err = a.store.withTx(ctx, func(tx *sql.Tx) error {
		attempt, err := getAttempt(ctx, tx, t, id)
		if err != nil {
			return err
		}
		if err := a.start(ctx, tx, t, attempt); err != nil {
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
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	var completed *domain.Attempt
	err = a.store.withTx(ctx, func(tx *sql.Tx) error {
		attempt, err := getAttempt(ctx, tx, t, id)
		if err != nil {
			return err
		}
		if err := attempt.Complete(a.store.clock(), out); err != nil {
			return err
		}

		var res sql.Result
		if kind == domain.KindDeletion {
			res, err = tx.ExecContext(ctx, `
				UPDATE deletion_attempts
				SET status = ?, error_msg = ?, num_docs_deleted = ?, time_updated = ?
				WHERE id = ? AND status = ?
			`, attempt.Status.String(), nullErrorMsg(attempt), attempt.NumDocsDeleted,
				attempt.UpdatedAt, id, domain.StatusInProgress.String())
		} else {
			res, err = tx.ExecContext(ctx, `
				UPDATE index_attempts
				SET status = ?, error_msg = ?, time_updated = ?
				WHERE id = ? AND status = ?
			`, attempt.Status.String(), nullErrorMsg(attempt), attempt.UpdatedAt,
				id, domain.StatusInProgress.String())
		}
		if err != nil {
			return fmt.Errorf("completing attempt: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s attempt %d changed concurrently", domain.ErrInvalidTransition, kind, id)
		}

		if key, ok := attempt.Pair(); ok {
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM pair_leases
				WHERE connector_id = ? AND credential_id = ? AND attempt_kind = ? AND attempt_id = ?
			`, key.ConnectorID, key.CredentialID, string(kind), id); err != nil {
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
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	return getAttempt(ctx, a.store.db, t, id)
}

// ListForPair returns attempts for a pair newest first.
func (a *attemptStore) ListForPair(ctx context.Context, kind domain.AttemptKind, key domain.PairKey, limit int) ([]domain.Attempt, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	return a.list(ctx, t, `SELECT `+t.columns+` FROM `+t.name+`
		WHERE connector_id = ? AND credential_id = ?
		ORDER BY id DESC LIMIT ?`, key.ConnectorID, key.CredentialID, limit)
}

// ListInProgress returns every InProgress attempt of a kind.
func (a *attemptStore) ListInProgress(ctx context.Context, kind domain.AttemptKind) ([]domain.Attempt, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	return a.list(ctx, t, `SELECT `+t.columns+` FROM `+t.name+`
		WHERE status = ? ORDER BY id`, domain.StatusInProgress.String())
}

// Holder returns the lease on a pair.
func (a *attemptStore) Holder(ctx context.Context, key domain.PairKey) (*domain.PairLease, error) {
	var (
		lease domain.PairLease
		kind  string
	)
	err := a.store.db.QueryRowContext(ctx, `
		SELECT connector_id, credential_id, attempt_kind, attempt_id, acquired_at
		FROM pair_leases WHERE connector_id = ? AND credential_id = ?
	`, key.ConnectorID, key.CredentialID).Scan(
		&lease.ConnectorID, &lease.CredentialID, &kind, &lease.AttemptID, &lease.AcquiredAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning pair lease: %w", err)
	}
	lease.Kind = domain.AttemptKind(kind)
	lease.AcquiredAt = lease.AcquiredAt.UTC()
	return &lease, nil
}

func (a *attemptStore) insert(ctx context.Context, tx *sql.Tx, t attemptTable, key domain.PairKey) (*domain.Attempt, error) {
	bound, err := exists(ctx, tx, `
		SELECT 1 FROM connector_credential_pairs WHERE connector_id = ? AND credential_id = ?
	`, key.ConnectorID, key.CredentialID)
	if err != nil {
		return nil, fmt.Errorf("checking pair: %w", err)
	}
	if !bound {
		return nil, domain.ErrNotBound
	}

	attempt := domain.NewAttempt(t.kind, key, a.store.clock())
	res, err := tx.ExecContext(ctx, `
		INSERT INTO `+t.name+` (connector_id, credential_id, status, time_created, time_updated)
		VALUES (?, ?, ?, ?, ?)
	`, key.ConnectorID, key.CredentialID, attempt.Status.String(), attempt.CreatedAt, attempt.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting %s attempt: %w", t.kind, err)
	}
	if attempt.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("reading attempt id: %w", err)
	}
	return attempt, nil
}

// start applies the NotStarted -> InProgress transition and takes the lease.
func (a *attemptStore) start(ctx context.Context, tx *sql.Tx, t attemptTable, attempt *domain.Attempt) error {
	if err := attempt.Start(a.store.clock()); err != nil {
		return err
	}
	key, ok := attempt.Pair()
	if !ok {
		return domain.ErrNotBound
	}
	bound, err := exists(ctx, tx, `
		SELECT 1 FROM connector_credential_pairs WHERE connector_id = ? AND credential_id = ?
	`, key.ConnectorID, key.CredentialID)
	if err != nil {
		return fmt.Errorf("checking pair: %w", err)
	}
	if !bound {
		return domain.ErrNotBound
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO pair_leases (connector_id, credential_id, attempt_kind, attempt_id, acquired_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(connector_id, credential_id) DO NOTHING
	`, key.ConnectorID, key.CredentialID, string(t.kind), attempt.ID, attempt.UpdatedAt)
	if err != nil {
		return fmt.Errorf("acquiring pair lease: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrConcurrentAttemptExists
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE `+t.name+` SET status = ?, time_updated = ?
		WHERE id = ? AND status = ?
	`, attempt.Status.String(), attempt.UpdatedAt, attempt.ID, domain.StatusNotStarted.String())
	if err != nil {
		return fmt.Errorf("starting attempt: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s attempt %d changed concurrently", domain.ErrInvalidTransition, t.kind, attempt.ID)
	}
	return nil
}

func (a *attemptStore) list(ctx context.Context, t attemptTable, query string, args ...any) ([]domain.Attempt, error) {
	rows, err := a.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s attempts: %w", t.kind, err)
	}
	defer rows.Close()

	//nolint:prealloc // size unknown from query
	var attempts []domain.Attempt
	for rows.Next() {
		attempt, err := scanAttempt(rows, t.kind)
		if err != nil {
			return nil, fmt.Errorf("scanning attempt: %w", err)
		}
		attempts = append(attempts, *attempt)
	}
	return attempts, rows.Err()
}

func getAttempt(ctx context.Context, q queryer, t attemptTable, id int64) (*domain.Attempt, error) {
	row := q.QueryRowContext(ctx, `SELECT `+t.columns+` FROM `+t.name+` WHERE id = ?`, id)
	attempt, err := scanAttempt(row, t.kind)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning attempt: %w", err)
	}
	return attempt, nil
}

func scanAttempt(row scanner, kind domain.AttemptKind) (*domain.Attempt, error) {
	var (
		attempt      domain.Attempt
		connectorID  sql.NullInt64
		credentialID sql.NullInt64
		status       string
		errorMsg     sql.NullString
	)
	if err := row.Scan(&attempt.ID, &connectorID, &credentialID, &status, &errorMsg,
		&attempt.NumDocsDeleted, &attempt.CreatedAt, &attempt.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := domain.ParseAttemptStatus(status)
	if err != nil {
		return nil, err
	}
	attempt.Kind = kind
	attempt.Status = parsed
	attempt.ConnectorID = int64Ptr(connectorID)
	attempt.CredentialID = int64Ptr(credentialID)
	attempt.ErrorMsg = errorMsg.String
	attempt.CreatedAt = attempt.CreatedAt.UTC()
	attempt.UpdatedAt = attempt.UpdatedAt.UTC()
	return &attempt, nil
}

func nullErrorMsg(a *domain.Attempt) sql.NullString {
	if a.Status != domain.StatusFailed {
		return sql.NullString{}
	}
	return sql.NullString{String: a.ErrorMsg, Valid: true}
}
