package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// ==================== Credential Store ====================

var _ driven.CredentialStore = (*credentialStore)(nil)

type credentialStore struct {
	store *Store
}

const credentialColumns = `id, payload, user_id, public, created_at, updated_at`

// Create inserts a credential.
func (c *credentialStore) Create(ctx context.Context, cred *domain.Credential) error {
	now := c.store.clock()
	res, err := c.store.db.ExecContext(ctx, `
		INSERT INTO credentials (payload, user_id, public, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, string(cred.Payload), nullString(cred.UserID), boolToInt(cred.Public), now, now)
	if err != nil {
		return fmt.Errorf("inserting credential: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading credential id: %w", err)
	}
	cred.ID = id
	cred.CreatedAt = now
	cred.UpdatedAt = now
	return nil
}

// Get retrieves a credential by ID.
func (c *credentialStore) Get(ctx context.Context, id int64) (*domain.Credential, error) {
	row := c.store.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE id = ?`, id)
	cred, err := scanCredential(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning credential: %w", err)
	}
	return cred, nil
}

// Update replaces payload, owner and visibility.
func (c *credentialStore) Update(ctx context.Context, cred *domain.Credential) error {
	now := c.store.clock()
	res, err := c.store.db.ExecContext(ctx, `
		UPDATE credentials SET payload = ?, user_id = ?, public = ?, updated_at = ?
		WHERE id = ?
	`, string(cred.Payload), nullString(cred.UserID), boolToInt(cred.Public), now, cred.ID)
	if err != nil {
		return fmt.Errorf("updating credential: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	cred.UpdatedAt = now
	return nil
}

// Delete removes a credential that nothing references.
func (c *credentialStore) Delete(ctx context.Context, id int64) error {
	return c.store.withTx(ctx, func(tx *sql.Tx) error {
		found, err := exists(ctx, tx, `SELECT 1 FROM credentials WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("checking credential: %w", err)
		}
		if !found {
			return domain.ErrNotFound
		}

		inUse, err := exists(ctx, tx, `
			SELECT 1 FROM connector_credential_pairs WHERE credential_id = ?
			UNION ALL
			SELECT 1 FROM document_by_connector_credential_pair WHERE credential_id = ?
			LIMIT 1
		`, id, id)
		if err != nil {
			return fmt.Errorf("checking credential references: %w", err)
		}
		if inUse {
			return domain.ErrCredentialInUse
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM credentials WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting credential: %w", err)
		}
		return nil
	})
}

// List returns all credentials.
func (c *credentialStore) List(ctx context.Context) ([]domain.Credential, error) {
	rows, err := c.store.db.QueryContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying credentials: %w", err)
	}
	defer rows.Close()

	//nolint:prealloc // size unknown from query
	var creds []domain.Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning credential: %w", err)
		}
		creds = append(creds, *cred)
	}
	return creds, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCredential(row scanner) (*domain.Credential, error) {
	var (
		cred    domain.Credential
		payload string
		userID  sql.NullString
		public  int
	)
	if err := row.Scan(&cred.ID, &payload, &userID, &public, &cred.CreatedAt, &cred.UpdatedAt); err != nil {
		return nil, err
	}
	cred.Payload = json.RawMessage(payload)
	cred.UserID = stringPtr(userID)
	cred.Public = public != 0
	cred.CreatedAt = cred.CreatedAt.UTC()
	cred.UpdatedAt = cred.UpdatedAt.UTC()
	return &cred, nil
}
