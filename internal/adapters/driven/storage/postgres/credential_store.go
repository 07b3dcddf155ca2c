package postgres

import (
	"context"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

var _ driven.CredentialStore = (*credentialStore)(nil)

type credentialStore struct {
	store *Store
}

// Create inserts a credential.
func (c *credentialStore) Create(ctx context.Context, cred *domain.Credential) error {
	now := c.store.clock()
	row := credentialRow{
		Payload:   datatypes.JSON(cred.Payload),
		UserID:    cred.UserID,
		Public:    cred.Public,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("inserting credential: %w", err)
	}
	cred.ID = row.ID
	cred.CreatedAt = now
	cred.UpdatedAt = now
	return nil
}

// Get retrieves a credential by ID.
func (c *credentialStore) Get(ctx context.Context, id int64) (*domain.Credential, error) {
	var row credentialRow
	err := c.store.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if notFound(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading credential: %w", err)
	}
	cred := row.toDomain()
	return &cred, nil
}

// Update replaces payload, owner and visibility.
func (c *credentialStore) Update(ctx context.Context, cred *domain.Credential) error {
	now := c.store.clock()
	res := c.store.db.WithContext(ctx).Model(&credentialRow{}).Where("id = ?", cred.ID).
		Updates(map[string]any{
			"payload":    datatypes.JSON(cred.Payload),
			"user_id":    cred.UserID,
			"public":     cred.Public,
			"updated_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("updating credential: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	cred.UpdatedAt = now
	return nil
}

// Delete removes a credential that nothing references.
func (c *credentialStore) Delete(ctx context.Context, id int64) error {
	return c.store.withTx(ctx, func(tx *gorm.DB) error {
		var row credentialRow
		err := tx.Clauses(lockForUpdate).First(&row, "id = ?", id).Error
		if notFound(err) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("locking credential: %w", err)
		}

		paired, err := exists(tx, &pairRow{}, "credential_id = ?", id)
		if err != nil {
			return fmt.Errorf("checking pairs: %w", err)
		}
		attributed, err := exists(tx, &attributionRow{}, "credential_id = ?", id)
		if err != nil {
			return fmt.Errorf("checking attributions: %w", err)
		}
		if paired || attributed {
			return domain.ErrCredentialInUse
		}

		if err := tx.Delete(&credentialRow{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("deleting credential: %w", err)
		}
		return nil
	})
}

// List returns all credentials.
func (c *credentialStore) List(ctx context.Context) ([]domain.Credential, error) {
	var rows []credentialRow
	if err := c.store.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying credentials: %w", err)
	}
	creds := make([]domain.Credential, 0, len(rows))
	for _, row := range rows {
		creds = append(creds, row.toDomain())
	}
	return creds, nil
}
