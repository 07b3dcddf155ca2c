package postgres

import (
	"context"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

var _ driven.ConnectorStore = (*connectorStore)(nil)

var lockForUpdate = clause.Locking{Strength: "UPDATE"}

type connectorStore struct {
	store *Store
}

// Create inserts a connector.
func (c *connectorStore) Create(ctx context.Context, conn *domain.Connector) error {
	now := c.store.clock()
	conn.CreatedAt = now
	conn.UpdatedAt = now
	row := connectorFromDomain(conn)
	row.ID = 0
	if err := c.store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("inserting connector: %w", err)
	}
	conn.ID = row.ID
	return nil
}

// Get retrieves a connector by ID.
func (c *connectorStore) Get(ctx context.Context, id int64) (*domain.Connector, error) {
	var row connectorRow
	err := c.store.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if notFound(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading connector: %w", err)
	}
	conn := row.toDomain()
	return &conn, nil
}

// Update saves every mutable field.
func (c *connectorStore) Update(ctx context.Context, conn *domain.Connector) error {
	now := c.store.clock()
	res := c.store.db.WithContext(ctx).Model(&connectorRow{}).Where("id = ?", conn.ID).
		Updates(map[string]any{
			"name":         conn.Name,
			"source":       string(conn.Source),
			"input_type":   string(conn.InputType),
			"config":       datatypes.JSON(conn.Config),
			"refresh_freq": conn.RefreshSeconds(),
			"disabled":     conn.Disabled,
			"updated_at":   now,
		})
	if res.Error != nil {
		return fmt.Errorf("updating connector: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	conn.UpdatedAt = now
	return nil
}

// Delete removes a connector that nothing references.
// Index attempts keep their rows with connector_id set to NULL;
// deletion attempts cascade.
func (c *connectorStore) Delete(ctx context.Context, id int64) error {
	return c.store.withTx(ctx, func(tx *gorm.DB) error {
		var row connectorRow
		err := tx.Clauses(lockForUpdate).First(&row, "id = ?", id).Error
		if notFound(err) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("locking connector: %w", err)
		}

		paired, err := exists(tx, &pairRow{}, "connector_id = ?", id)
		if err != nil {
			return fmt.Errorf("checking pairs: %w", err)
		}
		attributed, err := exists(tx, &attributionRow{}, "connector_id = ?", id)
		if err != nil {
			return fmt.Errorf("checking attributions: %w", err)
		}
		if paired || attributed {
			return domain.ErrConnectorInUse
		}

		if err := tx.Delete(&connectorRow{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("deleting connector: %w", err)
		}
		return nil
	})
}

// List returns all connectors.
func (c *connectorStore) List(ctx context.Context) ([]domain.Connector, error) {
	var rows []connectorRow
	if err := c.store.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying connectors: %w", err)
	}
	conns := make([]domain.Connector, 0, len(rows))
	for _, row := range rows {
		conns = append(conns, row.toDomain())
	}
	return conns, nil
}
