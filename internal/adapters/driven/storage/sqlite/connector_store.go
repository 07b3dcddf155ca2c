package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// ==================== Connector Store ====================

var _ driven.ConnectorStore = (*connectorStore)(nil)

type connectorStore struct {
	store *Store
}

const connectorColumns = `id, name, source, input_type, config, refresh_freq, disabled, created_at, updated_at`

// Create inserts a connector.
func (c *connectorStore) Create(ctx context.Context, conn *domain.Connector) error {
	now := c.store.clock()
	res, err := c.store.db.ExecContext(ctx, `
		INSERT INTO connectors (name, source, input_type, config, refresh_freq, disabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, conn.Name, string(conn.Source), string(conn.InputType), string(conn.Config),
		nullInt64(conn.RefreshSeconds()), boolToInt(conn.Disabled), now, now)
	if err != nil {
		return fmt.Errorf("inserting connector: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading connector id: %w", err)
	}
	conn.ID = id
	conn.CreatedAt = now
	conn.UpdatedAt = now
	return nil
}

// Get retrieves a connector by ID.
func (c *connectorStore) Get(ctx context.Context, id int64) (*domain.Connector, error) {
	row := c.store.db.QueryRowContext(ctx,
		`SELECT `+connectorColumns+` FROM connectors WHERE id = ?`, id)
	conn, err := scanConnector(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning connector: %w", err)
	}
	return conn, nil
}

// Update saves every mutable field.
func (c *connectorStore) Update(ctx context.Context, conn *domain.Connector) error {
	now := c.store.clock()
	res, err := c.store.db.ExecContext(ctx, `
		UPDATE connectors
		SET name = ?, source = ?, input_type = ?, config = ?, refresh_freq = ?, disabled = ?, updated_at = ?
		WHERE id = ?
	`, conn.Name, string(conn.Source), string(conn.InputType), string(conn.Config),
		nullInt64(conn.RefreshSeconds()), boolToInt(conn.Disabled), now, conn.ID)
	if err != nil {
		return fmt.Errorf("updating connector: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	conn.UpdatedAt = now
	return nil
}

// Delete removes a connector that nothing references.
// Index attempts keep their rows with connector_id set to NULL;
// deletion attempts cascade.
func (c *connectorStore) Delete(ctx context.Context, id int64) error {
	return c.store.withTx(ctx, func(tx *sql.Tx) error {
		found, err := exists(ctx, tx, `SELECT 1 FROM connectors WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("checking connector: %w", err)
		}
		if !found {
			return domain.ErrNotFound
		}

		inUse, err := exists(ctx, tx, `
			SELECT 1 FROM connector_credential_pairs WHERE connector_id = ?
			UNION ALL
			SELECT 1 FROM document_by_connector_credential_pair WHERE connector_id = ?
			LIMIT 1
		`, id, id)
		if err != nil {
			return fmt.Errorf("checking connector references: %w", err)
		}
		if inUse {
			return domain.ErrConnectorInUse
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM connectors WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting connector: %w", err)
		}
		return nil
	})
}

// List returns all connectors.
func (c *connectorStore) List(ctx context.Context) ([]domain.Connector, error) {
	rows, err := c.store.db.QueryContext(ctx,
		`SELECT `+connectorColumns+` FROM connectors ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying connectors: %w", err)
	}
	defer rows.Close()

	//nolint:prealloc // size unknown from query
	var conns []domain.Connector
	for rows.Next() {
		conn, err := scanConnector(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning connector: %w", err)
		}
		conns = append(conns, *conn)
	}
	return conns, rows.Err()
}

func scanConnector(row scanner) (*domain.Connector, error) {
	var (
		conn        domain.Connector
		source      string
		inputType   string
		config      string
		refreshFreq sql.NullInt64
		disabled    int
	)
	if err := row.Scan(&conn.ID, &conn.Name, &source, &inputType, &config,
		&refreshFreq, &disabled, &conn.CreatedAt, &conn.UpdatedAt); err != nil {
		return nil, err
	}
	conn.Source = domain.DocumentSource(source)
	conn.InputType = domain.InputType(inputType)
	conn.Config = json.RawMessage(config)
	conn.RefreshFreq = domain.RefreshFromSeconds(int64Ptr(refreshFreq))
	conn.Disabled = disabled != 0
	conn.CreatedAt = conn.CreatedAt.UTC()
	conn.UpdatedAt = conn.UpdatedAt.UTC()
	return &conn, nil
}
