package postgres

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

type credentialRow struct {
	ID        int64          `gorm:"column:id;primaryKey;autoIncrement"`
	Payload   datatypes.JSON `gorm:"column:payload;type:jsonb;not null"`
	UserID    *string        `gorm:"column:user_id"`
	Public    bool           `gorm:"column:public;not null"`
	CreatedAt time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt time.Time      `gorm:"column:updated_at;not null"`
}

func (credentialRow) TableName() string { return "credentials" }

func (r credentialRow) toDomain() domain.Credential {
	return domain.Credential{
		ID:        r.ID,
		Payload:   json.RawMessage(r.Payload),
		UserID:    r.UserID,
		Public:    r.Public,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type connectorRow struct {
	ID          int64          `gorm:"column:id;primaryKey;autoIncrement"`
	Name        string         `gorm:"column:name;not null"`
	Source      string         `gorm:"column:source;not null"`
	InputType   string         `gorm:"column:input_type;not null"`
	Config      datatypes.JSON `gorm:"column:config;type:jsonb;not null"`
	RefreshFreq *int64         `gorm:"column:refresh_freq"`
	Disabled    bool           `gorm:"column:disabled;not null"`
	CreatedAt   time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;not null"`
}

func (connectorRow) TableName() string { return "connectors" }

func connectorFromDomain(c *domain.Connector) connectorRow {
	return connectorRow{
		ID:          c.ID,
		Name:        c.Name,
		Source:      string(c.Source),
		InputType:   string(c.InputType),
		Config:      datatypes.JSON(c.Config),
		RefreshFreq: c.RefreshSeconds(),
		Disabled:    c.Disabled,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func (r connectorRow) toDomain() domain.Connector {
	return domain.Connector{
		ID:          r.ID,
		Name:        r.Name,
		Source:      domain.DocumentSource(r.Source),
		InputType:   domain.InputType(r.InputType),
		Config:      json.RawMessage(r.Config),
		RefreshFreq: domain.RefreshFromSeconds(r.RefreshFreq),
		Disabled:    r.Disabled,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type pairRow struct {
	ConnectorID             int64      `gorm:"column:connector_id;primaryKey"`
	CredentialID            int64      `gorm:"column:credential_id;primaryKey"`
	LastSuccessfulIndexTime *time.Time `gorm:"column:last_successful_index_time"`
	LastAttemptStatus       *string    `gorm:"column:last_attempt_status"`
	TotalDocsIndexed        int        `gorm:"column:total_docs_indexed;not null"`
	CreatedAt               time.Time  `gorm:"column:created_at;not null"`
}

func (pairRow) TableName() string { return "connector_credential_pairs" }

func pairFromDomain(p *domain.Pair) pairRow {
	row := pairRow{
		ConnectorID:      p.ConnectorID,
		CredentialID:     p.CredentialID,
		TotalDocsIndexed: p.TotalDocsIndexed,
		CreatedAt:        p.CreatedAt,
	}
	if p.LastSuccessfulIndexTime != nil {
		t := p.LastSuccessfulIndexTime.UTC()
		row.LastSuccessfulIndexTime = &t
	}
	if p.LastAttemptStatus != nil {
		s := p.LastAttemptStatus.String()
		row.LastAttemptStatus = &s
	}
	return row
}

func (r pairRow) toDomain() (domain.Pair, error) {
	p := domain.Pair{
		PairKey:          domain.PairKey{ConnectorID: r.ConnectorID, CredentialID: r.CredentialID},
		TotalDocsIndexed: r.TotalDocsIndexed,
		CreatedAt:        r.CreatedAt.UTC(),
	}
	if r.LastSuccessfulIndexTime != nil {
		t := r.LastSuccessfulIndexTime.UTC()
		p.LastSuccessfulIndexTime = &t
	}
	if r.LastAttemptStatus != nil {
		status, err := domain.ParseAttemptStatus(*r.LastAttemptStatus)
		if err != nil {
			return domain.Pair{}, err
		}
		p.LastAttemptStatus = &status
	}
	return p, nil
}

// attemptRow covers both attempt tables. index_attempts has no
// num_docs_deleted column, so writes to it omit that field.
type attemptRow struct {
	ID             int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ConnectorID    *int64    `gorm:"column:connector_id"`
	CredentialID   *int64    `gorm:"column:credential_id"`
	Status         string    `gorm:"column:status;not null"`
	ErrorMsg       *string   `gorm:"column:error_msg"`
	NumDocsDeleted int       `gorm:"column:num_docs_deleted"`
	TimeCreated    time.Time `gorm:"column:time_created;not null"`
	TimeUpdated    time.Time `gorm:"column:time_updated;not null"`
}

func attemptFromDomain(a *domain.Attempt) attemptRow {
	row := attemptRow{
		ID:             a.ID,
		ConnectorID:    a.ConnectorID,
		CredentialID:   a.CredentialID,
		Status:         a.Status.String(),
		NumDocsDeleted: a.NumDocsDeleted,
		TimeCreated:    a.CreatedAt,
		TimeUpdated:    a.UpdatedAt,
	}
	if a.Status == domain.StatusFailed {
		msg := a.ErrorMsg
		row.ErrorMsg = &msg
	}
	return row
}

func (r attemptRow) toDomain(kind domain.AttemptKind) (domain.Attempt, error) {
	status, err := domain.ParseAttemptStatus(r.Status)
	if err != nil {
		return domain.Attempt{}, err
	}
	a := domain.Attempt{
		ID:             r.ID,
		Kind:           kind,
		ConnectorID:    r.ConnectorID,
		CredentialID:   r.CredentialID,
		Status:         status,
		NumDocsDeleted: r.NumDocsDeleted,
		CreatedAt:      r.TimeCreated.UTC(),
		UpdatedAt:      r.TimeUpdated.UTC(),
	}
	if r.ErrorMsg != nil {
		a.ErrorMsg = *r.ErrorMsg
	}
	return a, nil
}

type leaseRow struct {
	ConnectorID  int64     `gorm:"column:connector_id;primaryKey"`
	CredentialID int64     `gorm:"column:credential_id;primaryKey"`
	AttemptKind  string    `gorm:"column:attempt_kind;not null"`
	AttemptID    int64     `gorm:"column:attempt_id;not null"`
	AcquiredAt   time.Time `gorm:"column:acquired_at;not null"`
}

func (leaseRow) TableName() string { return "pair_leases" }

type documentRow struct {
	ID        string    `gorm:"column:id;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (documentRow) TableName() string { return "documents" }

type attributionRow struct {
	DocumentID   string `gorm:"column:document_id;primaryKey"`
	ConnectorID  int64  `gorm:"column:connector_id;primaryKey"`
	CredentialID int64  `gorm:"column:credential_id;primaryKey"`
}

func (attributionRow) TableName() string { return "document_by_connector_credential_pair" }

type chunkRow struct {
	ID                string `gorm:"column:id;primaryKey"`
	DocumentStoreType string `gorm:"column:document_store_type;primaryKey"`
	DocumentID        string `gorm:"column:document_id;not null"`
}

func (chunkRow) TableName() string { return "chunks" }
