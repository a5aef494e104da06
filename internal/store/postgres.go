// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/wabroadcast/backend/internal/model"
)

// PostgresStore persists the snapshot as one row per campaign, replaced
// wholesale inside a single transaction so Save keeps the atomic-replace
// contract of the Store interface.
type PostgresStore struct {
	DB *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{DB: db}
}

// EnsureSchema creates the campaigns table if it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := `
        CREATE TABLE IF NOT EXISTS campaigns (
            position            SERIAL PRIMARY KEY,
            id                  TEXT NOT NULL UNIQUE,
            name                TEXT NOT NULL,
            message             TEXT NOT NULL,
            sender_mode         TEXT NOT NULL,
            rotation_batch_size INT NOT NULL,
            current_sender      TEXT NOT NULL DEFAULT '',
            sent_since_rotation INT NOT NULL DEFAULT 0,
            status              TEXT NOT NULL,
            scheduled_at        TIMESTAMPTZ,
            min_delay_seconds   INT NOT NULL,
            max_delay_seconds   INT NOT NULL,
            recipients          JSONB NOT NULL,
            current_index       INT NOT NULL DEFAULT 0,
            sent_count          INT NOT NULL DEFAULT 0,
            failed_count        INT NOT NULL DEFAULT 0,
            created_at          TIMESTAMPTZ NOT NULL
        )
    `
	if _, err := s.DB.ExecContext(ctx, query); err != nil {
		return &UnavailableError{Op: "schema", Err: err}
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) ([]*model.Campaign, error) {
	query := `
        SELECT id, name, message, sender_mode, rotation_batch_size, current_sender,
               sent_since_rotation, status, scheduled_at, min_delay_seconds,
               max_delay_seconds, recipients, current_index, sent_count,
               failed_count, created_at
        FROM campaigns ORDER BY position
    `
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, &UnavailableError{Op: "load", Err: err}
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c := &model.Campaign{}
		var status string
		var scheduledAt sql.NullTime
		var recipients []byte
		err := rows.Scan(&c.ID, &c.Name, &c.Message, &c.SenderMode, &c.RotationBatchSize,
			&c.CurrentSender, &c.SentSinceRotation, &status, &scheduledAt,
			&c.MinDelaySeconds, &c.MaxDelaySeconds, &recipients, &c.Cursor,
			&c.SentCount, &c.FailedCount, &c.CreatedAt)
		if err != nil {
			return nil, &UnavailableError{Op: "load", Err: err}
		}
		c.Status = model.CampaignStatus(status)
		if scheduledAt.Valid {
			t := scheduledAt.Time
			c.ScheduledAt = &t
		}
		if err := json.Unmarshal(recipients, &c.Recipients); err != nil {
			return nil, &UnavailableError{Op: "load", Err: err}
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, &UnavailableError{Op: "load", Err: err}
	}
	return campaigns, nil
}

func (s *PostgresStore) Save(ctx context.Context, campaigns []*model.Campaign) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return &UnavailableError{Op: "save", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM campaigns`); err != nil {
		return &UnavailableError{Op: "save", Err: err}
	}

	insert := `
        INSERT INTO campaigns (id, name, message, sender_mode, rotation_batch_size,
            current_sender, sent_since_rotation, status, scheduled_at,
            min_delay_seconds, max_delay_seconds, recipients, current_index,
            sent_count, failed_count, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
    `
	for _, c := range campaigns {
		recipients, err := json.Marshal(c.Recipients)
		if err != nil {
			return &UnavailableError{Op: "save", Err: err}
		}
		_, err = tx.ExecContext(ctx, insert, c.ID, c.Name, c.Message, c.SenderMode,
			c.RotationBatchSize, c.CurrentSender, c.SentSinceRotation, string(c.Status),
			c.ScheduledAt, c.MinDelaySeconds, c.MaxDelaySeconds, recipients, c.Cursor,
			c.SentCount, c.FailedCount, c.CreatedAt)
		if err != nil {
			return &UnavailableError{Op: "save", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &UnavailableError{Op: "save", Err: err}
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
