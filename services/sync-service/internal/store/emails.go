package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nordiq/mailroom/internal/models"
)

// MailStore persists canonical emails with their attachments and
// header rows.
type MailStore struct {
	pool *pgxpool.Pool
}

// NewMailStore creates a MailStore on the given pool.
func NewMailStore(pool *pgxpool.Pool) *MailStore {
	return &MailStore{pool: pool}
}

// Insert stores an email together with its ordered attachments and
// header values in one transaction and returns the generated storage id.
func (s *MailStore) Insert(ctx context.Context, email models.Email) (uuid.UUID, error) {
	id := uuid.New()

	metadata, err := json.Marshal(email.Metadata)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encoding email metadata: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO emails (id, tenant_id, namespace, sender, subject, body,
		                    recipients, received_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, id, email.TenantID, email.Namespace, email.Sender, email.Subject, email.Body,
		email.Recipients, email.ReceivedAt, metadata)
	if err != nil {
		return uuid.Nil, fmt.Errorf("inserting email: %w", err)
	}

	for i, att := range email.Attachments {
		_, err = tx.Exec(ctx, `
			INSERT INTO email_attachments (email_id, position, name, content, content_type)
			VALUES ($1, $2, $3, $4, $5)
		`, id, i, att.Name, att.Content, att.ContentType)
		if err != nil {
			return uuid.Nil, fmt.Errorf("inserting attachment %q: %w", att.Name, err)
		}
	}

	for _, kind := range models.RecognizedHeaders {
		for i, value := range email.Headers[kind] {
			_, err = tx.Exec(ctx, `
				INSERT INTO email_headers (email_id, kind, position, value)
				VALUES ($1, $2, $3, $4)
			`, id, string(kind), i, value)
			if err != nil {
				return uuid.Nil, fmt.Errorf("inserting header %s: %w", kind, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("committing email: %w", err)
	}

	return id, nil
}

// FindOlderThan returns the storage ids of emails persisted before the
// cutoff, used by the retention sweep.
func (s *MailStore) FindOlderThan(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id FROM emails WHERE created_at < $1 ORDER BY created_at
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("querying old emails: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning email id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
