// Package store holds the pgx-backed repositories of the sync service.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nordiq/mailroom/internal/models"
)

// CredentialStore reads tenant mailbox credentials. Rows are managed by
// the external CRUD API; this store never writes.
type CredentialStore struct {
	pool *pgxpool.Pool
}

// NewCredentialStore creates a CredentialStore on the given pool.
func NewCredentialStore(pool *pgxpool.Pool) *CredentialStore {
	return &CredentialStore{pool: pool}
}

// FindActiveByAction returns all enabled session credentials configured
// with the given routing action.
func (s *CredentialStore) FindActiveByAction(ctx context.Context, action models.RoutingAction) ([]models.Credential, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, namespace, username, password_enc, endpoint,
		       mailboxes, destination_folder, action, metadata, enabled, created_at
		FROM credentials
		WHERE action = $1 AND enabled = true
	`, string(action))
	if err != nil {
		return nil, fmt.Errorf("querying credentials: %w", err)
	}
	defer rows.Close()

	var creds []models.Credential
	for rows.Next() {
		var c models.Credential
		var metadata []byte
		if err := rows.Scan(
			&c.ID,
			&c.TenantID,
			&c.Namespace,
			&c.Username,
			&c.PasswordEnc,
			&c.Endpoint,
			&c.Mailboxes,
			&c.DestinationFolder,
			&c.Action,
			&metadata,
			&c.Enabled,
			&c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning credential: %w", err)
		}
		if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
			return nil, fmt.Errorf("decoding credential metadata: %w", err)
		}
		creds = append(creds, c)
	}

	return creds, rows.Err()
}

// FindAllAppCredentials returns every enabled application credential.
// The Graph-style provider polls all of its tenants each run, so there
// is no action filter.
func (s *CredentialStore) FindAllAppCredentials(ctx context.Context) ([]models.AppCredential, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, namespace, client_id_enc, client_secret_enc, directory_id_enc,
		       mailboxes, destination_folder, metadata, enabled, created_at
		FROM app_credentials
		WHERE enabled = true
	`)
	if err != nil {
		return nil, fmt.Errorf("querying app credentials: %w", err)
	}
	defer rows.Close()

	var creds []models.AppCredential
	for rows.Next() {
		var c models.AppCredential
		var metadata []byte
		if err := rows.Scan(
			&c.ID,
			&c.TenantID,
			&c.Namespace,
			&c.ClientIDEnc,
			&c.ClientSecretEnc,
			&c.DirectoryIDEnc,
			&c.Mailboxes,
			&c.DestinationFolder,
			&metadata,
			&c.Enabled,
			&c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning app credential: %w", err)
		}
		if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
			return nil, fmt.Errorf("decoding app credential metadata: %w", err)
		}
		creds = append(creds, c)
	}

	return creds, rows.Err()
}
