package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nordiq/mailroom/services/sync-service/internal/db"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Setup database tables",
	Long:  "Creates the credential, email and job lock tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		// Initialize database
		pool, err := db.Connect(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer pool.Close()

		// Run migrations
		fmt.Println("Running migrations...")
		migrationSQL := `
			-- Session credentials (IMAP-capable hosts, one service account
			-- proxying into many tenant mailboxes)
			CREATE TABLE IF NOT EXISTS credentials (
			    id UUID PRIMARY KEY,
			    tenant_id UUID NOT NULL,
			    namespace VARCHAR(255) NOT NULL,
			    username VARCHAR(255) NOT NULL,
			    password_enc TEXT NOT NULL,
			    endpoint VARCHAR(255) NOT NULL,
			    mailboxes TEXT[] NOT NULL CHECK (array_length(mailboxes, 1) >= 1),
			    destination_folder VARCHAR(255) NOT NULL CHECK (destination_folder <> ''),
			    action VARCHAR(16) NOT NULL,
			    metadata JSONB NOT NULL DEFAULT '{}',
			    enabled BOOLEAN NOT NULL DEFAULT true,
			    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
			);

			CREATE INDEX IF NOT EXISTS idx_credentials_action ON credentials(action) WHERE enabled;

			-- Application credentials (Graph client-credential tenants)
			CREATE TABLE IF NOT EXISTS app_credentials (
			    id UUID PRIMARY KEY,
			    tenant_id UUID NOT NULL,
			    namespace VARCHAR(255) NOT NULL,
			    client_id_enc TEXT NOT NULL,
			    client_secret_enc TEXT NOT NULL,
			    directory_id_enc TEXT NOT NULL,
			    mailboxes TEXT[] NOT NULL CHECK (array_length(mailboxes, 1) >= 1),
			    destination_folder VARCHAR(255) NOT NULL CHECK (destination_folder <> ''),
			    metadata JSONB NOT NULL DEFAULT '{}',
			    enabled BOOLEAN NOT NULL DEFAULT true,
			    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
			);

			-- Canonical emails
			CREATE TABLE IF NOT EXISTS emails (
			    id UUID PRIMARY KEY,
			    tenant_id UUID NOT NULL,
			    namespace VARCHAR(255) NOT NULL,
			    sender VARCHAR(320),
			    recipients TEXT[] NOT NULL DEFAULT '{}',
			    subject TEXT,
			    body TEXT,
			    received_at TIMESTAMP WITH TIME ZONE,
			    metadata JSONB NOT NULL DEFAULT '{}',
			    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
			);

			CREATE INDEX IF NOT EXISTS idx_emails_created_at ON emails(created_at);
			CREATE INDEX IF NOT EXISTS idx_emails_tenant_id ON emails(tenant_id);

			-- Attachments, ordered within their email
			CREATE TABLE IF NOT EXISTS email_attachments (
			    email_id UUID NOT NULL REFERENCES emails(id) ON DELETE CASCADE,
			    position INTEGER NOT NULL,
			    name VARCHAR(255) NOT NULL,
			    content BYTEA NOT NULL,
			    content_type VARCHAR(255) NOT NULL,
			    PRIMARY KEY (email_id, position)
			);

			-- Recognized threading headers, ordered per kind
			CREATE TABLE IF NOT EXISTS email_headers (
			    email_id UUID NOT NULL REFERENCES emails(id) ON DELETE CASCADE,
			    kind VARCHAR(32) NOT NULL,
			    position INTEGER NOT NULL,
			    value TEXT NOT NULL,
			    PRIMARY KEY (email_id, kind, position)
			);

			-- Cluster-wide job locks, one row per job name
			CREATE TABLE IF NOT EXISTS job_locks (
			    name VARCHAR(64) PRIMARY KEY,
			    token UUID NOT NULL,
			    locked_at TIMESTAMP WITH TIME ZONE NOT NULL,
			    expires_at TIMESTAMP WITH TIME ZONE NOT NULL
			);
		`

		if _, err := pool.Exec(ctx, migrationSQL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		fmt.Println("✓ Database setup complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
