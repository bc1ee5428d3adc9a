package models

import (
	"time"

	"github.com/google/uuid"
)

// RoutingAction decides where a synchronized message is routed:
// durable storage or the SMS gateway.
type RoutingAction string

const (
	ActionPersist RoutingAction = "persist"
	ActionSendSMS RoutingAction = "send_sms"
)

// Credential is a tenant-scoped mailbox configuration for the
// session-based (username/password) mail provider. Rows are written by
// the external CRUD surface; the sync service only reads them.
type Credential struct {
	ID                uuid.UUID         `db:"id"`
	TenantID          uuid.UUID         `db:"tenant_id"`
	Namespace         string            `db:"namespace"`
	Username          string            `db:"username"`
	PasswordEnc       string            `db:"password_enc"` // secret codec ciphertext, never plaintext
	Endpoint          string            `db:"endpoint"`
	Mailboxes         []string          `db:"mailboxes"`
	DestinationFolder string            `db:"destination_folder"`
	Action            RoutingAction     `db:"action"`
	Metadata          map[string]string `db:"metadata"`
	Enabled           bool              `db:"enabled"`
	CreatedAt         time.Time         `db:"created_at"`
}

// AppCredential is the application-credential (OAuth client) variant
// used by the Graph-style provider. Client id, client secret and
// directory id are each independently encrypted at rest.
type AppCredential struct {
	ID                uuid.UUID         `db:"id"`
	TenantID          uuid.UUID         `db:"tenant_id"`
	Namespace         string            `db:"namespace"`
	ClientIDEnc       string            `db:"client_id_enc"`
	ClientSecretEnc   string            `db:"client_secret_enc"`
	DirectoryIDEnc    string            `db:"directory_id_enc"`
	Mailboxes         []string          `db:"mailboxes"`
	DestinationFolder string            `db:"destination_folder"`
	Metadata          map[string]string `db:"metadata"`
	Enabled           bool              `db:"enabled"`
	CreatedAt         time.Time         `db:"created_at"`
}
