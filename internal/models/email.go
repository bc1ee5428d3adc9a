package models

import (
	"time"

	"github.com/google/uuid"
)

// HeaderKind identifies one of the internet headers the service
// extracts from every message.
type HeaderKind string

const (
	HeaderMessageID     HeaderKind = "Message-ID"
	HeaderReferences    HeaderKind = "References"
	HeaderInReplyTo     HeaderKind = "In-Reply-To"
	HeaderAutoSubmitted HeaderKind = "Auto-Submitted"
)

// RecognizedHeaders lists the header kinds carried on a canonical email.
var RecognizedHeaders = []HeaderKind{
	HeaderMessageID,
	HeaderReferences,
	HeaderInReplyTo,
	HeaderAutoSubmitted,
}

// Email is the canonical, provider-independent representation of a
// synchronized message. ID is assigned on persist. ProviderID is the
// provider-native message id; it is only meaningful within a single
// processing pass and is never persisted.
type Email struct {
	ID          uuid.UUID               `db:"id"`
	ProviderID  string                  `db:"-"`
	TenantID    uuid.UUID               `db:"tenant_id"`
	Namespace   string                  `db:"namespace"`
	Recipients  []string                `db:"recipients"`
	Sender      string                  `db:"sender"`
	Subject     string                  `db:"subject"`
	Body        string                  `db:"body"`
	Attachments []Attachment            `db:"-"`
	Headers     map[HeaderKind][]string `db:"-"`
	ReceivedAt  time.Time               `db:"received_at"`
	Metadata    map[string]string       `db:"metadata"`
	CreatedAt   time.Time               `db:"created_at"`
}

// Attachment is an email attachment stored alongside its parent email.
type Attachment struct {
	Name        string `db:"name"`
	Content     []byte `db:"content"`
	ContentType string `db:"content_type"`
}
