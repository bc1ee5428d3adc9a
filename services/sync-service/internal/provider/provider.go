// Package provider abstracts the external mailbox providers behind one
// capability set: list unseen inbox messages, hydrate a message, resolve
// or create a folder, move a message, delete a message.
package provider

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable marks transport or authentication failures
	// against a mailbox provider. Callers skip the mailbox for the
	// current run instead of retrying.
	ErrUnavailable = errors.New("mailbox provider unavailable")

	// ErrAmbiguousFolder is returned when more than one folder
	// matches a destination folder name case-insensitively.
	ErrAmbiguousFolder = errors.New("ambiguous destination folder")
)

// Provider is the capability set shared by both mailbox provider
// variants. Callers never branch on which variant they hold.
type Provider interface {
	// ListUnseen returns a lazy, finite, non-restartable sequence of
	// the mailbox's unseen inbox messages.
	ListUnseen(ctx context.Context, mailbox string) (MessageIter, error)

	// LoadFull hydrates body, attachments and headers if the
	// provider requires a second round trip. Idempotent.
	LoadFull(ctx context.Context, msg *Message) error

	// ResolveOrCreateFolder looks up a folder by case-insensitive
	// display name, creating it when absent. More than one match
	// fails with ErrAmbiguousFolder.
	ResolveOrCreateFolder(ctx context.Context, mailbox, name string) (Folder, error)

	// Move moves the message into the given folder. Called only
	// after the message has been handed to its dispatch sink.
	Move(ctx context.Context, msg *Message, folder Folder) error

	// Delete hard-deletes the message. Used by maintenance flows,
	// not by the sync pipeline.
	Delete(ctx context.Context, msg *Message) error
}

// Folder is a handle to a provider folder. ID is the provider-native
// identifier (the full mailbox path for IMAP, the folder id for Graph).
type Folder struct {
	ID   string
	Name string
}

// Message is a provider-native message in transit through one
// processing pass.
type Message struct {
	ID          string
	Mailbox     string
	Sender      string
	Recipients  []string
	Subject     string
	Body        string
	ReceivedAt  time.Time
	Headers     map[string][]string
	Attachments []Attachment

	// adapter-private handle (IMAP UID etc.)
	handle any
}

// Attachment is a provider attachment with its raw content.
type Attachment struct {
	Name        string
	Content     []byte
	ContentType string
}

// MessageIter iterates a paginated message listing in the style of
// pgx rows: Next advances, Message returns the current element, Err
// reports the first pagination failure, Close releases the underlying
// session.
type MessageIter interface {
	Next() bool
	Message() *Message
	Err() error
	Close() error
}
