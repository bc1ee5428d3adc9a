package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
)

// IMAP is the session-credential provider variant: one service account
// authenticates against the tenant's IMAP endpoint and proxies into the
// configured mailboxes via the SASL PLAIN authorization identity.
type IMAP struct {
	endpoint string
	username string
	password string
	pageSize int
}

// NewIMAP creates an IMAP provider for one credential. The session is
// constructed per run from just-decrypted secrets and discarded with it.
func NewIMAP(endpoint, username, password string) *IMAP {
	return &IMAP{
		endpoint: endpoint,
		username: username,
		password: password,
		pageSize: 25,
	}
}

type imapHandle struct {
	uid imap.UID
}

// connect dials the endpoint and authenticates with the mailbox address
// as authorization identity.
func (p *IMAP) connect(mailbox string) (*imapclient.Client, error) {
	client, err := imapclient.DialTLS(p.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s: %v", ErrUnavailable, p.endpoint, err)
	}

	if err := client.Authenticate(sasl.NewPlainClient(mailbox, p.username, p.password)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: authenticating as %s: %v", ErrUnavailable, p.username, err)
	}

	return client, nil
}

// ListUnseen searches the INBOX for unseen messages and returns an
// iterator that fetches them in fixed-size pages. The iterator owns the
// IMAP session until Close.
func (p *IMAP) ListUnseen(_ context.Context, mailbox string) (MessageIter, error) {
	client, err := p.connect(mailbox)
	if err != nil {
		return nil, err
	}

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("%w: selecting INBOX of %s: %v", ErrUnavailable, mailbox, err)
	}

	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}
	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("%w: searching unseen messages in %s: %v", ErrUnavailable, mailbox, err)
	}

	return &imapIter{
		client:   client,
		mailbox:  mailbox,
		uids:     searchData.AllUIDs(),
		pageSize: p.pageSize,
	}, nil
}

// LoadFull is a no-op for IMAP: bodies, attachments and headers are
// hydrated during pagination.
func (p *IMAP) LoadFull(_ context.Context, _ *Message) error {
	return nil
}

// ResolveOrCreateFolder matches the folder name case-insensitively
// against LIST output and creates the folder when no match exists.
func (p *IMAP) ResolveOrCreateFolder(_ context.Context, mailbox, name string) (Folder, error) {
	client, err := p.connect(mailbox)
	if err != nil {
		return Folder{}, err
	}
	defer func() { _ = client.Logout().Wait() }()

	boxes, err := client.List("", "*", nil).Collect()
	if err != nil {
		return Folder{}, fmt.Errorf("%w: listing folders of %s: %v", ErrUnavailable, mailbox, err)
	}

	names := make([]string, 0, len(boxes))
	for _, b := range boxes {
		names = append(names, b.Mailbox)
	}

	match, found, err := matchFolder(names, name)
	if err != nil {
		return Folder{}, err
	}
	if found {
		return Folder{ID: match, Name: match}, nil
	}

	if err := client.Create(name, nil).Wait(); err != nil {
		return Folder{}, fmt.Errorf("creating folder %q in %s: %w", name, mailbox, err)
	}
	return Folder{ID: name, Name: name}, nil
}

// Move moves the message out of the INBOX into the destination folder.
func (p *IMAP) Move(_ context.Context, msg *Message, folder Folder) error {
	h, ok := msg.handle.(imapHandle)
	if !ok {
		return fmt.Errorf("message %s carries no IMAP handle", msg.ID)
	}

	client, err := p.connect(msg.Mailbox)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		return fmt.Errorf("%w: selecting INBOX of %s: %v", ErrUnavailable, msg.Mailbox, err)
	}

	if _, err := client.Move(imap.UIDSetNum(h.uid), folder.ID).Wait(); err != nil {
		return fmt.Errorf("moving message %s to %q: %w", msg.ID, folder.Name, err)
	}
	return nil
}

// Delete flags the message deleted and expunges it.
func (p *IMAP) Delete(_ context.Context, msg *Message) error {
	h, ok := msg.handle.(imapHandle)
	if !ok {
		return fmt.Errorf("message %s carries no IMAP handle", msg.ID)
	}

	client, err := p.connect(msg.Mailbox)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		return fmt.Errorf("%w: selecting INBOX of %s: %v", ErrUnavailable, msg.Mailbox, err)
	}

	storeCmd := client.Store(imap.UIDSetNum(h.uid), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	}, nil)
	if err := storeCmd.Close(); err != nil {
		return fmt.Errorf("flagging message %s deleted: %w", msg.ID, err)
	}

	if err := client.Expunge().Close(); err != nil {
		return fmt.Errorf("expunging message %s: %w", msg.ID, err)
	}
	return nil
}

// matchFolder finds the unique case-insensitive match for name among
// the listed folder names.
func matchFolder(names []string, name string) (string, bool, error) {
	var matches []string
	for _, n := range names {
		if strings.EqualFold(n, name) {
			matches = append(matches, n)
		}
	}

	switch len(matches) {
	case 0:
		return "", false, nil
	case 1:
		return matches[0], true, nil
	default:
		return "", false, fmt.Errorf("%w: %q matches %d folders", ErrAmbiguousFolder, name, len(matches))
	}
}

// imapIter pages through the unseen UIDs, fetching envelope and body
// for pageSize messages at a time.
type imapIter struct {
	client   *imapclient.Client
	mailbox  string
	uids     []imap.UID
	pageSize int
	buf      []*Message
	cur      *Message
	err      error
}

func (it *imapIter) Next() bool {
	if it.err != nil {
		return false
	}

	for len(it.buf) == 0 {
		if len(it.uids) == 0 {
			return false
		}
		n := min(it.pageSize, len(it.uids))
		page := it.uids[:n]
		it.uids = it.uids[n:]

		msgs, err := it.fetchPage(page)
		if err != nil {
			it.err = err
			return false
		}
		it.buf = msgs
	}

	it.cur = it.buf[0]
	it.buf = it.buf[1:]
	return true
}

func (it *imapIter) Message() *Message { return it.cur }

func (it *imapIter) Err() error { return it.err }

func (it *imapIter) Close() error {
	return it.client.Logout().Wait()
}

func (it *imapIter) fetchPage(page []imap.UID) ([]*Message, error) {
	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	bufs, err := it.client.Fetch(imap.UIDSetNum(page...), fetchOpts).Collect()
	if err != nil {
		return nil, fmt.Errorf("%w: fetching messages from %s: %v", ErrUnavailable, it.mailbox, err)
	}

	msgs := make([]*Message, 0, len(bufs))
	for _, buf := range bufs {
		msgs = append(msgs, it.toMessage(buf, bodySection))
	}
	return msgs, nil
}

func (it *imapIter) toMessage(buf *imapclient.FetchMessageBuffer, section *imap.FetchItemBodySection) *Message {
	msg := &Message{
		ID:      strconv.FormatUint(uint64(buf.UID), 10),
		Mailbox: it.mailbox,
		Headers: make(map[string][]string),
		handle:  imapHandle{uid: buf.UID},
	}

	if env := buf.Envelope; env != nil {
		msg.Subject = env.Subject
		msg.ReceivedAt = env.Date
		if len(env.From) > 0 {
			msg.Sender = env.From[0].Addr()
		}
		for _, to := range env.To {
			msg.Recipients = append(msg.Recipients, to.Addr())
		}
	}

	if raw := buf.FindBodySection(section); raw != nil {
		body, atts, headers := parseRaw(raw)
		msg.Body = body
		msg.Attachments = atts
		for k, v := range headers {
			msg.Headers[k] = v
		}
	}

	return msg
}

// parseRaw parses an RFC 5322 payload into plain-text body, attachments
// with content bytes, and the full header map. An unparsable payload is
// carried as plain text with no headers.
func parseRaw(raw []byte) (string, []Attachment, map[string][]string) {
	headers := make(map[string][]string)

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return string(raw), nil, headers
	}
	defer mr.Close()

	fields := mr.Header.Fields()
	for fields.Next() {
		value, err := fields.Text()
		if err != nil {
			value = fields.Value()
		}
		headers[fields.Key()] = append(headers[fields.Key()], value)
	}

	var body string
	var atts []Attachment
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			data, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			if strings.HasPrefix(contentType, "text/plain") && body == "" {
				body = string(data)
			}

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			data, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			atts = append(atts, Attachment{
				Name:        filename,
				Content:     data,
				ContentType: contentType,
			})
		}
	}

	return body, atts, headers
}
