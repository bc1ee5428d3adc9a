package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

// Graph is the application-credential provider variant, a REST client
// for a Microsoft Graph style mail API authenticated with an OAuth2
// client-credentials grant.
type Graph struct {
	base     string
	client   *http.Client
	pageSize int
}

// NewGraph creates a Graph provider for one application credential.
// tokenURL is a format string receiving the directory (tenant) id.
func NewGraph(ctx context.Context, baseURL, tokenURL, clientID, clientSecret, directoryID string) *Graph {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     fmt.Sprintf(tokenURL, directoryID),
		Scopes:       []string{"https://graph.microsoft.com/.default"},
	}

	return &Graph{
		base:     strings.TrimRight(baseURL, "/"),
		client:   cfg.Client(ctx),
		pageSize: 50,
	}
}

type graphHandle struct {
	hasAttachments bool
}

type graphRecipient struct {
	EmailAddress graphEmailAddress `json:"emailAddress"`
}

type graphEmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type graphItemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type graphMessage struct {
	ID                     string           `json:"id"`
	Subject                string           `json:"subject"`
	ReceivedDateTime       time.Time        `json:"receivedDateTime"`
	From                   *graphRecipient  `json:"from"`
	ToRecipients           []graphRecipient `json:"toRecipients"`
	Body                   *graphItemBody   `json:"body"`
	InternetMessageHeaders []graphHeader    `json:"internetMessageHeaders"`
	HasAttachments         bool             `json:"hasAttachments"`
}

type graphMessageList struct {
	Value    []graphMessage `json:"value"`
	NextLink string         `json:"@odata.nextLink"`
}

type graphFolder struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type graphFolderList struct {
	Value    []graphFolder `json:"value"`
	NextLink string        `json:"@odata.nextLink"`
}

type graphAttachment struct {
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	ContentBytes []byte `json:"contentBytes"`
}

type graphAttachmentList struct {
	Value []graphAttachment `json:"value"`
}

// ListUnseen pages through the inbox messages filtered on isRead,
// following @odata.nextLink until the provider signals no more results.
func (g *Graph) ListUnseen(ctx context.Context, mailbox string) (MessageIter, error) {
	query := url.Values{}
	query.Set("$filter", "isRead eq false")
	query.Set("$top", strconv.Itoa(g.pageSize))

	first := fmt.Sprintf("%s/users/%s/mailFolders/inbox/messages?%s",
		g.base, url.PathEscape(mailbox), query.Encode())

	return &graphIter{ctx: ctx, g: g, mailbox: mailbox, next: first}, nil
}

// LoadFull fetches the message body, headers and attachments in a
// second round trip.
func (g *Graph) LoadFull(ctx context.Context, msg *Message) error {
	h, ok := msg.handle.(graphHandle)
	if !ok {
		return fmt.Errorf("message %s carries no Graph handle", msg.ID)
	}

	var full graphMessage
	msgURL := fmt.Sprintf("%s/users/%s/messages/%s",
		g.base, url.PathEscape(msg.Mailbox), url.PathEscape(msg.ID))
	if err := g.getJSON(ctx, msgURL, &full); err != nil {
		return fmt.Errorf("loading message %s: %w", msg.ID, err)
	}

	if full.Body != nil {
		msg.Body = full.Body.Content
	}
	for _, hdr := range full.InternetMessageHeaders {
		msg.Headers[hdr.Name] = append(msg.Headers[hdr.Name], hdr.Value)
	}

	if !h.hasAttachments {
		return nil
	}

	var atts graphAttachmentList
	attURL := fmt.Sprintf("%s/users/%s/messages/%s/attachments",
		g.base, url.PathEscape(msg.Mailbox), url.PathEscape(msg.ID))
	if err := g.getJSON(ctx, attURL, &atts); err != nil {
		return fmt.Errorf("loading attachments of message %s: %w", msg.ID, err)
	}

	msg.Attachments = msg.Attachments[:0]
	for _, att := range atts.Value {
		msg.Attachments = append(msg.Attachments, Attachment{
			Name:        att.Name,
			Content:     att.ContentBytes,
			ContentType: att.ContentType,
		})
	}

	return nil
}

// ResolveOrCreateFolder matches the display name case-insensitively
// against the mailbox's mail folders and creates the folder when no
// match exists.
func (g *Graph) ResolveOrCreateFolder(ctx context.Context, mailbox, name string) (Folder, error) {
	var matches []graphFolder

	next := fmt.Sprintf("%s/users/%s/mailFolders?$top=100", g.base, url.PathEscape(mailbox))
	for next != "" {
		var page graphFolderList
		if err := g.getJSON(ctx, next, &page); err != nil {
			return Folder{}, fmt.Errorf("listing folders of %s: %w", mailbox, err)
		}
		for _, f := range page.Value {
			if strings.EqualFold(f.DisplayName, name) {
				matches = append(matches, f)
			}
		}
		next = page.NextLink
	}

	switch len(matches) {
	case 1:
		return Folder{ID: matches[0].ID, Name: matches[0].DisplayName}, nil
	case 0:
		var created graphFolder
		createURL := fmt.Sprintf("%s/users/%s/mailFolders", g.base, url.PathEscape(mailbox))
		if err := g.postJSON(ctx, createURL, map[string]string{"displayName": name}, &created); err != nil {
			return Folder{}, fmt.Errorf("creating folder %q in %s: %w", name, mailbox, err)
		}
		return Folder{ID: created.ID, Name: created.DisplayName}, nil
	default:
		return Folder{}, fmt.Errorf("%w: %q matches %d folders", ErrAmbiguousFolder, name, len(matches))
	}
}

// Move moves the message into the destination folder.
func (g *Graph) Move(ctx context.Context, msg *Message, folder Folder) error {
	moveURL := fmt.Sprintf("%s/users/%s/messages/%s/move",
		g.base, url.PathEscape(msg.Mailbox), url.PathEscape(msg.ID))
	if err := g.postJSON(ctx, moveURL, map[string]string{"destinationId": folder.ID}, nil); err != nil {
		return fmt.Errorf("moving message %s to %q: %w", msg.ID, folder.Name, err)
	}
	return nil
}

// Delete hard-deletes the message.
func (g *Graph) Delete(ctx context.Context, msg *Message) error {
	delURL := fmt.Sprintf("%s/users/%s/messages/%s",
		g.base, url.PathEscape(msg.Mailbox), url.PathEscape(msg.ID))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, delURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: deleting message %s: %v", ErrUnavailable, msg.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("deleting message %s: unexpected status %d: %s", msg.ID, resp.StatusCode, string(body))
	}
	return nil
}

func (g *Graph) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	// Ask the provider for plain-text bodies.
	req.Header.Set("Prefer", `outlook.body-content-type="text"`)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: unexpected status %d: %s", ErrUnavailable, resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (g *Graph) postJSON(ctx context.Context, rawURL string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// graphIter follows the paginated message listing lazily.
type graphIter struct {
	ctx     context.Context
	g       *Graph
	mailbox string
	next    string
	buf     []*Message
	cur     *Message
	err     error
}

func (it *graphIter) Next() bool {
	if it.err != nil {
		return false
	}

	for len(it.buf) == 0 {
		if it.next == "" {
			return false
		}

		var page graphMessageList
		if err := it.g.getJSON(it.ctx, it.next, &page); err != nil {
			it.err = fmt.Errorf("listing messages of %s: %w", it.mailbox, err)
			return false
		}
		it.next = page.NextLink

		for i := range page.Value {
			it.buf = append(it.buf, it.toMessage(&page.Value[i]))
		}
	}

	it.cur = it.buf[0]
	it.buf = it.buf[1:]
	return true
}

func (it *graphIter) Message() *Message { return it.cur }

func (it *graphIter) Err() error { return it.err }

func (it *graphIter) Close() error { return nil }

func (it *graphIter) toMessage(gm *graphMessage) *Message {
	msg := &Message{
		ID:         gm.ID,
		Mailbox:    it.mailbox,
		Subject:    gm.Subject,
		ReceivedAt: gm.ReceivedDateTime,
		Headers:    make(map[string][]string),
		handle:     graphHandle{hasAttachments: gm.HasAttachments},
	}

	if gm.From != nil {
		msg.Sender = gm.From.EmailAddress.Address
	}
	for _, to := range gm.ToRecipients {
		msg.Recipients = append(msg.Recipients, to.EmailAddress.Address)
	}
	if gm.Body != nil {
		msg.Body = gm.Body.Content
	}
	for _, hdr := range gm.InternetMessageHeaders {
		msg.Headers[hdr.Name] = append(msg.Headers[hdr.Name], hdr.Value)
	}

	return msg
}
