package mock

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Wire types mirroring the Graph mail API subset the sync service
// consumes.

type EmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type Recipient struct {
	EmailAddress EmailAddress `json:"emailAddress"`
}

type ItemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Attachment struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	ContentBytes []byte `json:"contentBytes"`
}

type Message struct {
	ID                     string      `json:"id"`
	Subject                string      `json:"subject"`
	ReceivedDateTime       time.Time   `json:"receivedDateTime"`
	From                   *Recipient  `json:"from"`
	ToRecipients           []Recipient `json:"toRecipients"`
	Body                   *ItemBody   `json:"body"`
	InternetMessageHeaders []Header    `json:"internetMessageHeaders"`
	HasAttachments         bool        `json:"hasAttachments"`

	FolderID    string       `json:"-"`
	Read        bool         `json:"-"`
	Attachments []Attachment `json:"-"`
}

type Folder struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// SentSMS is one SMS accepted by the messaging endpoint.
type SentSMS struct {
	TenantID     string    `json:"tenant_id"`
	Sender       string    `json:"sender"`
	Message      string    `json:"message"`
	MobileNumber string    `json:"mobile_number"`
	SentAt       time.Time `json:"sent_at"`
}

// SentAlert is one operator alert accepted by the messaging endpoint.
type SentAlert struct {
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	SentAt  time.Time `json:"sent_at"`
}

const inboxID = "inbox"

var (
	subjects = []string{
		"Meeting tomorrow",
		"Project update",
		"Budget review",
		"Team lunch",
		"Quarterly report",
		"Client feedback",
		"Urgent: Action required",
		"Follow up",
	}
	senderDomains = []string{"example.com", "company.com", "business.org", "enterprise.net"}

	// Mailbox state - maintained across calls
	mailboxes   = map[string]*mailboxState{}
	mailboxesMu sync.RWMutex

	// Messaging outbox - everything the sync service dispatched
	smsOutbox   []SentSMS
	alertOutbox []SentAlert
	outboxMu    sync.RWMutex
)

type mailboxState struct {
	folders  []Folder
	messages []*Message
}

func init() {
	// Seed two tenant mailboxes so a fresh stack has traffic right away
	for _, addr := range []string{"support@acme.example", "dispatch@acme.example"} {
		mailboxes[addr] = newMailboxState()
	}

	// Generate a couple of unread messages every 30 seconds
	go generateMessagesPeriodically()
}

func newMailboxState() *mailboxState {
	return &mailboxState{
		folders: []Folder{{ID: inboxID, DisplayName: "Inbox"}},
	}
}

func generateMessagesPeriodically() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		mailboxesMu.Lock()
		for addr, state := range mailboxes {
			for i := 0; i < rand.Intn(3); i++ {
				state.messages = append(state.messages, generateMessage(addr, len(state.messages)))
			}
		}
		mailboxesMu.Unlock()
	}
}

func generateMessage(mailbox string, index int) *Message {
	subject := subjects[rand.Intn(len(subjects))]
	from := fmt.Sprintf("sender%d@%s", rand.Intn(50000), senderDomains[rand.Intn(len(senderDomains))])
	id := uuid.New().String()
	receivedAt := time.Now().Add(-time.Duration(rand.Intn(30)) * time.Second)

	var body string
	if index%3 == 0 {
		// Every third message carries an SMS dispatch body
		body = fmt.Sprintf("Recipient=07%08d\r\nMessage=Reminder about %s\r\nSender=Acme", rand.Intn(100000000), subject)
	} else {
		body = fmt.Sprintf("Hello,\r\n\r\nThis concerns %s.\r\n\r\nMessage %d for %s.\r\n\r\nBest regards", subject, index, mailbox)
	}

	msg := &Message{
		ID:               id,
		Subject:          fmt.Sprintf("%s [%d]", subject, index),
		ReceivedDateTime: receivedAt,
		From:             &Recipient{EmailAddress: EmailAddress{Address: from}},
		ToRecipients:     []Recipient{{EmailAddress: EmailAddress{Address: mailbox}}},
		Body:             &ItemBody{ContentType: "text", Content: body},
		InternetMessageHeaders: []Header{
			{Name: "Message-ID", Value: fmt.Sprintf("<%s@mock.example>", id)},
		},
		FolderID: inboxID,
	}

	if index%5 == 0 {
		msg.HasAttachments = true
		msg.Attachments = []Attachment{{
			ID:           uuid.New().String(),
			Name:         "report.txt",
			ContentType:  "text/plain",
			ContentBytes: []byte(fmt.Sprintf("attachment for message %d", index)),
		}}
	}

	return msg
}

func getOrCreateMailbox(addr string) *mailboxState {
	if state, ok := mailboxes[addr]; ok {
		return state
	}
	state := newMailboxState()
	mailboxes[addr] = state
	return state
}

// ListUnread returns the unread inbox messages of a mailbox, paged by
// skip/top, and whether more pages remain.
func ListUnread(mailbox string, skip, top int) ([]Message, bool) {
	mailboxesMu.RLock()
	defer mailboxesMu.RUnlock()

	state, ok := mailboxes[mailbox]
	if !ok {
		return []Message{}, false
	}

	unread := make([]Message, 0)
	for _, msg := range state.messages {
		if msg.FolderID == inboxID && !msg.Read {
			unread = append(unread, *msg)
		}
	}

	if skip >= len(unread) {
		return []Message{}, false
	}
	end := skip + top
	if end > len(unread) {
		end = len(unread)
	}
	return unread[skip:end], end < len(unread)
}

// GetMessage returns one message of a mailbox by id.
func GetMessage(mailbox, id string) (Message, bool) {
	mailboxesMu.RLock()
	defer mailboxesMu.RUnlock()

	state, ok := mailboxes[mailbox]
	if !ok {
		return Message{}, false
	}
	for _, msg := range state.messages {
		if msg.ID == id {
			return *msg, true
		}
	}
	return Message{}, false
}

// GetAttachments returns the attachments of a message.
func GetAttachments(mailbox, id string) ([]Attachment, bool) {
	mailboxesMu.RLock()
	defer mailboxesMu.RUnlock()

	state, ok := mailboxes[mailbox]
	if !ok {
		return nil, false
	}
	for _, msg := range state.messages {
		if msg.ID == id {
			return append([]Attachment{}, msg.Attachments...), true
		}
	}
	return nil, false
}

// MoveMessage moves a message into the given folder.
func MoveMessage(mailbox, id, folderID string) bool {
	mailboxesMu.Lock()
	defer mailboxesMu.Unlock()

	state, ok := mailboxes[mailbox]
	if !ok {
		return false
	}

	valid := false
	for _, f := range state.folders {
		if f.ID == folderID {
			valid = true
			break
		}
	}
	if !valid {
		return false
	}

	for _, msg := range state.messages {
		if msg.ID == id {
			msg.FolderID = folderID
			return true
		}
	}
	return false
}

// DeleteMessage removes a message from its mailbox.
func DeleteMessage(mailbox, id string) bool {
	mailboxesMu.Lock()
	defer mailboxesMu.Unlock()

	state, ok := mailboxes[mailbox]
	if !ok {
		return false
	}
	for i, msg := range state.messages {
		if msg.ID == id {
			state.messages = append(state.messages[:i], state.messages[i+1:]...)
			return true
		}
	}
	return false
}

// ListFolders returns the mail folders of a mailbox.
func ListFolders(mailbox string) []Folder {
	mailboxesMu.RLock()
	defer mailboxesMu.RUnlock()

	state, ok := mailboxes[mailbox]
	if !ok {
		return []Folder{}
	}
	return append([]Folder{}, state.folders...)
}

// CreateFolder creates a mail folder, reusing an existing one with the
// same display name.
func CreateFolder(mailbox, displayName string) Folder {
	mailboxesMu.Lock()
	defer mailboxesMu.Unlock()

	state := getOrCreateMailbox(mailbox)
	for _, f := range state.folders {
		if strings.EqualFold(f.DisplayName, displayName) {
			return f
		}
	}

	folder := Folder{ID: uuid.New().String(), DisplayName: displayName}
	state.folders = append(state.folders, folder)
	return folder
}

// AddMessages seeds count fresh unread messages into a mailbox and
// returns the mailbox's total message count.
func AddMessages(mailbox string, count int) (int, error) {
	if count < 1 {
		return 0, fmt.Errorf("count must be at least 1")
	}

	mailboxesMu.Lock()
	defer mailboxesMu.Unlock()

	state := getOrCreateMailbox(mailbox)
	for i := 0; i < count; i++ {
		state.messages = append(state.messages, generateMessage(mailbox, len(state.messages)))
	}
	return len(state.messages), nil
}

// RecordSMS stores an accepted SMS in the outbox.
func RecordSMS(tenantID, sender, message, mobileNumber string) {
	outboxMu.Lock()
	defer outboxMu.Unlock()

	smsOutbox = append(smsOutbox, SentSMS{
		TenantID:     tenantID,
		Sender:       sender,
		Message:      message,
		MobileNumber: mobileNumber,
		SentAt:       time.Now(),
	})
}

// RecordAlert stores an accepted alert in the outbox.
func RecordAlert(subject, body string) {
	outboxMu.Lock()
	defer outboxMu.Unlock()

	alertOutbox = append(alertOutbox, SentAlert{Subject: subject, Body: body, SentAt: time.Now()})
}

// Outbox returns everything dispatched so far.
func Outbox() ([]SentSMS, []SentAlert) {
	outboxMu.RLock()
	defer outboxMu.RUnlock()

	return append([]SentSMS{}, smsOutbox...), append([]SentAlert{}, alertOutbox...)
}
