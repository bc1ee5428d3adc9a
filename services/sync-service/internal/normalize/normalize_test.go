package normalize

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordiq/mailroom/internal/models"
	"github.com/nordiq/mailroom/services/sync-service/internal/provider"
)

func TestNormalizeCollapsesLineBreakPairs(t *testing.T) {
	msg := &provider.Message{
		Body: "Hello\r\n\r\nWorld\r\nplain",
	}

	email := Normalize(msg, uuid.New(), "acme", nil)

	assert.Equal(t, "Hello\r\nWorld\r\nplain", email.Body)
}

func TestNormalizeCopiesEnvelope(t *testing.T) {
	received := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tenantID := uuid.New()
	msg := &provider.Message{
		ID:         "42",
		Sender:     "sender@example.com",
		Recipients: []string{"a@x.se", "b@x.se"},
		Subject:    "Quarterly report",
		ReceivedAt: received,
	}

	email := Normalize(msg, tenantID, "acme", map[string]string{"office": "gbg"})

	assert.Equal(t, "42", email.ProviderID)
	assert.Equal(t, tenantID, email.TenantID)
	assert.Equal(t, "acme", email.Namespace)
	assert.Equal(t, []string{"a@x.se", "b@x.se"}, email.Recipients)
	assert.Equal(t, "sender@example.com", email.Sender)
	assert.Equal(t, "Quarterly report", email.Subject)
	assert.Equal(t, received, email.ReceivedAt)
	assert.Equal(t, map[string]string{"office": "gbg"}, email.Metadata)
}

func TestNormalizeSynthesizesMessageID(t *testing.T) {
	first := Normalize(&provider.Message{}, uuid.New(), "acme", nil)
	second := Normalize(&provider.Message{}, uuid.New(), "acme", nil)

	require.Len(t, first.Headers[models.HeaderMessageID], 1)
	require.Len(t, second.Headers[models.HeaderMessageID], 1)

	a := first.Headers[models.HeaderMessageID][0]
	b := second.Headers[models.HeaderMessageID][0]

	assert.NotEmpty(t, a)
	assert.True(t, strings.HasPrefix(a, "<"))
	assert.True(t, strings.HasSuffix(a, "@mailroom.generated>"))
	assert.NotEqual(t, a, b, "synthetic Message-IDs must be globally unique")
}

func TestNormalizeHeaderLookupIsCaseInsensitive(t *testing.T) {
	msg := &provider.Message{
		Headers: map[string][]string{
			"message-id":     {"<orig@example.com>"},
			"REFERENCES":     {"<a@x> <b@x>"},
			"In-Reply-To":    {" <parent@x> "},
			"auto-submitted": {"auto-generated"},
		},
	}

	email := Normalize(msg, uuid.New(), "acme", nil)

	assert.Equal(t, []string{"<orig@example.com>"}, email.Headers[models.HeaderMessageID])
	assert.Equal(t, []string{"<a@x>", "<b@x>"}, email.Headers[models.HeaderReferences])
	assert.Equal(t, []string{"<parent@x>"}, email.Headers[models.HeaderInReplyTo])
	assert.Equal(t, []string{"auto-generated"}, email.Headers[models.HeaderAutoSubmitted])
}

func TestNormalizeOmitsAbsentOptionalHeaders(t *testing.T) {
	email := Normalize(&provider.Message{}, uuid.New(), "acme", nil)

	_, hasReferences := email.Headers[models.HeaderReferences]
	_, hasInReplyTo := email.Headers[models.HeaderInReplyTo]
	_, hasAutoSubmitted := email.Headers[models.HeaderAutoSubmitted]

	assert.False(t, hasReferences)
	assert.False(t, hasInReplyTo)
	assert.False(t, hasAutoSubmitted)
}

func TestNormalizeSniffsAttachmentContentType(t *testing.T) {
	pngHeader := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

	msg := &provider.Message{
		Attachments: []provider.Attachment{
			{Name: "image", Content: pngHeader},
			{Name: "declared.pdf", Content: pngHeader, ContentType: "application/pdf"},
			{Name: "empty.bin", Content: nil},
		},
	}

	email := Normalize(msg, uuid.New(), "acme", nil)

	require.Len(t, email.Attachments, 3)
	assert.Equal(t, "image/png", email.Attachments[0].ContentType)
	assert.Equal(t, "application/pdf", email.Attachments[1].ContentType, "trusted declared type is kept")
	assert.Equal(t, "application/octet-stream", email.Attachments[2].ContentType)
}
