// Package normalize maps provider-native messages into the canonical
// email representation.
package normalize

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/nordiq/mailroom/internal/models"
	"github.com/nordiq/mailroom/services/sync-service/internal/provider"
)

const fallbackContentType = "application/octet-stream"

// Normalize converts a provider message into a canonical email for the
// given tenant. Deterministic except for the synthetic Message-ID
// fallback and content-type sniffing.
func Normalize(msg *provider.Message, tenantID uuid.UUID, namespace string, metadata map[string]string) models.Email {
	return models.Email{
		ProviderID:  msg.ID,
		TenantID:    tenantID,
		Namespace:   namespace,
		Recipients:  append([]string(nil), msg.Recipients...),
		Sender:      msg.Sender,
		Subject:     msg.Subject,
		Body:        collapseLineBreaks(msg.Body),
		Attachments: normalizeAttachments(msg.Attachments),
		Headers:     extractHeaders(msg.Headers),
		ReceivedAt:  msg.ReceivedAt,
		Metadata:    metadata,
	}
}

// collapseLineBreaks collapses Windows line-break pairs into single
// breaks so senders emitting doubled CRLF sequences do not render with
// doubled blank lines.
func collapseLineBreaks(body string) string {
	return strings.ReplaceAll(body, "\r\n\r\n", "\r\n")
}

// extractHeaders picks the recognized header kinds out of the raw
// header map, looking keys up case-insensitively. Values are split on
// single spaces after trimming. A missing Message-ID gets a synthetic
// globally-unique fallback so every canonical email has a stable
// identifier.
func extractHeaders(raw map[string][]string) map[models.HeaderKind][]string {
	headers := make(map[models.HeaderKind][]string, len(models.RecognizedHeaders))

	for _, kind := range models.RecognizedHeaders {
		values := lookupFold(raw, string(kind))

		var split []string
		for _, v := range values {
			for _, part := range strings.Split(strings.TrimSpace(v), " ") {
				if part != "" {
					split = append(split, part)
				}
			}
		}

		if len(split) == 0 {
			if kind != models.HeaderMessageID {
				continue
			}
			split = []string{syntheticMessageID()}
		}
		headers[kind] = split
	}

	return headers
}

func lookupFold(raw map[string][]string, key string) []string {
	for k, v := range raw {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return nil
}

func syntheticMessageID() string {
	return "<" + uuid.NewString() + "@mailroom.generated>"
}

// normalizeAttachments copies attachments, sniffing the content type
// from the raw bytes when the provider's declared type is missing or a
// generic binary type.
func normalizeAttachments(atts []provider.Attachment) []models.Attachment {
	if len(atts) == 0 {
		return nil
	}

	out := make([]models.Attachment, 0, len(atts))
	for _, att := range atts {
		contentType := att.ContentType
		if contentType == "" || contentType == fallbackContentType {
			contentType = sniffContentType(att.Content)
		}
		out = append(out, models.Attachment{
			Name:        att.Name,
			Content:     att.Content,
			ContentType: contentType,
		})
	}
	return out
}

func sniffContentType(content []byte) string {
	if len(content) == 0 {
		return fallbackContentType
	}
	return mimetype.Detect(content).String()
}
