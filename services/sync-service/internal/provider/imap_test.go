package provider

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchFolder(t *testing.T) {
	names := []string{"INBOX", "Processed", "Archive/2025"}

	match, found, err := matchFolder(names, "processed")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Processed", match)

	_, found, err = matchFolder(names, "Quarantine")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMatchFolderAmbiguous(t *testing.T) {
	names := []string{"Processed", "PROCESSED"}

	_, _, err := matchFolder(names, "processed")
	require.ErrorIs(t, err, ErrAmbiguousFolder)
}

func TestParseRawSimpleText(t *testing.T) {
	raw := strings.Join([]string{
		"From: sender@example.com",
		"To: recipient@example.com",
		"Subject: plain message",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Hello there",
	}, "\r\n")

	body, atts, headers := parseRaw([]byte(raw))

	assert.Equal(t, "Hello there", strings.TrimSpace(body))
	assert.Empty(t, atts)
	assert.Equal(t, []string{"plain message"}, headers["Subject"])
	assert.Equal(t, []string{"sender@example.com"}, headers["From"])
}

func TestParseRawMultipartWithAttachment(t *testing.T) {
	raw := strings.Join([]string{
		"From: sender@example.com",
		"Subject: with attachment",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="frontier"`,
		"",
		"--frontier",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"See attached.",
		"--frontier",
		"Content-Type: application/octet-stream",
		`Content-Disposition: attachment; filename="notes.txt"`,
		"Content-Transfer-Encoding: base64",
		"",
		"aGVsbG8gd29ybGQ=",
		"--frontier--",
	}, "\r\n")

	body, atts, headers := parseRaw([]byte(raw))

	assert.Equal(t, "See attached.", strings.TrimSpace(body))
	require.Len(t, atts, 1)
	assert.Equal(t, "notes.txt", atts[0].Name)
	assert.Equal(t, []byte("hello world"), atts[0].Content)
	assert.Equal(t, []string{"with attachment"}, headers["Subject"])
}

func TestParseRawFirstTextPartWins(t *testing.T) {
	raw := strings.Join([]string{
		"Subject: two parts",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="frontier"`,
		"",
		"--frontier",
		"Content-Type: text/plain",
		"",
		"first part",
		"--frontier",
		"Content-Type: text/plain",
		"",
		"second part",
		"--frontier--",
	}, "\r\n")

	body, _, _ := parseRaw([]byte(raw))

	assert.Equal(t, "first part", strings.TrimSpace(body))
}

func TestParseRawUnparsablePayloadCarriedAsText(t *testing.T) {
	raw := []byte("this is not an rfc 5322 message")

	body, atts, headers := parseRaw(raw)

	assert.Equal(t, string(raw), body)
	assert.Empty(t, atts)
	assert.Empty(t, headers)
}
