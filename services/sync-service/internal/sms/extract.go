// Package sms parses the line-oriented key/value body format used by
// SMS-routed messages and validates Swedish mobile numbers.
package sms

import (
	"regexp"
	"strings"
)

// Keys recognized in an SMS-routed message body.
const (
	KeyRecipient = "Recipient"
	KeyMessage   = "Message"
	KeySender    = "Sender"
)

// FallbackSender is used when the body carries no Sender key.
const FallbackSender = "Mailroom"

// maxSenderLen is the alphanumeric sender-id limit of the SMS gateway.
const maxSenderLen = 11

// Swedish mobile numbers in international form: +46 followed by a
// mobile prefix 7x and seven more digits.
var mobilePattern = regexp.MustCompile(`^\+467\d{8}$`)

// ExtractKeyValues splits the body into lines and each line on its
// first '='. Malformed lines are ignored; an unreadable body yields an
// empty map, never an error.
func ExtractKeyValues(body string) map[string]string {
	kv := make(map[string]string)

	for _, line := range strings.Split(body, "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		kv[key] = strings.TrimSpace(value)
	}

	return kv
}

// HasRequiredKeys reports whether the extracted pairs carry both the
// Recipient and Message keys. A message without them is moved without
// any dispatch attempt.
func HasRequiredKeys(kv map[string]string) bool {
	return kv[KeyRecipient] != "" && kv[KeyMessage] != ""
}

// NormalizeNumber rewrites a Swedish trunk-prefixed number (leading 0)
// into international form. Other values pass through unchanged.
func NormalizeNumber(number string) string {
	if strings.HasPrefix(number, "0") {
		return "+46" + number[1:]
	}
	return number
}

// ValidateRecipients reads the comma-separated Recipient value,
// normalizes each entry and partitions the results by mobile-number
// syntax validity.
func ValidateRecipients(kv map[string]string) (valid, invalid []string) {
	for _, entry := range strings.Split(kv[KeyRecipient], ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		number := NormalizeNumber(entry)
		if mobilePattern.MatchString(number) {
			valid = append(valid, number)
		} else {
			invalid = append(invalid, number)
		}
	}
	return valid, invalid
}

// SenderName returns the sender display name truncated to the SMS
// sender-id limit, or the fixed fallback when absent.
func SenderName(kv map[string]string) string {
	sender := strings.TrimSpace(kv[KeySender])
	if sender == "" {
		return FallbackSender
	}
	if len(sender) > maxSenderLen {
		sender = sender[:maxSenderLen]
	}
	return sender
}
