package domain

import (
	"strings"
	"unicode/utf8"
)

// MaxMessageLength bounds a chat message in runes.
const MaxMessageLength = 4000

// NormalizeMessage trims a chat message and validates it. The returned string
// is the message to use downstream.
func NormalizeMessage(msg string) (string, error) {
	text := strings.TrimSpace(msg)
	if text == "" {
		return "", NewValidationError("message", ErrEmptyMessage)
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return "", NewValidationError("message", ErrMessageTooLong)
	}
	return text, nil
}
