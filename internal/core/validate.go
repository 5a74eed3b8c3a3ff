package core

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxMessageLength is the largest accepted message, in characters.
const MaxMessageLength = 10000

// ValidateMessage checks a raw user message before it reaches the resolver.
// The message is returned unchanged when valid.
func ValidateMessage(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", NewInvalidRequestError("message cannot be empty", nil)
	}
	if utf8.RuneCountInString(raw) > MaxMessageLength {
		return "", NewInvalidRequestError(
			fmt.Sprintf("message is too long (max %d characters)", MaxMessageLength), nil)
	}
	return raw, nil
}
