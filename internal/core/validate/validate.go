// Package validate provides client-side checks applied before any network call.
package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hay-kot/dtfchat/internal/core/chat"
)

// ErrValidation is wrapped by every error returned from this package.
var ErrValidation = errors.New("validation failed")

// DefaultMaxAttachmentSize is the largest file accepted for upload.
const DefaultMaxAttachmentSize int64 = 10 * 1024 * 1024

// DefaultAllowedTypes lists accepted MIME type prefixes.
var DefaultAllowedTypes = []string{"image/", "video/", "audio/", "application/pdf"}

// Rules configures attachment limits.
type Rules struct {
	MaxAttachmentSize int64
	AllowedTypes      []string
}

// DefaultRules returns the stock attachment limits.
func DefaultRules() Rules {
	return Rules{
		MaxAttachmentSize: DefaultMaxAttachmentSize,
		AllowedTypes:      DefaultAllowedTypes,
	}
}

// MessageDraft checks that a message has text or attachments and that every
// attachment is acceptable.
func MessageDraft(text string, attachments []chat.Attachment, rules Rules) error {
	if strings.TrimSpace(text) == "" && len(attachments) == 0 {
		return fmt.Errorf("%w: message is empty", ErrValidation)
	}

	for _, a := range attachments {
		if err := Attachment(a, rules); err != nil {
			return err
		}
	}
	return nil
}

// Attachment checks the size and MIME type of a single file.
func Attachment(a chat.Attachment, rules Rules) error {
	if rules.MaxAttachmentSize > 0 && a.Size() > rules.MaxAttachmentSize {
		return fmt.Errorf("%w: %s is larger than %d MB", ErrValidation, a.Name, rules.MaxAttachmentSize/(1024*1024))
	}

	if len(rules.AllowedTypes) == 0 {
		return nil
	}
	for _, prefix := range rules.AllowedTypes {
		if strings.HasPrefix(a.MIMEType, prefix) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s has unsupported type %q", ErrValidation, a.Name, a.MIMEType)
}

// SearchQuery validates a user search query is non-empty after trimming whitespace.
func SearchQuery(q string) error {
	if strings.TrimSpace(q) == "" {
		return fmt.Errorf("%w: query is required", ErrValidation)
	}
	return nil
}
