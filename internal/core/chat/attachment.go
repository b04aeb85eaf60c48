package chat

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
)

// Attachment is a local file queued for upload with an outgoing message.
type Attachment struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Size returns the attachment size in bytes.
func (a Attachment) Size() int64 { return int64(len(a.Data)) }

// Kind returns the media kind derived from the MIME type.
func (a Attachment) Kind() MediaKind { return KindForMIME(a.MIMEType) }

// ReadAttachment loads a file from disk and sniffs its MIME type.
func ReadAttachment(path string) (Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Attachment{}, fmt.Errorf("read attachment: %w", err)
	}

	return Attachment{
		Name:     filepath.Base(path),
		MIMEType: http.DetectContentType(data),
		Data:     data,
	}, nil
}
