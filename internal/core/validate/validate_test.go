package validate

import (
	"bytes"
	"errors"
	"testing"

	"github.com/hay-kot/dtfchat/internal/core/chat"
)

func TestMessageDraft(t *testing.T) {
	png := chat.Attachment{Name: "a.png", MIMEType: "image/png", Data: []byte("x")}
	huge := chat.Attachment{Name: "big.mp4", MIMEType: "video/mp4", Data: bytes.Repeat([]byte("x"), 11*1024*1024)}
	exe := chat.Attachment{Name: "run.exe", MIMEType: "application/octet-stream", Data: []byte("x")}

	tests := []struct {
		name        string
		text        string
		attachments []chat.Attachment
		wantErr     bool
	}{
		{"text only", "hello", nil, false},
		{"attachment only", "", []chat.Attachment{png}, false},
		{"empty", "", nil, true},
		{"only spaces", "   ", nil, true},
		{"too large", "hi", []chat.Attachment{huge}, true},
		{"unsupported type", "hi", []chat.Attachment{exe}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MessageDraft(tt.text, tt.attachments, DefaultRules())
			if (err != nil) != tt.wantErr {
				t.Errorf("MessageDraft(%q) error = %v, wantErr %v", tt.text, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("MessageDraft(%q) error = %v, want ErrValidation", tt.text, err)
			}
		})
	}
}

func TestSearchQuery(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid query", "alice", false},
		{"empty string", "", true},
		{"only tabs", "\t\t", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SearchQuery(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("SearchQuery(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
