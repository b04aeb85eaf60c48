package chat

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MediaKind is the category of an attachment.
type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaVideo    MediaKind = "video"
	MediaGIF      MediaKind = "gif"
	MediaDocument MediaKind = "document"
	MediaAudio    MediaKind = "audio"
)

// PreviewHost serves media previews by uuid.
const PreviewHost = "https://leonardo.osnova.io"

// MediaRef references an uploaded file. It is immutable once attached.
type MediaRef struct {
	UUID           string
	Kind           MediaKind
	PreviewVariant string
}

// wireMedia is the API representation: {"type": "image", "data": {"uuid": "...", "type": "jpg"}}.
type wireMedia struct {
	Type string `json:"type"`
	Data struct {
		UUID string `json:"uuid"`
		Type string `json:"type,omitempty"`
	} `json:"data"`
}

func (m MediaRef) MarshalJSON() ([]byte, error) {
	var w wireMedia
	w.Type = string(m.Kind)
	w.Data.UUID = m.UUID
	w.Data.Type = m.PreviewVariant
	return json.Marshal(w)
}

func (m *MediaRef) UnmarshalJSON(data []byte) error {
	var w wireMedia
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode media: %w", err)
	}
	m.UUID = w.Data.UUID
	m.Kind = MediaKind(w.Type)
	m.PreviewVariant = w.Data.Type
	return nil
}

// PreviewURL returns a 100px wide preview for images, or the raw file URL.
func (m MediaRef) PreviewURL() string {
	if m.UUID == "" {
		return ""
	}
	if m.Kind == MediaImage || m.Kind == MediaGIF {
		return PreviewHost + "/" + m.UUID + "/-/preview/100x/"
	}
	return PreviewHost + "/" + m.UUID + "/"
}

// KindForMIME maps a MIME type to the media kind the API expects.
func KindForMIME(mime string) MediaKind {
	switch {
	case mime == "image/gif":
		return MediaGIF
	case strings.HasPrefix(mime, "image/"):
		return MediaImage
	case strings.HasPrefix(mime, "video/"):
		return MediaVideo
	case strings.HasPrefix(mime, "audio/"):
		return MediaAudio
	default:
		return MediaDocument
	}
}
