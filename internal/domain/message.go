package domain

import (
	"path"
	"strings"
	"time"
)

// AttachmentKind classifies an attachment by its URL extension.
type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentAudio AttachmentKind = "audio"
	AttachmentVideo AttachmentKind = "video"
	AttachmentOther AttachmentKind = "other"
)

// KindOf resolves the attachment kind for a URL. Unknown extensions
// fall through to AttachmentOther.
func KindOf(url string) AttachmentKind {
	ext := strings.ToLower(path.Ext(stripQuery(url)))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".svg":
		return AttachmentImage
	case ".mp3", ".ogg", ".wav", ".m4a", ".flac":
		return AttachmentAudio
	case ".mp4", ".webm", ".mov", ".avi", ".mkv":
		return AttachmentVideo
	default:
		return AttachmentOther
	}
}

func stripQuery(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[:i]
	}
	return url
}

// Reactions maps an emoji to the set of user ids that reacted with it.
// Membership is what matters; iteration order is not significant.
type Reactions map[string][]string

// Clone returns a deep copy so a stored message never aliases an
// inbound payload.
func (r Reactions) Clone() Reactions {
	if r == nil {
		return nil
	}
	out := make(Reactions, len(r))
	for emoji, users := range r {
		out[emoji] = append([]string(nil), users...)
	}
	return out
}

// Message is one entry in a conversation's ordered list.
type Message struct {
	ID             string     `json:"id"`
	SenderID       string     `json:"user_id"`
	AuthorName     string     `json:"full_name,omitempty"`
	AuthorAvatar   string     `json:"avatar,omitempty"`
	ConversationID string     `json:"room_id,omitempty"`
	Body           string     `json:"message"`
	Attachments    []string   `json:"content_url,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`
	Reactions      Reactions  `json:"reactions,omitempty"`

	// Pending marks a locally-synthesized placeholder that the server
	// has not confirmed yet. Never set by inbound events.
	Pending bool `json:"isPending,omitempty"`

	// UploadFailed marks a created message whose attachment upload did
	// not complete. The message itself stays in the list.
	UploadFailed bool `json:"uploadFailed,omitempty"`
}

// Clone returns a copy safe to hand to subscribers.
func (m Message) Clone() Message {
	out := m
	out.Attachments = append([]string(nil), m.Attachments...)
	out.Reactions = m.Reactions.Clone()
	if m.EditedAt != nil {
		t := *m.EditedAt
		out.EditedAt = &t
	}
	return out
}
