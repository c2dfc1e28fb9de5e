package domain

import "time"

// Notification is a cross-conversation alert delivered on the fan-out
// channel. Read state is local to the session and never synced back.
type Notification struct {
	ID     string         `json:"id"`
	Title  string         `json:"title"`
	Body   string         `json:"body"`
	Kind   string         `json:"type"` // "chat", "system", ...
	SentAt time.Time      `json:"sent_at"`
	Meta   map[string]any `json:"meta,omitempty"`

	// ChatID is the conversation the alert refers to, when Kind is
	// "chat". Used for the active-conversation suppression check.
	ChatID string `json:"chat_id,omitempty"`

	Read bool `json:"read"`

	// Suppressed is set on delivery when the target conversation was
	// already open. The notification still counts as unread; only the
	// visible toast is expected to be withheld.
	Suppressed bool `json:"-"`
}
