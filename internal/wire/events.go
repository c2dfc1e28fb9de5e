package wire

import (
	"time"

	"github.com/denborg/chatsync/internal/domain"
)

// Event is one variant of the inbound sync-event union. Events are
// decoded from a frame, applied to a conversation store exactly once,
// and discarded.
type Event interface {
	event()
}

// Snapshot replaces a conversation's entire list. Sent by the server
// on every (re)connect to establish the authoritative baseline.
type Snapshot struct {
	Messages []domain.Message
}

// Created appends (or reconciles) a single new message.
type Created struct {
	Message domain.Message
}

// Updated patches an existing message, typically after an attachment
// upload completes. Nil Attachments means the field was absent.
type Updated struct {
	ID          string
	Attachments []string
}

// Edited replaces a message's body after a server-side edit.
type Edited struct {
	ID       string
	Body     string
	EditedAt *time.Time
}

// ReactionsChanged replaces a message's reactions wholesale.
type ReactionsChanged struct {
	ID        string
	Reactions domain.Reactions
}

// Deleted removes a message from the list.
type Deleted struct {
	ID string
}

// Backfill prepends a page of older history in front of the current
// list (the server's answer to load_more_messages).
type Backfill struct {
	Messages []domain.Message
}

// Typing reports transient typing activity. Consumed by presence,
// never stored in the conversation list.
type Typing struct {
	UserID string
	RoomID string
}

// NotificationArrived carries a fan-out alert from the notifications
// scope.
type NotificationArrived struct {
	Notification domain.Notification
}

func (Snapshot) event()            {}
func (Created) event()             {}
func (Updated) event()             {}
func (Edited) event()              {}
func (ReactionsChanged) event()    {}
func (Deleted) event()             {}
func (Backfill) event()            {}
func (Typing) event()              {}
func (NotificationArrived) event() {}
