package domain

// Scope classifies a synchronization context.
type Scope string

const (
	ScopeRoom          Scope = "room"
	ScopeDirect        Scope = "direct"
	ScopeNotifications Scope = "notifications"
)

// Context identifies one live synchronization scope: a chat room, a
// direct 1:1 chat, or the process-wide notification channel. At most
// one live socket exists per Context at a time.
type Context struct {
	Scope Scope  `json:"scope"`
	ID    string `json:"id,omitempty"` // room id or direct chat id; empty for notifications
}

// RoomContext returns the context for a chat room.
func RoomContext(roomID string) Context {
	return Context{Scope: ScopeRoom, ID: roomID}
}

// DirectContext returns the context for a direct chat.
func DirectContext(chatID string) Context {
	return Context{Scope: ScopeDirect, ID: chatID}
}

// NotificationsContext returns the singleton notification context.
func NotificationsContext() Context {
	return Context{Scope: ScopeNotifications}
}

// SocketPath returns the websocket path component for this context.
func (c Context) SocketPath() string {
	switch c.Scope {
	case ScopeDirect:
		return "direct/chats/" + c.ID
	case ScopeNotifications:
		return "notifications"
	default:
		return "chat"
	}
}

// String returns a canonical key form, used to index live handles.
func (c Context) String() string {
	if c.ID == "" {
		return string(c.Scope)
	}
	return string(c.Scope) + ":" + c.ID
}
