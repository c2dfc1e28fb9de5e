package notify

import (
	"sync"

	"github.com/denborg/chatsync/internal/domain"
)

// DefaultInboxLimit bounds the retained notification history.
const DefaultInboxLimit = 200

// Inbox keeps recent notifications newest-first, evicting the oldest
// once the limit is reached. It is safe for concurrent use.
type Inbox struct {
	limit int

	mu    sync.Mutex
	items []domain.Notification
}

// NewInbox creates an inbox holding at most limit entries; a
// non-positive limit selects DefaultInboxLimit.
func NewInbox(limit int) *Inbox {
	if limit <= 0 {
		limit = DefaultInboxLimit
	}
	return &Inbox{limit: limit}
}

// Add prepends a notification, dropping the oldest entry when full.
func (i *Inbox) Add(n domain.Notification) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.items = append([]domain.Notification{n}, i.items...)
	if len(i.items) > i.limit {
		i.items = i.items[:i.limit]
	}
}

// Notifications returns a copy of the inbox, newest first.
func (i *Inbox) Notifications() []domain.Notification {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]domain.Notification, len(i.items))
	copy(out, i.items)
	return out
}

// UnreadCount reports how many entries have not been marked read.
func (i *Inbox) UnreadCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	n := 0
	for _, item := range i.items {
		if !item.Read {
			n++
		}
	}
	return n
}

// MarkRead flags the notification with the given id as read and
// reports whether it was found.
func (i *Inbox) MarkRead(id string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	for idx := range i.items {
		if i.items[idx].ID == id {
			i.items[idx].Read = true
			return true
		}
	}
	return false
}

// MarkAllRead flags every entry as read.
func (i *Inbox) MarkAllRead() {
	i.mu.Lock()
	defer i.mu.Unlock()
	for idx := range i.items {
		i.items[idx].Read = true
	}
}

// Clear discards all entries, as on logout.
func (i *Inbox) Clear() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.items = nil
}
