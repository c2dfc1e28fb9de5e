// Package presence derives "online" status from recency of observed
// activity. There is no presence protocol; the heuristic is explicitly
// approximate and false negatives appear as soon as the freshness
// window elapses, even for users that are still connected.
package presence

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/denborg/chatsync/internal/domain"
)

// DefaultFreshness is the activity window used when none is configured.
const DefaultFreshness = 5 * time.Minute

// User is one participant with their most recent observed activity.
type User struct {
	ID         string
	FullName   string
	Avatar     string
	LastActive time.Time
}

// Tracker indexes the latest activity per user.
type Tracker struct {
	freshness time.Duration
	now       func() time.Time

	mu    sync.RWMutex
	users map[string]User
}

// NewTracker creates a tracker with the given freshness window;
// zero means DefaultFreshness.
func NewTracker(freshness time.Duration) *Tracker {
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	return &Tracker{
		freshness: freshness,
		now:       time.Now,
		users:     make(map[string]User),
	}
}

// Observe records a message as activity from its sender.
func (t *Tracker) Observe(msg domain.Message) {
	if msg.SenderID == "" || msg.Pending {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	u := t.users[msg.SenderID]
	if msg.CreatedAt.After(u.LastActive) {
		t.users[msg.SenderID] = User{
			ID:         msg.SenderID,
			FullName:   msg.AuthorName,
			Avatar:     msg.AuthorAvatar,
			LastActive: msg.CreatedAt,
		}
	}
}

// ObserveList folds a whole list, e.g. after a snapshot.
func (t *Tracker) ObserveList(msgs []domain.Message) {
	for _, m := range msgs {
		t.Observe(m)
	}
}

// Touch records bare activity (typing, last-seen) for a user.
func (t *Tracker) Touch(userID string) {
	if userID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	u := t.users[userID]
	u.ID = userID
	u.LastActive = t.now()
	t.users[userID] = u
}

// IsOnline reports whether the user showed activity within the
// freshness window.
func (t *Tracker) IsOnline(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	u, ok := t.users[userID]
	if !ok {
		return false
	}
	return t.now().Sub(u.LastActive) < t.freshness
}

// OnlineIDs returns all users currently considered online.
func (t *Tracker) OnlineIDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	now := t.now()
	var ids []string
	for id, u := range t.users {
		if now.Sub(u.LastActive) < t.freshness {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// ActiveUsers returns all observed users, most recently active first.
func (t *Tracker) ActiveUsers() []User {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]User, 0, len(t.users))
	for _, u := range t.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastActive.Equal(out[j].LastActive) {
			return out[i].ID < out[j].ID
		}
		return out[i].LastActive.After(out[j].LastActive)
	})
	return out
}

// FormatLastSeen renders a last-seen timestamp as a coarse relative
// phrase. A zero time reads as unknown.
func FormatLastSeen(lastSeen time.Time, now time.Time) string {
	if lastSeen.IsZero() {
		return "unknown"
	}
	d := now.Sub(lastSeen)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	case d < 365*24*time.Hour:
		return fmt.Sprintf("%dmo ago", int(d.Hours()/(24*30)))
	default:
		return fmt.Sprintf("%dy ago", int(d.Hours()/(24*365)))
	}
}
