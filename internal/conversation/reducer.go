// Package conversation holds the ordered message list for one
// synchronization context and folds sync events into it.
//
// The reducer favors availability over strict consistency: an event
// referencing an id that is not in the list is dropped, not queued.
// A snapshot always follows a reconnect and self-heals any gap.
package conversation

import (
	"sort"

	"github.com/denborg/chatsync/internal/domain"
	"github.com/denborg/chatsync/internal/wire"
)

// Apply folds one sync event into the list and returns the new list.
// Pure: the input slice is never mutated. Unhandled event kinds
// (typing, notifications) return the input unchanged.
func Apply(list []domain.Message, ev wire.Event) []domain.Message {
	switch e := ev.(type) {
	case wire.Snapshot:
		return normalize(e.Messages)
	case wire.Created:
		return applyCreated(list, e.Message)
	case wire.Updated:
		return patch(list, e.ID, func(m *domain.Message) {
			if e.Attachments != nil {
				m.Attachments = append([]string(nil), e.Attachments...)
			}
			m.Pending = false
			m.UploadFailed = false
		})
	case wire.Edited:
		return patch(list, e.ID, func(m *domain.Message) {
			m.Body = e.Body
			m.EditedAt = e.EditedAt
		})
	case wire.ReactionsChanged:
		return patch(list, e.ID, func(m *domain.Message) {
			m.Reactions = e.Reactions.Clone()
		})
	case wire.Deleted:
		return remove(list, e.ID)
	case wire.Backfill:
		return applyBackfill(list, e.Messages)
	default:
		return list
	}
}

// normalize sorts confirmed messages by createdAt ascending. Input
// order is not trusted.
func normalize(msgs []domain.Message) []domain.Message {
	out := make([]domain.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// applyCreated reconciles a server-confirmed message against a local
// placeholder instead of appending a duplicate. Id match wins; a
// pending tail entry from the same sender with the same body is the
// fallback (the backend does not guarantee id echo, see DESIGN.md).
func applyCreated(list []domain.Message, msg domain.Message) []domain.Message {
	msg.Pending = false

	for i, m := range list {
		if m.ID == msg.ID {
			out := clone(list)
			out[i] = msg.Clone()
			return out
		}
	}
	for i := len(list) - 1; i >= 0; i-- {
		m := list[i]
		if !m.Pending {
			continue
		}
		if m.SenderID == msg.SenderID && m.Body == msg.Body {
			out := clone(list)
			out[i] = msg.Clone()
			return out
		}
	}

	out := clone(list)
	// confirmed entries stay ahead of pending placeholders
	tail := len(out)
	for tail > 0 && out[tail-1].Pending {
		tail--
	}
	out = append(out[:tail:tail], append([]domain.Message{msg.Clone()}, out[tail:]...)...)
	return out
}

// applyBackfill splices a page of older history in front of the list,
// dropping any message already present.
func applyBackfill(list []domain.Message, older []domain.Message) []domain.Message {
	seen := make(map[string]struct{}, len(list))
	for _, m := range list {
		seen[m.ID] = struct{}{}
	}
	head := []domain.Message{}
	for _, m := range older {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		head = append(head, m.Clone())
	}
	sort.SliceStable(head, func(i, j int) bool {
		return head[i].CreatedAt.Before(head[j].CreatedAt)
	})
	return append(head, clone(list)...)
}

func patch(list []domain.Message, id string, fn func(*domain.Message)) []domain.Message {
	for i, m := range list {
		if m.ID == id {
			out := clone(list)
			patched := m.Clone()
			fn(&patched)
			out[i] = patched
			return out
		}
	}
	return list
}

func remove(list []domain.Message, id string) []domain.Message {
	for i, m := range list {
		if m.ID == id {
			out := make([]domain.Message, 0, len(list)-1)
			out = append(out, list[:i]...)
			out = append(out, list[i+1:]...)
			return out
		}
	}
	return list
}

func clone(list []domain.Message) []domain.Message {
	out := make([]domain.Message, len(list))
	copy(out, list)
	return out
}
