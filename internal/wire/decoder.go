// Package wire decodes inbound socket frames into sync events and
// builds the outbound frames the backend understands.
//
// Inbound discrimination follows the wire format's fixed heuristic
// order: a top-level array is a snapshot, an explicit "type" field
// selects a typed event, and an object carrying a "message" field
// with no recognized type is a newly created message. That ordering
// must not change; the backend relies on it.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/denborg/chatsync/internal/domain"
)

// ErrUnknownFrame marks a well-formed frame with no recognized shape.
var ErrUnknownFrame = errors.New("wire: unrecognized frame")

// Frame type discriminators used by the backend.
const (
	typeUpdateMessage    = "update_message"
	typeMessageEdited    = "message_edited"
	typeReactionsUpdated = "message_reactions_updated"
	typeDeleteMessage    = "delete_message"
	typeMessageDeleted   = "message_deleted"
	typeMessagesBatch    = "messages_batch"
	typeUserTyping       = "user_typing"
	typeNewMessage       = "new_message"
	typeNewNotification  = "new_notification"
)

// Decode parses a raw frame into one Event. Malformed or unrecognized
// frames return a nil Event and an error; the caller logs and drops
// them, they never propagate past the decoder.
func Decode(raw []byte) (Event, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("wire: invalid JSON frame")
	}
	root := gjson.ParseBytes(raw)

	if root.IsArray() {
		msgs, err := parseMessages(root)
		if err != nil {
			return nil, err
		}
		return Snapshot{Messages: msgs}, nil
	}
	if !root.IsObject() {
		return nil, ErrUnknownFrame
	}

	switch root.Get("type").String() {
	case typeUpdateMessage:
		return decodeUpdate(root)
	case typeMessageEdited:
		return decodeEdited(root)
	case typeReactionsUpdated:
		return decodeReactions(root)
	case typeDeleteMessage, typeMessageDeleted:
		id := root.Get("id").String()
		if id == "" {
			return nil, fmt.Errorf("wire: delete frame without id")
		}
		return Deleted{ID: id}, nil
	case typeMessagesBatch:
		msgs, err := parseMessages(root.Get("messages"))
		if err != nil {
			return nil, err
		}
		return Backfill{Messages: msgs}, nil
	case typeUserTyping:
		return Typing{
			UserID: root.Get("user_id").String(),
			RoomID: root.Get("room_id").String(),
		}, nil
	case typeNewMessage:
		msg, err := parseMessage(root.Get("message"))
		if err != nil {
			return nil, err
		}
		return Created{Message: msg}, nil
	case typeNewNotification:
		return decodeNotification(root)
	}

	// No recognized type: an object that carries a "message" body field
	// is itself a created message.
	if root.Get("message").Exists() {
		msg, err := parseMessage(root)
		if err != nil {
			return nil, err
		}
		return Created{Message: msg}, nil
	}

	return nil, ErrUnknownFrame
}

func decodeUpdate(root gjson.Result) (Event, error) {
	id := root.Get("id").String()
	if id == "" {
		return nil, fmt.Errorf("wire: update frame without id")
	}
	ev := Updated{ID: id}
	if urls := root.Get("content_url"); urls.Exists() {
		ev.Attachments = []string{}
		for _, u := range urls.Array() {
			ev.Attachments = append(ev.Attachments, u.String())
		}
	}
	return ev, nil
}

func decodeEdited(root gjson.Result) (Event, error) {
	msg := root.Get("message")
	if !msg.IsObject() {
		return nil, fmt.Errorf("wire: edited frame without message")
	}
	m, err := parseMessage(msg)
	if err != nil {
		return nil, err
	}
	if m.ID == "" {
		return nil, fmt.Errorf("wire: edited frame without message id")
	}
	ev := Edited{ID: m.ID, Body: m.Body, EditedAt: m.EditedAt}
	if ev.EditedAt == nil {
		now := time.Now().UTC()
		ev.EditedAt = &now
	}
	return ev, nil
}

func decodeReactions(root gjson.Result) (Event, error) {
	id := root.Get("message_id").String()
	if id == "" {
		return nil, fmt.Errorf("wire: reactions frame without message_id")
	}
	reactions := domain.Reactions{}
	root.Get("reactions").ForEach(func(emoji, users gjson.Result) bool {
		set := []string{}
		for _, u := range users.Array() {
			set = append(set, u.String())
		}
		reactions[emoji.String()] = set
		return true
	})
	return ReactionsChanged{ID: id, Reactions: reactions}, nil
}

func decodeNotification(root gjson.Result) (Event, error) {
	payload := root.Get("payload")
	if !payload.IsObject() {
		return nil, fmt.Errorf("wire: notification frame without payload")
	}
	n := domain.Notification{
		Title:  payload.Get("title").String(),
		Body:   payload.Get("body").String(),
		Kind:   payload.Get("type").String(),
		ChatID: payload.Get("meta.chat_id").String(),
	}
	if sentAt := payload.Get("sent_at").String(); sentAt != "" {
		if t, err := time.Parse(time.RFC3339, sentAt); err == nil {
			n.SentAt = t
		}
	}
	if meta := payload.Get("meta"); meta.IsObject() {
		n.Meta = map[string]any{}
		if err := json.Unmarshal([]byte(meta.Raw), &n.Meta); err != nil {
			n.Meta = nil
		}
	}
	return NotificationArrived{Notification: n}, nil
}

// parseMessage accepts both key spellings the backend emits: the room
// socket broadcasts snake_case payloads, the direct socket re-encodes
// repository structs with Go-default capitalized keys.
func parseMessage(res gjson.Result) (domain.Message, error) {
	if !res.IsObject() {
		return domain.Message{}, fmt.Errorf("wire: message is not an object")
	}

	var m domain.Message
	if err := json.Unmarshal([]byte(res.Raw), &m); err != nil {
		// snake_case decode can fail on capitalized-key payloads with a
		// mismatched field type; fall through to probing
		m = domain.Message{}
	}

	if m.ID == "" {
		m.ID = res.Get("ID").String()
		m.SenderID = res.Get("SenderID").String()
		m.Body = res.Get("Message").String()
		m.AuthorName = res.Get("FullName").String()
		if created := res.Get("CreatedAt").String(); created != "" {
			if t, err := time.Parse(time.RFC3339, created); err == nil {
				m.CreatedAt = t
			}
		}
		if edited := res.Get("EditedAt").String(); edited != "" {
			if t, err := time.Parse(time.RFC3339, edited); err == nil {
				m.EditedAt = &t
			}
		}
	}
	if m.ID == "" {
		return domain.Message{}, fmt.Errorf("wire: message without id")
	}
	m.Pending = false
	return m, nil
}

func parseMessages(res gjson.Result) ([]domain.Message, error) {
	if !res.IsArray() {
		return nil, fmt.Errorf("wire: expected message array")
	}
	msgs := []domain.Message{}
	for _, item := range res.Array() {
		m, err := parseMessage(item)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}
