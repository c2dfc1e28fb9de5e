package wire

import (
	"encoding/json"

	"github.com/denborg/chatsync/internal/domain"
)

// SendFrame encodes an outbound chat message. The client generates the
// id and timestamp optimistically; the server echoes or supersedes the
// entry via a sync event.
func SendFrame(msg domain.Message) ([]byte, error) {
	msg.Pending = false
	return json.Marshal(msg)
}

// UpdateFrame encodes the post-upload attachment update for a message.
func UpdateFrame(id string, urls []string) ([]byte, error) {
	return json.Marshal(map[string]any{
		"type":        typeUpdateMessage,
		"id":          id,
		"content_url": urls,
	})
}

// EditFrame encodes an edit of an existing message's body.
func EditFrame(id, body string) ([]byte, error) {
	return json.Marshal(map[string]any{
		"type":    "edit_message",
		"id":      id,
		"message": body,
	})
}

// ReactionFrame encodes an emoji reaction toggle.
func ReactionFrame(messageID, emoji string) ([]byte, error) {
	return json.Marshal(map[string]any{
		"type":       "add_reaction",
		"message_id": messageID,
		"emoji":      emoji,
	})
}

// DeleteFrame encodes a message deletion request.
func DeleteFrame(id string) ([]byte, error) {
	return json.Marshal(map[string]any{
		"type": typeDeleteMessage,
		"id":   id,
	})
}

// LoadMoreFrame requests a page of history older than beforeID. The
// server answers with a messages_batch frame.
func LoadMoreFrame(limit int, beforeID string) ([]byte, error) {
	return json.Marshal(map[string]any{
		"type":   "load_more_messages",
		"limit":  limit,
		"before": beforeID,
	})
}

// TypingFrame reports that the local user is typing.
func TypingFrame(userID, roomID string) ([]byte, error) {
	return json.Marshal(map[string]any{
		"type":    typeUserTyping,
		"user_id": userID,
		"room_id": roomID,
	})
}
