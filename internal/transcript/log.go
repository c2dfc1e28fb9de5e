package transcript

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/denborg/chatsync/internal/domain"
)

// Log records messages and notifications as they pass through the
// client, keyed by the conversation context they belong to.
type Log struct {
	db *DB
}

// NewLog creates a transcript log using the given database.
func NewLog(db *DB) *Log {
	return &Log{db: db}
}

// RecordMessage upserts a message under the given context key. Pending
// placeholders are skipped; the reconciled echo gets recorded instead.
func (l *Log) RecordMessage(contextKey string, msg domain.Message) {
	if msg.Pending || msg.ID == "" {
		return
	}

	var attachmentsJSON sql.NullString
	if len(msg.Attachments) > 0 {
		if data, err := json.Marshal(msg.Attachments); err == nil {
			attachmentsJSON = sql.NullString{String: string(data), Valid: true}
		}
	}

	_, err := l.db.sql.Exec(
		`INSERT INTO messages (id, context_key, sender_id, author_name, body, attachments, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(context_key, id) DO UPDATE SET
			body = excluded.body,
			attachments = excluded.attachments`,
		msg.ID, contextKey, msg.SenderID, msg.AuthorName, msg.Body, attachmentsJSON,
		msg.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		l.db.log.Error().Err(err).Str("context", contextKey).Str("id", msg.ID).Msg("failed to record message")
	}
}

// RemoveMessage drops a message from the log after a delete event.
func (l *Log) RemoveMessage(contextKey, id string) {
	_, err := l.db.sql.Exec(
		`DELETE FROM messages WHERE context_key = ? AND id = ?`, contextKey, id,
	)
	if err != nil {
		l.db.log.Error().Err(err).Str("context", contextKey).Str("id", id).Msg("failed to remove message")
	}
}

// RecentMessages returns up to limit messages for a context, oldest
// first.
func (l *Log) RecentMessages(contextKey string, limit int) ([]domain.Message, error) {
	rows, err := l.db.sql.Query(
		`SELECT id, sender_id, author_name, body, attachments, created_at
		 FROM (
			SELECT * FROM messages WHERE context_key = ?
			ORDER BY created_at DESC LIMIT ?
		 ) ORDER BY created_at ASC`,
		contextKey, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		var attachmentsJSON sql.NullString
		var createdAt string
		if err := rows.Scan(&m.ID, &m.SenderID, &m.AuthorName, &m.Body, &attachmentsJSON, &createdAt); err != nil {
			return nil, err
		}
		if attachmentsJSON.Valid {
			_ = json.Unmarshal([]byte(attachmentsJSON.String), &m.Attachments)
		}
		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, m)
	}
	return out, rows.Err()
}

// RecordNotification stores a delivered notification.
func (l *Log) RecordNotification(n domain.Notification) {
	_, err := l.db.sql.Exec(
		`INSERT OR IGNORE INTO notifications (id, title, body, kind, chat_id, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.Title, n.Body, n.Kind, n.ChatID, n.SentAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		l.db.log.Error().Err(err).Str("id", n.ID).Msg("failed to record notification")
	}
}

// RecentNotifications returns up to limit notifications, newest first.
func (l *Log) RecentNotifications(limit int) ([]domain.Notification, error) {
	rows, err := l.db.sql.Query(
		`SELECT id, title, body, kind, chat_id, sent_at
		 FROM notifications ORDER BY sent_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var sentAt string
		if err := rows.Scan(&n.ID, &n.Title, &n.Body, &n.Kind, &n.ChatID, &sentAt); err != nil {
			return nil, err
		}
		n.SentAt, _ = time.Parse(time.RFC3339Nano, sentAt)
		out = append(out, n)
	}
	return out, rows.Err()
}
