package transcript

// Migration is a single schema change, applied once in order.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_messages",
		SQL: `
			CREATE TABLE messages (
				id TEXT NOT NULL,
				context_key TEXT NOT NULL,
				sender_id TEXT NOT NULL,
				author_name TEXT NOT NULL DEFAULT '',
				body TEXT NOT NULL,
				attachments TEXT,
				created_at TEXT NOT NULL,
				PRIMARY KEY (context_key, id)
			);
			CREATE INDEX idx_messages_context_created ON messages(context_key, created_at);
		`,
	},
	{
		Version: 2,
		Name:    "create_notifications",
		SQL: `
			CREATE TABLE notifications (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL DEFAULT '',
				body TEXT NOT NULL DEFAULT '',
				kind TEXT NOT NULL DEFAULT '',
				chat_id TEXT NOT NULL DEFAULT '',
				sent_at TEXT NOT NULL
			);
			CREATE INDEX idx_notifications_sent ON notifications(sent_at);
		`,
	},
}
