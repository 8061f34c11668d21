package history

// migrations is the ordered list of SQL migration statements.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS chat_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chat TEXT NOT NULL DEFAULT '',
		prompt TEXT NOT NULL,
		response TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_history_chat ON chat_history(chat, id)`,
}
