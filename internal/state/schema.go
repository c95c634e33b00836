package state

const schemaSQL = `
CREATE TABLE IF NOT EXISTS reminders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  task_description TEXT NOT NULL,
  remind_at TEXT NOT NULL,
  created_at TEXT NOT NULL,
  status TEXT NOT NULL,
  message TEXT NOT NULL DEFAULT '',
  sent_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_reminders_status_created ON reminders(status, created_at);

CREATE INDEX IF NOT EXISTS idx_reminders_user_status ON reminders(user_id, status);

CREATE TABLE IF NOT EXISTS user_activity (
  user_id TEXT PRIMARY KEY,
  last_message_at TEXT NOT NULL,
  last_checkin_at TEXT,
  updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS conversations (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  user_message TEXT NOT NULL,
  assistant_message TEXT NOT NULL,
  created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversations_user_created ON conversations(user_id, created_at);
`
