package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS notifications (
	recipient_id TEXT NOT NULL,
	id           TEXT NOT NULL,
	kind         TEXT NOT NULL,
	sender_id    TEXT NOT NULL DEFAULT '',
	message      TEXT NOT NULL DEFAULT '',
	resource_id  TEXT NOT NULL DEFAULT '',
	read         INTEGER NOT NULL DEFAULT 0,
	created_at   DATETIME,
	received_at  DATETIME,
	position     INTEGER NOT NULL,
	PRIMARY KEY (recipient_id, id)
);

CREATE INDEX IF NOT EXISTS idx_notifications_recipient
	ON notifications(recipient_id, position);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
