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

CREATE TABLE IF NOT EXISTS accounts (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	email             TEXT NOT NULL DEFAULT '',
	username          TEXT NOT NULL DEFAULT '',
	imap_host         TEXT NOT NULL DEFAULT '',
	imap_port         TEXT NOT NULL DEFAULT '993',
	smtp_host         TEXT NOT NULL DEFAULT '',
	smtp_port         TEXT NOT NULL DEFAULT '465',
	tls               INTEGER NOT NULL DEFAULT 1 CHECK(tls IN (0, 1)),
	enabled           INTEGER NOT NULL DEFAULT 1 CHECK(enabled IN (0, 1)),
	poll_interval_sec INTEGER NOT NULL DEFAULT 300,
	created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS folders (
	account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	name       TEXT NOT NULL,
	delimiter  TEXT NOT NULL DEFAULT '',
	attrs      TEXT NOT NULL DEFAULT '',
	messages   INTEGER NOT NULL DEFAULT 0,
	unseen     INTEGER NOT NULL DEFAULT 0,
	subscribed INTEGER NOT NULL DEFAULT 0 CHECK(subscribed IN (0, 1)),
	fetched_at DATETIME NOT NULL,
	PRIMARY KEY (account_id, name)
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS view_settings (
	account_id         TEXT PRIMARY KEY REFERENCES accounts(id) ON DELETE CASCADE,
	sort_column        TEXT NOT NULL DEFAULT '' CHECK(sort_column IN ('', 'name', 'unread', 'total')),
	sort_descending    INTEGER NOT NULL DEFAULT 0 CHECK(sort_descending IN (0, 1)),
	children_ascending INTEGER NOT NULL DEFAULT 0 CHECK(children_ascending IN (0, 1)),
	root_visible       INTEGER NOT NULL DEFAULT 1 CHECK(root_visible IN (0, 1))
);

CREATE INDEX IF NOT EXISTS idx_accounts_name ON accounts(name);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
