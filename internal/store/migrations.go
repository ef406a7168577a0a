package store

// Migration is one versioned, transactionally-applied schema change.
type Migration struct {
	Version int
	SQL     string
}

var migrations = []Migration{
	{
		Version: 1,
		SQL: `
CREATE TABLE accounts (
	email               TEXT PRIMARY KEY,
	imap_host           TEXT NOT NULL,
	imap_port           INTEGER NOT NULL DEFAULT 993,
	username             TEXT NOT NULL,
	enabled              INTEGER NOT NULL DEFAULT 1,
	initial_sync_done    INTEGER NOT NULL DEFAULT 0,
	sync_folders         TEXT NOT NULL DEFAULT '',
	created_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE folder_cursors (
	account        TEXT NOT NULL REFERENCES accounts(email) ON DELETE CASCADE,
	folder_name    TEXT NOT NULL,
	uid_validity   INTEGER NOT NULL,
	highestmodseq  INTEGER NOT NULL,
	updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (account, folder_name)
);

CREATE TABLE folder_memberships (
	account     TEXT NOT NULL,
	folder_name TEXT NOT NULL,
	msg_uid     INTEGER NOT NULL,
	g_msgid     INTEGER NOT NULL,
	flags       TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (account, folder_name, msg_uid),
	FOREIGN KEY (account, g_msgid) REFERENCES message_meta(account, g_msgid) ON DELETE CASCADE
);
CREATE INDEX idx_folder_memberships_gmsgid ON folder_memberships(account, g_msgid);

CREATE TABLE message_meta (
	account    TEXT NOT NULL,
	g_msgid    INTEGER NOT NULL,
	headers    TEXT NOT NULL DEFAULT '',
	envelope   TEXT NOT NULL DEFAULT '',
	subject    TEXT NOT NULL DEFAULT '',
	sent_date  DATETIME,
	size_bytes INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (account, g_msgid)
);

CREATE TABLE message_parts (
	account      TEXT NOT NULL,
	g_msgid      INTEGER NOT NULL,
	part_id      TEXT NOT NULL,
	blob_key     TEXT NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	size_bytes   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (account, g_msgid, part_id),
	FOREIGN KEY (account, g_msgid) REFERENCES message_meta(account, g_msgid) ON DELETE CASCADE
);

CREATE TABLE account_credentials (
	email          TEXT PRIMARY KEY REFERENCES accounts(email) ON DELETE CASCADE,
	encrypted_pass TEXT NOT NULL DEFAULT ''
);
`,
	},
}
