package store

// migration is one schema step. Versions start at 1 and increase by one;
// the runner records the version itself.
type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE intakes (
	id          TEXT PRIMARY KEY,
	message_id  TEXT NOT NULL DEFAULT '',
	sender      TEXT NOT NULL DEFAULT '',
	subject     TEXT NOT NULL DEFAULT '',
	promo_code  TEXT NOT NULL DEFAULT '',
	recipients  TEXT NOT NULL DEFAULT '[]',
	comment     TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL CHECK(status IN ('redeemed', 'no_code', 'unmatched', 'failed')),
	error       TEXT NOT NULL DEFAULT '',
	task_id     INTEGER NOT NULL DEFAULT 0,
	received_at DATETIME NOT NULL
);

CREATE TABLE promos (
	id         TEXT PRIMARY KEY,
	code       TEXT NOT NULL UNIQUE,
	project_id INTEGER NOT NULL,
	member_id  INTEGER NOT NULL,
	task_id    INTEGER NOT NULL DEFAULT 0,
	comment_id INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);

CREATE INDEX idx_intakes_received_at ON intakes(received_at);
CREATE INDEX idx_intakes_status ON intakes(status);
CREATE INDEX idx_promos_project_id ON promos(project_id);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE pending_tokens (
	token      TEXT PRIMARY KEY,
	secret     TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX idx_intakes_message_id ON intakes(message_id);
`,
	},
	{
		version: 3,
		sql: `
ALTER TABLE intakes ADD COLUMN fingerprint TEXT NOT NULL DEFAULT '';

UPDATE intakes SET fingerprint = 'mid:' || message_id WHERE message_id != '';

CREATE INDEX idx_intakes_fingerprint ON intakes(fingerprint);
`,
	},
}
