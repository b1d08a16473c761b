package kvstore

const schema = `
CREATE TABLE kv (
	key TEXT PRIMARY KEY,
	value BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE INDEX idx_kv_updated_at ON kv(updated_at);
`

// migrations contains incremental schema changes, applied in order based on
// PRAGMA user_version. migrations[0] is empty because version 0 uses the base
// schema.
var migrations = []string{
	"",
}
