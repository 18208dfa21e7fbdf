package catalog

// migrations are applied in order, in a single transaction, on every open.
// Each entry is idempotent via "IF NOT EXISTS" so re-running a migration
// that already landed is a no-op.
var migrations = []string{
	// 1: base schema.
	`
	CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS remotes (
		name  TEXT PRIMARY KEY,
		url   TEXT NOT NULL,
		etag  TEXT,
		mtime TEXT
	);

	CREATE TABLE IF NOT EXISTS packages (
		pkg_id      TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		version     TEXT NOT NULL,
		revision    INTEGER NOT NULL,
		description TEXT,
		remote_url  TEXT,
		remote_name TEXT REFERENCES remotes(name),
		meta_json   TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_packages_name ON packages(name);

	CREATE TABLE IF NOT EXISTS deps (
		dep_id            INTEGER PRIMARY KEY AUTOINCREMENT,
		pkg_id            TEXT NOT NULL REFERENCES packages(pkg_id) ON DELETE CASCADE,
		dep_name          TEXT NOT NULL,
		low               TEXT NOT NULL,
		high              TEXT,
		uses_kind         TEXT NOT NULL,
		uses_explicit_csv TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_deps_pkg_id ON deps(pkg_id);
	`,
}

const schemaVersionKey = "schema_version"
