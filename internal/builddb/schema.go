package builddb

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS compilations (
		output          TEXT PRIMARY KEY,
		command         TEXT NOT NULL,
		captured_output TEXT NOT NULL DEFAULT '',
		duration_ns     INTEGER NOT NULL DEFAULT 0,
		toolchain_hash  TEXT NOT NULL DEFAULT '',
		compile_start   INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS compile_inputs (
		output TEXT NOT NULL,
		path   TEXT NOT NULL,
		mtime  INTEGER NOT NULL,
		PRIMARY KEY (output, path)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_compile_inputs_output ON compile_inputs(output)`,
}
