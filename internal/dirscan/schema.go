package dirscan

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS scanned_dirs (
		dir_id  INTEGER PRIMARY KEY,
		dirpath TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS found_files (
		file_id INTEGER PRIMARY KEY,
		dir_id  INTEGER NOT NULL REFERENCES scanned_dirs(dir_id) ON DELETE CASCADE,
		relpath TEXT NOT NULL,
		UNIQUE (dir_id, relpath)
	)`,
}
