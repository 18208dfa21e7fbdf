// Package builddb is the per-output compile-command/input-mtime record
// store a build reads to decide what is stale.
package builddb

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"

	_ "modernc.org/sqlite"
)

// CompletedCompilation is what was recorded the last time an output was
// produced.
type CompletedCompilation struct {
	Command       string
	Output        string
	Duration      time.Duration
	ToolchainHash string
	CompileStart  time.Time
}

// InputRecord is one observed input to a compilation, with the mtime it had
// the last time this output was (re)built.
type InputRecord struct {
	Path  string
	MTime time.Time
}

// DB is the sqlite-backed build-state database.
type DB struct {
	sql *sql.DB
}

// Open opens (creating if necessary) the build database at path and applies
// any pending migrations.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening build db %q", path)
	}
	sqlDB.SetMaxOpenConns(1)

	db := &DB{sql: sqlDB}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the underlying sqlite connection.
func (db *DB) Close() error {
	return db.sql.Close()
}

func (db *DB) migrate() error {
	tx, err := db.sql.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning migration transaction")
	}
	defer tx.Rollback()

	for _, stmt := range migrations {
		if _, err := tx.Exec(stmt); err != nil {
			return errors.Wrapf(err, "applying build db migration: %s", stmt)
		}
	}
	return errors.Wrap(tx.Commit(), "committing build db migration")
}

// RecordCompilation stores the command and captured output for output,
// replacing any prior record.
func (db *DB) RecordCompilation(output string, info CompletedCompilation) error {
	_, err := db.sql.Exec(`
		INSERT INTO compilations(output, command, captured_output, duration_ns, toolchain_hash, compile_start)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(output) DO UPDATE SET
			command=excluded.command,
			captured_output=excluded.captured_output,
			duration_ns=excluded.duration_ns,
			toolchain_hash=excluded.toolchain_hash,
			compile_start=excluded.compile_start
	`, output, info.Command, info.Output, info.Duration.Nanoseconds(), info.ToolchainHash, info.CompileStart.UnixNano())
	return errors.Wrapf(err, "recording compilation of %q", output)
}

// ForgetInputsOf deletes every recorded input for output, meant to be
// called before re-inserting a fresh set.
func (db *DB) ForgetInputsOf(output string) error {
	_, err := db.sql.Exec(`DELETE FROM compile_inputs WHERE output = ?`, output)
	return errors.Wrapf(err, "forgetting inputs of %q", output)
}

// RecordInput stores one observed input for output at the given mtime.
// Callers are expected to have already clamped mtime to
// min(input_mtime, compile_start_time), since only this package's
// caller (the executor) knows when the compile started.
func (db *DB) RecordInput(output, path string, mtime time.Time) error {
	_, err := db.sql.Exec(`
		INSERT INTO compile_inputs(output, path, mtime)
		VALUES (?, ?, ?)
		ON CONFLICT(output, path) DO UPDATE SET mtime=excluded.mtime
	`, output, path, mtime.UnixNano())
	return errors.Wrapf(err, "recording input %q of %q", path, output)
}

// CommandOf returns the previously recorded compilation for output, if any.
func (db *DB) CommandOf(output string) (CompletedCompilation, bool, error) {
	row := db.sql.QueryRow(`
		SELECT command, captured_output, duration_ns, toolchain_hash, compile_start
		FROM compilations WHERE output = ?
	`, output)
	var (
		command, capturedOutput, toolchainHash string
		durationNs, compileStartNs             int64
	)
	err := row.Scan(&command, &capturedOutput, &durationNs, &toolchainHash, &compileStartNs)
	if err == sql.ErrNoRows {
		return CompletedCompilation{}, false, nil
	}
	if err != nil {
		return CompletedCompilation{}, false, errors.Wrapf(err, "reading command of %q", output)
	}
	return CompletedCompilation{
		Command:       command,
		Output:        capturedOutput,
		Duration:      time.Duration(durationNs),
		ToolchainHash: toolchainHash,
		CompileStart:  time.Unix(0, compileStartNs),
	}, true, nil
}

// InputsOf returns the previously recorded inputs for output, if any.
func (db *DB) InputsOf(output string) ([]InputRecord, bool, error) {
	// A prior record with zero inputs is indistinguishable from "no record"
	// unless we first confirm a compilations row exists.
	if _, ok, err := db.CommandOf(output); err != nil {
		return nil, false, err
	} else if !ok {
		return nil, false, nil
	}

	rows, err := db.sql.Query(`SELECT path, mtime FROM compile_inputs WHERE output = ?`, output)
	if err != nil {
		return nil, false, errors.Wrapf(err, "reading inputs of %q", output)
	}
	defer rows.Close()

	var out []InputRecord
	for rows.Next() {
		var path string
		var mtimeNs int64
		if err := rows.Scan(&path, &mtimeNs); err != nil {
			return nil, false, errors.Wrapf(err, "scanning input of %q", output)
		}
		out = append(out, InputRecord{Path: path, MTime: time.Unix(0, mtimeNs)})
	}
	return out, true, errors.Wrap(rows.Err(), "iterating inputs")
}
