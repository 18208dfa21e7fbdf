// Package dirscan caches the recursive file listing of a directory so a
// build never re-walks an immutable sdist more than once.
package dirscan

import (
	"database/sql"
	"path/filepath"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"

	_ "modernc.org/sqlite"
)

// Collector is the directory-listing cache: keyed by canonicalized
// directory path, backed by a scanned_dirs/found_files schema.
type Collector struct {
	sql *sql.DB
}

// Open opens (creating if necessary) the scan cache at path.
func Open(path string) (*Collector, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening dir scan cache %q", path)
	}
	db.SetMaxOpenConns(1)
	c := &Collector{sql: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the underlying sqlite connection.
func (c *Collector) Close() error {
	return c.sql.Close()
}

func (c *Collector) migrate() error {
	tx, err := c.sql.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning dir scan cache migration")
	}
	defer tx.Rollback()
	for _, stmt := range migrations {
		if _, err := tx.Exec(stmt); err != nil {
			return errors.Wrapf(err, "applying dir scan cache migration: %s", stmt)
		}
	}
	return errors.Wrap(tx.Commit(), "committing dir scan cache migration")
}

// normalize canonicalizes dirpath to an absolute, cleaned path so two
// different spellings of the same directory hit the same cache row.
func normalize(dirpath string) (string, error) {
	abs, err := filepath.Abs(dirpath)
	if err != nil {
		return "", errors.Wrapf(err, "resolving %q", dirpath)
	}
	return filepath.Clean(abs), nil
}

// Collect returns every entry (files and subdirectories) found under
// dirpath, relative to dirpath. The
// first call for a normalized directory performs a recursive walk inside a
// single transaction and inserts the result into scanned_dirs/found_files;
// every later call for the same normalized path streams straight from the
// cache rather than touching the filesystem again.
func (c *Collector) Collect(dirpath string) ([]string, error) {
	normpath, err := normalize(dirpath)
	if err != nil {
		return nil, err
	}

	dirID, ok, err := c.dirID(normpath)
	if err != nil {
		return nil, err
	}
	if !ok {
		dirID, err = c.scanAndStore(normpath)
		if err != nil {
			return nil, err
		}
	}
	return c.filesOf(dirID)
}

// HasCached reports whether dirpath has already been scanned, without
// performing a scan itself.
func (c *Collector) HasCached(dirpath string) (bool, error) {
	normpath, err := normalize(dirpath)
	if err != nil {
		return false, err
	}
	_, ok, err := c.dirID(normpath)
	return ok, err
}

// Forget invalidates any cached listing for dirpath, so the next Collect
// call re-scans it.
func (c *Collector) Forget(dirpath string) error {
	normpath, err := normalize(dirpath)
	if err != nil {
		return err
	}
	_, err = c.sql.Exec(`DELETE FROM scanned_dirs WHERE dirpath = ?`, normpath)
	return errors.Wrapf(err, "forgetting scan of %q", normpath)
}

func (c *Collector) dirID(normpath string) (int64, bool, error) {
	var id int64
	err := c.sql.QueryRow(`SELECT dir_id FROM scanned_dirs WHERE dirpath = ?`, normpath).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrapf(err, "looking up scan of %q", normpath)
	}
	return id, true, nil
}

func (c *Collector) scanAndStore(normpath string) (int64, error) {
	tx, err := c.sql.Begin()
	if err != nil {
		return 0, errors.Wrap(err, "beginning scan transaction")
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO scanned_dirs(dirpath) VALUES (?)`, normpath)
	if err != nil {
		return 0, errors.Wrapf(err, "recording scan of %q", normpath)
	}
	dirID, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "reading new scanned_dirs row id")
	}

	stmt, err := tx.Prepare(`INSERT INTO found_files(dir_id, relpath) VALUES (?, ?)`)
	if err != nil {
		return 0, errors.Wrap(err, "preparing found_files insert")
	}
	defer stmt.Close()

	walkErr := godirwalk.Walk(normpath, &godirwalk.Options{
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if osPathname == normpath {
				return nil
			}
			rel, err := filepath.Rel(normpath, osPathname)
			if err != nil {
				return err
			}
			_, err = stmt.Exec(dirID, rel)
			return err
		},
		Unsorted: true,
	})
	if walkErr != nil {
		return 0, errors.Wrapf(walkErr, "scanning %q", normpath)
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "committing scan transaction")
	}
	return dirID, nil
}

func (c *Collector) filesOf(dirID int64) ([]string, error) {
	rows, err := c.sql.Query(`SELECT relpath FROM found_files WHERE dir_id = ?`, dirID)
	if err != nil {
		return nil, errors.Wrap(err, "reading found_files")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var rel string
		if err := rows.Scan(&rel); err != nil {
			return nil, errors.Wrap(err, "scanning found_files row")
		}
		out = append(out, rel)
	}
	return out, errors.Wrap(rows.Err(), "iterating found_files")
}
