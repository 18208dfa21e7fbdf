// Package catalog implements the persistent package catalog/cache database:
// a single sqlite file tracking known remotes, the packages they advertise,
// and each package's declared dependencies.
package catalog

import (
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/bptpkg/bpt/internal/crsmeta"
	"github.com/bptpkg/bpt/internal/manifest"
	"github.com/bptpkg/bpt/internal/pkgid"
)

// DB wraps the catalog's sqlite connection.
type DB struct {
	sql *sql.DB
}

// Open opens (creating if necessary) the catalog database at path and
// brings its schema up to date, running every pending migration inside a
// single transaction.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening catalog database %q", path)
	}
	// The sqlite driver serializes writers internally; a single connection
	// avoids "database is locked" errors from concurrent pooled conns.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{sql: sqlDB}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Close releases the underlying connection.
func (db *DB) Close() error {
	return errors.Wrap(db.sql.Close(), "closing catalog database")
}

func (db *DB) migrate() error {
	tx, err := db.sql.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning migration transaction")
	}
	defer tx.Rollback()

	if _, err := tx.Exec(migrations[0]); err != nil {
		return errors.Wrap(err, "applying base schema")
	}

	current := 0
	row := tx.QueryRow(`SELECT value FROM meta WHERE key = ?`, schemaVersionKey)
	var v string
	if err := row.Scan(&v); err == nil {
		current, _ = strconv.Atoi(v)
	}

	for i := current; i < len(migrations); i++ {
		if i == 0 {
			continue // already applied above so meta exists before we read it
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			return errors.Wrapf(err, "applying migration %d", i+1)
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO meta(key, value) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		schemaVersionKey, strconv.Itoa(len(migrations)),
	); err != nil {
		return errors.Wrap(err, "recording schema version")
	}

	return errors.Wrap(tx.Commit(), "committing migration transaction")
}

// Store upserts a package's metadata into the catalog, replacing its prior
// dependency rows.
func (db *DB) Store(meta crsmeta.PackageMeta, remoteURL string) error {
	tx, err := db.sql.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning store transaction")
	}
	defer tx.Rollback()

	if err := storeTx(tx, meta, remoteURL); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "committing store transaction")
}

func storeTx(tx *sql.Tx, meta crsmeta.PackageMeta, remoteURL string) error {
	id := meta.ID()
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return errors.Wrap(err, "marshaling package meta")
	}

	if _, err := tx.Exec(
		`INSERT INTO packages(pkg_id, name, version, revision, description, remote_url, meta_json)
		 VALUES(?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(pkg_id) DO UPDATE SET
		   description = excluded.description,
		   remote_url  = excluded.remote_url,
		   meta_json   = excluded.meta_json`,
		id.String(), id.Name.String(), id.Version.String(), id.Revision, "", remoteURL, string(metaJSON),
	); err != nil {
		return errors.Wrapf(err, "upserting package %s", id)
	}

	if _, err := tx.Exec(`DELETE FROM deps WHERE pkg_id = ?`, id.String()); err != nil {
		return errors.Wrapf(err, "clearing old dependency rows for %s", id)
	}

	for _, lib := range meta.Libraries {
		for _, dep := range lib.Dependencies {
			if err := insertDep(tx, id, dep); err != nil {
				return err
			}
		}
	}

	return nil
}

func insertDep(tx *sql.Tx, id pkgid.ID, dep crsmeta.DependencyMeta) error {
	low, high, unbounded := dep.Acceptable.Bounds()
	var highVal interface{}
	if !unbounded {
		highVal = high.String()
	}

	usesKind := "explicit"
	var usesCSV string
	names := make([]string, 0, len(dep.Using))
	for _, n := range dep.Using {
		names = append(names, n.String())
	}
	usesCSV = strings.Join(names, ",")

	_, err := tx.Exec(
		`INSERT INTO deps(pkg_id, dep_name, low, high, uses_kind, uses_explicit_csv) VALUES(?, ?, ?, ?, ?, ?)`,
		id.String(), dep.Name.String(), low.String(), highVal, usesKind, usesCSV,
	)
	return errors.Wrapf(err, "inserting dependency %q of %s", dep.Name, id)
}

// All returns every package in the catalog, ordered (version desc, revision
// desc) within each name, then by name.
func (db *DB) All() ([]crsmeta.PackageMeta, error) {
	return db.queryMetas(`SELECT meta_json FROM packages ORDER BY name ASC`)
}

// ByName returns every known version/revision of the named package, ordered
// (version desc, revision desc).
func (db *DB) ByName(name pkgid.Name) ([]crsmeta.PackageMeta, error) {
	return db.queryMetas(`SELECT meta_json FROM packages WHERE name = ?`, name.String())
}

func (db *DB) queryMetas(query string, args ...interface{}) ([]crsmeta.PackageMeta, error) {
	rows, err := db.sql.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying packages")
	}
	defer rows.Close()

	var out []crsmeta.PackageMeta
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, errors.Wrap(err, "scanning package row")
		}
		var meta crsmeta.PackageMeta
		if err := meta.UnmarshalJSON([]byte(raw)); err != nil {
			return nil, errors.Wrap(err, "decoding stored package meta")
		}
		out = append(out, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating package rows")
	}

	out = sortMetasDesc(out)
	return out, nil
}

func sortMetasDesc(metas []crsmeta.PackageMeta) []crsmeta.PackageMeta {
	ids := make([]pkgid.ID, len(metas))
	byID := make(map[pkgid.ID]crsmeta.PackageMeta, len(metas))
	for i, m := range metas {
		ids[i] = m.ID()
		byID[ids[i]] = m
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j].Less(ids[j-1]); j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	out := make([]crsmeta.PackageMeta, len(ids))
	for i, id := range ids {
		out[i] = byID[id]
	}
	return out
}

// ForPackage returns the stored PackageMeta for the given id, for use by
// `pkg search`/`pkg get` style lookups.
func (db *DB) ForPackage(id pkgid.ID) (crsmeta.PackageMeta, error) {
	row := db.sql.QueryRow(`SELECT meta_json FROM packages WHERE pkg_id = ?`, id.String())
	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return crsmeta.PackageMeta{}, errors.Errorf("no package %s in catalog", id)
		}
		return crsmeta.PackageMeta{}, errors.Wrapf(err, "looking up package %s", id)
	}
	var meta crsmeta.PackageMeta
	if err := meta.UnmarshalJSON([]byte(raw)); err != nil {
		return crsmeta.PackageMeta{}, errors.Wrap(err, "decoding stored package meta")
	}
	return meta, nil
}

// Dependency is one reconstructed row from the deps table.
type Dependency struct {
	Name       pkgid.Name
	Acceptable pkgid.VersionRangeSet
	Uses       manifest.Uses
}

// DependenciesOf reconstructs the flat dependency rows recorded for id (not
// libraries -- those live inside the packaged metadata JSON returned by
// ForPackage).
func (db *DB) DependenciesOf(id pkgid.ID) ([]Dependency, error) {
	rows, err := db.sql.Query(
		`SELECT dep_name, low, high, uses_kind, uses_explicit_csv FROM deps WHERE pkg_id = ?`,
		id.String(),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "querying dependencies of %s", id)
	}
	defer rows.Close()

	var out []Dependency
	for rows.Next() {
		var name, low, usesKind, usesCSV string
		var high sql.NullString
		if err := rows.Scan(&name, &low, &high, &usesKind, &usesCSV); err != nil {
			return nil, errors.Wrap(err, "scanning dependency row")
		}

		n, err := pkgid.Parse(name)
		if err != nil {
			return nil, errors.Wrapf(err, "dependency row for %s", id)
		}
		lowV, err := pkgid.ParseVersion(low)
		if err != nil {
			return nil, errors.Wrapf(err, "dependency row for %s", id)
		}

		var rng pkgid.VersionRangeSet
		if high.Valid {
			highV, err := pkgid.ParseVersion(high.String)
			if err != nil {
				return nil, errors.Wrapf(err, "dependency row for %s", id)
			}
			rng = pkgid.NewRange(lowV, highV)
		} else {
			rng = pkgid.NewUnbounded(lowV)
		}

		uses := manifest.ImplicitAll()
		if usesCSV != "" {
			var names []pkgid.Name
			for _, part := range strings.Split(usesCSV, ",") {
				un, err := pkgid.Parse(part)
				if err != nil {
					return nil, errors.Wrapf(err, "dependency row for %s", id)
				}
				names = append(names, un)
			}
			uses = manifest.Explicit(names...)
		}

		out = append(out, Dependency{Name: n, Acceptable: rng, Uses: uses})
	}
	return out, errors.Wrap(rows.Err(), "iterating dependency rows")
}

// RemoteURLOf returns the base URL of the remote that advertised id, for
// fetching its packed sdist during `install`/`build-deps`. ok is false for
// a package with no recorded remote (imported locally via `pkg create` or
// `repo import`).
func (db *DB) RemoteURLOf(id pkgid.ID) (url string, ok bool, err error) {
	row := db.sql.QueryRow(`SELECT remote_url FROM packages WHERE pkg_id = ?`, id.String())
	var raw sql.NullString
	if scanErr := row.Scan(&raw); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return "", false, errors.Errorf("no package %s in catalog", id)
		}
		return "", false, errors.Wrapf(scanErr, "looking up remote url for %s", id)
	}
	return raw.String, raw.Valid && raw.String != "", nil
}

// AllNames returns every distinct package name known to the catalog, used
// for "did you mean?" suggestions when a dependency can't be satisfied.
func (db *DB) AllNames() ([]pkgid.Name, error) {
	rows, err := db.sql.Query(`SELECT DISTINCT name FROM packages ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "querying package names")
	}
	defer rows.Close()

	var out []pkgid.Name
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, errors.Wrap(err, "scanning name row")
		}
		n, err := pkgid.Parse(s)
		if err != nil {
			return nil, errors.Wrap(err, "decoding stored package name")
		}
		out = append(out, n)
	}
	return out, errors.Wrap(rows.Err(), "iterating name rows")
}

// registerRemote upserts a remote's tracked URL without touching any stored
// ETag/mtime, used when a remote is first added via `repo add`.
func (db *DB) registerRemote(name, url string) error {
	_, err := db.sql.Exec(
		`INSERT INTO remotes(name, url) VALUES(?, ?)
		 ON CONFLICT(name) DO UPDATE SET url = excluded.url`,
		name, url,
	)
	return errors.Wrapf(err, "registering remote %q", name)
}
