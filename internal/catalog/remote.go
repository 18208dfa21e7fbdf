package catalog

import (
	"database/sql"
	"io/ioutil"
	"net/http"
	"os"

	"github.com/pkg/errors"

	"github.com/bptpkg/bpt/internal/crsmeta"
)

// Remote is one tracked upstream catalog source.
type Remote struct {
	Name  string
	URL   string
	ETag  string
	MTime string
}

// AddRemote registers a new remote by name and base URL, without fetching
// it; a subsequent UpdateAllRemotes call pulls its packages in.
func (db *DB) AddRemote(name, url string) error {
	return db.registerRemote(name, url)
}

// RemoveRemote drops a remote and every package attributed to it.
func (db *DB) RemoveRemote(name string) error {
	tx, err := db.sql.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning remove-remote transaction")
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM packages WHERE remote_name = ?`, name); err != nil {
		return errors.Wrapf(err, "removing packages for remote %q", name)
	}
	if _, err := tx.Exec(`DELETE FROM remotes WHERE name = ?`, name); err != nil {
		return errors.Wrapf(err, "removing remote %q", name)
	}
	return errors.Wrap(tx.Commit(), "committing remove-remote transaction")
}

// ListRemotes returns every tracked remote.
func (db *DB) ListRemotes() ([]Remote, error) {
	rows, err := db.sql.Query(`SELECT name, url, COALESCE(etag, ''), COALESCE(mtime, '') FROM remotes ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "querying remotes")
	}
	defer rows.Close()

	var out []Remote
	for rows.Next() {
		var r Remote
		if err := rows.Scan(&r.Name, &r.URL, &r.ETag, &r.MTime); err != nil {
			return nil, errors.Wrap(err, "scanning remote row")
		}
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "iterating remote rows")
}

// RemoteFetcher abstracts the HTTP round trip for UpdateAllRemotes, so tests
// can substitute a canned response instead of reaching the network.
type RemoteFetcher interface {
	// Fetch issues a conditional GET for url using the given etag/mtime and
	// returns changed=false with a nil body when the server reports no
	// change (HTTP 304). On a fresh body it returns the content, the new etag and
	// mtime, and changed=true.
	Fetch(url, etag, mtime string) (body []byte, newETag, newMTime string, changed bool, err error)
}

// httpRemoteFetcher is the default RemoteFetcher, issuing real HTTP
// requests with If-None-Match/If-Modified-Since conditional headers.
type httpRemoteFetcher struct {
	Client *http.Client
}

func (f httpRemoteFetcher) Fetch(url, etag, mtime string) ([]byte, string, string, bool, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, "", "", false, errors.Wrapf(err, "building request for %q", url)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if mtime != "" {
		req.Header.Set("If-Modified-Since", mtime)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", "", false, errors.Wrapf(err, "fetching %q", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return nil, etag, mtime, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", "", false, errors.Errorf("fetching %q: unexpected status %s", url, resp.Status)
	}

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, "", "", false, errors.Wrapf(err, "reading body of %q", url)
	}
	return body, resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), true, nil
}

// DefaultRemoteFetcher is the production RemoteFetcher used outside tests.
var DefaultRemoteFetcher RemoteFetcher = httpRemoteFetcher{}

// UpdateAllRemotes refreshes every tracked remote: for each, issue a
// conditional request against "<url>/repo.db"; on 304 leave it untouched;
// on a fresh body, read every package's metadata out of the downloaded
// database, replace that remote's packages and persist the new etag/mtime
// in one transaction, then VACUUM. A downloaded database whose package rows
// cannot be read or decoded aborts that remote's update with a "corrupted
// catalog" error without touching the others. No foreign-key or integrity
// check is run on the updated catalog.
func (db *DB) UpdateAllRemotes(fetcher RemoteFetcher) error {
	if fetcher == nil {
		fetcher = DefaultRemoteFetcher
	}

	remotes, err := db.ListRemotes()
	if err != nil {
		return err
	}

	var firstErr error
	for _, r := range remotes {
		if err := db.updateOneRemote(fetcher, r); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (db *DB) updateOneRemote(fetcher RemoteFetcher, r Remote) error {
	body, newETag, newMTime, changed, err := fetcher.Fetch(r.URL+"/repo.db", r.ETag, r.MTime)
	if err != nil {
		return errors.Wrapf(err, "updating remote %q", r.Name)
	}
	if !changed {
		return nil
	}

	tmp, err := ioutil.TempFile("", "bpt-remote-repo-*.db")
	if err != nil {
		return errors.Wrap(err, "staging downloaded catalog")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing downloaded catalog")
	}
	tmp.Close()

	remoteDB, err := sql.Open("sqlite", tmp.Name())
	if err != nil {
		return errors.Wrap(err, "opening downloaded catalog")
	}
	defer remoteDB.Close()

	metas, err := readRemoteMetas(remoteDB)
	if err != nil {
		return errors.Wrapf(err, "corrupted catalog from remote %q", r.Name)
	}

	tx, err := db.sql.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning remote-update transaction")
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM packages WHERE remote_name = ?`, r.Name); err != nil {
		return errors.Wrapf(err, "clearing stale packages for remote %q", r.Name)
	}
	for _, m := range metas {
		if err := storeTx(tx, m, r.URL); err != nil {
			return errors.Wrapf(err, "reinserting package from remote %q", r.Name)
		}
		if _, err := tx.Exec(`UPDATE packages SET remote_name = ? WHERE pkg_id = ?`, r.Name, m.ID().String()); err != nil {
			return errors.Wrapf(err, "attributing package to remote %q", r.Name)
		}
	}

	if _, err := tx.Exec(
		`UPDATE remotes SET etag = ?, mtime = ? WHERE name = ?`,
		nullableString(newETag), nullableString(newMTime), r.Name,
	); err != nil {
		return errors.Wrapf(err, "recording etag/mtime for remote %q", r.Name)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, "committing remote-update transaction for %q", r.Name)
	}

	if _, err := db.sql.Exec(`VACUUM`); err != nil {
		return errors.Wrap(err, "vacuuming catalog after remote update")
	}
	return nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// readRemoteMetas reads every package's serialized metadata out of a
// downloaded remote catalog file, which shares this package's schema.
func readRemoteMetas(remoteDB *sql.DB) ([]crsmeta.PackageMeta, error) {
	rows, err := remoteDB.Query(`SELECT meta_json FROM packages`)
	if err != nil {
		return nil, errors.Wrap(err, "reading remote packages table")
	}
	defer rows.Close()

	var out []crsmeta.PackageMeta
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, errors.Wrap(err, "scanning remote package row")
		}
		var meta crsmeta.PackageMeta
		if err := meta.UnmarshalJSON([]byte(raw)); err != nil {
			return nil, errors.Wrap(err, "decoding remote package meta")
		}
		out = append(out, meta)
	}
	return out, errors.Wrap(rows.Err(), "iterating remote package rows")
}
