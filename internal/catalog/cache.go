package catalog

import (
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"

	"github.com/bptpkg/bpt/internal/pkgid"
	"github.com/bptpkg/bpt/internal/sdist"
)

const sentinelFileName = ".bpt-cache-lock"

// lockPollInterval/lockWarnAfter govern how the local cache reports
// contention on its sentinel lock file: a short poll, with a warning
// logged if contention stalls acquisition.
const (
	lockPollInterval = 50 * time.Millisecond
	lockWarnAfter    = 2 * time.Second
)

// Cache is the local, content-addressed sdist cache living alongside the
// catalog database: one subdirectory per package id, guarded by a
// shared/exclusive lock on a sentinel file at its root.
type Cache struct {
	Root   string
	logger *log.Logger
}

// NewCache opens (creating if necessary) the cache directory at root.
func NewCache(root string, logger *log.Logger) (*Cache, error) {
	if logger == nil {
		logger = log.New(ioutil.Discard, "", 0)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating cache root %q", root)
	}
	return &Cache{Root: root, logger: logger}, nil
}

func (c *Cache) sentinelPath() string {
	return filepath.Join(c.Root, sentinelFileName)
}

func (c *Cache) entryPath(id pkgid.ID) string {
	return filepath.Join(c.Root, id.CacheDirName())
}

// withLock acquires either a shared (reader) or exclusive (mutator) lock on
// the cache's sentinel file for the duration of fn.
func (c *Cache) withLock(exclusive bool, fn func() error) error {
	fl := flock.New(c.sentinelPath())

	acquire := fl.TryRLock
	if exclusive {
		acquire = fl.TryLock
	}

	deadlineWarned := false
	start := time.Now()
	for {
		ok, err := acquire()
		if err != nil {
			return errors.Wrapf(err, "locking cache %q", c.Root)
		}
		if ok {
			break
		}
		if !deadlineWarned && time.Since(start) > lockWarnAfter {
			c.logger.Printf("cache %q: still waiting on lock after %s", c.Root, time.Since(start).Round(time.Second))
			deadlineWarned = true
		}
		time.Sleep(lockPollInterval)
	}
	defer fl.Unlock()

	return fn()
}

// Has reports whether id is already present as a well-formed cache entry.
func (c *Cache) Has(id pkgid.ID) bool {
	_, err := os.Stat(filepath.Join(c.entryPath(id), "pkg.json"))
	return err == nil
}

// Entries lists every well-formed cache entry on disk, logging and skipping
// anything malformed rather than failing outright.
func (c *Cache) Entries() ([]sdist.Sdist, error) {
	var out []sdist.Sdist
	err := c.withLock(false, func() error {
		infos, err := ioutil.ReadDir(c.Root)
		if err != nil {
			return errors.Wrapf(err, "listing cache %q", c.Root)
		}
		for _, fi := range infos {
			if !fi.IsDir() || fi.Name() == sentinelFileName {
				continue
			}
			sd, err := sdist.Load(filepath.Join(c.Root, fi.Name()))
			if err != nil {
				c.logger.Printf("cache %q: skipping malformed entry %q: %v", c.Root, fi.Name(), err)
				continue
			}
			out = append(out, sd)
		}
		return nil
	})
	return out, err
}

// Import extracts the given packed sdist tarball into the cache under id's
// canonical directory name, staging into a temp directory first and
// renaming into place for a two-phase import. If the entry already
// exists and loads cleanly, Import returns it unchanged unless replace is
// true; an existing entry that fails to load is removed and re-imported.
func (c *Cache) Import(id pkgid.ID, tarGz func(dest string) error, replace bool) (sdist.Sdist, error) {
	var result sdist.Sdist
	err := c.withLock(true, func() error {
		dest := c.entryPath(id)
		if _, statErr := os.Stat(dest); statErr == nil {
			if !replace {
				sd, loadErr := sdist.Load(dest)
				if loadErr == nil {
					result = sd
					return nil
				}
			}
			if err := os.RemoveAll(dest); err != nil {
				return errors.Wrapf(err, "removing stale cache entry %q", dest)
			}
		}

		scratch, err := ioutil.TempDir(c.Root, ".tmp-import-")
		if err != nil {
			return errors.Wrap(err, "creating import staging directory")
		}
		defer os.RemoveAll(scratch)

		// tarGz (sdist.Unpack) refuses to extract into a directory that
		// already exists, so hand it a not-yet-created path inside our
		// scratch space rather than scratch itself.
		extracted := filepath.Join(scratch, "extracted")
		if err := tarGz(extracted); err != nil {
			return errors.Wrapf(err, "extracting sdist for %s", id)
		}

		if err := os.Rename(extracted, dest); err != nil {
			return errors.Wrapf(err, "placing cache entry %q", dest)
		}

		sd, err := sdist.Load(dest)
		if err != nil {
			return errors.Wrapf(err, "loading newly-imported cache entry %q", dest)
		}
		result = sd
		return nil
	})
	return result, err
}

// Get loads an existing cache entry by id, taking a shared lock for the
// duration of the read.
func (c *Cache) Get(id pkgid.ID) (sdist.Sdist, error) {
	var result sdist.Sdist
	err := c.withLock(false, func() error {
		sd, err := sdist.Load(c.entryPath(id))
		if err != nil {
			return errors.Wrapf(err, "loading cache entry for %s", id)
		}
		result = sd
		return nil
	})
	return result, err
}
