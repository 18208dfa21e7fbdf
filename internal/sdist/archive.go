package sdist

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Pack writes the sdist at dir as a gzip-compressed tar stream, the
// transport format served as "sdist.tar.gz" by a remote catalog.
// Entries are written in sorted relative-path order; each entry's header
// carries the file's own mode, owner and modification time, so two packs
// of identical contents are byte-identical only when that metadata
// matches as well.
func Pack(dir string, w io.Writer) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	var paths []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "walking %q", dir)
	}
	sort.Strings(paths)

	for _, rel := range paths {
		full := filepath.Join(dir, rel)
		fi, err := os.Stat(full)
		if err != nil {
			return errors.Wrapf(err, "statting %q", rel)
		}
		hdr, err := tar.FileInfoHeader(fi, "")
		if err != nil {
			return errors.Wrapf(err, "building tar header for %q", rel)
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return errors.Wrapf(err, "writing tar header for %q", rel)
		}
		f, err := os.Open(full)
		if err != nil {
			return errors.Wrapf(err, "opening %q", rel)
		}
		_, err = io.Copy(tw, f)
		f.Close()
		if err != nil {
			return errors.Wrapf(err, "writing %q", rel)
		}
	}

	if err := tw.Close(); err != nil {
		return errors.Wrap(err, "closing tar writer")
	}
	return errors.Wrap(gz.Close(), "closing gzip writer")
}

// Unpack extracts a gzip-compressed tar stream (as produced by Pack) into
// destDir, which must not already exist. Path traversal via ".." entries or
// absolute paths is rejected, since the stream may have been fetched over
// the network from an untrusted remote.
func Unpack(r io.Reader, destDir string) error {
	if _, err := os.Stat(destDir); err == nil {
		return errors.Errorf("extraction target %q already exists", destDir)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return errors.Wrapf(err, "creating %q", destDir)
	}

	gz, err := gzip.NewReader(r)
	if err != nil {
		return errors.Wrap(err, "opening gzip stream")
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "reading tar stream")
		}

		cleaned := filepath.Clean(hdr.Name)
		if filepath.IsAbs(cleaned) || cleaned == ".." || hasParentTraversal(cleaned) {
			return errors.Errorf("refusing to extract unsafe tar entry %q", hdr.Name)
		}
		target := filepath.Join(destDir, cleaned)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)); err != nil {
				return errors.Wrapf(err, "creating directory %q", cleaned)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return errors.Wrapf(err, "creating parent of %q", cleaned)
			}
			if err := extractFile(tr, target, os.FileMode(hdr.Mode)); err != nil {
				return errors.Wrapf(err, "extracting %q", cleaned)
			}
		default:
			// symlinks, devices, etc. have no place in an sdist.
			continue
		}
	}
	return nil
}

// hasParentTraversal reports whether a cleaned relative path still escapes
// its root, which filepath.Clean signals with a leading "..".
func hasParentTraversal(cleaned string) bool {
	return cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator))
}

func extractFile(r io.Reader, dest string, mode os.FileMode) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, r)
	return err
}
