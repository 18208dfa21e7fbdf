// Package sdist implements the canonical on-disk layout of a source
// distribution: a directory holding pkg.json plus each library's src/ and
// include/ trees, creation from a project directory, loading back from
// disk, and tar.gz packing/unpacking for transport.
package sdist

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/bptpkg/bpt/internal/crsmeta"
	"github.com/bptpkg/bpt/internal/manifest"
)

// metaFileName is the required metadata file at the root of every sdist.
const metaFileName = "pkg.json"

// Sdist is a loaded source distribution: its metadata and the directory it
// lives in.
type Sdist struct {
	Meta crsmeta.PackageMeta
	Path string
}

// CreateParams mirrors the options a project's "create sdist" operation
// accepts: which directories to include alongside src/include.
type CreateParams struct {
	ProjectDir   string
	DestDir      string
	Force        bool
	IncludeApps  bool
	IncludeTests bool
}

// sourceRootNames are the library subdirectories whose files are always
// part of an sdist, regardless of CreateParams.
var sourceRootNames = []string{"src", "include"}

// Create materializes an sdist for the project at params.ProjectDir into
// params.DestDir, first staging into a sibling temp directory and renaming
// into place so a reader never observes a partially-written sdist.
func Create(m manifest.Manifest, meta crsmeta.PackageMeta, params CreateParams) (Sdist, error) {
	if _, err := os.Stat(params.DestDir); err == nil {
		if !params.Force {
			return Sdist{}, errors.Errorf("destination %q already exists", params.DestDir)
		}
	} else if !os.IsNotExist(err) {
		return Sdist{}, errors.Wrapf(err, "statting destination %q", params.DestDir)
	}

	parent := filepath.Dir(params.DestDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return Sdist{}, errors.Wrapf(err, "creating parent of %q", params.DestDir)
	}

	tmp, err := ioutil.TempDir(parent, ".bpt-sdist-tmp-")
	if err != nil {
		return Sdist{}, errors.Wrap(err, "creating staging directory")
	}
	defer os.RemoveAll(tmp)

	if err := stageInto(tmp, m, meta, params); err != nil {
		return Sdist{}, err
	}

	if params.Force {
		os.RemoveAll(params.DestDir)
	}
	if err := renameOrCopy(tmp, params.DestDir); err != nil {
		return Sdist{}, errors.Wrapf(err, "placing sdist at %q", params.DestDir)
	}

	return Load(params.DestDir)
}

func stageInto(out string, m manifest.Manifest, meta crsmeta.PackageMeta, params CreateParams) error {
	for _, lib := range m.Libraries {
		if err := copyLibraryTree(out, params.ProjectDir, lib, params); err != nil {
			return errors.Wrapf(err, "exporting library %q", lib.Name)
		}
	}

	data, err := meta.MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "marshaling package meta")
	}
	if err := ioutil.WriteFile(filepath.Join(out, metaFileName), data, 0o644); err != nil {
		return errors.Wrap(err, "writing "+metaFileName)
	}
	return nil
}

func copyLibraryTree(out, projectDir string, lib manifest.LibraryInfo, params CreateParams) error {
	libSrc := filepath.Join(projectDir, lib.Path)
	for _, root := range sourceRootNames {
		rootPath := filepath.Join(libSrc, root)
		if fi, err := os.Stat(rootPath); err != nil || !fi.IsDir() {
			continue
		}
		if err := copyTreeFiltered(projectDir, rootPath, out, params); err != nil {
			return err
		}
	}
	if params.IncludeApps {
		if err := copyTreeIfExists(projectDir, filepath.Join(libSrc, "apps"), out); err != nil {
			return err
		}
	}
	if params.IncludeTests {
		if err := copyTreeIfExists(projectDir, filepath.Join(libSrc, "test"), out); err != nil {
			return err
		}
	}
	return nil
}

func copyTreeIfExists(projectDir, dir, out string) error {
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return nil
	}
	return copyTreeFiltered(projectDir, dir, out, CreateParams{})
}

func copyTreeFiltered(projectDir, dir, out string, _ CreateParams) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(projectDir, path)
		if err != nil {
			return err
		}
		dest := filepath.Join(out, rel)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		return copyFile(path, dest)
	})
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	fi, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.Chmod(dest, fi.Mode())
}

// renameOrCopy attempts an atomic rename, falling back to a recursive copy
// plus removal when src and dest are not on the same filesystem.
func renameOrCopy(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	if err := copyTreeFiltered(src, src, dest, CreateParams{}); err != nil {
		return err
	}
	return os.RemoveAll(src)
}

// Load reads an existing sdist directory's pkg.json back into memory.
func Load(dir string) (Sdist, error) {
	data, err := ioutil.ReadFile(filepath.Join(dir, metaFileName))
	if err != nil {
		return Sdist{}, errors.Wrapf(err, "loading sdist at %q", dir)
	}
	var meta crsmeta.PackageMeta
	if err := meta.UnmarshalJSON(data); err != nil {
		return Sdist{}, errors.Wrapf(err, "loading sdist at %q", dir)
	}
	return Sdist{Meta: meta, Path: dir}, nil
}

// WriteMeta rewrites pkg.json inside an existing sdist directory in place,
// without touching its src/include trees -- the "regen" operation for a
// project whose manifest changed but whose sources didn't.
func WriteMeta(dir string, meta crsmeta.PackageMeta) error {
	data, err := meta.MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "marshaling package meta")
	}
	return errors.Wrap(ioutil.WriteFile(filepath.Join(dir, metaFileName), data, 0o644), "writing "+metaFileName)
}

// ContentDigest computes a stable sha256 over the sdist's file contents and
// relative paths, used by the catalog/cache layer to detect whether an
// extracted tree matches what a tarball claims to contain.
func ContentDigest(dir string) (string, error) {
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
		return "", errors.Wrapf(err, "walking %q", dir)
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, rel := range paths {
		h.Write([]byte("path:" + filepath.ToSlash(rel) + "\n"))
		f, err := os.Open(filepath.Join(dir, rel))
		if err != nil {
			return "", errors.Wrapf(err, "hashing %q", rel)
		}
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", errors.Wrapf(err, "hashing %q", rel)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
