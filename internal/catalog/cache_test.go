package catalog

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/bptpkg/bpt/internal/crsmeta"
	"github.com/bptpkg/bpt/internal/manifest"
	"github.com/bptpkg/bpt/internal/pkgid"
	"github.com/bptpkg/bpt/internal/sdist"
)

func buildSamplePack(t *testing.T) []byte {
	t.Helper()
	root, err := ioutil.TempDir("", "bpt-cache-project-")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(root)

	libDir := filepath.Join(root, "lib")
	if err := os.MkdirAll(filepath.Join(libDir, "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(filepath.Join(libDir, "src", "a.cpp"), []byte("// a\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	src := []byte("name: widgets\nversion: 1.0.0\nlibraries:\n  - {name: widgets, path: lib}\n")
	m, err := manifest.LoadManifestBytes(src)
	if err != nil {
		t.Fatal(err)
	}
	meta, err := crsmeta.FromManifest(m, 0, nil)
	if err != nil {
		t.Fatal(err)
	}

	stageParent, err := ioutil.TempDir("", "bpt-cache-stage-")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(stageParent)
	stageDir := filepath.Join(stageParent, "staged")

	sd, err := sdist.Create(m, meta, sdist.CreateParams{ProjectDir: root, DestDir: stageDir})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := sdist.Pack(sd.Path, &buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestCacheImportAndGet(t *testing.T) {
	root, err := ioutil.TempDir("", "bpt-cache-")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(root)

	c, err := NewCache(root, nil)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	packed := buildSamplePack(t)
	id := pkgid.ID{Name: pkgid.MustParse("widgets"), Version: mustV(t, "1.0.0"), Revision: 0}

	_, err = c.Import(id, func(dest string) error {
		return sdist.Unpack(bytes.NewReader(packed), dest)
	}, false)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	if !c.Has(id) {
		t.Fatal("Has should report true after Import")
	}

	sd, err := c.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !sd.Meta.Name.Equal(pkgid.MustParse("widgets")) {
		t.Fatalf("unexpected cached meta: %+v", sd.Meta)
	}

	entries, err := c.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Entries = %d, want 1", len(entries))
	}
}

func TestCacheImportNoopWithoutReplace(t *testing.T) {
	root, err := ioutil.TempDir("", "bpt-cache-")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(root)
	c, err := NewCache(root, nil)
	if err != nil {
		t.Fatal(err)
	}

	packed := buildSamplePack(t)
	id := pkgid.ID{Name: pkgid.MustParse("widgets"), Version: mustV(t, "1.0.0"), Revision: 0}

	extractCount := 0
	extract := func(dest string) error {
		extractCount++
		return sdist.Unpack(bytes.NewReader(packed), dest)
	}

	if _, err := c.Import(id, extract, false); err != nil {
		t.Fatalf("first Import: %v", err)
	}
	if _, err := c.Import(id, extract, false); err != nil {
		t.Fatalf("second Import: %v", err)
	}
	if extractCount != 1 {
		t.Fatalf("extract called %d times, want 1 (second Import should be a no-op)", extractCount)
	}
}
