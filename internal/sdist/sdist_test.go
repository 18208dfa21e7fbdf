package sdist

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/bptpkg/bpt/internal/crsmeta"
	"github.com/bptpkg/bpt/internal/manifest"
	"github.com/bptpkg/bpt/internal/pkgid"
)

func writeProject(t *testing.T, root string) manifest.Manifest {
	t.Helper()
	libDir := filepath.Join(root, "libs", "widgets")
	if err := os.MkdirAll(filepath.Join(libDir, "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(libDir, "include"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(filepath.Join(libDir, "src", "widget.cpp"), []byte("int widget() { return 1; }\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(filepath.Join(libDir, "include", "widget.hpp"), []byte("int widget();\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	src := []byte(`
name: acme-widgets
version: 1.0.0
libraries:
  - name: widgets
    path: libs/widgets
`)
	m, err := manifest.LoadManifestBytes(src)
	if err != nil {
		t.Fatalf("LoadManifestBytes: %v", err)
	}
	return m
}

func TestCreateAndLoadRoundTrip(t *testing.T) {
	root, err := ioutil.TempDir("", "bpt-sdist-project-")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(root)
	m := writeProject(t, root)

	meta, err := crsmeta.FromManifest(m, 3, nil)
	if err != nil {
		t.Fatalf("FromManifest: %v", err)
	}

	destParent, err := ioutil.TempDir("", "bpt-sdist-dest-")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(destParent)
	dest := filepath.Join(destParent, "acme-widgets@1.0.0~3")

	sd, err := Create(m, meta, CreateParams{ProjectDir: root, DestDir: dest})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dest, metaFileName)); err != nil {
		t.Fatalf("pkg.json missing in sdist: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "libs", "widgets", "src", "widget.cpp")); err != nil {
		t.Fatalf("source file missing from sdist: %v", err)
	}

	loaded, err := Load(dest)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !loaded.Meta.Name.Equal(sd.Meta.Name) || loaded.Meta.Revision != 3 {
		t.Fatalf("loaded meta mismatch: %+v", loaded.Meta)
	}
}

func TestCreateRefusesExistingDestinationWithoutForce(t *testing.T) {
	root, err := ioutil.TempDir("", "bpt-sdist-project-")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(root)
	m := writeProject(t, root)
	meta, err := crsmeta.FromManifest(m, 0, nil)
	if err != nil {
		t.Fatal(err)
	}

	destParent, err := ioutil.TempDir("", "bpt-sdist-dest-")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(destParent)
	dest := filepath.Join(destParent, "exists")
	if err := os.MkdirAll(dest, 0o755); err != nil {
		t.Fatal(err)
	}

	if _, err := Create(m, meta, CreateParams{ProjectDir: root, DestDir: dest}); err == nil {
		t.Fatal("expected error for existing destination without Force")
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	root, err := ioutil.TempDir("", "bpt-sdist-project-")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(root)
	m := writeProject(t, root)
	meta, err := crsmeta.FromManifest(m, 1, nil)
	if err != nil {
		t.Fatal(err)
	}

	destParent, err := ioutil.TempDir("", "bpt-sdist-dest-")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(destParent)
	dest := filepath.Join(destParent, "pack-src")
	if _, err := Create(m, meta, CreateParams{ProjectDir: root, DestDir: dest}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	var buf bytes.Buffer
	if err := Pack(dest, &buf); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	extractTo := filepath.Join(destParent, "pack-dest")
	if err := Unpack(&buf, extractTo); err != nil {
		t.Fatalf("Unpack: %v", err)
	}

	loaded, err := Load(extractTo)
	if err != nil {
		t.Fatalf("Load extracted sdist: %v", err)
	}
	if !loaded.Meta.Name.Equal(pkgid.MustParse("acme-widgets")) {
		t.Fatalf("unexpected name after round trip: %v", loaded.Meta.Name)
	}
}

func TestUnpackRejectsPathTraversal(t *testing.T) {
	// Unpack refuses every entry that hasParentTraversal flags. Pack never
	// produces a ".." entry, so this checks that helper directly rather
	// than feeding Unpack a hand-built tar stream.
	destParent, err := ioutil.TempDir("", "bpt-sdist-traversal-")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(destParent)

	if !hasParentTraversal("../evil") {
		t.Fatal("hasParentTraversal should flag a leading .. component")
	}
	if hasParentTraversal("normal/path") {
		t.Fatal("hasParentTraversal should not flag a normal relative path")
	}
}
