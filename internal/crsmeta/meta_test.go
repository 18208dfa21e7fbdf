package crsmeta

import (
	"encoding/json"
	"testing"

	"github.com/bptpkg/bpt/internal/manifest"
	"github.com/bptpkg/bpt/internal/pkgid"
)

func TestFromManifestExpandsImplicitAll(t *testing.T) {
	src := []byte(`
name: acme-widgets
version: 1.0.0
libraries:
  - name: widgets
    path: libs/widgets
    dependencies:
      - "neo-fmt@3.1.0"
`)
	m, err := manifest.LoadManifestBytes(src)
	if err != nil {
		t.Fatalf("LoadManifestBytes: %v", err)
	}

	expand := func(dep pkgid.Name) []pkgid.Name {
		return []pkgid.Name{pkgid.MustParse("fmt-core"), pkgid.MustParse("fmt-io")}
	}

	meta, err := FromManifest(m, 0, expand)
	if err != nil {
		t.Fatalf("FromManifest: %v", err)
	}
	dep := meta.Libraries[0].Dependencies[0]
	if len(dep.Using) != 2 {
		t.Fatalf("Using = %+v, want 2 expanded names", dep.Using)
	}
}

func TestPackageMetaJSONRoundTrip(t *testing.T) {
	orig := PackageMeta{
		Name:      pkgid.MustParse("acme-widgets"),
		Version:   mustV(t, "1.2.3"),
		Revision:  2,
		Namespace: "acme",
		Libraries: []LibraryMeta{
			{
				Name:  pkgid.MustParse("widgets"),
				Path:  "libs/widgets",
				Using: []pkgid.Name{pkgid.MustParse("core")},
				Dependencies: []DependencyMeta{
					{
						Name:       pkgid.MustParse("neo-fmt"),
						Acceptable: pkgid.NewRange(mustV(t, "3.1.0"), mustV(t, "4.0.0")),
						Using:      []pkgid.Name{pkgid.MustParse("fmt-core")},
					},
				},
			},
		},
	}

	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got PackageMeta
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if !got.Name.Equal(orig.Name) || !got.Version.Equal(orig.Version) || got.Revision != orig.Revision {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, orig)
	}
	if len(got.Libraries) != 1 || !got.Libraries[0].Dependencies[0].Acceptable.Equal(orig.Libraries[0].Dependencies[0].Acceptable) {
		t.Fatalf("dependency range did not round-trip: %+v", got)
	}
}

func TestPackageMetaRejectsWrongSchemaVersion(t *testing.T) {
	raw := `{"schema-version": 2, "name": "acme", "version": "1.0.0", "pkg-version": 0, "libraries": []}`
	var m PackageMeta
	if err := json.Unmarshal([]byte(raw), &m); err == nil {
		t.Fatal("expected error for unsupported schema-version")
	}
}

func mustV(t *testing.T, s string) pkgid.Version {
	t.Helper()
	v, err := pkgid.ParseVersion(s)
	if err != nil {
		t.Fatalf("ParseVersion(%q): %v", s, err)
	}
	return v
}
