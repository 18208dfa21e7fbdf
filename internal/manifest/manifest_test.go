package manifest

import (
	"testing"

	"github.com/bptpkg/bpt/internal/pkgid"
)

func TestLoadManifestBytesShorthand(t *testing.T) {
	src := []byte(`
name: acme-widgets
version: 1.2.3
namespace: acme
test_driver: Catch
depends:
  - "neo-fmt@3.1.0"
  - "neo-net~2.0.0 using core,tls"
libraries:
  - name: widgets
    path: libs/widgets
    using: [core]
    dependencies:
      - "neo-fmt@3.1.0"
`)
	m, err := LoadManifestBytes(src)
	if err != nil {
		t.Fatalf("LoadManifestBytes: %v", err)
	}
	if m.Name.String() != "acme-widgets" {
		t.Errorf("Name = %q", m.Name)
	}
	if m.Version.String() != "1.2.3" {
		t.Errorf("Version = %q", m.Version)
	}
	if m.TestDriver != TestDriverCatch {
		t.Errorf("TestDriver = %v, want Catch", m.TestDriver)
	}
	if len(m.Depends) != 2 {
		t.Fatalf("Depends = %d entries, want 2", len(m.Depends))
	}
	if m.Depends[1].Uses.IsImplicitAll() {
		t.Errorf("neo-net dependency should have explicit uses")
	}
	if len(m.Libraries) != 1 || m.Libraries[0].Name.String() != "widgets" {
		t.Fatalf("Libraries = %+v", m.Libraries)
	}
}

func TestLoadManifestBytesExpandedDependency(t *testing.T) {
	src := []byte(`
name: acme-widgets
version: 1.0.0
depends:
  - dep: neo-fmt
    versions:
      - {low: "1.0.0", high: "2.0.0"}
      - {low: "3.0.0", high: "4.0.0"}
    using: [core]
`)
	m, err := LoadManifestBytes(src)
	if err != nil {
		t.Fatalf("LoadManifestBytes: %v", err)
	}
	d := m.Depends[0]
	if d.Acceptable.Contains(mustVersion(t, "2.5.0")) {
		t.Errorf("range should exclude the gap between 2.0.0 and 3.0.0")
	}
	if !d.Acceptable.Contains(mustVersion(t, "1.5.0")) || !d.Acceptable.Contains(mustVersion(t, "3.5.0")) {
		t.Errorf("range should include both declared sub-ranges")
	}
}

func TestLoadManifestBytesRejectsUnknownKey(t *testing.T) {
	src := []byte(`
name: acme-widgets
version: 1.0.0
bogus_key: true
`)
	if _, err := LoadManifestBytes(src); err == nil {
		t.Fatal("expected error for unknown top-level key")
	}
}

func TestLoadManifestBytesRejectsDuplicateLibraries(t *testing.T) {
	src := []byte(`
name: acme-widgets
version: 1.0.0
libraries:
  - {name: core, path: libs/core}
  - {name: core, path: libs/core2}
`)
	if _, err := LoadManifestBytes(src); err == nil {
		t.Fatal("expected error for duplicate library name")
	}
}

func mustVersion(t *testing.T, s string) pkgid.Version {
	t.Helper()
	v, err := pkgid.ParseVersion(s)
	if err != nil {
		t.Fatalf("pkgid.ParseVersion(%q): %v", s, err)
	}
	return v
}
