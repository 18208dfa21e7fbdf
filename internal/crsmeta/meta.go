// Package crsmeta implements the package-metadata model serialized to
// and from pkg.json inside a source distribution.
package crsmeta

import (
	"encoding/json"
	"sort"

	"github.com/pkg/errors"

	"github.com/bptpkg/bpt/internal/manifest"
	"github.com/bptpkg/bpt/internal/pkgid"
)

// SchemaVersion is the only schema-version value this implementation reads
// or writes.
const SchemaVersion = 1

// PackageMeta is the fully-resolved metadata for one package, as read from
// or written to pkg.json.
type PackageMeta struct {
	Name       pkgid.Name
	Version    pkgid.Version
	Revision   int
	Namespace  string
	Libraries  []LibraryMeta
	TestDriver manifest.TestDriver
}

// LibraryMeta is one library entry within a PackageMeta.
type LibraryMeta struct {
	Name             pkgid.Name
	Path             string
	Using            []pkgid.Name
	TestUsing        []pkgid.Name
	Dependencies     []DependencyMeta
	TestDependencies []DependencyMeta
}

// DependencyMeta is one dependency entry within a LibraryMeta, carrying
// the fully-resolved uses set: implicit-all must never appear in a
// serialized document, so it is always expanded to the concrete
// library list at the time PackageMeta is built.
type DependencyMeta struct {
	Name       pkgid.Name
	Acceptable pkgid.VersionRangeSet
	Using      []pkgid.Name
}

// ID returns the package identifier for this metadata.
func (m PackageMeta) ID() pkgid.ID {
	return pkgid.ID{Name: m.Name, Version: m.Version, Revision: m.Revision}
}

// FromManifest builds a PackageMeta from a project manifest and the resolved
// "uses" sets for its dependencies (libraryNames supplies the concrete
// sibling-library and dependency-library names an ImplicitAll Uses expands
// to, since pkg.json never serializes implicit-all directly).
func FromManifest(m manifest.Manifest, revision int, libraryNamesOf func(depName pkgid.Name) []pkgid.Name) (PackageMeta, error) {
	out := PackageMeta{
		Name:       m.Name,
		Version:    m.Version,
		Revision:   revision,
		Namespace:  m.Namespace,
		TestDriver: m.TestDriver,
	}

	for _, lib := range m.Libraries {
		lm := LibraryMeta{
			Name:          lib.Name,
			Path:          lib.Path,
			Using:         lib.IntraUses,
			TestUsing:     lib.IntraTestUses,
		}
		for _, dep := range lib.Dependencies {
			dm, err := expandDependency(dep, libraryNamesOf)
			if err != nil {
				return PackageMeta{}, errors.Wrapf(err, "library %q", lib.Name)
			}
			lm.Dependencies = append(lm.Dependencies, dm)
		}
		for _, dep := range lib.TestDependencies {
			dm, err := expandDependency(dep, libraryNamesOf)
			if err != nil {
				return PackageMeta{}, errors.Wrapf(err, "library %q test dependency", lib.Name)
			}
			lm.TestDependencies = append(lm.TestDependencies, dm)
		}
		out.Libraries = append(out.Libraries, lm)
	}

	return out, nil
}

func expandDependency(dep manifest.Dependency, libraryNamesOf func(pkgid.Name) []pkgid.Name) (DependencyMeta, error) {
	dm := DependencyMeta{Name: dep.Name, Acceptable: dep.Acceptable}
	if dep.Uses.IsImplicitAll() {
		if libraryNamesOf == nil {
			return DependencyMeta{}, errors.Errorf("dependency %q uses all libraries but no resolver was supplied to expand it", dep.Name)
		}
		dm.Using = libraryNamesOf(dep.Name)
	} else {
		dm.Using = dep.Uses.Names()
	}
	sort.Slice(dm.Using, func(i, j int) bool { return dm.Using[i].Less(dm.Using[j]) })
	return dm, nil
}

// --- JSON wire format ---

type wireMeta struct {
	SchemaVersion int         `json:"schema-version"`
	Name          string      `json:"name"`
	Version       string      `json:"version"`
	PkgVersion    int         `json:"pkg-version"`
	Namespace     string      `json:"namespace,omitempty"`
	TestDriver    string      `json:"test_driver,omitempty"`
	Libraries     []wireLib   `json:"libraries"`
}

type wireLib struct {
	Name             string     `json:"name"`
	Path             string     `json:"path"`
	Using            []string   `json:"using,omitempty"`
	TestUsing        []string   `json:"test-using,omitempty"`
	Dependencies     []wireDep  `json:"dependencies,omitempty"`
	TestDependencies []wireDep  `json:"test-dependencies,omitempty"`
}

type wireDep struct {
	Dep   string   `json:"dep"`
	Low   string   `json:"low"`
	High  string   `json:"high"`
	Using []string `json:"using,omitempty"`
}

func testDriverString(d manifest.TestDriver) string {
	switch d {
	case manifest.TestDriverCatch:
		return "Catch"
	case manifest.TestDriverCatchMain:
		return "Catch-Main"
	default:
		return ""
	}
}

// MarshalJSON renders the stable, canonical pkg.json wire form.
func (m PackageMeta) MarshalJSON() ([]byte, error) {
	w := wireMeta{
		SchemaVersion: SchemaVersion,
		Name:          m.Name.String(),
		Version:       m.Version.String(),
		PkgVersion:    m.Revision,
		Namespace:     m.Namespace,
		TestDriver:    testDriverString(m.TestDriver),
	}
	for _, lib := range m.Libraries {
		w.Libraries = append(w.Libraries, wireLibOf(lib))
	}
	return json.MarshalIndent(w, "", "  ")
}

func wireLibOf(lib LibraryMeta) wireLib {
	wl := wireLib{Name: lib.Name.String(), Path: lib.Path}
	for _, n := range lib.Using {
		wl.Using = append(wl.Using, n.String())
	}
	for _, n := range lib.TestUsing {
		wl.TestUsing = append(wl.TestUsing, n.String())
	}
	for _, d := range lib.Dependencies {
		wl.Dependencies = append(wl.Dependencies, wireDepOf(d))
	}
	for _, d := range lib.TestDependencies {
		wl.TestDependencies = append(wl.TestDependencies, wireDepOf(d))
	}
	return wl
}

func wireDepOf(d DependencyMeta) wireDep {
	wd := wireDep{Dep: d.Name.String()}
	low, high, unbounded := d.Acceptable.Bounds()
	wd.Low = low.String()
	if !unbounded {
		wd.High = high.String()
	}
	for _, n := range d.Using {
		wd.Using = append(wd.Using, n.String())
	}
	return wd
}

// UnmarshalJSON parses pkg.json contents, rejecting anything but
// schema-version 1.
func (m *PackageMeta) UnmarshalJSON(data []byte) error {
	var w wireMeta
	if err := json.Unmarshal(data, &w); err != nil {
		return errors.Wrap(err, "parsing package meta json")
	}
	if w.SchemaVersion != SchemaVersion {
		return errors.Errorf("unsupported package meta schema-version %d (want %d)", w.SchemaVersion, SchemaVersion)
	}

	name, err := pkgid.Parse(w.Name)
	if err != nil {
		return errors.Wrap(err, "package meta name")
	}
	v, err := pkgid.ParseVersion(w.Version)
	if err != nil {
		return errors.Wrap(err, "package meta version")
	}
	driver, err := parseTestDriverString(w.TestDriver)
	if err != nil {
		return err
	}

	out := PackageMeta{
		Name:       name,
		Version:    v,
		Revision:   w.PkgVersion,
		Namespace:  w.Namespace,
		TestDriver: driver,
	}

	for _, wl := range w.Libraries {
		lib, err := libFromWire(wl)
		if err != nil {
			return errors.Wrapf(err, "library %q", wl.Name)
		}
		out.Libraries = append(out.Libraries, lib)
	}

	*m = out
	return nil
}

func parseTestDriverString(s string) (manifest.TestDriver, error) {
	switch s {
	case "":
		return manifest.TestDriverNone, nil
	case "Catch":
		return manifest.TestDriverCatch, nil
	case "Catch-Main":
		return manifest.TestDriverCatchMain, nil
	default:
		return manifest.TestDriverNone, errors.Errorf("unknown test_driver %q", s)
	}
}

func libFromWire(wl wireLib) (LibraryMeta, error) {
	name, err := pkgid.Parse(wl.Name)
	if err != nil {
		return LibraryMeta{}, err
	}
	lib := LibraryMeta{Name: name, Path: wl.Path}
	if lib.Using, err = namesFromStrings(wl.Using); err != nil {
		return LibraryMeta{}, errors.Wrap(err, "using")
	}
	if lib.TestUsing, err = namesFromStrings(wl.TestUsing); err != nil {
		return LibraryMeta{}, errors.Wrap(err, "test-using")
	}
	for _, wd := range wl.Dependencies {
		dm, err := depFromWire(wd)
		if err != nil {
			return LibraryMeta{}, errors.Wrap(err, "dependencies")
		}
		lib.Dependencies = append(lib.Dependencies, dm)
	}
	for _, wd := range wl.TestDependencies {
		dm, err := depFromWire(wd)
		if err != nil {
			return LibraryMeta{}, errors.Wrap(err, "test-dependencies")
		}
		lib.TestDependencies = append(lib.TestDependencies, dm)
	}
	return lib, nil
}

func depFromWire(wd wireDep) (DependencyMeta, error) {
	name, err := pkgid.Parse(wd.Dep)
	if err != nil {
		return DependencyMeta{}, err
	}
	low, err := pkgid.ParseVersion(wd.Low)
	if err != nil {
		return DependencyMeta{}, errors.Wrap(err, "low")
	}
	var acceptable pkgid.VersionRangeSet
	if wd.High == "" {
		acceptable = pkgid.NewUnbounded(low)
	} else {
		high, err := pkgid.ParseVersion(wd.High)
		if err != nil {
			return DependencyMeta{}, errors.Wrap(err, "high")
		}
		acceptable = pkgid.NewRange(low, high)
	}
	using, err := namesFromStrings(wd.Using)
	if err != nil {
		return DependencyMeta{}, errors.Wrap(err, "using")
	}
	return DependencyMeta{Name: name, Acceptable: acceptable, Using: using}, nil
}

func namesFromStrings(ss []string) ([]pkgid.Name, error) {
	if len(ss) == 0 {
		return nil, nil
	}
	out := make([]pkgid.Name, 0, len(ss))
	for _, s := range ss {
		n, err := pkgid.Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
