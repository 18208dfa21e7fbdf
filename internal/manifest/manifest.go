package manifest

import (
	"io/ioutil"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/bptpkg/bpt/internal/pkgid"
)

// TestDriver names the test harness a package's test executables are built
// against.
type TestDriver int

const (
	TestDriverNone TestDriver = iota
	TestDriverCatch
	TestDriverCatchMain
)

func parseTestDriver(s string) (TestDriver, error) {
	switch s {
	case "":
		return TestDriverNone, nil
	case "Catch":
		return TestDriverCatch, nil
	case "Catch-Main":
		return TestDriverCatchMain, nil
	default:
		return TestDriverNone, errors.Errorf("unknown test_driver %q (expected \"Catch\" or \"Catch-Main\")", s)
	}
}

// Manifest is the validated, in-memory form of a project's bpt.yaml.
type Manifest struct {
	Name       pkgid.Name
	Version    pkgid.Version
	Namespace  string
	Depends    []Dependency
	Libraries  []LibraryInfo
	TestDriver TestDriver
}

// rawManifest is the literal YAML shape accepted on disk, with permissive
// typing so validate can give precise per-field errors rather than a
// single opaque yaml.Unmarshal failure.
type rawManifest struct {
	Name         string        `yaml:"name"`
	Version      string        `yaml:"version"`
	Namespace    string        `yaml:"namespace"`
	Depends      []rawDepend   `yaml:"depends"`
	Dependencies []rawDepend   `yaml:"dependencies"`
	Libraries    []rawLibrary  `yaml:"libraries"`
	TestDriver   string        `yaml:"test_driver"`
}

// rawDepend accepts both the compact shorthand string form and the
// expanded object form.
type rawDepend struct {
	isString bool
	shortStr string

	Dep              string         `yaml:"dep"`
	Versions         []rawRange     `yaml:"versions"`
	Using            []string       `yaml:"using"`
}

type rawRange struct {
	Low  string `yaml:"low"`
	High string `yaml:"high"`
}

// UnmarshalYAML implements custom decoding to accept either a bare string
// (shorthand) or a mapping (expanded form).
func (d *rawDepend) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		d.isString = true
		d.shortStr = s
		return nil
	}
	type plain rawDepend
	var p plain
	if err := unmarshal(&p); err != nil {
		return err
	}
	*d = rawDepend(p)
	return nil
}

type rawLibrary struct {
	Name             string   `yaml:"name"`
	Path             string   `yaml:"path"`
	Using            []string `yaml:"using"`
	TestUsing        []string `yaml:"test-using"`
	Dependencies     []rawDepend `yaml:"dependencies"`
	TestDependencies []rawDepend `yaml:"test-dependencies"`
}

// LoadManifestFile reads and validates the bpt.yaml at path.
func LoadManifestFile(path string) (Manifest, error) {
	contents, err := ioutil.ReadFile(path)
	if err != nil {
		return Manifest{}, errors.Wrapf(err, "reading manifest %q", path)
	}
	return LoadManifestBytes(contents)
}

// LoadManifestBytes parses and validates manifest contents already read into
// memory.
func LoadManifestBytes(contents []byte) (Manifest, error) {
	var raw rawManifest
	if err := yaml.UnmarshalStrict(contents, &raw); err != nil {
		return Manifest{}, errors.Wrap(err, "parsing manifest yaml")
	}
	return raw.validate()
}

func (raw rawManifest) validate() (Manifest, error) {
	var m Manifest

	name, err := pkgid.Parse(raw.Name)
	if err != nil {
		return Manifest{}, errors.Wrap(err, "manifest name")
	}
	m.Name = name

	v, err := pkgid.ParseVersion(raw.Version)
	if err != nil {
		return Manifest{}, errors.Wrap(err, "manifest version")
	}
	m.Version = v

	m.Namespace = raw.Namespace

	driver, err := parseTestDriver(raw.TestDriver)
	if err != nil {
		return Manifest{}, errors.Wrap(err, "manifest test_driver")
	}
	m.TestDriver = driver

	deps := raw.Depends
	if len(raw.Dependencies) > 0 {
		deps = append(deps, raw.Dependencies...)
	}
	for _, rd := range deps {
		dep, err := rd.resolve()
		if err != nil {
			return Manifest{}, errors.Wrap(err, "manifest dependency")
		}
		m.Depends = append(m.Depends, dep)
	}

	seenLibs := make(map[string]bool, len(raw.Libraries))
	for _, rl := range raw.Libraries {
		lib, err := rl.resolve()
		if err != nil {
			return Manifest{}, errors.Wrapf(err, "library %q", rl.Name)
		}
		if seenLibs[lib.Name.String()] {
			return Manifest{}, errors.Errorf("duplicate library name %q", lib.Name)
		}
		seenLibs[lib.Name.String()] = true
		m.Libraries = append(m.Libraries, lib)
	}

	return m, nil
}

func (rd rawDepend) resolve() (Dependency, error) {
	if rd.isString {
		return ParseShorthand(rd.shortStr)
	}

	name, err := pkgid.Parse(rd.Dep)
	if err != nil {
		return Dependency{}, err
	}

	var ranges pkgid.VersionRangeSet
	for _, r := range rd.Versions {
		low, err := pkgid.ParseVersion(r.Low)
		if err != nil {
			return Dependency{}, errors.Wrapf(err, "dependency %q version range low", rd.Dep)
		}
		high, err := pkgid.ParseVersion(r.High)
		if err != nil {
			return Dependency{}, errors.Wrapf(err, "dependency %q version range high", rd.Dep)
		}
		ranges = ranges.Union(pkgid.NewRange(low, high))
	}

	uses := ImplicitAll()
	if len(rd.Using) > 0 {
		names := make([]pkgid.Name, 0, len(rd.Using))
		for _, u := range rd.Using {
			n, err := pkgid.Parse(u)
			if err != nil {
				return Dependency{}, errors.Wrapf(err, "dependency %q using clause", rd.Dep)
			}
			names = append(names, n)
		}
		uses = Explicit(names...)
	}

	return Dependency{Name: name, Acceptable: ranges, Uses: uses}, nil
}

func (rl rawLibrary) resolve() (LibraryInfo, error) {
	name, err := pkgid.Parse(rl.Name)
	if err != nil {
		return LibraryInfo{}, err
	}

	lib := LibraryInfo{Name: name, Path: rl.Path}

	for _, u := range rl.Using {
		n, err := pkgid.Parse(u)
		if err != nil {
			return LibraryInfo{}, errors.Wrap(err, "intra-package using clause")
		}
		lib.IntraUses = append(lib.IntraUses, n)
	}
	for _, u := range rl.TestUsing {
		n, err := pkgid.Parse(u)
		if err != nil {
			return LibraryInfo{}, errors.Wrap(err, "intra-package test-using clause")
		}
		lib.IntraTestUses = append(lib.IntraTestUses, n)
	}

	for _, rd := range rl.Dependencies {
		dep, err := rd.resolve()
		if err != nil {
			return LibraryInfo{}, err
		}
		lib.Dependencies = append(lib.Dependencies, dep)
	}
	for _, rd := range rl.TestDependencies {
		dep, err := rd.resolve()
		if err != nil {
			return LibraryInfo{}, err
		}
		lib.TestDependencies = append(lib.TestDependencies, dep)
	}

	return lib, nil
}

// SortedDependencyNames returns the names of m's top-level dependencies in
// sorted order, useful for stable diagnostics and tests.
func (m Manifest) SortedDependencyNames() []pkgid.Name {
	out := make([]pkgid.Name, 0, len(m.Depends))
	for _, d := range m.Depends {
		out = append(out, d.Name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
