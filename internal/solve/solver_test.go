package solve

import (
	"testing"

	"github.com/bptpkg/bpt/internal/manifest"
	"github.com/bptpkg/bpt/internal/pkgid"
)

// fakeProvider is a tiny in-memory catalog for solver tests, independent of
// the sqlite-backed implementation.
type fakeProvider struct {
	// versions[name] is sorted (version desc, revision desc), matching
	// catalog.DB.ByName's contract.
	versions map[string][]pkgid.ID
	// deps[id.String()] is the list of dependency requirements that id
	// declares.
	deps map[string][]Requirement
	libs map[string][]pkgid.Name
}

func (f *fakeProvider) BestCandidate(req Requirement) (Pin, bool, error) {
	for _, id := range f.versions[req.Name.String()] {
		if !req.Versions.Contains(id.Version) {
			continue
		}
		if !req.Uses.IsImplicitAll() {
			have := make(map[string]bool)
			for _, l := range f.libs[id.String()] {
				have[l.String()] = true
			}
			ok := true
			for _, want := range req.Uses.Names() {
				if !have[want.String()] {
					ok = false
				}
			}
			if !ok {
				continue
			}
		}
		return Pin{ID: id, Uses: req.Uses}, true, nil
	}
	return Pin{}, false, nil
}

func (f *fakeProvider) RequirementsOf(pin Pin) ([]Requirement, error) {
	return f.deps[pin.ID.String()], nil
}

func (f *fakeProvider) KnownNames() ([]pkgid.Name, error) {
	var out []pkgid.Name
	for name := range f.versions {
		out = append(out, pkgid.MustParse(name))
	}
	return out, nil
}

func (f *fakeProvider) LibrariesOf(name pkgid.Name) ([]pkgid.Name, error) {
	var out []pkgid.Name
	for _, id := range f.versions[name.String()] {
		out = append(out, f.libs[id.String()]...)
	}
	return out, nil
}

func id(name, version string) pkgid.ID {
	v, err := pkgid.ParseVersion(version)
	if err != nil {
		panic(err)
	}
	return pkgid.ID{Name: pkgid.MustParse(name), Version: v}
}

func req(name, low, high string) Requirement {
	return Requirement{
		Name:     pkgid.MustParse(name),
		Versions: pkgid.NewRange(mustVer(low), mustVer(high)),
		Uses:     manifest.ImplicitAll(),
	}
}

func mustVer(s string) pkgid.Version {
	v, err := pkgid.ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestSolveSimpleChain(t *testing.T) {
	// foo@1.2.3 depends on bar ~4.2.1; catalog has bar 4.2.3 and 4.3.0.
	provider := &fakeProvider{
		versions: map[string][]pkgid.ID{
			"foo": {id("foo", "1.2.3")},
			"bar": {id("bar", "4.3.0"), id("bar", "4.2.3")},
		},
		deps: map[string][]Requirement{
			"foo@1.2.3~0": {req("bar", "4.2.1", "4.3.0")},
		},
	}

	got, err := Solve(provider, []Requirement{req("foo", "1.2.3", "1.2.4")}, nil)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Solve returned %d ids, want 2: %+v", len(got), got)
	}
	names := map[string]string{}
	for _, p := range got {
		names[p.Name.String()] = p.Version.String()
	}
	if names["foo"] != "1.2.3" || names["bar"] != "4.2.3" {
		t.Fatalf("unexpected solution: %+v", names)
	}
}

func TestSolveNoCandidateFails(t *testing.T) {
	provider := &fakeProvider{
		versions: map[string][]pkgid.ID{
			"foo": {id("foo", "1.0.0")},
		},
	}
	_, err := Solve(provider, []Requirement{req("foo", "2.0.0", "3.0.0")}, nil)
	if err == nil {
		t.Fatal("expected conflict for unsatisfiable range")
	}
}

func TestSolveMissingPackageSuggestsName(t *testing.T) {
	provider := &fakeProvider{
		versions: map[string][]pkgid.ID{
			"neo-fmt": {id("neo-fmt", "1.0.0")},
		},
	}
	_, err := Solve(provider, []Requirement{req("neo-fmr", "1.0.0", "2.0.0")}, nil)
	if err == nil {
		t.Fatal("expected error for unknown package")
	}
	ce, ok := err.(*ConflictError)
	if !ok {
		t.Fatalf("expected *ConflictError, got %T", err)
	}
	if len(ce.Missing) != 1 {
		t.Fatalf("expected one missing package, got %+v", ce.Missing)
	}
}

func TestSolveBacktrackRetractsStaleConstraint(t *testing.T) {
	// Root wants a and b. a@1.0.0 requires c in [1.0.0,2.0.0); a@0.9.0 has
	// no c dependency at all; b always requires c in [2.0.0,3.0.0). The
	// only valid solution is a=0.9.0 (c is then unconstrained by a, and
	// b's [2.0.0,3.0.0) is satisfiable on its own). The solver tries
	// a@1.0.0 first (versions sorted descending), merges c's range down
	// to [1.0.0,2.0.0), then fails when b's requirement is processed; it
	// must backtrack a to 0.9.0 and forget the stale c constraint a@1.0.0
	// introduced, not just stop adding to it.
	provider := &fakeProvider{
		versions: map[string][]pkgid.ID{
			"a": {id("a", "1.0.0"), id("a", "0.9.0")},
			"b": {id("b", "1.0.0")},
			"c": {id("c", "2.5.0"), id("c", "1.5.0")},
		},
		deps: map[string][]Requirement{
			"a@1.0.0~0": {req("c", "1.0.0", "2.0.0")},
			"b@1.0.0~0": {req("c", "2.0.0", "3.0.0")},
		},
	}

	got, err := Solve(provider, []Requirement{
		req("a", "0.9.0", "1.0.1"),
		req("b", "1.0.0", "1.0.1"),
	}, nil)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	names := map[string]string{}
	for _, p := range got {
		names[p.Name.String()] = p.Version.String()
	}
	if names["a"] != "0.9.0" {
		t.Fatalf("expected a=0.9.0, got %+v", names)
	}
	if names["b"] != "1.0.0" {
		t.Fatalf("expected b=1.0.0, got %+v", names)
	}
	if names["c"] != "2.5.0" {
		t.Fatalf("expected c=2.5.0 (from b's range, unconstrained by a), got %+v", names)
	}
}

func TestSolveCancellation(t *testing.T) {
	provider := &fakeProvider{
		versions: map[string][]pkgid.ID{
			"foo": {id("foo", "1.0.0")},
		},
	}
	cancelled := make(chan struct{})
	close(cancelled)
	_, err := Solve(provider, []Requirement{req("foo", "1.0.0", "2.0.0")}, cancelled)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}
