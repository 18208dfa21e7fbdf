package solve

import (
	"github.com/pkg/errors"

	"github.com/bptpkg/bpt/internal/catalog"
	"github.com/bptpkg/bpt/internal/crsmeta"
	"github.com/bptpkg/bpt/internal/manifest"
	"github.com/bptpkg/bpt/internal/pkgid"
)

// Pin is a requirement resolved to one concrete package version: the
// pinned id plus the uses set that drove the pin.
type Pin struct {
	ID   pkgid.ID
	Uses manifest.Uses
}

// Provider is the catalog's contract with the solver: finding the best
// candidate for a requirement, and expanding a pinned candidate into the
// dependency requirements it in turn imposes.
type Provider interface {
	// BestCandidate picks the highest version satisfying req (the highest
	// revision among equal versions) whose package contains a library for every name req.Uses names. It
	// returns ok=false, not an error, when nothing in the catalog has any
	// version in range at all (distinct from "versions exist but none
	// carry the needed libraries", which is also ok=false -- the solver
	// tells these apart itself via KnownNames/LibrariesOf for diagnostics).
	BestCandidate(req Requirement) (Pin, bool, error)

	// RequirementsOf computes the closed set of used libraries within
	// pin's package -- starting from pin.Uses and repeatedly extending
	// with every intra_uses edge of already-required libraries until a
	// fixed point -- then returns, for each library in that closed set,
	// every dependency it declares.
	RequirementsOf(pin Pin) ([]Requirement, error)

	// KnownNames returns every package name the catalog has ever heard
	// of, for "did you mean?" diagnostics.
	KnownNames() ([]pkgid.Name, error)

	// LibrariesOf returns the full set of library names any version of
	// name provides, across every version/revision in the catalog, for
	// diagnosing a `using` clause that names a library nothing provides.
	LibrariesOf(name pkgid.Name) ([]pkgid.Name, error)
}

// CatalogProvider adapts a catalog.DB into a Provider.
type CatalogProvider struct {
	DB *catalog.DB
}

func (p CatalogProvider) BestCandidate(req Requirement) (Pin, bool, error) {
	metas, err := p.DB.ByName(req.Name)
	if err != nil {
		return Pin{}, false, errors.Wrapf(err, "looking up candidates for %q", req.Name)
	}
	// catalog.DB.ByName already returns entries ordered (version desc,
	// revision desc); a linear scan for the first acceptable candidate is
	// therefore deterministic.
	for _, meta := range metas {
		v := meta.Version
		if !req.Versions.Contains(v) {
			continue
		}
		if !metaProvidesUses(meta, req.Uses) {
			continue
		}
		id := meta.ID()
		return Pin{ID: id, Uses: req.Uses}, true, nil
	}
	return Pin{}, false, nil
}

func metaProvidesUses(meta crsmeta.PackageMeta, uses manifest.Uses) bool {
	if uses.IsImplicitAll() {
		return true
	}
	provided := make(map[string]bool, len(meta.Libraries))
	for _, lib := range meta.Libraries {
		provided[lib.Name.String()] = true
	}
	for _, want := range uses.Names() {
		if !provided[want.String()] {
			return false
		}
	}
	return true
}

func (p CatalogProvider) RequirementsOf(pin Pin) ([]Requirement, error) {
	meta, err := p.DB.ForPackage(pin.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "loading metadata for %s", pin.ID)
	}

	byName := make(map[string]int, len(meta.Libraries))
	for i, lib := range meta.Libraries {
		byName[lib.Name.String()] = i
	}

	closed := make(map[string]bool)
	var frontier []string
	if pin.Uses.IsImplicitAll() {
		for _, lib := range meta.Libraries {
			frontier = append(frontier, lib.Name.String())
		}
	} else {
		for _, n := range pin.Uses.Names() {
			frontier = append(frontier, n.String())
		}
	}

	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]
		if closed[next] {
			continue
		}
		closed[next] = true
		idx, ok := byName[next]
		if !ok {
			continue // a library named in `using` that the package doesn't actually have; surfaced elsewhere
		}
		for _, sib := range meta.Libraries[idx].Using {
			if !closed[sib.String()] {
				frontier = append(frontier, sib.String())
			}
		}
	}

	var out []Requirement
	for name := range closed {
		idx := byName[name]
		for _, dep := range meta.Libraries[idx].Dependencies {
			uses := manifest.ImplicitAll()
			if len(dep.Using) > 0 {
				uses = manifest.Explicit(dep.Using...)
			}
			out = append(out, Requirement{Name: dep.Name, Versions: dep.Acceptable, Uses: uses})
		}
	}
	return out, nil
}

func (p CatalogProvider) KnownNames() ([]pkgid.Name, error) {
	return p.DB.AllNames()
}

func (p CatalogProvider) LibrariesOf(name pkgid.Name) ([]pkgid.Name, error) {
	metas, err := p.DB.ByName(name)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]pkgid.Name)
	for _, m := range metas {
		for _, lib := range m.Libraries {
			seen[lib.Name.String()] = lib.Name
		}
	}
	out := make([]pkgid.Name, 0, len(seen))
	for _, n := range seen {
		out = append(out, n)
	}
	return out, nil
}
