// Package solve implements a PubGrub-style incremental dependency
// solver: given a catalog and a set of wanted dependencies, produce a
// consistent set of package ids, or fail with an explained conflict.
package solve

import (
	"github.com/bptpkg/bpt/internal/manifest"
	"github.com/bptpkg/bpt/internal/pkgid"
)

// Requirement is the triple the solver reasons about: an acceptable
// version range plus the subset of the package's libraries actually
// needed.
type Requirement struct {
	Name     pkgid.Name
	Versions pkgid.VersionRangeSet
	Uses     manifest.Uses
}

// Key is the requirement's identity for grouping purposes: its name.
func (r Requirement) Key() pkgid.Name { return r.Name }

// ImpliedBy reports whether r is implied by other: other is at least as
// restrictive a version range and names at least as many libraries.
func (r Requirement) ImpliedBy(other Requirement) bool {
	return r.Versions.ContainsRange(other.Versions) && r.Uses.Subset(other.Uses)
}

// Excludes reports whether r and other can never both be satisfied: their
// version ranges share nothing.
func (r Requirement) Excludes(other Requirement) bool {
	return r.Versions.Disjoint(other.Versions)
}

// Intersection combines two concurrent requirements on the same package
// (the "both dependents need this" case): it intersects the version
// ranges, but UNIONS the uses sets, since both dependents' libraries are
// needed. An empty resulting range means no intersection exists.
func (r Requirement) Intersection(other Requirement) (Requirement, bool) {
	versions := r.Versions.Intersect(other.Versions)
	if versions.IsEmpty() {
		return Requirement{}, false
	}
	return Requirement{Name: r.Name, Versions: versions, Uses: r.Uses.Union(other.Uses)}, true
}

// Union combines two requirements where only one need hold (the
// alternative-path case during conflict derivation): it unions the
// version ranges, but INTERSECTS the uses sets, since only the overlap of
// library needs is guaranteed regardless of which alternative applies.
func (r Requirement) Union(other Requirement) Requirement {
	return Requirement{
		Name:     r.Name,
		Versions: r.Versions.Union(other.Versions),
		Uses:     r.Uses.Intersect(other.Uses),
	}
}

// Difference computes r minus other: the version range accepted by r but
// not other, unioning the uses sets. It returns ok=false when the result
// is vacuous: the range is empty and either the two uses sets are equal or
// their union is empty.
func (r Requirement) Difference(other Requirement) (Requirement, bool) {
	versions := r.Versions.Difference(other.Versions)
	uses := r.Uses.Union(other.Uses)
	if versions.IsEmpty() && (uses.IsEmpty() || r.Uses.Equal(other.Uses)) {
		return Requirement{}, false
	}
	return Requirement{Name: r.Name, Versions: versions, Uses: uses}, true
}
