package manifest

import "github.com/bptpkg/bpt/internal/pkgid"

// Dependency is a single declared dependency: the name of the package
// depended on, the set of versions acceptable, and the subset of its
// libraries actually used.
type Dependency struct {
	Name       pkgid.Name
	Acceptable pkgid.VersionRangeSet
	Uses       Uses
}

// LibraryInfo describes one library within a package: its declared name,
// its path relative to the package root, the sibling libraries it uses
// (intra_uses / intra_test_uses), and its own dependencies.
type LibraryInfo struct {
	Name             pkgid.Name
	Path             string
	IntraUses        []pkgid.Name
	IntraTestUses    []pkgid.Name
	Dependencies     []Dependency
	TestDependencies []Dependency
}
