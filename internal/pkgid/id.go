package pkgid

import "fmt"

// ID identifies one concrete package record: a name, a version, and a
// revision (pkg-version) disambiguating multiple catalog entries that share
// the same (name, version). Higher revisions are preferred.
type ID struct {
	Name     Name
	Version  Version
	Revision int
}

// String renders "name@version~revision".
func (id ID) String() string {
	return fmt.Sprintf("%s@%s~%d", id.Name, id.Version, id.Revision)
}

// Less orders IDs by name, then version descending, then revision
// descending -- the tie-break order the catalog uses when scanning
// candidates.
func (id ID) Less(o ID) bool {
	if !id.Name.Equal(o.Name) {
		return id.Name.Less(o.Name)
	}
	if c := id.Version.Compare(o.Version); c != 0 {
		return c > 0 // higher version first
	}
	return id.Revision > o.Revision // higher revision first
}

// CacheDirName is the on-disk directory name for this package id within the
// local cache root: "<name>@<version>~<revision>".
func (id ID) CacheDirName() string {
	return fmt.Sprintf("%s@%s~%d", id.Name, id.Version, id.Revision)
}
