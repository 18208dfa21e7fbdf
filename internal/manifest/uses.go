package manifest

import (
	"sort"

	"github.com/bptpkg/bpt/internal/pkgid"
)

// Uses is a tagged variant describing which libraries of a dependency a
// depender requires: either all of them (ImplicitAll), or an explicit
// subset.
type Uses struct {
	implicitAll bool
	explicit    map[string]pkgid.Name
}

// ImplicitAll returns the "all libraries of the dependency" variant.
func ImplicitAll() Uses { return Uses{implicitAll: true} }

// Explicit returns the variant naming exactly the given libraries.
func Explicit(names ...pkgid.Name) Uses {
	m := make(map[string]pkgid.Name, len(names))
	for _, n := range names {
		m[n.String()] = n
	}
	return Uses{explicit: m}
}

// IsImplicitAll reports whether u is the ImplicitAll variant.
func (u Uses) IsImplicitAll() bool { return u.implicitAll }

// Names returns the explicit set of names, sorted. Calling it on an
// ImplicitAll value returns nil; callers must check IsImplicitAll first if
// they need to distinguish "all" from "none".
func (u Uses) Names() []pkgid.Name {
	if u.implicitAll {
		return nil
	}
	out := make([]pkgid.Name, 0, len(u.explicit))
	for _, n := range u.explicit {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Has reports whether name is a member of the explicit set, or true
// unconditionally for ImplicitAll.
func (u Uses) Has(name pkgid.Name) bool {
	if u.implicitAll {
		return true
	}
	_, ok := u.explicit[name.String()]
	return ok
}

// Subset reports whether u ⊆ o: every name named by u is also named by o,
// where ImplicitAll is maximal.
func (u Uses) Subset(o Uses) bool {
	if o.implicitAll {
		return true
	}
	if u.implicitAll {
		return false
	}
	for k := range u.explicit {
		if _, ok := o.explicit[k]; !ok {
			return false
		}
	}
	return true
}

// Equal reports set equality.
func (u Uses) Equal(o Uses) bool {
	return u.Subset(o) && o.Subset(u)
}

// Union returns the set of names required by either u or o. ImplicitAll is
// absorbing: the union of anything with ImplicitAll is ImplicitAll.
func (u Uses) Union(o Uses) Uses {
	if u.implicitAll || o.implicitAll {
		return ImplicitAll()
	}
	m := make(map[string]pkgid.Name, len(u.explicit)+len(o.explicit))
	for k, n := range u.explicit {
		m[k] = n
	}
	for k, n := range o.explicit {
		m[k] = n
	}
	return Uses{explicit: m}
}

// Intersect returns the set of names required by both u and o.
func (u Uses) Intersect(o Uses) Uses {
	if u.implicitAll {
		return o
	}
	if o.implicitAll {
		return u
	}
	m := make(map[string]pkgid.Name)
	for k, n := range u.explicit {
		if _, ok := o.explicit[k]; ok {
			m[k] = n
		}
	}
	return Uses{explicit: m}
}

// IsEmpty reports whether u names no libraries at all (only possible for
// the explicit variant).
func (u Uses) IsEmpty() bool {
	return !u.implicitAll && len(u.explicit) == 0
}
