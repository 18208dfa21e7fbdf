package pkgid

import (
	"fmt"

	"github.com/Masterminds/semver"
	"github.com/pkg/errors"
)

// Version is a (major, minor, patch) triple with an optional prerelease
// sequence, ordered per standard semver. It wraps Masterminds/semver
// for parsing and comparison.
type Version struct {
	v *semver.Version
}

// ParseVersion parses a full "major.minor.patch[-prerelease][+build]"
// string. Partial versions ("1.2") are rejected -- the package manifest
// requires exact semver.
func ParseVersion(s string) (Version, error) {
	sv, err := semver.NewVersion(s)
	if err != nil {
		return Version{}, errors.Wrapf(err, "invalid version %q", s)
	}
	if !isFullSemver(s) {
		return Version{}, errors.Errorf("version %q is not a full major.minor.patch semver", s)
	}
	return Version{v: sv}, nil
}

// isFullSemver rejects the shorthand forms ("1", "1.2") that
// Masterminds/semver otherwise accepts by defaulting missing components to
// zero; bpt's manifest requires the caller spell out all three.
func isFullSemver(s string) bool {
	dots := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.':
			dots++
		case '-', '+':
			return dots >= 2
		}
	}
	return dots >= 2
}

// NewVersion builds a Version directly from its numeric components plus an
// optional prerelease tag (empty for none).
func NewVersion(major, minor, patch uint64, prerelease string) Version {
	s := fmt.Sprintf("%d.%d.%d", major, minor, patch)
	if prerelease != "" {
		s += "-" + prerelease
	}
	sv, err := semver.NewVersion(s)
	if err != nil {
		panic(err)
	}
	return Version{v: sv}
}

func (v Version) Major() uint64 { return uint64(v.v.Major()) }
func (v Version) Minor() uint64 { return uint64(v.v.Minor()) }
func (v Version) Patch() uint64 { return uint64(v.v.Patch()) }
func (v Version) Prerelease() string { return v.v.Prerelease() }

func (v Version) String() string { return v.v.String() }

func (v Version) IsZero() bool { return v.v == nil }

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater than
// o, using standard semver precedence (numeric triple, then prerelease).
func (v Version) Compare(o Version) int { return v.v.Compare(o.v) }

func (v Version) Less(o Version) bool { return v.Compare(o) < 0 }
func (v Version) Equal(o Version) bool { return v.Compare(o) == 0 }

// NextMajor returns the version at the start of the next major line,
// i.e. (major+1).0.0 -- the exclusive upper bound used by the "@" shorthand.
func (v Version) NextMajor() Version {
	return NewVersion(v.Major()+1, 0, 0, "")
}

// NextMinor returns (major).(minor+1).0 -- the exclusive upper bound used
// by the "~" shorthand.
func (v Version) NextMinor() Version {
	return NewVersion(v.Major(), v.Minor()+1, 0, "")
}

// NextPatch returns (major).(minor).(patch+1) -- the exclusive upper bound
// for a pinned "=" shorthand.
func (v Version) NextPatch() Version {
	return NewVersion(v.Major(), v.Minor(), v.Patch()+1, "")
}
