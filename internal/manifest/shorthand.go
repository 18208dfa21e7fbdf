package manifest

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/bptpkg/bpt/internal/pkgid"
)

// ParseShorthand parses the compact dependency strings accepted in a
// manifest's `depends`/`dependencies` array:
//
//	"foo@1.2.3"              -> [1.2.3, 2.0.0)
//	"foo~1.2.3"              -> [1.2.3, 1.3.0)
//	"foo=1.2.3"              -> [1.2.3, 1.2.4)
//	"foo+1.2.3"              -> [1.2.3, +inf)
//	"foo@1.2.3 using bar,baz" -> uses = {bar, baz}
//
// A bare name with no operator is rejected: the manifest must state a
// version constraint explicitly.
func ParseShorthand(s string) (Dependency, error) {
	body, usesPart, hasUses := strings.Cut(s, " using ")

	opIdx := -1
	var op byte
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '@', '~', '=', '+':
			opIdx = i
			op = body[i]
		}
		if opIdx >= 0 {
			break
		}
	}
	if opIdx < 0 {
		return Dependency{}, errors.Errorf("dependency shorthand %q has no version operator (expected one of @ ~ = +)", s)
	}

	rawName := strings.TrimSpace(body[:opIdx])
	rawVersion := strings.TrimSpace(body[opIdx+1:])

	name, err := pkgid.Parse(rawName)
	if err != nil {
		return Dependency{}, errors.Wrapf(err, "dependency shorthand %q", s)
	}
	v, err := pkgid.ParseVersion(rawVersion)
	if err != nil {
		return Dependency{}, errors.Wrapf(err, "dependency shorthand %q", s)
	}

	var rng pkgid.VersionRangeSet
	switch op {
	case '@':
		rng = pkgid.NewRange(v, v.NextMajor())
	case '~':
		rng = pkgid.NewRange(v, v.NextMinor())
	case '=':
		rng = pkgid.NewExact(v)
	case '+':
		rng = pkgid.NewUnbounded(v)
	}

	uses := ImplicitAll()
	if hasUses {
		names, err := parseUsesList(usesPart)
		if err != nil {
			return Dependency{}, errors.Wrapf(err, "dependency shorthand %q", s)
		}
		uses = Explicit(names...)
	}

	return Dependency{Name: name, Acceptable: rng, Uses: uses}, nil
}

func parseUsesList(s string) ([]pkgid.Name, error) {
	parts := strings.Split(s, ",")
	names := make([]pkgid.Name, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := pkgid.Parse(p)
		if err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, nil
}
