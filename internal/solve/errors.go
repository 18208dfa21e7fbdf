package solve

import (
	"fmt"
	"sort"
	"strings"

	"github.com/armon/go-radix"

	"github.com/bptpkg/bpt/internal/pkgid"
)

// ConflictError reports that no consistent selection could be found. Chain
// holds the "given ... and that ... then ..." derivation, most specific
// cause last.
type ConflictError struct {
	Chain    []string
	Missing  []pkgid.Name // requirements for which the catalog has no package at all
	BadUses  []string     // "pkgname: library not found in any candidate" entries
	known    []pkgid.Name
}

func (e *ConflictError) Error() string {
	var b strings.Builder
	for i, line := range e.Chain {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(line)
	}
	for _, name := range e.Missing {
		fmt.Fprintf(&b, "\nno package named %q exists in the catalog%s", name, suggestion(name, e.known))
	}
	for _, line := range e.BadUses {
		fmt.Fprintf(&b, "\n%s", line)
	}
	return b.String()
}

// suggestion returns a " (did you mean \"x\"?)" hint for name against the
// known catalog names, using the longest shared prefix in a radix tree.
func suggestion(name pkgid.Name, known []pkgid.Name) string {
	if len(known) == 0 {
		return ""
	}
	tree := radix.New()
	for _, k := range known {
		tree.Insert(k.String(), k)
	}
	if key, _, ok := tree.LongestPrefix(name.String()); ok && key != "" {
		return fmt.Sprintf(" (did you mean %q?)", key)
	}

	// No shared prefix; fall back to the closest name by simple edit
	// distance so short typos still get a suggestion.
	best := ""
	bestDist := -1
	for _, k := range known {
		d := levenshtein(name.String(), k.String())
		if bestDist < 0 || d < bestDist {
			bestDist = d
			best = k.String()
		}
	}
	if best == "" || bestDist > len(name.String())/2+1 {
		return ""
	}
	return fmt.Sprintf(" (did you mean %q?)", best)
}

func levenshtein(a, b string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			cur[j] = min3(del, ins, sub)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

func sortedNameStrings(names []pkgid.Name) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = n.String()
	}
	sort.Strings(out)
	return out
}
