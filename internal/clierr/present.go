package clierr

import (
	"fmt"
	"io"
	"regexp"

	"github.com/armon/go-radix"
	"github.com/fatih/color"
)

// Present prints a classified, styled message for err to w: every error
// bubbles up to the CLI top level, which prints it and sets the exit
// code accordingly.
func Present(w io.Writer, err error) {
	if err == nil {
		return
	}
	kind := Classify(err)
	label := color.RedString(kind.String())
	if kind == KindCancelled {
		label = color.YellowString(kind.String())
	}
	fmt.Fprintf(w, "%s: %s\n", label, err.Error())
}

// unknownYAMLKey matches gopkg.in/yaml.v2's UnmarshalStrict rejection
// message for a field absent from the target struct, e.g. "line 3: field
// dependancies not found in type manifest.rawManifest".
var unknownYAMLKey = regexp.MustCompile(`field (\S+) not found in type`)

// UnknownManifestKey extracts the offending key name from a
// yaml.UnmarshalStrict error, reporting ok=false if err doesn't look like
// an unknown-key rejection.
func UnknownManifestKey(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	m := unknownYAMLKey.FindStringSubmatch(err.Error())
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Suggest returns a " (did you mean \"x\"?)" hint for name against known,
// the same two-pass strategy (longest radix-tree prefix, then closest
// Levenshtein distance) internal/solve/errors.go uses for unknown package
// names, generalized here to plain strings so it also covers unknown
// manifest keys.
func Suggest(name string, known []string) string {
	if len(known) == 0 {
		return ""
	}
	tree := radix.New()
	for _, k := range known {
		tree.Insert(k, k)
	}
	if key, _, ok := tree.LongestPrefix(name); ok && key != "" {
		return fmt.Sprintf(" (did you mean %q?)", key)
	}

	best := ""
	bestDist := -1
	for _, k := range known {
		d := levenshtein(name, k)
		if bestDist < 0 || d < bestDist {
			bestDist = d
			best = k
		}
	}
	if best == "" || bestDist > len(name)/2+1 {
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

// KnownManifestKeys is the accepted top-level bpt.yaml key set, used to
// build a "did you mean" suggestion for UnknownManifestKey.
var KnownManifestKeys = []string{
	"name", "version", "namespace",
	"depends", "dependencies", "libraries", "test_driver",
}
