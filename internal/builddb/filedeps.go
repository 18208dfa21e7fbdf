package builddb

import (
	"strings"

	"github.com/pkg/errors"
)

// FileDeps is the parsed result of a compiler-produced dependency listing:
// the output path it describes and the input files it was compiled from.
type FileDeps struct {
	Output string
	Inputs []string
}

// ErrMalformedDeps is returned (wrapped) when a GNU-Makefile-style deps
// listing has no colon-terminated leader token: if the first token is
// missing a colon, parsing reports a critical diagnostic and no inputs.
var ErrMalformedDeps = errors.New("malformed dependency listing: leader token is not colon-terminated")

// ParseMakefileDeps parses a GNU Make-style ".d" depfile body ("output:
// input1 input2 ..." with backslash-escaped line continuations).
func ParseMakefileDeps(contents string) (FileDeps, error) {
	unescaped := strings.ReplaceAll(contents, "\\\n", " ")
	tokens := shellSplit(unescaped)
	if len(tokens) == 0 {
		return FileDeps{}, errors.Wrap(ErrMalformedDeps, "empty depfile")
	}

	head := tokens[0]
	if !strings.HasSuffix(head, ":") {
		return FileDeps{}, ErrMalformedDeps
	}

	return FileDeps{
		Output: strings.TrimSuffix(head, ":"),
		Inputs: tokens[1:],
	}, nil
}

// shellSplit performs the narrow whitespace/backslash-escape splitting a
// Makefile depfile actually uses: no quoting, just backslash-escaped
// spaces, which is all GNU Make or a compiler's -MF output ever emits.
func shellSplit(s string) []string {
	var tokens []string
	var cur strings.Builder
	hasCur := false
	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
			hasCur = true
		case r == '\\':
			escaped = true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if hasCur {
				tokens = append(tokens, cur.String())
				cur.Reset()
				hasCur = false
			}
		default:
			cur.WriteRune(r)
			hasCur = true
		}
	}
	if hasCur {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

// MSVCShowIncludesLeader is the default line prefix `cl.exe /showIncludes`
// emits ahead of each included path.
const MSVCShowIncludesLeader = "Note: including file:"

// MSVCDeps is the result of scanning a `/showIncludes` compiler output: the
// input paths it named, and the remaining compiler output with those lines
// stripped out.
type MSVCDeps struct {
	Inputs        []string
	CleanedOutput string
}

// ParseMSVCShowIncludes scans output for lines with the given leader
// (MSVCShowIncludesLeader if leader is empty), treating the trimmed
// remainder of each as an input path; every other line is retained as
// compiler output. If the scan finds zero inputs the caller should
// discard the parse result rather than risk an incomplete dependency
// set -- ok reports that.
func ParseMSVCShowIncludes(output, leader string) (MSVCDeps, bool) {
	if leader == "" {
		leader = MSVCShowIncludesLeader
	}
	lines := strings.Split(output, "\n")
	var cleaned []string
	var deps MSVCDeps
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, leader) {
			cleaned = append(cleaned, line)
			continue
		}
		path := strings.TrimSpace(strings.TrimPrefix(trimmed, leader))
		deps.Inputs = append(deps.Inputs, path)
	}
	if len(deps.Inputs) == 0 {
		return MSVCDeps{}, false
	}
	deps.CleanedOutput = strings.TrimRight(strings.Join(cleaned, "\n"), "\n")
	return deps, true
}
