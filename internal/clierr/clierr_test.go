package clierr

import (
	"errors"
	"fmt"
	"testing"
)

func TestExitCodeMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{Usagef("missing argument %s", "--out"), 2},
		{Cancelled(), 2},
		{Manifest(errors.New("bad key")), 1},
		{Resolve(errors.New("no such package")), 1},
		{Network(errors.New("timeout")), 1},
		{IO(errors.New("permission denied"), "a", "b"), 1},
		{Tool(errors.New("compile failed"), []string{"gcc", "-c", "a.c"}, 1, "", "error"), 1},
		{Database(errors.New("corrupt")), 1},
		{errors.New("some plain error"), 1},
	}
	for _, c := range cases {
		if got := ExitCode(c.err); got != c.want {
			t.Fatalf("ExitCode(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestClassifyUnwrapsNestedErrors(t *testing.T) {
	inner := Tool(errors.New("linker failed"), []string{"ld"}, 2, "", "")
	wrapped := fmt.Errorf("building target: %w", inner)
	if got := Classify(wrapped); got != KindTool {
		t.Fatalf("Classify(wrapped) = %v, want KindTool", got)
	}
}

func TestToolErrorIncludesCommandAndExitStatus(t *testing.T) {
	err := Tool(errors.New("exit status 1"), []string{"g++", "-c", "widget.cpp", "-o", "widget.o"}, 1, "", "warning: unused")
	msg := err.Error()
	if !contains(msg, "g++ -c widget.cpp -o widget.o") {
		t.Fatalf("expected command line in message, got %q", msg)
	}
	if !contains(msg, "exit status: 1") {
		t.Fatalf("expected exit status in message, got %q", msg)
	}
}

func TestUnknownManifestKeySuggestsClosestKnownKey(t *testing.T) {
	err := errors.New(`yaml: unmarshal errors:
  line 3: field dependancies not found in type manifest.rawManifest`)
	key, ok := UnknownManifestKey(err)
	if !ok || key != "dependancies" {
		t.Fatalf("UnknownManifestKey: key=%q ok=%v", key, ok)
	}
	hint := Suggest(key, KnownManifestKeys)
	if !contains(hint, "dependencies") {
		t.Fatalf("expected a suggestion mentioning \"dependencies\", got %q", hint)
	}
}

func TestUnknownManifestKeyReturnsFalseForOtherErrors(t *testing.T) {
	if _, ok := UnknownManifestKey(errors.New("some other yaml error")); ok {
		t.Fatal("expected ok=false for a non-unknown-key error")
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
