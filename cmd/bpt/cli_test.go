package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/bptpkg/bpt/internal/clierr"
)

func execCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestNewScaffoldsProjectDirectory(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "widgets")

	out, err := execCLI(t, "new", dir)
	if err != nil {
		t.Fatalf("new: %v (output: %s)", err, out)
	}

	for _, want := range []string{"bpt.yaml", filepath.Join("src", "widgets.cpp"), filepath.Join("include", "widgets", "widgets.hpp")} {
		if _, err := os.Stat(filepath.Join(dir, want)); err != nil {
			t.Fatalf("expected %s to exist: %v", want, err)
		}
	}

	manifest, err := os.ReadFile(filepath.Join(dir, "bpt.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(manifest, []byte("name: widgets")) {
		t.Fatalf("expected manifest to declare name: widgets, got %s", manifest)
	}
}

func TestNewRejectsInvalidPackageName(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "Not Valid")

	_, err := execCLI(t, "new", dir)
	if err == nil {
		t.Fatal("expected an error for an invalid package name")
	}
	if clierr.Classify(err) != clierr.KindUsage {
		t.Fatalf("expected a usage error, got %v (%v)", clierr.Classify(err), err)
	}
}

func TestRepoAddAndLsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.db")

	if _, err := execCLI(t, "--catalog", catalogPath, "repo", "init"); err != nil {
		t.Fatalf("repo init: %v", err)
	}

	// A remote that serves no repo.db at all fails UpdateAllRemotes, but
	// the remote should still be persisted by AddRemote before that call
	// runs, so `repo ls` reports it regardless.
	execCLI(t, "--catalog", catalogPath, "repo", "add", "example", "http://127.0.0.1:1/nonexistent")

	out, err := execCLI(t, "--catalog", catalogPath, "repo", "ls")
	if err != nil {
		t.Fatalf("repo ls: %v", err)
	}
	if !bytes.Contains([]byte(out), []byte("example")) {
		t.Fatalf("expected repo ls to list the added remote, got %q", out)
	}
}

func TestPkgSearchUnknownNameIsResolveError(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.db")

	_, err := execCLI(t, "--catalog", catalogPath, "pkg", "search", "nosuchpackage")
	if err == nil {
		t.Fatal("expected an error for an unknown package name")
	}
	if clierr.Classify(err) != clierr.KindResolve {
		t.Fatalf("expected a resolve error, got %v (%v)", clierr.Classify(err), err)
	}
}

func TestBuildDepsWithNoDependenciesResolvesTrivially(t *testing.T) {
	projectDir := t.TempDir()
	manifestYAML := "name: leaf\nversion: 1.0.0\nlibraries:\n  - name: leaf\n    path: .\n"
	if err := os.WriteFile(filepath.Join(projectDir, "bpt.yaml"), []byte(manifestYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	catalogPath := filepath.Join(projectDir, "catalog.db")
	out, err := execCLI(t, "-C", projectDir, "--catalog", catalogPath, "build-deps")
	if err != nil {
		t.Fatalf("build-deps: %v (output: %s)", err, out)
	}
}
