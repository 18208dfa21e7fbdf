package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bptpkg/bpt/internal/builddb"
	"github.com/bptpkg/bpt/internal/buildplan"
	"github.com/bptpkg/bpt/internal/pkgid"
	"github.com/bptpkg/bpt/internal/toolchain"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls int32
	fail  map[string]string // OutPath-substring -> failure output
}

func (f *fakeRunner) Run(argv []string, dir string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	for i, a := range argv {
		if a == "-o" && i+1 < len(argv) {
			if msg, bad := f.fail[argv[i+1]]; bad {
				return msg, fmt.Errorf("simulated failure")
			}
		}
	}
	return "warning: unused variable", nil
}

func testToolchain() toolchain.Toolchain {
	tc, _ := toolchainBuiltinGCC()
	return tc
}

// toolchainBuiltinGCC avoids an import cycle concern by calling the public
// builtin resolver directly.
func toolchainBuiltinGCC() (toolchain.Toolchain, bool) {
	return toolchain.GetBuiltin("gcc")
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func openDB(t *testing.T) *builddb.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := builddb.Open(filepath.Join(dir, "build.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCompileAllFirstRunRecompilesAndRecords(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "widget.cpp")
	writeFile(t, src, "int widget() { return 0; }\n")
	out := filepath.Join(dir, "widget.cpp.o")

	db := openDB(t)
	env := Env{Toolchain: testToolchain(), WorkDir: dir, DB: db, Runner: &fakeRunner{}}

	plans := []buildplan.CompilePlan{{SourcePath: src, OutPath: out, EnableWarnings: true}}
	ok, err := CompileAll(env, plans, 2)
	if err != nil || !ok {
		t.Fatalf("CompileAll: ok=%v err=%v", ok, err)
	}

	rec, found, err := db.CommandOf(out)
	if err != nil || !found {
		t.Fatalf("expected a recorded compilation: found=%v err=%v", found, err)
	}
	if rec.ToolchainHash != env.Toolchain.ContentHash() {
		t.Fatalf("expected recorded toolchain hash to match")
	}

	inputs, _, err := db.InputsOf(out)
	if err != nil {
		t.Fatalf("InputsOf: %v", err)
	}
	if len(inputs) != 1 || inputs[0].Path != src {
		t.Fatalf("expected the source itself recorded as an input, got %+v", inputs)
	}
}

func TestCompileAllSecondRunSkipsUnchangedSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "widget.cpp")
	writeFile(t, src, "int widget() { return 0; }\n")
	out := filepath.Join(dir, "widget.cpp.o")
	writeFile(t, out, "") // pretend the object already exists

	db := openDB(t)
	runner := &fakeRunner{}
	env := Env{Toolchain: testToolchain(), WorkDir: dir, DB: db, Runner: runner}
	plans := []buildplan.CompilePlan{{SourcePath: src, OutPath: out}}

	if ok, err := CompileAll(env, plans, 1); err != nil || !ok {
		t.Fatalf("first CompileAll: ok=%v err=%v", ok, err)
	}
	firstCalls := runner.calls

	if ok, err := CompileAll(env, plans, 1); err != nil || !ok {
		t.Fatalf("second CompileAll: ok=%v err=%v", ok, err)
	}
	if runner.calls != firstCalls {
		t.Fatalf("expected the second run to skip compiling, calls went from %d to %d", firstCalls, runner.calls)
	}
}

func TestCompileAllRecompilesWhenSourceChanges(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "widget.cpp")
	writeFile(t, src, "int widget() { return 0; }\n")
	out := filepath.Join(dir, "widget.cpp.o")
	writeFile(t, out, "")

	db := openDB(t)
	runner := &fakeRunner{}
	env := Env{Toolchain: testToolchain(), WorkDir: dir, DB: db, Runner: runner}
	plans := []buildplan.CompilePlan{{SourcePath: src, OutPath: out}}

	if ok, err := CompileAll(env, plans, 1); err != nil || !ok {
		t.Fatalf("first CompileAll: ok=%v err=%v", ok, err)
	}

	// Bump the source's mtime forward so it differs from the recorded one.
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(src, future, future); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	firstCalls := runner.calls
	if ok, err := CompileAll(env, plans, 1); err != nil || !ok {
		t.Fatalf("second CompileAll: ok=%v err=%v", ok, err)
	}
	if runner.calls != firstCalls+1 {
		t.Fatalf("expected exactly one more compile call, got %d -> %d", firstCalls, runner.calls)
	}
}

func TestCompileAllStopsOnFirstFailure(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "bad.cpp")
	writeFile(t, src, "!!!not valid!!!\n")
	out := filepath.Join(dir, "bad.cpp.o")

	db := openDB(t)
	runner := &fakeRunner{fail: map[string]string{out: "error: syntax error"}}
	env := Env{Toolchain: testToolchain(), WorkDir: dir, DB: db, Runner: runner}
	plans := []buildplan.CompilePlan{{SourcePath: src, OutPath: out}}

	ok, err := CompileAll(env, plans, 1)
	if ok || err == nil {
		t.Fatalf("expected failure to propagate: ok=%v err=%v", ok, err)
	}
}

func TestRunLibrariesSkipsArchiveWhenCompileFails(t *testing.T) {
	dir := t.TempDir()
	okSrc := filepath.Join(dir, "good.cpp")
	badSrc := filepath.Join(dir, "bad.cpp")
	writeFile(t, okSrc, "int good() { return 0; }\n")
	writeFile(t, badSrc, "!!!\n")
	okObj := filepath.Join(dir, "good.cpp.o")
	badObj := filepath.Join(dir, "bad.cpp.o")

	db := openDB(t)
	runner := &fakeRunner{fail: map[string]string{badObj: "error"}}
	env := Env{Toolchain: testToolchain(), WorkDir: dir, DB: db, Runner: runner}

	lib := buildplan.LibraryPlan{
		Name: pkgid.MustParse("widgets"),
		Archive: &buildplan.ArchivePlan{
			Name:    "widgets",
			OutPath: filepath.Join(dir, "libwidgets.a"),
			CompileFiles: []buildplan.CompilePlan{
				{SourcePath: okSrc, OutPath: okObj},
				{SourcePath: badSrc, OutPath: badObj},
			},
		},
	}

	result, err := RunLibraries(env, []buildplan.LibraryPlan{lib}, 2)
	if err == nil {
		t.Fatal("expected RunLibraries to report an error")
	}
	if result.OK {
		t.Fatal("expected result.OK == false")
	}
	if len(result.Libraries) != 1 || result.Libraries[0].Built {
		t.Fatalf("expected the library's archive to be skipped, got %+v", result.Libraries)
	}
}
