package executor

import (
	"context"
	"os/exec"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/bptpkg/bpt/internal/buildplan"
	"github.com/bptpkg/bpt/internal/toolchain"
)

// TestResult is one test executable's run outcome.
type TestResult struct {
	Name     string
	OutPath  string
	Passed   bool
	ExitCode int
	Output   string
}

// LibraryResult is one library's archive/link/test outcome.
type LibraryResult struct {
	Name  string
	Built bool // archive (if any) and every executable, test or app, linked; test run outcomes are in Tests
	Err   error
	Tests []TestResult
}

// BuildResult is the aggregate outcome of RunLibraries.
type BuildResult struct {
	OK         bool
	FirstError error
	Libraries  []LibraryResult
}

// RunLibraries compiles every library's sources, then archives and links
// each library whose compiles all succeeded, then runs any test
// executables that linked successfully. Archive/link run as their own
// parallel batch after the compile batch completes; a failed archive
// or link aborts only its owning library.
func RunLibraries(env Env, libs []buildplan.LibraryPlan, nJobs int) (BuildResult, error) {
	var allCompiles []buildplan.CompilePlan
	for _, lib := range libs {
		if lib.Archive != nil {
			allCompiles = append(allCompiles, lib.Archive.CompileFiles...)
		}
		for _, exe := range lib.Executables {
			allCompiles = append(allCompiles, exe.MainCompile)
		}
	}

	outcomes, compileErr := runCompiles(env, allCompiles, nJobs)
	ok := make(map[string]bool, len(outcomes))
	for _, o := range outcomes {
		ok[o.plan.OutPath] = o.succeeded
	}
	allOK := func(plans []buildplan.CompilePlan) bool {
		for _, p := range plans {
			if !ok[p.OutPath] {
				return false
			}
		}
		return true
	}

	results := make([]LibraryResult, len(libs))
	nJobs = defaultJobs(nJobs)
	sem := semaphore.NewWeighted(int64(nJobs))
	eg, ctx := errgroup.WithContext(context.Background())

	for i, lib := range libs {
		i, lib := i, lib
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		eg.Go(func() error {
			defer sem.Release(1)
			results[i] = buildLibrary(env, lib, allOK)
			return nil
		})
	}
	_ = eg.Wait()

	var firstErr error
	if compileErr != nil {
		firstErr = compileErr
	}
	allBuilt := true
	for _, r := range results {
		if !r.Built {
			allBuilt = false
			if firstErr == nil {
				firstErr = r.Err
			}
		}
	}

	return BuildResult{OK: compileErr == nil && allBuilt, FirstError: firstErr, Libraries: results}, firstErr
}

func buildLibrary(env Env, lib buildplan.LibraryPlan, compilesOK func([]buildplan.CompilePlan) bool) LibraryResult {
	result := LibraryResult{Name: lib.Name.String()}

	if lib.Archive != nil {
		if !compilesOK(lib.Archive.CompileFiles) {
			result.Err = errors.Errorf("archive %q skipped: a compile it depends on failed", lib.Archive.Name)
			return result
		}
		objects := make([]string, len(lib.Archive.CompileFiles))
		for i, cf := range lib.Archive.CompileFiles {
			objects[i] = cf.OutPath
		}
		argv := env.Toolchain.CreateArchiveCommand(toolchain.ArchiveSpec{
			InputFiles: objects,
			OutPath:    lib.Archive.OutPath,
		}, env.WorkDir, env.Knobs)
		if out, err := env.runner().Run(argv, env.WorkDir); err != nil {
			result.Err = errors.Wrapf(err, "archiving %q: %s", lib.Archive.Name, out)
			return result
		}
	}

	for _, exe := range lib.Executables {
		if !compilesOK([]buildplan.CompilePlan{exe.MainCompile}) {
			result.Err = errors.Errorf("link %q skipped: its compile failed", exe.Name)
			return result
		}
		inputs := append([]string{exe.MainCompile.OutPath}, exe.InputLibs...)
		argv := env.Toolchain.CreateLinkExecutableCommand(toolchain.LinkExeSpec{
			Inputs: inputs,
			Output: exe.OutPath,
		}, env.WorkDir, env.Knobs)
		if out, err := env.runner().Run(argv, env.WorkDir); err != nil {
			result.Err = errors.Wrapf(err, "linking %q: %s", exe.Name, out)
			return result
		}
		if exe.IsTest {
			result.Tests = append(result.Tests, runTest(env, exe))
		}
	}

	result.Built = result.Err == nil
	return result
}

func runTest(env Env, exe buildplan.LinkExePlan) TestResult {
	cmd := exec.Command(exe.OutPath)
	cmd.Dir = env.WorkDir
	out, err := cmd.CombinedOutput()
	tr := TestResult{Name: exe.Name, OutPath: exe.OutPath, Output: string(out)}
	if err == nil {
		tr.Passed = true
		return tr
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		tr.ExitCode = exitErr.ExitCode()
	} else {
		tr.ExitCode = -1
	}
	return tr
}
