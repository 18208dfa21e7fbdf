package executor

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/bptpkg/bpt/internal/builddb"
	"github.com/bptpkg/bpt/internal/buildplan"
	"github.com/bptpkg/bpt/internal/toolchain"
)

// Runner executes one synthesized argv, returning its combined stdout+stderr
// output. Tests substitute a fake in place of execRunner.
type Runner interface {
	Run(argv []string, dir string) (output string, err error)
}

type execRunner struct{}

func (execRunner) Run(argv []string, dir string) (string, error) {
	if len(argv) == 0 {
		return "", errors.New("empty command")
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// Env is everything a build step needs besides the plans themselves.
type Env struct {
	Toolchain toolchain.Toolchain
	Knobs     toolchain.Knobs
	WorkDir   string
	DB        *builddb.DB
	Runner    Runner
	Print     func(string) // receives re-emitted or fresh warning output; nil discards it
}

func (e Env) runner() Runner {
	if e.Runner != nil {
		return e.Runner
	}
	return execRunner{}
}

func (e Env) print(s string) {
	if s == "" || e.Print == nil {
		return
	}
	e.Print(s)
}

func defaultJobs(n int) int {
	if n > 0 {
		return n
	}
	return runtime.NumCPU() + 2
}

// compileOutcome is the per-plan result of CompileAll, consumed both by its
// own DB-ingestion pass and by RunLibraries to gate downstream archive/link
// steps.
type compileOutcome struct {
	plan          buildplan.CompilePlan
	recompiled    bool
	succeeded     bool
	start         time.Time
	command       string
	output        string
	inputs        []string
	toolchainHash string
}

// CompileAll runs every compile plan through a bounded worker pool: up
// to nJobs (default hardware concurrency + 2) tasks at once, a shared
// cancellation flag polled between items, first-error-wins with
// in-flight drain, and a single DB-ingestion pass once all workers join.
func CompileAll(env Env, plans []buildplan.CompilePlan, nJobs int) (bool, error) {
	_, err := runCompiles(env, plans, nJobs)
	return err == nil, err
}

// runCompiles is CompileAll's implementation, exposing the per-plan
// outcomes so RunLibraries can gate archive/link steps on which compiles
// actually succeeded.
func runCompiles(env Env, plans []buildplan.CompilePlan, nJobs int) ([]compileOutcome, error) {
	nJobs = defaultJobs(nJobs)
	sem := semaphore.NewWeighted(int64(nJobs))
	eg, ctx := errgroup.WithContext(context.Background())

	outcomes := make([]compileOutcome, len(plans))
	var firstErr error
	var mu sync.Mutex
	recordErr := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}

	for i, plan := range plans {
		i, plan := i, plan
		if err := sem.Acquire(ctx, 1); err != nil {
			break // context already cancelled by an earlier failure
		}
		eg.Go(func() error {
			defer sem.Release(1)
			if ctx.Err() != nil {
				return nil // cancelled; leave this ticket unrun, drain quietly
			}
			outcome, err := compileOne(env, plan)
			outcomes[i] = outcome
			if err != nil {
				recordErr(err)
				return err
			}
			return nil
		})
	}
	_ = eg.Wait() // errors already captured in firstErr; eg.Wait's error is one of the same set

	if err := ingestCompileResults(env.DB, outcomes); err != nil {
		if firstErr == nil {
			firstErr = err
		}
	}

	return outcomes, firstErr
}

// compileOne computes a plan's staleness ticket, re-emits captured warnings
// for a plan that doesn't need recompiling, or actually invokes the
// compiler, parsing whatever dependency information its output or depfile
// carries.
func compileOne(env Env, plan buildplan.CompilePlan) (compileOutcome, error) {
	info, err := env.Toolchain.CreateCompileCommand(toolchain.CompileFileSpec{
		SourcePath:          plan.SourcePath,
		OutPath:             plan.OutPath,
		Definitions:         plan.Definitions,
		IncludeDirs:         plan.IncludeDirs,
		ExternalIncludeDirs: plan.ExternalIncludeDirs,
		Lang:                plan.Lang,
		EnableWarnings:      plan.EnableWarnings,
		SyntaxOnly:          plan.SyntaxOnly,
	}, env.WorkDir, env.Knobs)
	if err != nil {
		return compileOutcome{}, errors.Wrapf(err, "preparing compile command for %q", plan.SourcePath)
	}
	command := quoteCommand(info.Argv)

	ticket, err := computeTicket(env.DB, env.Toolchain, plan, info.Argv)
	if err != nil {
		return compileOutcome{}, errors.Wrapf(err, "checking staleness of %q", plan.OutPath)
	}

	if !ticket.NeedsRecompile {
		if plan.EnableWarnings {
			env.print(ticket.PriorOutput)
		}
		return compileOutcome{plan: plan, succeeded: true}, nil
	}

	start := time.Now()
	output, runErr := env.runner().Run(info.Argv, env.WorkDir)
	if runErr != nil {
		return compileOutcome{}, errors.Wrapf(runErr, "compiling %q: %s", plan.OutPath, output)
	}

	inputs := []string{plan.SourcePath}
	switch env.Toolchain.DepsMode {
	case toolchain.DepsGnuMakefile:
		if raw, readErr := os.ReadFile(info.DepfilePath); readErr == nil {
			if deps, parseErr := builddb.ParseMakefileDeps(string(raw)); parseErr == nil {
				inputs = deps.Inputs
			}
		}
	case toolchain.DepsMsvcShowIncludes:
		if deps, ok := builddb.ParseMSVCShowIncludes(output, ""); ok {
			inputs = append(inputs, deps.Inputs...)
			output = deps.CleanedOutput
		}
	}

	if plan.EnableWarnings {
		env.print(output)
	}

	return compileOutcome{
		plan:          plan,
		recompiled:    true,
		succeeded:     true,
		start:         start,
		command:       command,
		output:        output,
		inputs:        inputs,
		toolchainHash: env.Toolchain.ContentHash(),
	}, nil
}

// ingestCompileResults runs once after all workers join: every newly
// recompiled output's command, captured output, and input mtimes are
// recorded. Each record is its own DB write; the pass is not wrapped in a
// single transaction.
func ingestCompileResults(db *builddb.DB, outcomes []compileOutcome) error {
	for _, o := range outcomes {
		if !o.recompiled {
			continue
		}
		if err := db.RecordCompilation(o.plan.OutPath, builddb.CompletedCompilation{
			Command:       o.command,
			Output:        o.output,
			Duration:      time.Since(o.start),
			ToolchainHash: o.toolchainHash,
			CompileStart:  o.start,
		}); err != nil {
			return err
		}
		if err := db.ForgetInputsOf(o.plan.OutPath); err != nil {
			return err
		}
		for _, in := range o.inputs {
			mtime := o.start
			if fi, err := os.Stat(in); err == nil {
				mtime = clampMTime(fi.ModTime(), o.start)
			}
			if err := db.RecordInput(o.plan.OutPath, in, mtime); err != nil {
				return err
			}
		}
	}
	return nil
}
