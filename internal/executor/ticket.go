// Package executor runs a build plan's compile/archive/link/test steps with
// a bounded worker pool and staleness checks against the build database.
package executor

import (
	"os"
	"strings"
	"time"

	"github.com/bptpkg/bpt/internal/builddb"
	"github.com/bptpkg/bpt/internal/buildplan"
	"github.com/bptpkg/bpt/internal/toolchain"
)

// Ticket is the staleness verdict for one compile plan.
type Ticket struct {
	Plan           buildplan.CompilePlan
	NeedsRecompile bool
	Reason         string
	PriorOutput    string // captured warnings from the last successful compile, if any
}

// quoteCommand renders argv the same way the build DB stores it, so a
// ticket's comparison matches what RecordCompilation wrote.
func quoteCommand(argv []string) string {
	return strings.Join(argv, " ")
}

// computeTicket decides whether plan needs to be recompiled, checking
// five conditions in order: missing record, missing object file (unless
// syntax-only), missing or changed input, command-line change, and
// toolchain change.
func computeTicket(db *builddb.DB, tc toolchain.Toolchain, plan buildplan.CompilePlan, argv []string) (Ticket, error) {
	t := Ticket{Plan: plan}
	command := quoteCommand(argv)

	prior, ok, err := db.CommandOf(plan.OutPath)
	if err != nil {
		return Ticket{}, err
	}
	if !ok {
		t.NeedsRecompile = true
		t.Reason = "no prior record"
		return t, nil
	}
	t.PriorOutput = prior.Output

	if !plan.SyntaxOnly {
		if _, err := os.Stat(plan.OutPath); err != nil {
			t.NeedsRecompile = true
			t.Reason = "object file missing"
			return t, nil
		}
	}

	inputs, _, err := db.InputsOf(plan.OutPath)
	if err != nil {
		return Ticket{}, err
	}
	for _, in := range inputs {
		fi, err := os.Stat(in.Path)
		if err != nil {
			t.NeedsRecompile = true
			t.Reason = "input missing: " + in.Path
			return t, nil
		}
		if !fi.ModTime().Equal(in.MTime) {
			t.NeedsRecompile = true
			t.Reason = "input changed: " + in.Path
			return t, nil
		}
	}

	if prior.Command != command {
		t.NeedsRecompile = true
		t.Reason = "command changed"
		return t, nil
	}

	if prior.ToolchainHash != tc.ContentHash() {
		t.NeedsRecompile = true
		t.Reason = "toolchain changed"
		return t, nil
	}

	return t, nil
}

// clampMTime is the min(input_mtime, compile_start_time) rule builddb's
// RecordInput doc comment requires callers to apply.
func clampMTime(inputMTime, compileStart time.Time) time.Time {
	if inputMTime.Before(compileStart) {
		return inputMTime
	}
	return compileStart
}
