// Command bpt drives dependency resolution and C++ builds for a single
// project: resolving a project's manifest against a local package
// catalog, planning a build, and executing it with a bounded worker
// pool.
package main

import (
	"fmt"
	"os"

	"github.com/bptpkg/bpt/internal/clierr"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		if clierr.Classify(err) == clierr.KindUsage {
			fmt.Fprintln(os.Stderr, root.UsageString())
		}
		clierr.Present(os.Stderr, err)
		return clierr.ExitCode(err)
	}
	return 0
}
