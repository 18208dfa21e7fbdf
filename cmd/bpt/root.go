package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// globalFlags holds the persistent flags every subcommand reads: the
// catalog/cache/build-db paths threaded through every operation.
type globalFlags struct {
	projectDir  string
	catalogPath string
	cacheDir    string
	buildDBPath string
	toolchain   string
	jobs        int
}

func defaultBptHome() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".bpt")
}

// newRootCmd builds the command tree from scratch, grounded on
// vikramraodp-fissile's cobra root-command registration style (minus
// viper, which nothing in this module's go.mod pulls in).
func newRootCmd() *cobra.Command {
	gf := &globalFlags{}

	root := &cobra.Command{
		Use:           "bpt",
		Short:         "bpt builds and resolves dependencies for C++ projects",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVarP(&gf.projectDir, "project-dir", "C", ".", "project directory containing bpt.yaml")
	root.PersistentFlags().StringVar(&gf.catalogPath, "catalog", filepath.Join(defaultBptHome(), "catalog.db"), "path to the local package catalog database")
	root.PersistentFlags().StringVar(&gf.cacheDir, "cache-dir", filepath.Join(defaultBptHome(), "cache"), "path to the local sdist cache directory")
	root.PersistentFlags().StringVar(&gf.buildDBPath, "build-db", "", "path to the build database (default: <project-dir>/.bpt/build.db)")
	root.PersistentFlags().StringVar(&gf.toolchain, "toolchain", "", "builtin toolchain name (gcc, clang, msvc); default: gcc")
	root.PersistentFlags().IntVarP(&gf.jobs, "jobs", "j", 0, "maximum number of concurrent compile/link jobs (default: NumCPU+2)")

	root.AddCommand(
		newBuildCmd(gf),
		newBuildDepsCmd(gf),
		newCompileFileCmd(gf),
		newRepoCmd(gf),
		newPkgCmd(gf),
		newSdistCmd(gf),
		newInstallCmd(gf),
		newNewCmd(gf),
	)

	return root
}

func (gf *globalFlags) resolvedBuildDBPath() string {
	if gf.buildDBPath != "" {
		return gf.buildDBPath
	}
	return filepath.Join(gf.projectDir, ".bpt", "build.db")
}
