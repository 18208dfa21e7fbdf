package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bptpkg/bpt/internal/buildplan"
	"github.com/bptpkg/bpt/internal/clierr"
	"github.com/bptpkg/bpt/internal/crsmeta"
	"github.com/bptpkg/bpt/internal/dirscan"
	"github.com/bptpkg/bpt/internal/executor"
	"github.com/bptpkg/bpt/internal/pkgid"
	"github.com/bptpkg/bpt/internal/sdist"
)

func newBuildCmd(gf *globalFlags) *cobra.Command {
	var buildTests, buildApps, warnings bool
	var outDir string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "resolve this project's dependencies and build it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if outDir == "" {
				outDir = filepath.Join(gf.projectDir, "_build")
			}
			res, err := runFullBuild(gf, buildTests, buildApps, warnings, outDir)
			if err != nil {
				return err
			}
			return reportBuildResult(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().BoolVar(&buildTests, "tests", false, "build and run test executables")
	cmd.Flags().BoolVar(&buildApps, "apps", true, "build application executables")
	cmd.Flags().BoolVar(&warnings, "warnings", true, "enable compiler warnings for this project's own libraries")
	cmd.Flags().StringVar(&outDir, "out", "", "build output directory (default: <project-dir>/_build)")
	return cmd
}

func newBuildDepsCmd(gf *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build-deps",
		Short: "resolve and materialize this project's dependencies without building",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openCatalogDB(gf)
			if err != nil {
				return err
			}
			defer db.Close()
			cache, err := openLocalCache(gf)
			if err != nil {
				return err
			}

			m, err := loadProjectManifest(gf)
			if err != nil {
				return err
			}

			pins, err := resolveDependencies(db, m, cancelOnInterrupt())
			if err != nil {
				return err
			}
			for _, id := range pins {
				if _, err := materializeDependency(db, cache, id); err != nil {
					return err
				}
				fprintln(cmd.OutOrStdout(), "fetched %s", id)
			}
			return nil
		},
	}
	return cmd
}

// buildOutcome is what a completed `build` run reports back to its caller.
type buildOutcome struct {
	Plans  []buildplan.LibraryPlan
	Result executor.BuildResult
}

// runFullBuild resolves m's dependencies, materializes every pin's sdist,
// plans the whole uses-closure as one DAG, and executes it end to end.
func runFullBuild(gf *globalFlags, buildTests, buildApps, warnings bool, outDir string) (buildOutcome, error) {
	db, err := openCatalogDB(gf)
	if err != nil {
		return buildOutcome{}, err
	}
	defer db.Close()
	cache, err := openLocalCache(gf)
	if err != nil {
		return buildOutcome{}, err
	}

	m, err := loadProjectManifest(gf)
	if err != nil {
		return buildOutcome{}, err
	}

	pins, err := resolveDependencies(db, m, cancelOnInterrupt())
	if err != nil {
		return buildOutcome{}, err
	}

	metaOf := make(map[pkgid.ID]crsmeta.PackageMeta, len(pins))
	sdistOf := make(map[pkgid.ID]sdist.Sdist, len(pins))
	for _, id := range pins {
		meta, err := db.ForPackage(id)
		if err != nil {
			return buildOutcome{}, clierr.Database(err)
		}
		sd, err := materializeDependency(db, cache, id)
		if err != nil {
			return buildOutcome{}, err
		}
		metaOf[id] = meta
		sdistOf[id] = sd
	}

	libraryNamesOf := func(name pkgid.Name) []pkgid.Name {
		for id, meta := range metaOf {
			if id.Name.Equal(name) {
				names := make([]pkgid.Name, 0, len(meta.Libraries))
				for _, lib := range meta.Libraries {
					names = append(names, lib.Name)
				}
				return names
			}
		}
		return nil
	}

	libs := buildInputs(m, gf.projectDir, pins, metaOf, sdistOf, libraryNamesOf, buildTests, buildApps, warnings)

	tc, err := resolveToolchain(gf)
	if err != nil {
		return buildOutcome{}, err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return buildOutcome{}, clierr.IO(err, "", outDir)
	}
	collector, err := dirscan.Open(filepath.Join(outDir, "dirscan.db"))
	if err != nil {
		return buildOutcome{}, clierr.Database(err)
	}
	defer collector.Close()
	sources := dirscan.Provider{Collector: collector}

	plans, err := buildplan.Build(tc, libs, sources, nil, outDir)
	if err != nil {
		return buildOutcome{}, clierr.Resolve(err)
	}

	buildDB, err := openBuildDB(gf)
	if err != nil {
		return buildOutcome{}, err
	}
	defer buildDB.Close()

	env := executor.Env{
		Toolchain: tc,
		WorkDir:   gf.projectDir,
		DB:        buildDB,
		Print:     func(s string) { fmt.Fprint(os.Stderr, s) },
	}

	res, err := executor.RunLibraries(env, plans, resolvedJobs(gf))
	if err != nil {
		return buildOutcome{}, clierr.Tool(err, nil, 1, "", "")
	}
	return buildOutcome{Plans: plans, Result: res}, nil
}

func reportBuildResult(w io.Writer, outcome buildOutcome) error {
	for _, lib := range outcome.Result.Libraries {
		status := "ok"
		if !lib.Built {
			status = "FAILED: " + lib.Err.Error()
		}
		fprintln(w, "%s: %s", lib.Name, status)
		for _, t := range lib.Tests {
			verdict := "PASS"
			if !t.Passed {
				verdict = "FAIL"
			}
			fprintln(w, "  test %s: %s", t.Name, verdict)
		}
	}
	if !outcome.Result.OK {
		return clierr.Tool(outcome.Result.FirstError, nil, 1, "", "")
	}
	return nil
}
