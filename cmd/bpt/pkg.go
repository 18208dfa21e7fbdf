package main

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/bptpkg/bpt/internal/catalog"
	"github.com/bptpkg/bpt/internal/clierr"
	"github.com/bptpkg/bpt/internal/crsmeta"
	"github.com/bptpkg/bpt/internal/pkgid"
	"github.com/bptpkg/bpt/internal/sdist"
)

// newPkgCmd groups the catalog-entry subcommands under "pkg": init-db,
// search, get, create.
func newPkgCmd(gf *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pkg",
		Short: "inspect and create catalog packages",
	}
	cmd.AddCommand(
		newPkgInitDBCmd(gf),
		newPkgSearchCmd(gf),
		newPkgGetCmd(gf),
		newPkgCreateCmd(gf),
	)
	return cmd
}

func newPkgInitDBCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "create (or migrate) the local catalog database",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openCatalogDB(gf)
			if err != nil {
				return err
			}
			defer db.Close()
			fprintln(cmd.OutOrStdout(), "catalog ready at %s", gf.catalogPath)
			return nil
		},
	}
}

func newPkgSearchCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "search <name>",
		Short: "list every known version of a package name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openCatalogDB(gf)
			if err != nil {
				return err
			}
			defer db.Close()

			name, err := pkgid.Parse(args[0])
			if err != nil {
				return clierr.Usagef("invalid package name %q: %v", args[0], err)
			}

			metas, err := db.ByName(name)
			if err != nil {
				return clierr.Database(err)
			}
			if len(metas) == 0 {
				known, _ := db.AllNames()
				return clierr.Resolve(notFoundError(name, known))
			}
			for _, m := range metas {
				fprintln(cmd.OutOrStdout(), "%s", m.ID())
			}
			return nil
		},
	}
}

func newPkgGetCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>@<version>",
		Short: "materialize one catalog package's sdist into the local cache",
		Args:  cobra.ExactArgs(1),
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

			id, err := parsePkgRef(db, args[0])
			if err != nil {
				return err
			}
			sd, err := materializeDependency(db, cache, id)
			if err != nil {
				return err
			}
			fprintln(cmd.OutOrStdout(), "%s", sd.Path)
			return nil
		},
	}
}

func newPkgCreateCmd(gf *globalFlags) *cobra.Command {
	var force, includeApps, includeTests bool
	var dest string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "build this project's sdist and register it in the local catalog and cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadProjectManifest(gf)
			if err != nil {
				return err
			}

			db, err := openCatalogDB(gf)
			if err != nil {
				return err
			}
			defer db.Close()
			cache, err := openLocalCache(gf)
			if err != nil {
				return err
			}

			meta, err := crsmeta.FromManifest(m, 0, nil)
			if err != nil {
				return clierr.Manifest(err)
			}
			id := meta.ID()

			if dest == "" {
				dest = filepath.Join(gf.cacheDir, ".staging-"+id.CacheDirName())
			}
			sd, err := sdist.Create(m, meta, sdist.CreateParams{
				ProjectDir:   gf.projectDir,
				DestDir:      dest,
				Force:        force,
				IncludeApps:  includeApps,
				IncludeTests: includeTests,
			})
			if err != nil {
				return clierr.IO(err, gf.projectDir, dest)
			}

			if err := db.Store(sd.Meta, ""); err != nil {
				return clierr.Database(err)
			}
			if _, err := cache.Import(id, copyDirTarGz(sd.Path), true); err != nil {
				return clierr.IO(err, sd.Path, gf.cacheDir)
			}
			fprintln(cmd.OutOrStdout(), "created %s", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&dest, "out", "", "staging directory for the generated sdist (default: a temp dir under the cache root)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing directory at --out")
	cmd.Flags().BoolVar(&includeApps, "apps", false, "include each library's apps/ directory in the sdist")
	cmd.Flags().BoolVar(&includeTests, "tests", false, "include each library's test/ directory in the sdist")
	return cmd
}

// parsePkgRef parses a "name@version" or bare "name" reference against the
// catalog, picking the highest (version, revision) when no version is
// given.
func parsePkgRef(db *catalog.DB, ref string) (pkgid.ID, error) {
	name, version, hasVersion := splitPkgRef(ref)
	n, err := pkgid.Parse(name)
	if err != nil {
		return pkgid.ID{}, clierr.Usagef("invalid package name %q: %v", name, err)
	}

	metas, err := db.ByName(n)
	if err != nil {
		return pkgid.ID{}, clierr.Database(err)
	}
	if len(metas) == 0 {
		known, _ := db.AllNames()
		return pkgid.ID{}, clierr.Resolve(notFoundError(n, known))
	}
	if !hasVersion {
		return metas[0].ID(), nil
	}
	v, err := pkgid.ParseVersion(version)
	if err != nil {
		return pkgid.ID{}, clierr.Usagef("invalid version %q: %v", version, err)
	}
	for _, m := range metas {
		if m.Version.Equal(v) {
			return m.ID(), nil
		}
	}
	return pkgid.ID{}, clierr.Resolve(errors.Errorf("no version %s of %q in catalog", version, name))
}

func splitPkgRef(ref string) (name, version string, hasVersion bool) {
	for i := 0; i < len(ref); i++ {
		if ref[i] == '@' {
			return ref[:i], ref[i+1:], true
		}
	}
	return ref, "", false
}
