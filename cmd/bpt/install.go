package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bptpkg/bpt/internal/clierr"
	"github.com/bptpkg/bpt/internal/crsmeta"
	"github.com/bptpkg/bpt/internal/sdist"
)

// newInstallCmd builds this project's sdist and registers it in the local
// catalog and cache, the way `pkg create` does, but additionally places
// a copy at --prefix for tooling that expects a fixed on-disk location.
func newInstallCmd(gf *globalFlags) *cobra.Command {
	var prefix string
	var includeApps, includeTests bool

	cmd := &cobra.Command{
		Use:   "install",
		Short: "build this project's sdist and install it into the local catalog",
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

			stagingDir := filepath.Join(gf.cacheDir, ".staging-"+id.CacheDirName())
			sd, err := sdist.Create(m, meta, sdist.CreateParams{
				ProjectDir:   gf.projectDir,
				DestDir:      stagingDir,
				Force:        true,
				IncludeApps:  includeApps,
				IncludeTests: includeTests,
			})
			if err != nil {
				return clierr.IO(err, gf.projectDir, stagingDir)
			}

			if err := db.Store(sd.Meta, ""); err != nil {
				return clierr.Database(err)
			}
			if _, err := cache.Import(id, copyDirTarGz(sd.Path), true); err != nil {
				return clierr.IO(err, sd.Path, gf.cacheDir)
			}

			if prefix != "" {
				dest := filepath.Join(prefix, id.CacheDirName())
				if _, err := sdist.Create(m, meta, sdist.CreateParams{
					ProjectDir:   gf.projectDir,
					DestDir:      dest,
					Force:        true,
					IncludeApps:  includeApps,
					IncludeTests: includeTests,
				}); err != nil {
					return clierr.IO(err, gf.projectDir, dest)
				}
				fprintln(cmd.OutOrStdout(), "installed %s to %s", id, dest)
				return nil
			}

			fprintln(cmd.OutOrStdout(), "installed %s", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "also copy the sdist under this prefix directory")
	cmd.Flags().BoolVar(&includeApps, "apps", false, "include each library's apps/ directory")
	cmd.Flags().BoolVar(&includeTests, "tests", false, "include each library's test/ directory")
	return cmd
}
