package main

import (
	"github.com/spf13/cobra"

	"github.com/bptpkg/bpt/internal/clierr"
	"github.com/bptpkg/bpt/internal/crsmeta"
	"github.com/bptpkg/bpt/internal/sdist"
)

// newSdistCmd groups the plain sdist-directory subcommands: create
// (stage a fresh sdist from the project directory) and regen (rewrite
// pkg.json in place from the current manifest, without re-copying any
// source files).
func newSdistCmd(gf *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sdist",
		Short: "create and maintain source distributions",
	}
	cmd.AddCommand(newSdistCreateCmd(gf), newSdistRegenCmd(gf))
	return cmd
}

func newSdistCreateCmd(gf *globalFlags) *cobra.Command {
	var dest string
	var force, includeApps, includeTests bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "stage this project's sdist at --out",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dest == "" {
				return clierr.Usagef("--out is required")
			}
			m, err := loadProjectManifest(gf)
			if err != nil {
				return err
			}
			meta, err := crsmeta.FromManifest(m, 0, nil)
			if err != nil {
				return clierr.Manifest(err)
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
			fprintln(cmd.OutOrStdout(), "%s", sd.Path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dest, "out", "o", "", "destination directory for the sdist")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing directory at --out")
	cmd.Flags().BoolVar(&includeApps, "apps", false, "include each library's apps/ directory")
	cmd.Flags().BoolVar(&includeTests, "tests", false, "include each library's test/ directory")
	return cmd
}

func newSdistRegenCmd(gf *globalFlags) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "regen",
		Short: "rewrite an existing sdist's pkg.json from the current project manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				return clierr.Usagef("--dir is required")
			}
			m, err := loadProjectManifest(gf)
			if err != nil {
				return err
			}
			existing, err := sdist.Load(dir)
			if err != nil {
				return clierr.IO(err, dir, "")
			}
			meta, err := crsmeta.FromManifest(m, existing.Meta.Revision, nil)
			if err != nil {
				return clierr.Manifest(err)
			}
			if err := sdist.WriteMeta(dir, meta); err != nil {
				return clierr.IO(err, "", dir)
			}
			fprintln(cmd.OutOrStdout(), "regenerated %s", dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "existing sdist directory to regenerate pkg.json within")
	return cmd
}
