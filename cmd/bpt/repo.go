package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/bptpkg/bpt/internal/clierr"
	"github.com/bptpkg/bpt/internal/sdist"
)

// newRepoCmd groups the remote-catalog management subcommands: ls,
// init, add, import, remove.
func newRepoCmd(gf *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repo",
		Short: "manage tracked remote catalogs",
	}
	cmd.AddCommand(
		newRepoLsCmd(gf),
		newRepoInitCmd(gf),
		newRepoAddCmd(gf),
		newRepoImportCmd(gf),
		newRepoRemoveCmd(gf),
	)
	return cmd
}

func newRepoLsCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "list tracked remotes",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openCatalogDB(gf)
			if err != nil {
				return err
			}
			defer db.Close()

			remotes, err := db.ListRemotes()
			if err != nil {
				return clierr.Database(err)
			}
			for _, r := range remotes {
				fprintln(cmd.OutOrStdout(), "%s\t%s", r.Name, r.URL)
			}
			return nil
		},
	}
}

func newRepoInitCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
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

func newRepoAddCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "add <name> <url>",
		Short: "track a new remote catalog by name and base URL",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openCatalogDB(gf)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.AddRemote(args[0], args[1]); err != nil {
				return clierr.Database(err)
			}
			if err := db.UpdateAllRemotes(nil); err != nil {
				return clierr.Network(err)
			}
			return nil
		},
	}
}

func newRepoImportCmd(gf *globalFlags) *cobra.Command {
	var replace bool
	cmd := &cobra.Command{
		Use:   "import <sdist-dir>",
		Short: "import a locally-built sdist directory into the catalog and cache",
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

			sd, err := sdist.Load(args[0])
			if err != nil {
				return clierr.IO(err, args[0], "")
			}
			if err := db.Store(sd.Meta, ""); err != nil {
				return clierr.Database(err)
			}
			id := sd.Meta.ID()
			if _, err := cache.Import(id, copyDirTarGz(args[0]), replace); err != nil {
				return clierr.IO(err, args[0], gf.cacheDir)
			}
			fprintln(cmd.OutOrStdout(), "imported %s", id)
			return nil
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "replace an existing cache entry with the same id")
	return cmd
}

// copyDirTarGz packs the sdist at srcDir through the same Pack/Unpack round
// trip a network fetch would use, so `repo import`'s local path reuses the
// cache's usual two-phase staged import rather than a special case.
func copyDirTarGz(srcDir string) func(dest string) error {
	return func(dest string) error {
		r, w := io.Pipe()
		errCh := make(chan error, 1)
		go func() {
			packErr := sdist.Pack(srcDir, w)
			errCh <- packErr
			w.CloseWithError(packErr)
		}()
		unpackErr := sdist.Unpack(r, dest)
		packErr := <-errCh
		if packErr != nil {
			return packErr
		}
		return unpackErr
	}
}

func newRepoRemoveCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "stop tracking a remote and drop its packages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openCatalogDB(gf)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.RemoveRemote(args[0]); err != nil {
				return clierr.Database(err)
			}
			return nil
		},
	}
}
