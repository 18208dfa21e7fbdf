package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/bptpkg/bpt/internal/buildplan"
	"github.com/bptpkg/bpt/internal/clierr"
	"github.com/bptpkg/bpt/internal/executor"
)

// newCompileFileCmd wires the single-file compile path IDE integrations
// use to get one object file's up-to-date status without planning a
// whole project.
func newCompileFileCmd(gf *globalFlags) *cobra.Command {
	var out string
	var includeDirs, externalIncludeDirs, defines []string
	var warnings bool

	cmd := &cobra.Command{
		Use:   "compile-file <source>",
		Short: "compile a single source file to an object file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return clierr.Usagef("--out is required")
			}

			tc, err := resolveToolchain(gf)
			if err != nil {
				return err
			}
			buildDB, err := openBuildDB(gf)
			if err != nil {
				return err
			}
			defer buildDB.Close()

			plan := buildplan.CompilePlan{
				SourcePath:          args[0],
				OutPath:             out,
				IncludeDirs:         includeDirs,
				ExternalIncludeDirs: externalIncludeDirs,
				Definitions:         defines,
				EnableWarnings:      warnings,
			}

			env := executor.Env{
				Toolchain: tc,
				WorkDir:   gf.projectDir,
				DB:        buildDB,
				Print:     func(s string) { cmd.OutOrStdout().Write([]byte(s)) },
			}

			ok, err := executor.CompileAll(env, []buildplan.CompilePlan{plan}, 1)
			if err != nil {
				return clierr.Tool(err, nil, 1, "", "")
			}
			if !ok {
				return clierr.Tool(errors.New("compile failed"), []string{"compile", args[0]}, 1, "", "")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output object file path")
	cmd.Flags().StringArrayVarP(&includeDirs, "include", "I", nil, "include directory (repeatable)")
	cmd.Flags().StringArrayVar(&externalIncludeDirs, "external-include", nil, "external (warning-suppressed) include directory (repeatable)")
	cmd.Flags().StringArrayVarP(&defines, "define", "D", nil, "preprocessor definition (repeatable)")
	cmd.Flags().BoolVar(&warnings, "warnings", true, "enable compiler warnings")
	return cmd
}
