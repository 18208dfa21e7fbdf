package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bptpkg/bpt/internal/clierr"
	"github.com/bptpkg/bpt/internal/pkgid"
)

// newNewCmd scaffolds a fresh project directory with a minimal bpt.yaml
// and a src/+include/ tree for one library sharing the project's name.
func newNewCmd(gf *globalFlags) *cobra.Command {
	var lib, version, namespace string

	cmd := &cobra.Command{
		Use:   "new <directory>",
		Short: "scaffold a new project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			name := filepath.Base(dir)
			if _, err := pkgid.Parse(name); err != nil {
				return clierr.Usagef("directory name %q is not a valid package name: %v", name, err)
			}
			if lib == "" {
				lib = name
			}
			if version == "" {
				version = "0.1.0"
			}
			if _, err := pkgid.ParseVersion(version); err != nil {
				return clierr.Usagef("invalid --version %q: %v", version, err)
			}

			if err := scaffoldProject(dir, name, lib, version, namespace); err != nil {
				return clierr.IO(err, "", dir)
			}
			fprintln(cmd.OutOrStdout(), "created %s", dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&lib, "lib", "", "name of the project's single library (default: the directory name)")
	cmd.Flags().StringVar(&version, "version", "", "initial version (default: 0.1.0)")
	cmd.Flags().StringVar(&namespace, "namespace", "", "default namespace new dependencies are assumed to share")
	return cmd
}

func scaffoldProject(dir, name, lib, version, namespace string) error {
	for _, sub := range []string{"src", "include/" + name} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return err
		}
	}

	header := filepath.Join(dir, "include", name, name+".hpp")
	if err := os.WriteFile(header, []byte(defaultHeaderContents(name)), 0o644); err != nil {
		return err
	}
	source := filepath.Join(dir, "src", name+".cpp")
	if err := os.WriteFile(source, []byte(defaultSourceContents(name)), 0o644); err != nil {
		return err
	}

	manifestYAML := fmt.Sprintf(manifestTemplate, name, version, namespace, lib)
	return os.WriteFile(filepath.Join(dir, "bpt.yaml"), []byte(manifestYAML), 0o644)
}

func defaultHeaderContents(name string) string {
	return fmt.Sprintf("#pragma once\n\nnamespace %s {\n\nint answer();\n\n}  // namespace %s\n", name, name)
}

func defaultSourceContents(name string) string {
	return fmt.Sprintf("#include <%s/%s.hpp>\n\nnamespace %s {\n\nint answer() { return 42; }\n\n}  // namespace %s\n", name, name, name, name)
}

const manifestTemplate = `name: %s
version: %s
namespace: %s
libraries:
  - name: %s
    path: .
`
