package buildplan

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/bptpkg/bpt/internal/pkgid"
	"github.com/bptpkg/bpt/internal/toolchain"
)

// SourceProvider lists the source files under a library's source root,
// classified by kind. internal/dirscan satisfies this interface against a
// real filesystem tree.
type SourceProvider interface {
	ListSources(sourceRoot string) ([]SourceFile, error)
}

// Build lowers libs (already ordered by the caller's resolver, but
// re-ordered here by intra-package uses) into one LibraryPlan per library,
// writing object/archive/executable paths under outRoot.
func Build(tc toolchain.Toolchain, libs []LibraryInput, sources SourceProvider, usageReqs map[string]UsageRequirement, outRoot string) ([]LibraryPlan, error) {
	ordered, err := orderLibraries(libs)
	if err != nil {
		return nil, err
	}

	plans := make(map[string]LibraryPlan, len(ordered))
	out := make([]LibraryPlan, 0, len(ordered))

	for _, lib := range ordered {
		plan, err := planLibrary(tc, lib, sources, usageReqs, plans, outRoot)
		if err != nil {
			return nil, errors.Wrapf(err, "planning library %q", lib.Name)
		}
		plans[lib.Name.String()] = plan
		out = append(out, plan)
	}
	return out, nil
}

func planLibrary(tc toolchain.Toolchain, lib LibraryInput, sources SourceProvider, usageReqs map[string]UsageRequirement, planned map[string]LibraryPlan, outRoot string) (LibraryPlan, error) {
	files, err := sources.ListSources(lib.SourceRoot)
	if err != nil {
		return LibraryPlan{}, err
	}

	var libSources, testSources, appSources, headers []SourceFile
	for _, f := range files {
		switch f.Kind {
		case SourceKindTest:
			testSources = append(testSources, f)
		case SourceKindApp:
			appSources = append(appSources, f)
		case SourceKindSource:
			libSources = append(libSources, f)
		default:
			headers = append(headers, f)
		}
	}

	objDir := filepath.Join(outRoot, lib.Name.String(), "obj")
	incDirs := baseIncludeDirs(lib.SourceRoot)
	externalInc := transitiveExternalIncludes(lib, planned, usageReqs)

	var compileFiles []CompilePlan
	for _, sf := range libSources {
		compileFiles = append(compileFiles, CompilePlan{
			SourcePath:          filepath.Join(lib.SourceRoot, sf.Path),
			OutPath:             filepath.Join(objDir, sf.Path+tc.ObjectSuffix),
			IncludeDirs:         incDirs,
			ExternalIncludeDirs: externalInc,
			Lang:                toolchain.LangAutomatic,
			EnableWarnings:      lib.Params.EnableWarnings,
		})
	}

	if lib.CrossesPackageBoundary {
		for _, sf := range headers {
			compileFiles = append(compileFiles, CompilePlan{
				SourcePath:          filepath.Join(lib.SourceRoot, sf.Path),
				OutPath:             filepath.Join(objDir, sf.Path+tc.ObjectSuffix),
				IncludeDirs:         incDirs,
				ExternalIncludeDirs: externalInc,
				Lang:                toolchain.LangAutomatic,
				EnableWarnings:      lib.Params.EnableWarnings,
				SyntaxOnly:          true,
			})
		}
	}

	var archive *ArchivePlan
	if len(compileFiles) > 0 {
		archive = &ArchivePlan{
			Name:         lib.Name.String(),
			OutPath:      filepath.Join(outRoot, lib.Name.String(), tc.ArchivePrefix+lib.Name.String()+tc.ArchiveSuffix),
			CompileFiles: compileFiles,
		}
	}

	depChain := archiveChain(lib, planned, usageReqs)
	links := depChain
	if archive != nil {
		links = append([]string{archive.OutPath}, depChain...)
	}

	var executables []LinkExePlan
	executables = append(executables, buildExecutables(tc, lib, appSources, false, incDirs, externalInc, links, objDir, outRoot)...)
	if lib.Params.BuildTests {
		executables = append(executables, buildExecutables(tc, lib, testSources, true, incDirs, externalInc, links, objDir, outRoot)...)
	}
	if !lib.Params.BuildApps {
		executables = filterApps(executables)
	}

	return LibraryPlan{
		Name:        lib.Name,
		SourceRoot:  lib.SourceRoot,
		Archive:     archive,
		Executables: executables,
		Uses:        lib.IntraUses,
		Links:       links,
	}, nil
}

func filterApps(execs []LinkExePlan) []LinkExePlan {
	out := execs[:0:0]
	for _, e := range execs {
		if e.IsApp {
			continue
		}
		out = append(out, e)
	}
	return out
}

func buildExecutables(tc toolchain.Toolchain, lib LibraryInput, srcs []SourceFile, isTest bool, incDirs, externalInc, links []string, objDir, outRoot string) []LinkExePlan {
	var out []LinkExePlan
	for _, sf := range srcs {
		base := strings.TrimSuffix(filepath.Base(sf.Path), filepath.Ext(sf.Path))
		subdir := "app"
		if isTest {
			subdir = "test"
		}
		main := CompilePlan{
			SourcePath:          filepath.Join(lib.SourceRoot, sf.Path),
			OutPath:             filepath.Join(objDir, sf.Path+tc.ObjectSuffix),
			IncludeDirs:         incDirs,
			ExternalIncludeDirs: externalInc,
			Lang:                toolchain.LangAutomatic,
			EnableWarnings:      lib.Params.EnableWarnings,
		}
		inputLibs := append([]string{}, links...)
		out = append(out, LinkExePlan{
			Name:        base,
			OutPath:     filepath.Join(outRoot, lib.Name.String(), subdir, base+tc.ExeSuffix),
			MainCompile: main,
			InputLibs:   inputLibs,
			IsTest:      isTest,
			IsApp:       !isTest,
		})
	}
	return out
}

func baseIncludeDirs(sourceRoot string) []string {
	var dirs []string
	dirs = append(dirs, filepath.Join(sourceRoot, "include"))
	dirs = append(dirs, filepath.Join(sourceRoot, "src"))
	return dirs
}

// transitiveExternalIncludes walks lib's intra-uses edges (already planned,
// since orderLibraries puts dependencies first) plus this library's own
// usage-requirements entry, collecting every external include directory
// reachable from it.
func transitiveExternalIncludes(lib LibraryInput, planned map[string]LibraryPlan, usageReqs map[string]UsageRequirement) []string {
	seen := map[string]bool{}
	var out []string
	add := func(dirs []string) {
		for _, d := range dirs {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
		}
	}

	var walk func(name pkgid.Name)
	visited := map[string]bool{}
	walk = func(name pkgid.Name) {
		if visited[name.String()] {
			return
		}
		visited[name.String()] = true
		if req, ok := usageReqs[name.String()]; ok {
			add(req.ExternalIncludeDirs)
		}
		if p, ok := planned[name.String()]; ok {
			for _, u := range p.Uses {
				walk(u)
			}
		}
	}

	if req, ok := usageReqs[lib.Name.String()]; ok {
		add(req.ExternalIncludeDirs)
	}
	for _, u := range lib.IntraUses {
		walk(u)
	}
	return out
}

// archiveChain collects the archives and link files of lib's dependencies,
// in reverse topological order over uses. Since libs are
// planned in dependency-first order, each entry's own LibraryPlan.Links
// already holds that library's full transitive chain, so this only needs
// to concatenate, not recurse.
func archiveChain(lib LibraryInput, planned map[string]LibraryPlan, usageReqs map[string]UsageRequirement) []string {
	seen := map[string]bool{}
	var chain []string
	add := func(links []string) {
		for _, l := range links {
			if !seen[l] {
				seen[l] = true
				chain = append(chain, l)
			}
		}
	}

	for _, u := range lib.IntraUses {
		if p, ok := planned[u.String()]; ok {
			add(p.Links)
		}
		if req, ok := usageReqs[u.String()]; ok {
			add(req.LinkFiles)
		}
	}
	if req, ok := usageReqs[lib.Name.String()]; ok {
		add(req.LinkFiles)
	}
	return chain
}
