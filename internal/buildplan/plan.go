// Package buildplan lowers a set of resolved libraries and their usage
// requirements into a DAG of compile/archive/link steps.
package buildplan

import (
	"github.com/bptpkg/bpt/internal/pkgid"
	"github.com/bptpkg/bpt/internal/toolchain"
)

// SourceKind classifies one source file within a library's src/ tree.
type SourceKind int

const (
	SourceKindSource SourceKind = iota
	SourceKindTest
	SourceKindApp
	SourceKindHeader
)

// SourceFile is one file discovered under a library's source root.
type SourceFile struct {
	Path string // relative to the library's source root
	Kind SourceKind
}

// CompilePlan is the intention to compile one source file to one object
// file.
type CompilePlan struct {
	SourcePath          string
	OutPath             string
	IncludeDirs         []string
	ExternalIncludeDirs []string
	Definitions         []string
	Lang                toolchain.Language
	EnableWarnings      bool
	SyntaxOnly          bool
}

// ArchivePlan is the intention to archive a library's compiled sources into
// a static library. Present only when a library has at least one non-test,
// non-app source file.
type ArchivePlan struct {
	Name         string
	OutPath      string
	CompileFiles []CompilePlan
}

// LinkExePlan is the intention to link one test or app executable.
type LinkExePlan struct {
	Name        string
	OutPath     string
	MainCompile CompilePlan
	InputLibs   []string
	IsTest      bool
	IsApp       bool
}

// LibraryPlan is the complete build plan for one library: its own archive
// (if any) and every test/app executable it produces.
type LibraryPlan struct {
	Name        pkgid.Name
	SourceRoot  string
	Archive     *ArchivePlan
	Executables []LinkExePlan
	Uses        []pkgid.Name
	Links       []string
}

// UsageRequirement is the external include directories and link inputs a
// `uses`-name contributes to any library that depends on it, keyed by name
// in the map the planner is given.
type UsageRequirement struct {
	ExternalIncludeDirs []string
	LinkFiles           []string
}

// LibraryParams are the per-library switches the planner input carries:
// whether to build tests, whether to build apps, and whether to enable
// compiler warnings.
type LibraryParams struct {
	BuildTests     bool
	BuildApps      bool
	EnableWarnings bool
}

// LibraryInput is one library to plan: its identity, its source root, its
// intra-package uses edges (sibling libraries in the same package), and
// whether any of its declared dependencies reach outside the owning
// package.
type LibraryInput struct {
	Name                   pkgid.Name
	SourceRoot             string
	IntraUses              []pkgid.Name
	IntraTestUses          []pkgid.Name
	CrossesPackageBoundary bool
	Params                 LibraryParams
}
