// Package toolchain synthesizes compiler/archiver/linker command lines
// from a small, declarative toolchain description.
package toolchain

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Language is the source language a compile command targets.
type Language int

const (
	LangAutomatic Language = iota
	LangC
	LangCxx
)

// DepsMode selects how a compile command records header dependencies.
type DepsMode int

const (
	DepsNone DepsMode = iota
	DepsGnuMakefile
	DepsMsvcShowIncludes
)

// Knobs are environment-derived settings that tweak command synthesis
// without being part of the toolchain's own identity/hash.
type Knobs struct {
	IsTTY       bool
	CacheBuster string // non-empty selects the cache-buster #define
}

// Toolchain is a fully-resolved description of one compiler/archiver/linker
// trio: argv templates plus the affixes this platform/compiler uses for
// object, archive, and executable file names.
type Toolchain struct {
	CCompile              []string
	CxxCompile            []string
	IncludeTemplate       []string
	ExternIncludeTemplate []string
	DefineTemplate        []string
	LinkArchive           []string
	LinkExe               []string
	WarningFlags          []string
	TTYFlags              []string

	ArchivePrefix, ArchiveSuffix string
	ObjectPrefix, ObjectSuffix   string
	ExePrefix, ExeSuffix         string

	DepsMode DepsMode
}

// CompileFileSpec describes one source file to compile.
type CompileFileSpec struct {
	SourcePath          string
	OutPath             string
	Definitions         []string
	IncludeDirs         []string
	ExternalIncludeDirs []string
	Lang                Language
	EnableWarnings      bool
	SyntaxOnly          bool
}

// CompileCommandInfo is the result of synthesizing a compile command: the
// argv to run, and, for GNU-style dependency tracking, the depfile it will
// produce.
type CompileCommandInfo struct {
	Argv        []string
	DepfilePath string // empty when DepsMode != DepsGnuMakefile
}

// ArchiveSpec describes a static-archive link step.
type ArchiveSpec struct {
	InputFiles []string
	OutPath    string
}

// LinkExeSpec describes an executable link step.
type LinkExeSpec struct {
	Inputs []string
	Output string
}

func languageFor(spec CompileFileSpec) Language {
	if spec.Lang != LangAutomatic {
		return spec.Lang
	}
	switch strings.ToLower(filepath.Ext(spec.SourcePath)) {
	case ".c":
		return LangC
	default:
		return LangCxx
	}
}

// shortestPath returns whichever of the absolute path or its
// cwd-relative form is shorter to type, the rule used throughout
// argument rendering.
func shortestPath(p, cwd string) string {
	abs := p
	if !filepath.IsAbs(abs) {
		if a, err := filepath.Abs(filepath.Join(cwd, p)); err == nil {
			abs = a
		}
	}
	rel, err := filepath.Rel(cwd, abs)
	if err != nil {
		return abs
	}
	if len(rel) < len(abs) {
		return rel
	}
	return abs
}

func (tc Toolchain) definitionArgs(def string) []string {
	return substituteEach(tc.DefineTemplate, def)
}

func (tc Toolchain) includeArgs(dir string) []string {
	return substituteEach(tc.IncludeTemplate, dir)
}

func (tc Toolchain) externalIncludeArgs(dir string) []string {
	return substituteEach(tc.ExternIncludeTemplate, dir)
}

// substituteEach replaces "[value]" with value in every element of
// template, the same placeholder convention create_compile_command uses
// for [flags]/[in]/[out].
func substituteEach(template []string, value string) []string {
	out := make([]string, len(template))
	for i, t := range template {
		out[i] = strings.ReplaceAll(t, "[value]", value)
	}
	return out
}

// CreateCompileCommand synthesizes the argv for compiling one source
// file: choose the language, build the base flags, append
// dependency-mode flags, then substitute the chosen language
// template's [flags]/[in]/[out] placeholders. For a syntax-only check of
// a header, it first writes a ".syncheck" shim that #includes the header
// and compiles the shim instead, since compilers infer source-type from
// the extension they're given and a bare header is usually the wrong one.
func (tc Toolchain) CreateCompileCommand(spec CompileFileSpec, cwd string, knobs Knobs) (CompileCommandInfo, error) {
	lang := languageFor(spec)

	var flags []string
	if spec.EnableWarnings {
		flags = append(flags, tc.WarningFlags...)
	}
	if knobs.IsTTY {
		flags = append(flags, tc.TTYFlags...)
	}
	if knobs.CacheBuster != "" {
		flags = append(flags, tc.definitionArgs("DDS_CACHE_BUSTER="+knobs.CacheBuster)...)
	}

	sourcePath := spec.SourcePath
	if spec.SyntaxOnly {
		flags = append(flags, "-fsyntax-only")

		shimPath := filepath.Join(filepath.Dir(spec.OutPath), filepath.Base(spec.SourcePath)+".syncheck")
		if err := os.MkdirAll(filepath.Dir(shimPath), 0o755); err != nil {
			return CompileCommandInfo{}, errors.Wrapf(err, "creating syntax-check shim directory for %q", spec.SourcePath)
		}
		absSource := spec.SourcePath
		if !filepath.IsAbs(absSource) {
			absSource = filepath.Join(cwd, absSource)
		}
		if a, err := filepath.Abs(absSource); err == nil {
			absSource = a
		}
		shimContent := fmt.Sprintf("#include \"%s\"\n", absSource)
		if err := os.WriteFile(shimPath, []byte(shimContent), 0o644); err != nil {
			return CompileCommandInfo{}, errors.Wrapf(err, "writing syntax-check shim %q", shimPath)
		}
		sourcePath = shimPath
	}

	for _, inc := range spec.IncludeDirs {
		flags = append(flags, tc.includeArgs(shortestPath(inc, cwd))...)
	}
	for _, inc := range spec.ExternalIncludeDirs {
		flags = append(flags, tc.externalIncludeArgs(shortestPath(inc, cwd))...)
	}
	for _, def := range spec.Definitions {
		flags = append(flags, tc.definitionArgs(def)...)
	}

	var depfile string
	switch tc.DepsMode {
	case DepsGnuMakefile:
		depfile = spec.OutPath + ".d"
		flags = append(flags, "-MD", "-MF", depfile, "-MQ", spec.OutPath)
	case DepsMsvcShowIncludes:
		flags = append(flags, "/showIncludes")
	}

	template := tc.CxxCompile
	if lang == LangC {
		template = tc.CCompile
	}

	argv := renderTemplate(template, strings.Join(flags, " "), shortestPath(sourcePath, cwd), spec.OutPath)
	return CompileCommandInfo{Argv: argv, DepfilePath: depfile}, nil
}

// CreateArchiveCommand synthesizes the argv for archiving a set of object
// files into a static library.
func (tc Toolchain) CreateArchiveCommand(spec ArchiveSpec, cwd string, knobs Knobs) []string {
	inputs := make([]string, len(spec.InputFiles))
	for i, f := range spec.InputFiles {
		inputs[i] = shortestPath(f, cwd)
	}
	return renderTemplate(tc.LinkArchive, "", strings.Join(inputs, " "), spec.OutPath)
}

// CreateLinkExecutableCommand synthesizes the argv for linking an
// executable from a set of object/archive files.
func (tc Toolchain) CreateLinkExecutableCommand(spec LinkExeSpec, cwd string, knobs Knobs) []string {
	inputs := make([]string, len(spec.Inputs))
	for i, f := range spec.Inputs {
		inputs[i] = shortestPath(f, cwd)
	}
	return renderTemplate(tc.LinkExe, "", strings.Join(inputs, " "), spec.Output)
}

// renderTemplate substitutes "[flags]", "[in]", and "[out]" placeholders in
// template, splitting any template element that contains embedded spaces
// after substitution back into separate argv entries (mirroring how the
// original template strings mix literal flags with placeholder tokens).
func renderTemplate(template []string, flags, in, out string) []string {
	var argv []string
	for _, t := range template {
		s := t
		s = strings.ReplaceAll(s, "[flags]", flags)
		s = strings.ReplaceAll(s, "[in]", in)
		s = strings.ReplaceAll(s, "[out]", out)
		if s == "" {
			continue
		}
		argv = append(argv, strings.Fields(s)...)
	}
	return argv
}
