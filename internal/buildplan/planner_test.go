package buildplan

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/bptpkg/bpt/internal/pkgid"
	"github.com/bptpkg/bpt/internal/toolchain"
)

type fakeSourceProvider struct {
	files map[string][]SourceFile
}

func (f fakeSourceProvider) ListSources(root string) ([]SourceFile, error) {
	return f.files[root], nil
}

func TestBuildSimpleLibraryWithArchive(t *testing.T) {
	tc, _ := toolchain.GetBuiltin("gcc")
	libs := []LibraryInput{
		{
			Name:       pkgid.MustParse("widgets"),
			SourceRoot: "/proj/libs/widgets",
			Params:     LibraryParams{EnableWarnings: true},
		},
	}
	provider := fakeSourceProvider{files: map[string][]SourceFile{
		"/proj/libs/widgets": {
			{Path: "widget.cpp", Kind: SourceKindSource},
			{Path: "widget.hpp", Kind: SourceKindHeader},
		},
	}}

	plans, err := Build(tc, libs, provider, nil, "/proj/_build")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(plans) != 1 {
		t.Fatalf("expected 1 plan, got %d", len(plans))
	}
	p := plans[0]
	if p.Archive == nil {
		t.Fatal("expected an archive plan for a library with a source file")
	}
	if len(p.Archive.CompileFiles) != 1 {
		t.Fatalf("expected 1 compile file (header should be skipped, no cross-package deps), got %d", len(p.Archive.CompileFiles))
	}
	if !strings.HasSuffix(p.Archive.OutPath, "libwidgets.a") {
		t.Fatalf("unexpected archive path: %q", p.Archive.OutPath)
	}
}

func TestBuildHeaderOnlyLibraryProducesNoArchive(t *testing.T) {
	tc, _ := toolchain.GetBuiltin("gcc")
	libs := []LibraryInput{
		{Name: pkgid.MustParse("headeronly"), SourceRoot: "/proj/libs/headeronly"},
	}
	provider := fakeSourceProvider{files: map[string][]SourceFile{
		"/proj/libs/headeronly": {{Path: "only.hpp", Kind: SourceKindHeader}},
	}}

	plans, err := Build(tc, libs, provider, nil, "/proj/_build")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if plans[0].Archive != nil {
		t.Fatal("expected no archive for a header-only library with no cross-package deps")
	}
}

func TestBuildHeaderSyntaxCheckWhenCrossingPackageBoundary(t *testing.T) {
	tc, _ := toolchain.GetBuiltin("gcc")
	libs := []LibraryInput{
		{
			Name:                   pkgid.MustParse("uses-external"),
			SourceRoot:             "/proj/libs/uses-external",
			CrossesPackageBoundary: true,
		},
	}
	provider := fakeSourceProvider{files: map[string][]SourceFile{
		"/proj/libs/uses-external": {{Path: "api.hpp", Kind: SourceKindHeader}},
	}}

	plans, err := Build(tc, libs, provider, nil, "/proj/_build")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if plans[0].Archive == nil || len(plans[0].Archive.CompileFiles) != 1 {
		t.Fatal("expected a syntax-only compile plan for the header")
	}
	if !plans[0].Archive.CompileFiles[0].SyntaxOnly {
		t.Fatal("expected the header compile plan to be syntax-only")
	}
}

func TestBuildTestExecutableLinksOwnArchive(t *testing.T) {
	tc, _ := toolchain.GetBuiltin("gcc")
	libs := []LibraryInput{
		{
			Name:       pkgid.MustParse("widgets"),
			SourceRoot: "/proj/libs/widgets",
			Params:     LibraryParams{BuildTests: true},
		},
	}
	provider := fakeSourceProvider{files: map[string][]SourceFile{
		"/proj/libs/widgets": {
			{Path: "widget.cpp", Kind: SourceKindSource},
			{Path: "widget.test.cpp", Kind: SourceKindTest},
		},
	}}

	plans, err := Build(tc, libs, provider, nil, "/proj/_build")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(plans[0].Executables) != 1 {
		t.Fatalf("expected 1 test executable, got %d", len(plans[0].Executables))
	}
	exe := plans[0].Executables[0]
	if !exe.IsTest {
		t.Fatal("expected the executable to be flagged as a test")
	}
	if len(exe.InputLibs) != 1 || exe.InputLibs[0] != plans[0].Archive.OutPath {
		t.Fatalf("expected the test to link its own archive, got %+v", exe.InputLibs)
	}
}

func TestOrderLibrariesDetectsCycles(t *testing.T) {
	a := pkgid.MustParse("a")
	b := pkgid.MustParse("b")
	libs := []LibraryInput{
		{Name: a, SourceRoot: "/a", IntraUses: []pkgid.Name{b}},
		{Name: b, SourceRoot: "/b", IntraUses: []pkgid.Name{a}},
	}
	_, err := orderLibraries(libs)
	if err == nil {
		t.Fatal("expected a cycle error")
	}
}

func TestBuildChainsDependencyArchivesInReverseTopoOrder(t *testing.T) {
	tc, _ := toolchain.GetBuiltin("gcc")
	base := pkgid.MustParse("base")
	mid := pkgid.MustParse("mid")
	top := pkgid.MustParse("top")
	libs := []LibraryInput{
		{Name: top, SourceRoot: "/proj/top", IntraUses: []pkgid.Name{mid}},
		{Name: mid, SourceRoot: "/proj/mid", IntraUses: []pkgid.Name{base}},
		{Name: base, SourceRoot: "/proj/base"},
	}
	provider := fakeSourceProvider{files: map[string][]SourceFile{
		"/proj/top":  {{Path: "top.cpp", Kind: SourceKindSource}},
		"/proj/mid":  {{Path: "mid.cpp", Kind: SourceKindSource}},
		"/proj/base": {{Path: "base.cpp", Kind: SourceKindSource}},
	}}

	plans, err := Build(tc, libs, provider, nil, "/proj/_build")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	byName := map[string]LibraryPlan{}
	for _, p := range plans {
		byName[p.Name.String()] = p
	}
	topPlan := byName["top"]
	if len(topPlan.Links) != 3 {
		t.Fatalf("expected top's own archive plus base's and mid's, got %+v", topPlan.Links)
	}
	if !strings.Contains(topPlan.Links[0], filepath.Join("top", "libtop.a")) {
		t.Fatalf("expected top's own archive first in its link chain, got %+v", topPlan.Links)
	}
	if !strings.Contains(topPlan.Links[1], filepath.Join("mid", "libmid.a")) ||
		!strings.Contains(topPlan.Links[2], filepath.Join("base", "libbase.a")) {
		t.Fatalf("expected mid's archive before base's (reverse topological order), got %+v", topPlan.Links)
	}
}
