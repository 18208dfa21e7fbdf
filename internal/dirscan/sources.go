package dirscan

import (
	"path/filepath"
	"strings"

	"github.com/bptpkg/bpt/internal/buildplan"
)

var headerExts = map[string]bool{
	".h": true, ".hh": true, ".hpp": true, ".hxx": true,
	".h++": true, ".inl": true,
}

var sourceExts = map[string]bool{
	".c": true, ".cc": true, ".cpp": true, ".cxx": true, ".c++": true,
}

// classify infers a source file's kind from its extension and stem suffix,
// mirroring original_source/src/dds/source.cpp's infer_source_kind: a
// ".test" stem suffix makes it a test, a ".main" suffix makes it an app,
// anything else with a recognized source extension is a plain source, and a
// recognized header extension is a header. Files matching neither
// extension set are not source files at all, reported via ok=false.
func classify(relpath string) (buildplan.SourceKind, bool) {
	ext := strings.ToLower(filepath.Ext(relpath))
	if headerExts[ext] {
		return buildplan.SourceKindHeader, true
	}
	if !sourceExts[ext] {
		return 0, false
	}
	stem := strings.TrimSuffix(filepath.Base(relpath), filepath.Ext(relpath))
	switch {
	case strings.HasSuffix(stem, ".test"):
		return buildplan.SourceKindTest, true
	case strings.HasSuffix(stem, ".main"):
		return buildplan.SourceKindApp, true
	default:
		return buildplan.SourceKindSource, true
	}
}

// Provider adapts a Collector into a buildplan.SourceProvider, classifying
// the include/ and src/ subtrees of a library's source root the way
// original_source/src/dds/source.cpp's collect_pf_sources does: headers
// found under include/ are kept, anything else under include/ is dropped
// (with a caller left to log it if they care), and every file under src/
// with a recognized source or header extension is kept under the kind
// classify gives it; other entries under src/ are skipped.
type Provider struct {
	Collector *Collector
}

// ListSources implements buildplan.SourceProvider.
func (p Provider) ListSources(sourceRoot string) ([]buildplan.SourceFile, error) {
	var out []buildplan.SourceFile

	incDir := filepath.Join(sourceRoot, "include")
	if rels, err := p.Collector.Collect(incDir); err == nil {
		for _, rel := range rels {
			kind, ok := classify(rel)
			if !ok || kind != buildplan.SourceKindHeader {
				continue
			}
			out = append(out, buildplan.SourceFile{
				Path: filepath.Join("include", rel),
				Kind: buildplan.SourceKindHeader,
			})
		}
	}

	srcDir := filepath.Join(sourceRoot, "src")
	if rels, err := p.Collector.Collect(srcDir); err == nil {
		for _, rel := range rels {
			kind, ok := classify(rel)
			if !ok {
				continue
			}
			out = append(out, buildplan.SourceFile{
				Path: filepath.Join("src", rel),
				Kind: kind,
			})
		}
	}

	return out, nil
}
