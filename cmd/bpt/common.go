package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"

	"github.com/bptpkg/bpt/internal/builddb"
	"github.com/bptpkg/bpt/internal/buildplan"
	"github.com/bptpkg/bpt/internal/catalog"
	"github.com/bptpkg/bpt/internal/clierr"
	"github.com/bptpkg/bpt/internal/crsmeta"
	"github.com/bptpkg/bpt/internal/manifest"
	"github.com/bptpkg/bpt/internal/pkgid"
	"github.com/bptpkg/bpt/internal/sdist"
	"github.com/bptpkg/bpt/internal/solve"
	"github.com/bptpkg/bpt/internal/toolchain"
)

func loadProjectManifest(gf *globalFlags) (manifest.Manifest, error) {
	path := filepath.Join(gf.projectDir, "bpt.yaml")
	m, err := manifest.LoadManifestFile(path)
	if err != nil {
		return manifest.Manifest{}, clierr.Manifest(errors.Wrapf(err, "loading %s", path))
	}
	return m, nil
}

func openCatalogDB(gf *globalFlags) (*catalog.DB, error) {
	if err := os.MkdirAll(filepath.Dir(gf.catalogPath), 0o755); err != nil {
		return nil, clierr.IO(err, "", gf.catalogPath)
	}
	db, err := catalog.Open(gf.catalogPath)
	if err != nil {
		return nil, clierr.Database(err)
	}

	cfgPath := filepath.Join(filepath.Dir(gf.catalogPath), "registry.toml")
	cfg, err := catalog.LoadRegistryConfig(cfgPath)
	if err != nil {
		db.Close()
		return nil, clierr.IO(err, "", cfgPath)
	}
	if err := db.SeedRemotes(cfg); err != nil {
		db.Close()
		return nil, clierr.Database(err)
	}
	return db, nil
}

func openLocalCache(gf *globalFlags) (*catalog.Cache, error) {
	c, err := catalog.NewCache(gf.cacheDir, nil)
	if err != nil {
		return nil, clierr.IO(err, "", gf.cacheDir)
	}
	return c, nil
}

func resolveToolchain(gf *globalFlags) (toolchain.Toolchain, error) {
	if gf.toolchain == "" {
		return toolchain.GetDefault(), nil
	}
	tc, ok := toolchain.GetBuiltin(gf.toolchain)
	if !ok {
		return toolchain.Toolchain{}, clierr.Usagef("unknown builtin toolchain %q (expected \"gcc\", \"clang\", or \"msvc\")", gf.toolchain)
	}
	return tc, nil
}

func resolvedJobs(gf *globalFlags) int {
	if gf.jobs > 0 {
		return gf.jobs
	}
	return runtime.NumCPU() + 2
}

// wantedRequirements converts a manifest's top-level depends list into the
// requirement set solve.Solve needs to start from.
func wantedRequirements(m manifest.Manifest) []solve.Requirement {
	out := make([]solve.Requirement, 0, len(m.Depends))
	for _, d := range m.Depends {
		out = append(out, solve.Requirement{Name: d.Name, Versions: d.Acceptable, Uses: d.Uses})
	}
	return out
}

// resolveDependencies runs the solver against db for m's declared
// dependencies, honoring cancel so an interrupt unwinds the
// in-progress search cleanly.
func resolveDependencies(db *catalog.DB, m manifest.Manifest, cancel <-chan struct{}) ([]pkgid.ID, error) {
	provider := solve.CatalogProvider{DB: db}
	pins, err := solve.Solve(provider, wantedRequirements(m), cancel)
	if err != nil {
		return nil, clierr.Resolve(err)
	}
	return pins, nil
}

// materializeDependency ensures id's sdist is present in the local cache,
// fetching its tarball from the remote recorded against it in the catalog
// if it is not already cached.
func materializeDependency(db *catalog.DB, cache *catalog.Cache, id pkgid.ID) (sdist.Sdist, error) {
	if cache.Has(id) {
		sd, err := cache.Get(id)
		if err != nil {
			return sdist.Sdist{}, clierr.IO(err, cache.Root, "")
		}
		return sd, nil
	}

	url, ok, err := db.RemoteURLOf(id)
	if err != nil {
		return sdist.Sdist{}, clierr.Database(err)
	}
	if !ok {
		return sdist.Sdist{}, clierr.Resolve(errors.Errorf("package %s has no recorded remote to fetch its sources from", id))
	}

	tarballURL := url + "/" + id.CacheDirName() + ".tar.gz"
	sd, err := cache.Import(id, fetchAndUnpack(tarballURL), false)
	if err != nil {
		return sdist.Sdist{}, clierr.Network(errors.Wrapf(err, "fetching %s", id))
	}
	return sd, nil
}

// fetchAndUnpack builds the tarGz callback catalog.Cache.Import expects:
// download url, then unpack it into dest via the same tar.gz layout
// sdist.Pack produces.
func fetchAndUnpack(url string) func(dest string) error {
	return func(dest string) error {
		resp, err := http.Get(url)
		if err != nil {
			return errors.Wrapf(err, "fetching %q", url)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return errors.Errorf("fetching %q: unexpected status %s", url, resp.Status)
		}
		return sdist.Unpack(resp.Body, dest)
	}
}

// flattenDependencyUsing collects every library name a set of dependency
// entries names as used, for folding a package's cross-package `uses`
// edges into the flat name space buildplan.Build reasons over.
func flattenDependencyUsing(deps []crsmeta.DependencyMeta) []pkgid.Name {
	var out []pkgid.Name
	for _, d := range deps {
		out = append(out, d.Using...)
	}
	return out
}

func flattenManifestDependencyUsing(deps []manifest.Dependency, libraryNamesOf func(pkgid.Name) []pkgid.Name) []pkgid.Name {
	var out []pkgid.Name
	for _, d := range deps {
		if d.Uses.IsImplicitAll() {
			out = append(out, libraryNamesOf(d.Name)...)
			continue
		}
		out = append(out, d.Uses.Names()...)
	}
	return out
}

// buildInputs assembles one flat LibraryInput list spanning the project's
// own libraries and every library of every resolved dependency package,
// so a single buildplan.Build call can reason about the whole dependency
// graph uniformly, planning the full uses-closure as one DAG; since
// every dependency is itself a source distribution built from scratch
// here, there is no separate "already built" usage-requirements
// side-channel to populate.
func buildInputs(m manifest.Manifest, projectDir string, pins []pkgid.ID, metaOf map[pkgid.ID]crsmeta.PackageMeta, sdistOf map[pkgid.ID]sdist.Sdist, libraryNamesOf func(pkgid.Name) []pkgid.Name, buildTests, buildApps, warnings bool) []buildplan.LibraryInput {
	var out []buildplan.LibraryInput

	for _, lib := range m.Libraries {
		crosses := len(lib.Dependencies) > 0 || len(lib.TestDependencies) > 0
		uses := append([]pkgid.Name{}, lib.IntraUses...)
		uses = append(uses, flattenManifestDependencyUsing(lib.Dependencies, libraryNamesOf)...)
		testUses := append([]pkgid.Name{}, lib.IntraTestUses...)
		testUses = append(testUses, flattenManifestDependencyUsing(lib.TestDependencies, libraryNamesOf)...)

		out = append(out, buildplan.LibraryInput{
			Name:                   lib.Name,
			SourceRoot:             filepath.Join(projectDir, lib.Path),
			IntraUses:              uses,
			IntraTestUses:          testUses,
			CrossesPackageBoundary: crosses,
			Params: buildplan.LibraryParams{
				BuildTests:     buildTests,
				BuildApps:      buildApps,
				EnableWarnings: warnings,
			},
		})
	}

	for _, id := range pins {
		meta := metaOf[id]
		sd := sdistOf[id]
		for _, lib := range meta.Libraries {
			crosses := len(lib.Dependencies) > 0 || len(lib.TestDependencies) > 0
			uses := append([]pkgid.Name{}, lib.Using...)
			uses = append(uses, flattenDependencyUsing(lib.Dependencies)...)

			out = append(out, buildplan.LibraryInput{
				Name:                   lib.Name,
				SourceRoot:             filepath.Join(sd.Path, lib.Path),
				IntraUses:              uses,
				IntraTestUses:          lib.TestUsing,
				CrossesPackageBoundary: crosses,
				Params: buildplan.LibraryParams{
					BuildTests:     false,
					BuildApps:      false,
					EnableWarnings: false,
				},
			})
		}
	}

	return out
}

func openBuildDB(gf *globalFlags) (*builddb.DB, error) {
	path := gf.resolvedBuildDBPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, clierr.IO(err, "", path)
	}
	db, err := builddb.Open(path)
	if err != nil {
		return nil, clierr.Database(err)
	}
	return db, nil
}

func cancelOnInterrupt() <-chan struct{} {
	// build/build-deps/install run synchronously to completion in this
	// CLI; a real interrupt is delivered to the process and unwinds via
	// the normal os/signal path, so the solver's cancel channel only
	// needs to exist, not be wired to a live signal source, for Solve's
	// "every call completes or makes no progress" guarantee.
	return nil
}

func fprintln(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, format+"\n", args...)
}

// notFoundError builds a "no such package" error carrying a "did you mean"
// hint against every name the catalog knows about.
func notFoundError(name pkgid.Name, known []pkgid.Name) error {
	names := make([]string, len(known))
	for i, n := range known {
		names[i] = n.String()
	}
	return errors.Errorf("no such package %q in catalog%s", name, clierr.Suggest(name.String(), names))
}
