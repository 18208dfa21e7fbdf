package toolchain

import "strings"

// builtinBase returns the unprefixed toolchain for one of the names this
// module knows how to synthesize without a toolchain file: "gcc", a
// versioned "gcc-NN", "clang", and "msvc".
func builtinBase(key string) (Toolchain, bool) {
	switch {
	case key == "clang":
		return clangToolchain(""), true
	case strings.HasPrefix(key, "clang-"):
		return clangToolchain(strings.TrimPrefix(key, "clang-")), true
	case key == "gcc":
		return gccToolchain(""), true
	case strings.HasPrefix(key, "gcc-"):
		return gccToolchain(strings.TrimPrefix(key, "gcc-")), true
	case key == "msvc":
		return msvcToolchain(), true
	default:
		return Toolchain{}, false
	}
}

func gccToolchain(versionSuffix string) Toolchain {
	cc := "gcc"
	cxx := "g++"
	if versionSuffix != "" {
		cc = "gcc-" + versionSuffix
		cxx = "g++-" + versionSuffix
	}
	return Toolchain{
		CCompile:              []string{cc, "-c", "[flags]", "[in]", "-o", "[out]"},
		CxxCompile:            []string{cxx, "-c", "[flags]", "[in]", "-o", "[out]"},
		IncludeTemplate:       []string{"-I[value]"},
		ExternIncludeTemplate: []string{"-isystem", "[value]"},
		DefineTemplate:        []string{"-D[value]"},
		LinkArchive:           []string{"ar", "rcs", "[out]", "[in]"},
		LinkExe:               []string{cxx, "[in]", "-o", "[out]"},
		WarningFlags:          []string{"-Wall", "-Wextra"},
		TTYFlags:              []string{"-fdiagnostics-color=always"},
		ArchivePrefix:         "lib",
		ArchiveSuffix:         ".a",
		ObjectSuffix:          ".o",
		DepsMode:              DepsGnuMakefile,
	}
}

func clangToolchain(versionSuffix string) Toolchain {
	cc := "clang"
	cxx := "clang++"
	if versionSuffix != "" {
		cc = "clang-" + versionSuffix
		cxx = "clang++-" + versionSuffix
	}
	tc := gccToolchain("")
	tc.CCompile = []string{cc, "-c", "[flags]", "[in]", "-o", "[out]"}
	tc.CxxCompile = []string{cxx, "-c", "[flags]", "[in]", "-o", "[out]"}
	tc.LinkExe = []string{cxx, "[in]", "-o", "[out]"}
	tc.TTYFlags = []string{"-fcolor-diagnostics"}
	return tc
}

func msvcToolchain() Toolchain {
	return Toolchain{
		CCompile:              []string{"cl.exe", "/nologo", "/c", "[flags]", "[in]", "/Fo[out]"},
		CxxCompile:            []string{"cl.exe", "/nologo", "/EHsc", "/c", "[flags]", "[in]", "/Fo[out]"},
		IncludeTemplate:       []string{"/I[value]"},
		ExternIncludeTemplate: []string{"/external:I", "[value]"},
		DefineTemplate:        []string{"/D[value]"},
		LinkArchive:           []string{"lib.exe", "/nologo", "[in]", "/OUT:[out]"},
		LinkExe:               []string{"link.exe", "/nologo", "[in]", "/OUT:[out]"},
		WarningFlags:          []string{"/W4"},
		TTYFlags:              nil,
		ArchiveSuffix:         ".lib",
		ObjectSuffix:          ".obj",
		ExeSuffix:             ".exe",
		DepsMode:              DepsMsvcShowIncludes,
	}
}

// knownPrefixes are the compound-identifier prefixes this module recognizes
// ahead of a base toolchain name, e.g. "debug:gcc", "ccache:gcc-12",
// "c++20:clang". Each one only adjusts flags; none changes which base
// toolchain is resolved.
var knownPrefixes = []string{"debug", "ccache", "c++20", "c++17", "c++14"}

// GetBuiltin resolves a built-in toolchain identifier such as "gcc",
// "gcc-12", "clang", "msvc", or a colon-prefixed compound form like
// "debug:gcc" or "ccache:gcc-12", stripping recognized prefixes left to
// right and adjusting the resulting toolchain accordingly.
func GetBuiltin(key string) (Toolchain, bool) {
	rest := key
	var prefixes []string
	for {
		idx := strings.IndexByte(rest, ':')
		if idx < 0 {
			break
		}
		candidate := rest[:idx]
		known := false
		for _, p := range knownPrefixes {
			if p == candidate {
				known = true
				break
			}
		}
		if !known {
			break
		}
		prefixes = append(prefixes, candidate)
		rest = rest[idx+1:]
	}

	tc, ok := builtinBase(rest)
	if !ok {
		return Toolchain{}, false
	}
	for _, p := range prefixes {
		tc = applyPrefix(tc, p)
	}
	return tc, true
}

func applyPrefix(tc Toolchain, prefix string) Toolchain {
	switch prefix {
	case "debug":
		tc.CCompile = insertBeforeFlags(tc.CCompile, "-g")
		tc.CxxCompile = insertBeforeFlags(tc.CxxCompile, "-g")
	case "ccache":
		tc.CCompile = append([]string{"ccache"}, tc.CCompile...)
		tc.CxxCompile = append([]string{"ccache"}, tc.CxxCompile...)
	case "c++20", "c++17", "c++14":
		tc.CxxCompile = insertBeforeFlags(tc.CxxCompile, "-std="+prefix)
	}
	return tc
}

// insertBeforeFlags splices extra into template immediately ahead of the
// "[flags]" placeholder, so it lands among the other compiler flags rather
// than after "[in]"/"[out]".
func insertBeforeFlags(template []string, extra string) []string {
	out := make([]string, 0, len(template)+1)
	inserted := false
	for _, t := range template {
		if !inserted && t == "[flags]" {
			out = append(out, extra)
			inserted = true
		}
		out = append(out, t)
	}
	if !inserted {
		out = append(out, extra)
	}
	return out
}

// GetDefault returns the toolchain used when no explicit toolchain is
// configured: plain "gcc" on this platform's default build.
func GetDefault() Toolchain {
	tc, _ := builtinBase("gcc")
	return tc
}
