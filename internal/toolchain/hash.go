package toolchain

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash digests every argv template and affix that make up tc, so a
// build DB can compare a stored hash against the toolchain currently in use
// and force a recompile on mismatch.
func (tc Toolchain) ContentHash() string {
	h := sha256.New()
	writeStrings(h, tc.CCompile)
	writeStrings(h, tc.CxxCompile)
	writeStrings(h, tc.IncludeTemplate)
	writeStrings(h, tc.ExternIncludeTemplate)
	writeStrings(h, tc.DefineTemplate)
	writeStrings(h, tc.LinkArchive)
	writeStrings(h, tc.LinkExe)
	writeStrings(h, tc.WarningFlags)
	writeStrings(h, tc.TTYFlags)
	writeStrings(h, []string{
		tc.ArchivePrefix, tc.ArchiveSuffix,
		tc.ObjectPrefix, tc.ObjectSuffix,
		tc.ExePrefix, tc.ExeSuffix,
	})
	writeStrings(h, []string{depsModeString(tc.DepsMode)})
	return hex.EncodeToString(h.Sum(nil))
}

func writeStrings(h interface{ Write([]byte) (int, error) }, parts []string) {
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	h.Write([]byte{0xff})
}

func depsModeString(m DepsMode) string {
	switch m {
	case DepsGnuMakefile:
		return "gnu-makefile"
	case DepsMsvcShowIncludes:
		return "msvc-show-includes"
	default:
		return "none"
	}
}
