// Package clierr classifies errors into a small taxonomy and maps each
// kind to an exit code and a styled top-level presentation.
package clierr

import (
	"fmt"
	"strings"
)

// Kind is an error taxonomy bucket, not a concrete Go type.
type Kind int

const (
	KindInternal Kind = iota
	KindUsage
	KindManifest
	KindResolve
	KindNetwork
	KindIO
	KindTool
	KindDatabase
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindUsage:
		return "usage error"
	case KindManifest:
		return "manifest error"
	case KindResolve:
		return "resolve error"
	case KindNetwork:
		return "network error"
	case KindIO:
		return "io error"
	case KindTool:
		return "tool error"
	case KindDatabase:
		return "database error"
	case KindCancelled:
		return "cancelled"
	default:
		return "error"
	}
}

// ExitCode returns the process exit code for this kind: 2 for bad CLI
// usage or user cancellation, 1 for anything else.
func (k Kind) ExitCode() int {
	switch k {
	case KindUsage, KindCancelled:
		return 2
	default:
		return 1
	}
}

// Error is a classified error carrying contextual breadcrumbs: which
// file, which package, which dependency, attached at each frame.
type Error struct {
	Kind Kind
	Err  error

	// ToolError fields: the command line, exit status and signal, and
	// full captured output.
	Command    []string
	ExitStatus int
	Signal     string
	Output     string

	// IOError fields: source and destination, where applicable.
	Source string
	Dest   string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	if e.Kind == KindTool {
		fmt.Fprintf(&b, " (command: %s, exit status: %d", strings.Join(e.Command, " "), e.ExitStatus)
		if e.Signal != "" {
			fmt.Fprintf(&b, ", signal: %s", e.Signal)
		}
		b.WriteString(")")
	}
	if e.Kind == KindIO && (e.Source != "" || e.Dest != "") {
		fmt.Fprintf(&b, " (%s -> %s)", e.Source, e.Dest)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Usagef builds a KindUsage error (exit code 2: bad CLI or missing argument).
func Usagef(format string, args ...interface{}) error {
	return &Error{Kind: KindUsage, Err: fmt.Errorf(format, args...)}
}

// Manifest wraps err as a KindManifest error (schema violation, invalid
// name/version/range, unknown key, cyclic uses).
func Manifest(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindManifest, Err: err}
}

// Resolve wraps err as a KindResolve error (no such package/library, version
// conflict).
func Resolve(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindResolve, Err: err}
}

// Network wraps err as a KindNetwork error (catalog refresh or download
// failure).
func Network(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindNetwork, Err: err}
}

// IO wraps err as a KindIO error, recording the source and/or destination
// path the filesystem operation was acting on.
func IO(err error, source, dest string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindIO, Err: err, Source: source, Dest: dest}
}

// Tool wraps err as a KindTool error: a compiler/archiver/linker that
// exited non-zero.
func Tool(err error, command []string, exitStatus int, signal, output string) error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:       KindTool,
		Err:        err,
		Command:    command,
		ExitStatus: exitStatus,
		Signal:     signal,
		Output:     output,
	}
}

// Database wraps err as a KindDatabase error (corrupted or incompatible
// schema).
func Database(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindDatabase, Err: err}
}

// Cancelled builds a KindCancelled error (exit code 2: user requested
// interrupt, unwind cleanly).
func Cancelled() error {
	return &Error{Kind: KindCancelled, Err: fmt.Errorf("operation cancelled")}
}

// Classify recovers the Kind of err if it (or something it wraps) is a
// *Error, defaulting to KindInternal (generic failure, exit code 1) for any
// plain error.
func Classify(err error) Kind {
	for e := err; e != nil; {
		if ce, ok := e.(*Error); ok {
			return ce.Kind
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return KindInternal
}

// ExitCode maps err to its process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return Classify(err).ExitCode()
}
