// Package errs defines the sentinel errors shared across zsect packages.
//
// Every fallible operation in the library returns one of these sentinels,
// usually wrapped with call-site context via fmt.Errorf("...: %w", err), so
// callers can classify failures with errors.Is regardless of where in the
// pipeline they occurred.
package errs

import "errors"

var (
	// ErrInvalidOperation indicates a violated precondition, such as
	// committing contents to a section that already holds some, or setting
	// up decompression on a section with a pending transform.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrWrongFormat indicates header bytes that do not match any
	// recognized compressed encoding.
	ErrWrongFormat = errors.New("wrong format")

	// ErrBadValue indicates a recognized compressed section whose payload
	// turned out malformed: truncated streams, overlong streams, or output
	// that does not fill the declared uncompressed size.
	ErrBadValue = errors.New("bad value")

	// ErrFileTruncated indicates a section whose declared size exceeds the
	// backing file's actual size. The guard exists to stop a corrupt size
	// field from driving an unbounded allocation.
	ErrFileTruncated = errors.New("file truncated")

	// ErrNoMemory indicates a buffer allocation failure. It is surfaced
	// distinctly so callers can produce a size-aware diagnostic.
	ErrNoMemory = errors.New("out of memory")

	// ErrInvalidHeaderSize indicates a header window too small for the
	// encoding being read or written.
	ErrInvalidHeaderSize = errors.New("invalid header size")
)
