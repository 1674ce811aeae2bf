// Package zsect implements lazy, reversible compression of object-file
// section contents (intended for debug sections).
//
// A section's bytes may live on disk compressed or raw; zsect decides which
// per section, materializes decompressed bytes transparently on first full
// read, and transparently (re)compresses bytes when a section is finalized
// for output. Two incompatible on-disk compressed-header encodings are
// supported: embedded headers owned by the object-file format (ELF Chdr
// implementations are included) and the legacy 12-byte "ZLIB" + big-endian
// size convention.
//
// # Basic Usage
//
// Reading a compressed section lazily:
//
//	import "github.com/objfile/zsect"
//
//	f, _ := zsect.Open(bytes.NewReader(fileBytes))
//	sec := zsect.NewSection(".zdebug_info", offset, storedSize)
//
//	// Record the promise: sizes swap, nothing is inflated yet.
//	_ = f.InitDecompressStatus(sec)
//
//	// First full read materializes the plaintext.
//	contents, _ := f.GetFullContents(sec, nil)
//
//	// Stash it so later reads skip decompression.
//	f.CacheContents(sec, contents)
//
// Committing a section for output:
//
//	w, _ := zsect.Open(nil, objfile.WithWriteMode())
//	finalSize, _ := w.CompressSection(sec, raw)
//
// # Package Structure
//
// This package provides convenient top-level wrappers around the objfile
// package. For fine-grained control over header formats, allocators, and
// codecs, use the objfile, section, and compress packages directly.
package zsect

import (
	"github.com/objfile/zsect/objfile"
	"github.com/objfile/zsect/section"
)

// Open creates a file handle over backend with the given options. See
// objfile.Open.
func Open(backend objfile.Backend, opts ...objfile.FileOption) (*objfile.File, error) {
	return objfile.Open(backend, opts...)
}

// NewSection creates a section over the stored byte range
// [offset, offset+size). See section.New.
func NewSection(name string, offset int64, size uint64) *section.Section {
	return section.New(name, offset, size)
}

// IsCompressed reports whether sec's stored bytes carry a recognized,
// decodable compression header recording a nonzero uncompressed size.
func IsCompressed(f *objfile.File, sec *section.Section) bool {
	return f.IsCompressed(sec)
}
