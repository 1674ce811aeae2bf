// Package objfile orchestrates the compression lifecycle of object-file
// sections over a file handle's collaborators: backing storage, a header
// format, and an allocator.
//
// The two entry points used by a surrounding object-file library are
// GetFullContents (the read path: materialized bytes for any lifecycle
// state, decompressing on demand) and CompressSection (the write path: the
// commit decision between compressed and raw storage, in either header
// encoding). InitDecompressStatus records the lazy decompression promise,
// CacheContents turns a one-off decompression into a cheap repeat read, and
// DetectCompression classifies stored bytes without disturbing section
// state.
package objfile
