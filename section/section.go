package section

import (
	"fmt"

	"github.com/objfile/zsect/errs"
	"github.com/objfile/zsect/format"
)

// Status identifies a section's position in the compression lifecycle.
type Status uint8

const (
	// StatusNone is the initial status of any section as opened: contents
	// live on backing storage in whatever form the file stores them.
	StatusNone Status = iota

	// StatusDecompressSized records a decompression promise: the
	// compressed on-disk size has been stashed, the section's size already
	// reflects the decompressed size, but no bytes have been inflated yet.
	StatusDecompressSized

	// StatusDone means the section owns materialized contents. It is
	// terminal for the life of the handle.
	StatusDone
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "None"
	case StatusDecompressSized:
		return "DecompressSized"
	case StatusDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// Flag is a packed field of per-section flags.
type Flag uint8

const (
	// FlagLinkerCreated marks sections synthesized by a linker; such
	// sections can legitimately be larger than the backing file (stub
	// holders), so the truncation guard skips them.
	FlagLinkerCreated Flag = 1 << iota

	// FlagHasContents marks sections with stored bytes on disk. Sections
	// without it occupy no file space and are also exempt from the
	// truncation guard.
	FlagHasContents

	// FlagInMemory marks sections whose contents need not be re-read from
	// backing storage.
	FlagInMemory

	// FlagCompressed marks sections whose stored bytes open with an
	// embedded compression header, the analog of the object format's
	// compressed-section flag. Sections without it are probed with the
	// legacy encoding even under an embedded-header format.
	FlagCompressed
)

// state is the tagged lifecycle variant. Each variant carries only the
// fields that are valid while it is current, so there is no status flag to
// cross-check against half-meaningful size fields.
type state interface {
	status() Status
}

type stateNone struct{}

type stateDecompressSized struct {
	compressedSize uint64
	payload        format.CompressionType
}

type stateDone struct {
	contents []byte
}

func (stateNone) status() Status            { return StatusNone }
func (stateDecompressSized) status() Status { return StatusDecompressSized }
func (stateDone) status() Status            { return StatusDone }

// Section is a named, sized byte range within an object file that can be
// independently stored compressed or raw. The object-file handle owns the
// section; the compression core advances its lifecycle.
type Section struct {
	name     string
	offset   int64
	flags    Flag
	alignPow uint32
	size     uint64
	rawSize  uint64
	digest   uint64
	st       state
}

// New creates a section over the stored byte range [offset, offset+size)
// with the FlagHasContents flag set.
func New(name string, offset int64, size uint64) *Section {
	return &Section{
		name:   name,
		offset: offset,
		size:   size,
		flags:  FlagHasContents,
		st:     stateNone{},
	}
}

// Name returns the section name.
func (s *Section) Name() string { return s.name }

// Offset returns the file position of the section's stored bytes.
func (s *Section) Offset() int64 { return s.offset }

// Flags returns the section's flag field.
func (s *Section) Flags() Flag { return s.flags }

// SetFlags replaces the section's flag field.
func (s *Section) SetFlags(flags Flag) { s.flags = flags }

// InMemory reports whether the section's contents are resident and need not
// be re-read from backing storage.
func (s *Section) InMemory() bool { return s.flags&FlagInMemory != 0 }

// Size returns the section's current authoritative size. Its meaning
// depends on status: stored size while None, decompressed size while
// DecompressSized, final materialized size once Done.
func (s *Section) Size() uint64 { return s.size }

// SetSize replaces the section's authoritative size.
func (s *Section) SetSize(size uint64) { s.size = size }

// RawSize returns the size before any transformation was recorded; zero
// unless a pre-transform size is being tracked.
func (s *Section) RawSize() uint64 { return s.rawSize }

// SetRawSize records the pre-transform size.
func (s *Section) SetRawSize(size uint64) { s.rawSize = size }

// AlignmentPower returns the power-of-two alignment of the uncompressed
// data.
func (s *Section) AlignmentPower() uint32 { return s.alignPow }

// SetAlignmentPower sets the power-of-two alignment of the uncompressed
// data.
func (s *Section) SetAlignmentPower(pow uint32) { s.alignPow = pow }

// Status returns the section's lifecycle status.
func (s *Section) Status() Status { return s.st.status() }

// Contents returns the materialized contents and true when the section is
// Done; nil and false otherwise.
func (s *Section) Contents() ([]byte, bool) {
	if done, ok := s.st.(stateDone); ok {
		return done.contents, true
	}

	return nil, false
}

// CompressedSize returns the on-disk compressed size and true while the
// section is DecompressSized; zero and false otherwise.
func (s *Section) CompressedSize() (uint64, bool) {
	if sized, ok := s.st.(stateDecompressSized); ok {
		return sized.compressedSize, true
	}

	return 0, false
}

// PayloadCompression returns the codec recorded for the pending
// decompression and true while the section is DecompressSized.
func (s *Section) PayloadCompression() (format.CompressionType, bool) {
	if sized, ok := s.st.(stateDecompressSized); ok {
		return sized.payload, true
	}

	return 0, false
}

// Digest returns the xxHash64 digest recorded when contents were cached, or
// zero when none was recorded.
func (s *Section) Digest() uint64 { return s.digest }

// SetDigest records the digest of the section's cached contents.
func (s *Section) SetDigest(digest uint64) { s.digest = digest }

// BeginDecompress records the decompression promise: the current size
// becomes the stashed compressed size, uncompressedSize becomes the
// authoritative size, and the alignment of the uncompressed data is
// restored from the header.
//
// The section must be pristine: status None, no tracked raw size. A section
// mid-setup can never already hold materialized contents, so the
// materialized case is covered by the status check.
func (s *Section) BeginDecompress(uncompressedSize uint64, alignPow uint32, payload format.CompressionType) error {
	if s.rawSize != 0 || s.st.status() != StatusNone {
		return fmt.Errorf("section %s: decompression setup on a section that is not pristine: %w",
			s.name, errs.ErrInvalidOperation)
	}

	s.st = stateDecompressSized{compressedSize: s.size, payload: payload}
	s.size = uncompressedSize
	s.alignPow = alignPow

	return nil
}

// SetDone installs buf as the section's exclusively owned materialized
// contents, sets the authoritative size, and marks the section resident.
// Done is terminal; a later SetDone or Cache only replaces the buffer.
func (s *Section) SetDone(buf []byte, size uint64) {
	s.st = stateDone{contents: buf}
	s.size = size
	s.flags |= FlagInMemory
}

// Cache stashes buf so any following read of the section does not need to
// decompress again. A DecompressSized section becomes Done; the size, which
// already holds the decompressed size, is untouched.
func (s *Section) Cache(buf []byte) {
	s.st = stateDone{contents: buf}
	s.flags |= FlagInMemory
}
