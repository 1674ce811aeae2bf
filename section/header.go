package section

import (
	"bytes"
	"fmt"

	"github.com/objfile/zsect/endian"
	"github.com/objfile/zsect/errs"
	"github.com/objfile/zsect/format"
)

// HeaderInfo carries the fields every compressed-section header encodes,
// regardless of layout: which codec produced the payload, the size the
// payload inflates to, and the alignment of the uncompressed data.
type HeaderInfo struct {
	Type             format.CompressionType
	UncompressedSize uint64
	AlignmentPower   uint32
}

// HeaderFormat is implemented by object-file formats that define their own
// embedded compression header layout. The compression core treats the
// layout as opaque; it only needs the round trip plus HeaderInfo
// extraction.
type HeaderFormat interface {
	// HeaderSize returns the embedded header length in bytes for sec, or 0
	// when the format has no embedded header and the legacy encoding
	// applies. sec may be nil to ask about the target (output) format.
	// The result must not exceed format.MaxHeaderSize.
	HeaderSize(sec *Section) int

	// Encode writes the header described by info into buf, which holds at
	// least HeaderSize bytes.
	Encode(buf []byte, info HeaderInfo) error

	// Decode parses the header in buf. A failure means the bytes are not a
	// valid header of this format.
	Decode(buf []byte, sec *Section) (HeaderInfo, error)
}

// The legacy header is always big-endian, whatever the object file's own
// data encoding.
var legacyOrder = endian.GetBigEndianEngine()

// HasLegacyMagic reports whether buf opens with the legacy "ZLIB" tag.
func HasLegacyMagic(buf []byte) bool {
	return bytes.HasPrefix(buf, []byte(format.LegacyMagic))
}

// EncodeLegacyHeader writes the 12-byte legacy header: the "ZLIB" tag
// followed by the uncompressed size as a big-endian u64.
func EncodeLegacyHeader(buf []byte, uncompressedSize uint64) error {
	if len(buf) < format.LegacyHeaderSize {
		return fmt.Errorf("legacy header needs %d bytes, buffer holds %d: %w",
			format.LegacyHeaderSize, len(buf), errs.ErrInvalidHeaderSize)
	}

	copy(buf, format.LegacyMagic)
	legacyOrder.PutUint64(buf[4:format.LegacyHeaderSize], uncompressedSize)

	return nil
}

// ParseLegacyHeader reads the uncompressed size out of a 12-byte legacy
// header. The alignment power of a legacy section is always 0; legacy
// headers have no field for it.
func ParseLegacyHeader(buf []byte) (uint64, error) {
	if len(buf) < format.LegacyHeaderSize {
		return 0, fmt.Errorf("legacy header needs %d bytes, got %d: %w",
			format.LegacyHeaderSize, len(buf), errs.ErrInvalidHeaderSize)
	}
	if !HasLegacyMagic(buf) {
		return 0, fmt.Errorf("missing %q tag: %w", format.LegacyMagic, errs.ErrWrongFormat)
	}

	return legacyOrder.Uint64(buf[4:format.LegacyHeaderSize]), nil
}
