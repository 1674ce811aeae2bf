package objfile

import (
	"github.com/objfile/zsect/format"
	"github.com/objfile/zsect/section"
)

// Detection reports the outcome of probing a section's stored bytes for a
// compression header.
type Detection struct {
	// Compressed reports whether the bytes carry a recognized compression
	// header. It can be true while HeaderSize is the -1 sentinel; callers
	// deciding whether a section is usable must check both.
	Compressed bool

	// Style identifies which header encoding matched.
	Style format.HeaderStyle

	// HeaderSize is the header length in bytes (12 for legacy), or -1 when
	// the bytes were recognized as compressed but the embedded header did
	// not decode.
	HeaderSize int

	// UncompressedSize is the size recorded in the header, or the
	// section's nominal size when no header was read or decoded.
	UncompressedSize uint64

	// AlignmentPower is the alignment of the uncompressed data recorded in
	// the header; always 0 for legacy headers, which have no field for it.
	AlignmentPower uint32

	// Type is the codec that produced the payload; zlib for legacy
	// headers.
	Type format.CompressionType
}

// DetectCompression probes sec's stored bytes for a compression header.
//
// The probe is a side read of up to the maximum header window; the
// section's lifecycle state is never touched, so there is nothing to
// restore when the read fails — a failed read simply reports the section as
// not compressed.
func (f *File) DetectCompression(sec *section.Section) Detection {
	embeddedSize := f.headerSize(sec)
	headerSize := embeddedSize
	if headerSize == 0 {
		headerSize = format.LegacyHeaderSize
	}

	var window [format.MaxHeaderSize]byte
	if err := f.readStored(sec, window[:headerSize], 0, uint64(headerSize)); err != nil {
		return Detection{
			Style:            styleOf(embeddedSize),
			HeaderSize:       headerSize,
			UncompressedSize: sec.Size(),
		}
	}

	return f.classifyHeader(sec, window[:headerSize], embeddedSize)
}

// IsCompressed reports whether sec is compressed in the simple sense: a
// recognized, decodable header recording a nonzero uncompressed size.
func (f *File) IsCompressed(sec *section.Section) bool {
	det := f.DetectCompression(sec)

	return det.Compressed && det.HeaderSize >= 0 && det.UncompressedSize > 0
}

func styleOf(embeddedSize int) format.HeaderStyle {
	if embeddedSize == 0 {
		return format.HeaderLegacy
	}

	return format.HeaderEmbedded
}

// classifyHeader is the pure classification over an already-fetched header
// window. embeddedSize is the handle's embedded header length, 0 when the
// legacy encoding applies; window holds the effective header length.
func (f *File) classifyHeader(sec *section.Section, window []byte, embeddedSize int) Detection {
	det := Detection{
		Style:            styleOf(embeddedSize),
		HeaderSize:       len(window),
		UncompressedSize: sec.Size(),
	}

	if embeddedSize == 0 {
		if !section.HasLegacyMagic(window) {
			return det
		}
		if sec.Name() == ".debug_str" && isPrint(window[4]) {
			// An uncompressed .debug_str can open with the literal text
			// "ZLIB...". No real .debug_str is anywhere near large enough
			// for the first byte of its big-endian size to be printable,
			// so a printable byte there marks ordinary string data.
			return det
		}
		size, err := section.ParseLegacyHeader(window)
		if err != nil {
			return det
		}
		det.Compressed = true
		det.UncompressedSize = size
		det.Type = format.CompressionZlib

		return det
	}

	// Embedded headers have no magic; bytes under an embedded-header format
	// are compressed by construction, and a decode failure is reported
	// through the header-size sentinel rather than by clearing Compressed.
	det.Compressed = true
	info, err := f.hdrFormat.Decode(window, sec)
	if err != nil {
		det.HeaderSize = -1

		return det
	}
	det.UncompressedSize = info.UncompressedSize
	det.AlignmentPower = info.AlignmentPower
	det.Type = info.Type

	return det
}

// isPrint reports whether b is a printable ASCII character.
func isPrint(b byte) bool {
	return b >= 0x20 && b <= 0x7e
}
