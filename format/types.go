package format

type (
	// CompressionType identifies the stream codec that produced a section's
	// compressed payload.
	CompressionType uint8

	// HeaderStyle identifies which on-disk compressed-header encoding a
	// section carries.
	HeaderStyle uint8
)

const (
	CompressionZlib CompressionType = 0x1 // CompressionZlib represents zlib (deflate) compression.
	CompressionZstd CompressionType = 0x2 // CompressionZstd represents Zstandard compression.
	CompressionLZ4  CompressionType = 0x3 // CompressionLZ4 represents LZ4 block compression.
	CompressionS2   CompressionType = 0x4 // CompressionS2 represents S2 block compression.
	CompressionNone CompressionType = 0x5 // CompressionNone represents no compression.

	// HeaderLegacy is the 12-byte "ZLIB" + big-endian size convention
	// predating embedded headers.
	HeaderLegacy HeaderStyle = 0x1
	// HeaderEmbedded is a compressed-header encoding whose layout is owned
	// by the object-file format itself.
	HeaderEmbedded HeaderStyle = 0x2
)

const (
	// LegacyMagic is the 4-byte tag opening a legacy compressed header.
	LegacyMagic = "ZLIB"

	// LegacyHeaderSize is the fixed total size of a legacy header: the
	// magic tag followed by the 8-byte big-endian uncompressed size.
	LegacyHeaderSize = 12

	// MaxHeaderSize bounds every supported compressed-header encoding.
	// Header formats are contractually required to stay within it.
	MaxHeaderSize = 24
)

func (c CompressionType) String() string {
	switch c {
	case CompressionZlib:
		return "Zlib"
	case CompressionZstd:
		return "Zstd"
	case CompressionLZ4:
		return "LZ4"
	case CompressionS2:
		return "S2"
	case CompressionNone:
		return "None"
	default:
		return "Unknown"
	}
}

func (h HeaderStyle) String() string {
	switch h {
	case HeaderLegacy:
		return "Legacy"
	case HeaderEmbedded:
		return "Embedded"
	default:
		return "Unknown"
	}
}
