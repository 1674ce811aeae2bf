package objfile

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/objfile/zsect/compress"
	"github.com/objfile/zsect/endian"
	"github.com/objfile/zsect/errs"
	"github.com/objfile/zsect/format"
	"github.com/objfile/zsect/section"
)

func TestCompressSection_FreshLegacy(t *testing.T) {
	raw := bytes.Repeat([]byte("very compressible debug info "), 256)

	f, err := Open(nil, WithWriteMode())
	require.NoError(t, err)

	sec := section.New(".debug_info", 0, uint64(len(raw)))
	finalSize, err := f.CompressSection(sec, raw)
	require.NoError(t, err)
	require.Less(t, finalSize, uint64(len(raw)))

	require.Equal(t, section.StatusDone, sec.Status())
	require.Equal(t, finalSize, sec.Size())
	require.Zero(t, sec.Flags()&section.FlagCompressed)

	contents, ok := sec.Contents()
	require.True(t, ok)
	require.Equal(t, finalSize, uint64(len(contents)))

	// The stored bytes open with a legacy header recording the original
	// size, and the payload inflates back to the input.
	size, err := section.ParseLegacyHeader(contents)
	require.NoError(t, err)
	require.Equal(t, uint64(len(raw)), size)

	zlib, err := compress.GetCodec(format.CompressionZlib)
	require.NoError(t, err)
	plaintext := make([]byte, len(raw))
	require.NoError(t, zlib.DecompressInto(plaintext, contents[format.LegacyHeaderSize:]))
	require.Equal(t, raw, plaintext)
}

func TestCompressSection_FreshEmbeddedZstd(t *testing.T) {
	raw := bytes.Repeat([]byte("line program opcodes "), 512)
	hf := section.NewElf64HeaderFormat(endian.GetLittleEndianEngine())

	f, err := Open(nil, WithWriteMode(), WithHeaderFormat(hf), WithCompression(format.CompressionZstd))
	require.NoError(t, err)

	sec := section.New(".debug_line", 0, uint64(len(raw)))
	sec.SetAlignmentPower(3)
	finalSize, err := f.CompressSection(sec, raw)
	require.NoError(t, err)
	require.Less(t, finalSize, uint64(len(raw)))

	require.Equal(t, section.StatusDone, sec.Status())
	require.NotZero(t, sec.Flags()&section.FlagCompressed)

	contents, ok := sec.Contents()
	require.True(t, ok)

	info, err := hf.Decode(contents[:section.Elf64HeaderSize], sec)
	require.NoError(t, err)
	require.Equal(t, format.CompressionZstd, info.Type)
	require.Equal(t, uint64(len(raw)), info.UncompressedSize)
	require.Equal(t, uint32(3), info.AlignmentPower)

	zstd, err := compress.GetCodec(format.CompressionZstd)
	require.NoError(t, err)
	plaintext := make([]byte, len(raw))
	require.NoError(t, zstd.DecompressInto(plaintext, contents[section.Elf64HeaderSize:]))
	require.Equal(t, raw, plaintext)
}

func TestCompressSection_NoGain(t *testing.T) {
	// 16 pseudo-random bytes cannot compress below 16 plus a header.
	raw := make([]byte, 16)
	for i := range raw {
		raw[i] = byte((i*89 + 31) % 256)
	}

	alloc := newTrackingAllocator()
	f, err := Open(nil, WithWriteMode(), WithAllocator(alloc))
	require.NoError(t, err)

	sec := section.New(".debug_info", 0, uint64(len(raw)))
	finalSize, err := f.CompressSection(sec, raw)
	require.NoError(t, err)
	require.Equal(t, uint64(len(raw)), finalSize)

	// The original buffer was handed off untouched; the failed attempt's
	// buffer was released.
	contents, ok := sec.Contents()
	require.True(t, ok)
	require.Same(t, &raw[0], &contents[0])
	require.Zero(t, sec.Flags()&section.FlagCompressed)
	alloc.checkOwnership(t, contents)
	require.Len(t, alloc.released, 1)
}

func TestCompressSection_ReHeaderLegacyToEmbedded(t *testing.T) {
	plaintext := bytes.Repeat([]byte("relocated address table "), 128)
	blob := legacyBlob(t, plaintext)
	payload := blob[format.LegacyHeaderSize:]

	hf := section.NewElf64HeaderFormat(endian.GetLittleEndianEngine())
	f, err := Open(nil, WithWriteMode(), WithHeaderFormat(hf))
	require.NoError(t, err)

	// The section is not flagged, so its bytes are probed with the legacy
	// encoding; the commit target is still the embedded format.
	sec := section.New(".zdebug_aranges", 0, uint64(len(blob)))
	finalSize, err := f.CompressSection(sec, blob)
	require.NoError(t, err)
	require.Equal(t, uint64(len(payload)+section.Elf64HeaderSize), finalSize)
	require.NotZero(t, sec.Flags()&section.FlagCompressed)

	contents, ok := sec.Contents()
	require.True(t, ok)

	// The payload moved behind the new header byte for byte.
	info, err := hf.Decode(contents[:section.Elf64HeaderSize], sec)
	require.NoError(t, err)
	require.Equal(t, format.CompressionZlib, info.Type)
	require.Equal(t, uint64(len(plaintext)), info.UncompressedSize)
	require.Equal(t, payload, contents[section.Elf64HeaderSize:])
}

func TestCompressSection_BloatFallback(t *testing.T) {
	// A tiny section: its zlib payload plus the larger embedded header
	// exceeds the plaintext, so conversion abandons compression.
	plaintext := []byte("ten bytes!")
	blob := legacyBlob(t, plaintext)
	require.Greater(t, len(blob)-format.LegacyHeaderSize+section.Elf64HeaderSize, len(plaintext))

	hf := section.NewElf64HeaderFormat(endian.GetLittleEndianEngine())
	alloc := newTrackingAllocator()
	f, err := Open(nil, WithWriteMode(), WithHeaderFormat(hf), WithAllocator(alloc))
	require.NoError(t, err)

	sec := section.New(".zdebug_str_offsets", 0, uint64(len(blob)))
	finalSize, err := f.CompressSection(sec, blob)
	require.NoError(t, err)
	require.Equal(t, uint64(len(plaintext)), finalSize)

	contents, ok := sec.Contents()
	require.True(t, ok)
	require.Equal(t, plaintext, contents)
	require.Zero(t, sec.Flags()&section.FlagCompressed)
	alloc.checkOwnership(t, contents)
}

func TestCompressSection_BloatFallbackHonorsCeiling(t *testing.T) {
	// A forged header recording an enormous uncompressed size must not
	// drive an allocation... but a small ceiling is needed to prove it,
	// since a small recorded size never enters the fallback.
	blob := legacyBlob(t, bytes.Repeat([]byte("z"), 100))
	require.NoError(t, section.EncodeLegacyHeader(blob, 26))

	hf := section.NewElf64HeaderFormat(endian.GetLittleEndianEngine())
	f, err := Open(nil, WithWriteMode(), WithHeaderFormat(hf), WithMaxDecompressSize(16))
	require.NoError(t, err)

	sec := section.New(".zdebug_info", 0, uint64(len(blob)))
	_, err = f.CompressSection(sec, blob)
	require.Error(t, err)
	require.ErrorIs(t, err, errs.ErrBadValue)
	require.Equal(t, section.StatusNone, sec.Status())
}

func TestCompressSection_LegacyTargetRejectsNonZlib(t *testing.T) {
	plaintext := bytes.Repeat([]byte("frame description entries "), 128)
	blob := elf64Blob(t, plaintext, format.CompressionZstd, 0)

	hf := legacyDeferringFormat{section.NewElf64HeaderFormat(endian.GetLittleEndianEngine())}
	f, err := Open(nil, WithWriteMode(), WithHeaderFormat(hf))
	require.NoError(t, err)

	// The source header says zstd; the legacy target encoding can only
	// describe zlib.
	sec := markEmbedded(section.New(".debug_frame", 0, uint64(len(blob))))
	_, err = f.CompressSection(sec, blob)
	require.Error(t, err)
	require.ErrorIs(t, err, errs.ErrWrongFormat)
}

func TestCompressSection_PanicsOnUnsupportedHeader(t *testing.T) {
	hf := section.NewElf64HeaderFormat(endian.GetLittleEndianEngine())
	f, err := Open(nil, WithWriteMode(), WithHeaderFormat(hf))
	require.NoError(t, err)

	blob := make([]byte, section.Elf64HeaderSize+8)
	blob[0] = 0x7F // no such ch_type

	sec := markEmbedded(section.New(".debug_info", 0, uint64(len(blob))))
	require.Panics(t, func() {
		_, _ = f.CompressSection(sec, blob)
	})
}

func TestCompressSection_Preconditions(t *testing.T) {
	raw := []byte("contents")

	t.Run("read_mode_handle", func(t *testing.T) {
		f, err := Open(bytes.NewReader(nil))
		require.NoError(t, err)

		sec := section.New(".debug_info", 0, uint64(len(raw)))
		_, err = f.CompressSection(sec, raw)
		require.ErrorIs(t, err, errs.ErrInvalidOperation)
	})

	t.Run("empty_contents", func(t *testing.T) {
		f, err := Open(nil, WithWriteMode())
		require.NoError(t, err)

		sec := section.New(".debug_info", 0, 0)
		_, err = f.CompressSection(sec, nil)
		require.ErrorIs(t, err, errs.ErrInvalidOperation)
	})

	t.Run("already_committed", func(t *testing.T) {
		f, err := Open(nil, WithWriteMode())
		require.NoError(t, err)

		sec := section.New(".debug_info", 0, uint64(len(raw)))
		_, err = f.CompressSection(sec, raw)
		require.NoError(t, err)

		_, err = f.CompressSection(sec, raw)
		require.ErrorIs(t, err, errs.ErrInvalidOperation)
	})
}

func TestInitCompressStatus(t *testing.T) {
	stored := bytes.Repeat([]byte("uncompressed debug contents "), 128)

	f, err := Open(bytes.NewReader(stored))
	require.NoError(t, err)

	sec := section.New(".debug_info", 0, uint64(len(stored)))
	require.NoError(t, f.InitCompressStatus(sec))

	require.Equal(t, section.StatusDone, sec.Status())
	require.Less(t, sec.Size(), uint64(len(stored)))

	contents, ok := sec.Contents()
	require.True(t, ok)
	size, err := section.ParseLegacyHeader(contents)
	require.NoError(t, err)
	require.Equal(t, uint64(len(stored)), size)
}

func TestInitCompressStatus_Preconditions(t *testing.T) {
	stored := []byte("contents")

	t.Run("write_mode_handle", func(t *testing.T) {
		f, err := Open(nil, WithWriteMode())
		require.NoError(t, err)

		sec := section.New(".debug_info", 0, uint64(len(stored)))
		require.ErrorIs(t, f.InitCompressStatus(sec), errs.ErrInvalidOperation)
	})

	t.Run("zero_size", func(t *testing.T) {
		f, err := Open(bytes.NewReader(stored))
		require.NoError(t, err)

		sec := section.New(".debug_info", 0, 0)
		require.ErrorIs(t, f.InitCompressStatus(sec), errs.ErrInvalidOperation)
	})
}

func TestInitDecompressStatus_Errors(t *testing.T) {
	t.Run("not_pristine", func(t *testing.T) {
		stored := legacyBlob(t, []byte("payload data here"))
		f, err := Open(bytes.NewReader(stored))
		require.NoError(t, err)

		sec := section.New(".zdebug_info", 0, uint64(len(stored)))
		require.NoError(t, f.InitDecompressStatus(sec))
		require.ErrorIs(t, f.InitDecompressStatus(sec), errs.ErrInvalidOperation)
	})

	t.Run("missing_magic", func(t *testing.T) {
		f, err := Open(bytes.NewReader([]byte("definitely not a header")))
		require.NoError(t, err)

		sec := section.New(".zdebug_info", 0, 23)
		err = f.InitDecompressStatus(sec)
		require.Error(t, err)
		require.ErrorIs(t, err, errs.ErrWrongFormat)
		require.Equal(t, section.StatusNone, sec.Status())
	})

	t.Run("undecodable_embedded_header", func(t *testing.T) {
		blob := make([]byte, section.Elf64HeaderSize)
		blob[0] = 0x7F

		hf := section.NewElf64HeaderFormat(endian.GetLittleEndianEngine())
		f, err := Open(bytes.NewReader(blob), WithHeaderFormat(hf))
		require.NoError(t, err)

		sec := markEmbedded(section.New(".debug_info", 0, uint64(len(blob))))
		err = f.InitDecompressStatus(sec)
		require.Error(t, err)
		require.ErrorIs(t, err, errs.ErrWrongFormat)
	})

	t.Run("unreadable_window", func(t *testing.T) {
		f, err := Open(bytes.NewReader([]byte("short")))
		require.NoError(t, err)

		sec := section.New(".zdebug_info", 0, 5)
		require.ErrorIs(t, f.InitDecompressStatus(sec), errs.ErrInvalidOperation)
	})
}

func TestInitDecompressStatus_RejectsImplausibleSize(t *testing.T) {
	t.Run("default_ceiling", func(t *testing.T) {
		// A corrupt header declaring an absurd uncompressed size must fail
		// cleanly instead of driving the allocation.
		blob := legacyBlob(t, bytes.Repeat([]byte("a"), 64))
		require.NoError(t, section.EncodeLegacyHeader(blob, 1<<63))

		f, err := Open(bytes.NewReader(blob))
		require.NoError(t, err)

		sec := section.New(".zdebug_info", 0, uint64(len(blob)))
		err = f.InitDecompressStatus(sec)
		require.Error(t, err)
		require.ErrorIs(t, err, errs.ErrBadValue)
		require.Equal(t, section.StatusNone, sec.Status())
		require.Equal(t, uint64(len(blob)), sec.Size())
	})

	t.Run("configured_ceiling", func(t *testing.T) {
		plaintext := bytes.Repeat([]byte("b"), 64)
		blob := legacyBlob(t, plaintext)

		f, err := Open(bytes.NewReader(blob), WithMaxDecompressSize(32))
		require.NoError(t, err)

		sec := section.New(".zdebug_info", 0, uint64(len(blob)))
		require.ErrorIs(t, f.InitDecompressStatus(sec), errs.ErrBadValue)
	})

	t.Run("under_ceiling_accepted", func(t *testing.T) {
		plaintext := bytes.Repeat([]byte("c"), 64)
		blob := legacyBlob(t, plaintext)

		f, err := Open(bytes.NewReader(blob), WithMaxDecompressSize(64))
		require.NoError(t, err)

		sec := section.New(".zdebug_info", 0, uint64(len(blob)))
		require.NoError(t, f.InitDecompressStatus(sec))
	})
}

func TestInitCompressStatus_ReleasesBufferOnFailure(t *testing.T) {
	// A forged recorded size forces the commit into the bloat fallback,
	// where the tight ceiling fails it; the contents buffer the setup read
	// for itself must come back to the allocator.
	blob := legacyBlob(t, bytes.Repeat([]byte("z"), 100))
	require.NoError(t, section.EncodeLegacyHeader(blob, 26))

	hf := section.NewElf64HeaderFormat(endian.GetLittleEndianEngine())
	alloc := newTrackingAllocator()
	f, err := Open(bytes.NewReader(blob), WithHeaderFormat(hf),
		WithAllocator(alloc), WithMaxDecompressSize(16))
	require.NoError(t, err)

	sec := section.New(".zdebug_info", 0, uint64(len(blob)))
	err = f.InitCompressStatus(sec)
	require.ErrorIs(t, err, errs.ErrBadValue)
	require.Equal(t, section.StatusNone, sec.Status())
	require.NotEmpty(t, alloc.allocated)
	require.Zero(t, alloc.leakCount())
}

func TestInitDecompressStatus_Embedded(t *testing.T) {
	plaintext := bytes.Repeat([]byte("compact unwind rows "), 64)
	blob := elf64Blob(t, plaintext, format.CompressionZstd, 4)

	hf := section.NewElf64HeaderFormat(endian.GetLittleEndianEngine())
	f, err := Open(bytes.NewReader(blob), WithHeaderFormat(hf))
	require.NoError(t, err)

	sec := markEmbedded(section.New(".debug_info", 0, uint64(len(blob))))
	require.NoError(t, f.InitDecompressStatus(sec))

	require.Equal(t, uint64(len(plaintext)), sec.Size())
	require.Equal(t, uint32(4), sec.AlignmentPower())
	payload, ok := sec.PayloadCompression()
	require.True(t, ok)
	require.Equal(t, format.CompressionZstd, payload)

	contents, err := f.GetFullContents(sec, nil)
	require.NoError(t, err)
	require.Equal(t, plaintext, contents)
}
