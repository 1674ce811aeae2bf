package objfile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/objfile/zsect/compress"
	"github.com/objfile/zsect/endian"
	"github.com/objfile/zsect/format"
	"github.com/objfile/zsect/section"
)

// zlibPack compresses plaintext into a bare zlib payload.
func zlibPack(t *testing.T, plaintext []byte) []byte {
	t.Helper()

	codec, err := compress.GetCodec(format.CompressionZlib)
	require.NoError(t, err)
	payload, err := codec.Compress(plaintext)
	require.NoError(t, err)

	return payload
}

// legacyBlob builds a stored legacy compressed section: the 12-byte "ZLIB"
// header followed by the zlib payload of plaintext.
func legacyBlob(t *testing.T, plaintext []byte) []byte {
	t.Helper()

	payload := zlibPack(t, plaintext)
	blob := make([]byte, format.LegacyHeaderSize+len(payload))
	require.NoError(t, section.EncodeLegacyHeader(blob, uint64(len(plaintext))))
	copy(blob[format.LegacyHeaderSize:], payload)

	return blob
}

// elf64Blob builds a stored ELF64 compressed section: a little-endian Chdr
// followed by the payload of plaintext produced by the given codec type.
func elf64Blob(t *testing.T, plaintext []byte, ctype format.CompressionType, alignPow uint32) []byte {
	t.Helper()

	codec, err := compress.GetCodec(ctype)
	require.NoError(t, err)
	payload, err := codec.Compress(plaintext)
	require.NoError(t, err)

	hf := section.NewElf64HeaderFormat(endian.GetLittleEndianEngine())
	blob := make([]byte, section.Elf64HeaderSize+len(payload))
	require.NoError(t, hf.Encode(blob, section.HeaderInfo{
		Type:             ctype,
		UncompressedSize: uint64(len(plaintext)),
		AlignmentPower:   alignPow,
	}))
	copy(blob[section.Elf64HeaderSize:], payload)

	return blob
}

// markEmbedded flags a section as carrying an embedded compression header,
// the way an object-file reader would after seeing SHF_COMPRESSED.
func markEmbedded(sec *section.Section) *section.Section {
	sec.SetFlags(sec.Flags() | section.FlagCompressed)

	return sec
}

// trackingAllocator records every buffer it hands out and every release, so
// tests can assert the release-exactly-once ownership discipline.
type trackingAllocator struct {
	allocated map[*byte]bool
	released  map[*byte]int
	foreign   int // releases of buffers this allocator never produced
}

func newTrackingAllocator() *trackingAllocator {
	return &trackingAllocator{
		allocated: make(map[*byte]bool),
		released:  make(map[*byte]int),
	}
}

func (a *trackingAllocator) Alloc(size uint64) ([]byte, error) {
	buf := make([]byte, size)
	if size > 0 {
		a.allocated[&buf[0]] = true
	}

	return buf, nil
}

func (a *trackingAllocator) Release(buf []byte) {
	if len(buf) == 0 {
		return
	}
	if !a.allocated[&buf[0]] {
		a.foreign++

		return
	}
	a.released[&buf[0]]++
}

// checkOwnership asserts that no tracked buffer was released twice and that
// kept, if any, was handed off rather than released.
func (a *trackingAllocator) checkOwnership(t *testing.T, kept []byte) {
	t.Helper()

	for ptr, n := range a.released {
		require.Equal(t, 1, n, "buffer released %d times", n)
		if len(kept) > 0 {
			require.NotSame(t, ptr, &kept[0], "released a buffer still owned by a section")
		}
	}
}

// leakCount returns the number of tracked buffers that were allocated but
// never released.
func (a *trackingAllocator) leakCount() int {
	n := 0
	for ptr := range a.allocated {
		if a.released[ptr] == 0 {
			n++
		}
	}

	return n
}

// failingAllocator refuses every allocation.
type failingAllocator struct{}

func (failingAllocator) Alloc(uint64) ([]byte, error) { return nil, errors.New("arena exhausted") }
func (failingAllocator) Release([]byte)               {}

// countingCodec wraps a codec and counts decompression calls, so tests can
// prove cached reads skip the codec entirely.
type countingCodec struct {
	compress.Codec
	decompressCalls int
}

func (c *countingCodec) DecompressInto(dst, data []byte) error {
	c.decompressCalls++

	return c.Codec.DecompressInto(dst, data)
}

// legacyDeferringFormat parses embedded ELF64 headers on flagged sections
// but reports no embedded header for output, so commits target the legacy
// encoding.
type legacyDeferringFormat struct {
	section.Elf64HeaderFormat
}

func (f legacyDeferringFormat) HeaderSize(sec *section.Section) int {
	if sec == nil {
		return 0
	}

	return f.Elf64HeaderFormat.HeaderSize(sec)
}
