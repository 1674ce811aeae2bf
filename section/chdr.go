package section

import (
	"fmt"
	"math/bits"

	"github.com/objfile/zsect/endian"
	"github.com/objfile/zsect/errs"
	"github.com/objfile/zsect/format"
)

// ELF compression header type values (ch_type).
const (
	elfCompressZlib uint32 = 1 // ELFCOMPRESS_ZLIB
	elfCompressZstd uint32 = 2 // ELFCOMPRESS_ZSTD

	// OS-specific range values used by vendor toolchains.
	elfCompressLOOSLZ4 uint32 = 0x60000001
	elfCompressLOOSS2  uint32 = 0x60000002
)

func chTypeOf(t format.CompressionType) (uint32, error) {
	switch t {
	case format.CompressionZlib:
		return elfCompressZlib, nil
	case format.CompressionZstd:
		return elfCompressZstd, nil
	case format.CompressionLZ4:
		return elfCompressLOOSLZ4, nil
	case format.CompressionS2:
		return elfCompressLOOSS2, nil
	default:
		return 0, fmt.Errorf("compression type %s has no ch_type value: %w", t, errs.ErrWrongFormat)
	}
}

func compressionOfChType(chType uint32) (format.CompressionType, error) {
	switch chType {
	case elfCompressZlib:
		return format.CompressionZlib, nil
	case elfCompressZstd:
		return format.CompressionZstd, nil
	case elfCompressLOOSLZ4:
		return format.CompressionLZ4, nil
	case elfCompressLOOSS2:
		return format.CompressionS2, nil
	default:
		return 0, fmt.Errorf("unsupported ch_type %#x: %w", chType, errs.ErrWrongFormat)
	}
}

// alignmentPower converts a ch_addralign value to its power-of-two
// exponent. Zero alignment means no constraint and maps to power 0.
func alignmentPower(align uint64) (uint32, error) {
	if align == 0 {
		return 0, nil
	}
	if align&(align-1) != 0 {
		return 0, fmt.Errorf("alignment %#x is not a power of two: %w", align, errs.ErrWrongFormat)
	}

	return uint32(bits.TrailingZeros64(align)), nil
}

// Elf64HeaderFormat implements HeaderFormat with the ELF64 Chdr layout:
//
//	ch_type      u32  byte offset 0-3
//	ch_reserved  u32  byte offset 4-7
//	ch_size      u64  byte offset 8-15
//	ch_addralign u64  byte offset 16-23
//
// in the byte order of the object file's data encoding.
type Elf64HeaderFormat struct {
	order endian.EndianEngine
}

var _ HeaderFormat = Elf64HeaderFormat{}

// Elf64HeaderSize is the fixed size of an ELF64 Chdr.
const Elf64HeaderSize = 24

// NewElf64HeaderFormat creates an ELF64 compression header format using the
// given byte order.
func NewElf64HeaderFormat(order endian.EndianEngine) Elf64HeaderFormat {
	return Elf64HeaderFormat{order: order}
}

// HeaderSize returns the ELF64 Chdr size for sections flagged as carrying
// an embedded header, and for the target format (nil section). Unflagged
// sections report 0 and fall back to the legacy probe.
func (f Elf64HeaderFormat) HeaderSize(sec *Section) int {
	if sec != nil && sec.Flags()&FlagCompressed == 0 {
		return 0
	}

	return Elf64HeaderSize
}

// Encode serializes info as an ELF64 Chdr.
func (f Elf64HeaderFormat) Encode(buf []byte, info HeaderInfo) error {
	if len(buf) < Elf64HeaderSize {
		return fmt.Errorf("ELF64 Chdr needs %d bytes, buffer holds %d: %w",
			Elf64HeaderSize, len(buf), errs.ErrInvalidHeaderSize)
	}
	chType, err := chTypeOf(info.Type)
	if err != nil {
		return err
	}

	f.order.PutUint32(buf[0:4], chType)
	f.order.PutUint32(buf[4:8], 0)
	f.order.PutUint64(buf[8:16], info.UncompressedSize)
	f.order.PutUint64(buf[16:24], uint64(1)<<info.AlignmentPower)

	return nil
}

// Decode parses an ELF64 Chdr.
func (f Elf64HeaderFormat) Decode(buf []byte, _ *Section) (HeaderInfo, error) {
	if len(buf) < Elf64HeaderSize {
		return HeaderInfo{}, fmt.Errorf("ELF64 Chdr needs %d bytes, got %d: %w",
			Elf64HeaderSize, len(buf), errs.ErrInvalidHeaderSize)
	}
	ctype, err := compressionOfChType(f.order.Uint32(buf[0:4]))
	if err != nil {
		return HeaderInfo{}, err
	}
	alignPow, err := alignmentPower(f.order.Uint64(buf[16:24]))
	if err != nil {
		return HeaderInfo{}, err
	}

	return HeaderInfo{
		Type:             ctype,
		UncompressedSize: f.order.Uint64(buf[8:16]),
		AlignmentPower:   alignPow,
	}, nil
}

// Elf32HeaderFormat implements HeaderFormat with the ELF32 Chdr layout:
//
//	ch_type      u32  byte offset 0-3
//	ch_size      u32  byte offset 4-7
//	ch_addralign u32  byte offset 8-11
type Elf32HeaderFormat struct {
	order endian.EndianEngine
}

var _ HeaderFormat = Elf32HeaderFormat{}

// Elf32HeaderSize is the fixed size of an ELF32 Chdr.
const Elf32HeaderSize = 12

// NewElf32HeaderFormat creates an ELF32 compression header format using the
// given byte order.
func NewElf32HeaderFormat(order endian.EndianEngine) Elf32HeaderFormat {
	return Elf32HeaderFormat{order: order}
}

// HeaderSize returns the ELF32 Chdr size for sections flagged as carrying
// an embedded header, and for the target format (nil section). Unflagged
// sections report 0 and fall back to the legacy probe.
func (f Elf32HeaderFormat) HeaderSize(sec *Section) int {
	if sec != nil && sec.Flags()&FlagCompressed == 0 {
		return 0
	}

	return Elf32HeaderSize
}

// Encode serializes info as an ELF32 Chdr.
func (f Elf32HeaderFormat) Encode(buf []byte, info HeaderInfo) error {
	if len(buf) < Elf32HeaderSize {
		return fmt.Errorf("ELF32 Chdr needs %d bytes, buffer holds %d: %w",
			Elf32HeaderSize, len(buf), errs.ErrInvalidHeaderSize)
	}
	chType, err := chTypeOf(info.Type)
	if err != nil {
		return err
	}
	if info.UncompressedSize > 0xffffffff {
		return fmt.Errorf("uncompressed size %#x does not fit an ELF32 Chdr: %w",
			info.UncompressedSize, errs.ErrInvalidHeaderSize)
	}

	f.order.PutUint32(buf[0:4], chType)
	f.order.PutUint32(buf[4:8], uint32(info.UncompressedSize))
	f.order.PutUint32(buf[8:12], uint32(1)<<info.AlignmentPower)

	return nil
}

// Decode parses an ELF32 Chdr.
func (f Elf32HeaderFormat) Decode(buf []byte, _ *Section) (HeaderInfo, error) {
	if len(buf) < Elf32HeaderSize {
		return HeaderInfo{}, fmt.Errorf("ELF32 Chdr needs %d bytes, got %d: %w",
			Elf32HeaderSize, len(buf), errs.ErrInvalidHeaderSize)
	}
	ctype, err := compressionOfChType(f.order.Uint32(buf[0:4]))
	if err != nil {
		return HeaderInfo{}, err
	}
	alignPow, err := alignmentPower(uint64(f.order.Uint32(buf[8:12])))
	if err != nil {
		return HeaderInfo{}, err
	}

	return HeaderInfo{
		Type:             ctype,
		UncompressedSize: uint64(f.order.Uint32(buf[4:8])),
		AlignmentPower:   alignPow,
	}, nil
}
