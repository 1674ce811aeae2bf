package objfile

import (
	"fmt"

	"github.com/objfile/zsect/errs"
	"github.com/objfile/zsect/format"
	"github.com/objfile/zsect/internal/hash"
	"github.com/objfile/zsect/section"
)

// InitDecompressStatus records the decompression promise for a compressed
// section: the compressed size is stashed, the section's size becomes the
// uncompressed size from the header, and the alignment of the uncompressed
// data is restored. No bytes are inflated until the first full retrieval.
//
// The section must be pristine (status None, no tracked raw size), and its
// stored bytes must open with a valid header of the handle's format;
// otherwise ErrInvalidOperation or ErrWrongFormat is returned and the
// section is untouched.
func (f *File) InitDecompressStatus(sec *section.Section) error {
	embeddedSize := f.headerSize(sec)
	headerSize := embeddedSize
	if headerSize == 0 {
		headerSize = format.LegacyHeaderSize
	}

	if sec.RawSize() != 0 || sec.Status() != section.StatusNone {
		return fmt.Errorf("section %s: decompression setup on a section that is not pristine: %w",
			sec.Name(), errs.ErrInvalidOperation)
	}

	var window [format.MaxHeaderSize]byte
	if err := f.readStored(sec, window[:headerSize], 0, uint64(headerSize)); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrInvalidOperation, err)
	}

	var info section.HeaderInfo
	if embeddedSize == 0 {
		size, err := section.ParseLegacyHeader(window[:headerSize])
		if err != nil {
			return fmt.Errorf("section %s: %w", sec.Name(), err)
		}
		info = section.HeaderInfo{Type: format.CompressionZlib, UncompressedSize: size}
	} else {
		var err error
		info, err = f.hdrFormat.Decode(window[:headerSize], sec)
		if err != nil {
			return fmt.Errorf("section %s: %w: %w", sec.Name(), errs.ErrWrongFormat, err)
		}
	}

	if f.maxDecompress > 0 && info.UncompressedSize > f.maxDecompress {
		return fmt.Errorf("section %s: header-declared uncompressed size %#x exceeds the %#x-byte decompression ceiling: %w",
			sec.Name(), info.UncompressedSize, f.maxDecompress, errs.ErrBadValue)
	}

	return sec.BeginDecompress(info.UncompressedSize, info.AlignmentPower, info.Type)
}

// InitCompressStatus reads a pristine section's full contents from a
// read-mode handle and commits them through the compression pipeline,
// leaving the section Done with its final stored representation.
func (f *File) InitCompressStatus(sec *section.Section) error {
	if f.direction != DirectionRead || sec.Size() == 0 ||
		sec.RawSize() != 0 || sec.Status() != section.StatusNone {
		return fmt.Errorf("section %s: in-place compression requires a pristine section on a read-mode handle: %w",
			sec.Name(), errs.ErrInvalidOperation)
	}

	buf, err := f.allocBuffer(sec, sec.Size())
	if err != nil {
		return err
	}
	if err := f.readStored(sec, buf, 0, sec.Size()); err != nil {
		f.alloc.Release(buf)

		return err
	}

	if _, err := f.compressContents(sec, buf); err != nil {
		// On failure the commit path leaves its input with the caller,
		// which here is this function's own allocation.
		f.alloc.Release(buf)

		return err
	}

	return nil
}

// CompressSection commits raw as the section's final stored representation
// on a write-mode handle, compressed when that wins, and returns the final
// stored size.
//
// On success the section owns its final buffer, is Done, and raw has been
// handed off or released exactly once. On failure the section is untouched
// and raw remains the caller's.
func (f *File) CompressSection(sec *section.Section, raw []byte) (uint64, error) {
	if f.direction != DirectionWrite || len(raw) == 0 ||
		sec.RawSize() != 0 || sec.Status() != section.StatusNone {
		return 0, fmt.Errorf("section %s: compression commit requires nonempty contents, a pristine section, and a write-mode handle: %w",
			sec.Name(), errs.ErrInvalidOperation)
	}

	return f.compressContents(sec, raw)
}

// compressContents is the commit policy shared by the read- and write-side
// entry points. raw is the section's uncommitted stored bytes; they may
// already carry a compression header when a compressed section is being
// round-tripped through the pipeline.
func (f *File) compressContents(sec *section.Section, raw []byte) (uint64, error) {
	rawSize := uint64(len(raw))

	targetHeader := f.headerSize(nil)
	targetLegacy := targetHeader == 0
	if targetLegacy {
		targetHeader = format.LegacyHeaderSize
	}

	det := f.detectInBuffer(sec, raw)
	if det.Compressed && det.HeaderSize < 0 {
		// The caller asked to recompress data this library cannot parse;
		// the header format collaborator and the bytes disagree and no
		// partial recovery is safe.
		panic(fmt.Sprintf("zsect: section %s carries an unsupported compression header", sec.Name()))
	}

	if det.Compressed {
		return f.recommitCompressed(sec, raw, det, targetHeader, targetLegacy)
	}

	return f.compressFresh(sec, raw, rawSize, uint64(targetHeader), targetLegacy)
}

// detectInBuffer classifies the header at the start of raw without touching
// backing storage; commit works on bytes it was handed, not on disk state.
func (f *File) detectInBuffer(sec *section.Section, raw []byte) Detection {
	embeddedSize := f.headerSize(sec)
	headerSize := embeddedSize
	if headerSize == 0 {
		headerSize = format.LegacyHeaderSize
	}
	if len(raw) < headerSize {
		return Detection{
			Style:            styleOf(embeddedSize),
			HeaderSize:       headerSize,
			UncompressedSize: sec.Size(),
		}
	}

	return f.classifyHeader(sec, raw[:headerSize], embeddedSize)
}

// recommitCompressed handles raw bytes that already carry a recognized
// compression header: either move the untouched payload behind the target
// header, or, when the re-headered total would exceed the recorded
// uncompressed size, abandon compression and materialize the plaintext.
func (f *File) recommitCompressed(sec *section.Section, raw []byte, det Detection, targetHeader int, targetLegacy bool) (uint64, error) {
	origHeader := det.HeaderSize
	payload := raw[origHeader:]
	totalSize := uint64(len(payload)) + uint64(targetHeader)

	if totalSize > det.UncompressedSize {
		// Converting headers would bloat the section beyond its plaintext;
		// decompress instead and store it raw.
		if f.maxDecompress > 0 && det.UncompressedSize > f.maxDecompress {
			return 0, fmt.Errorf("section %s: recorded uncompressed size %#x exceeds the %#x-byte decompression ceiling: %w",
				sec.Name(), det.UncompressedSize, f.maxDecompress, errs.ErrBadValue)
		}
		buf, err := f.allocBuffer(sec, det.UncompressedSize)
		if err != nil {
			return 0, err
		}
		codec, err := f.codecFor(det.Type)
		if err != nil {
			f.alloc.Release(buf)

			return 0, err
		}
		if err := codec.DecompressInto(buf, payload); err != nil {
			f.alloc.Release(buf)

			return 0, fmt.Errorf("section %s: %w", sec.Name(), err)
		}

		f.alloc.Release(raw)
		sec.SetAlignmentPower(det.AlignmentPower)
		sec.SetFlags(sec.Flags() &^ section.FlagCompressed)
		f.commitDone(sec, buf, det.UncompressedSize)

		return det.UncompressedSize, nil
	}

	if targetLegacy && det.Type != format.CompressionZlib {
		return 0, fmt.Errorf("section %s: %s payload cannot be re-headered as legacy, which implies zlib: %w",
			sec.Name(), det.Type, errs.ErrWrongFormat)
	}

	// Same payload behind a different header: a byte move, not a
	// recompression.
	buf, err := f.allocBuffer(sec, totalSize)
	if err != nil {
		return 0, err
	}
	info := section.HeaderInfo{
		Type:             det.Type,
		UncompressedSize: det.UncompressedSize,
		AlignmentPower:   det.AlignmentPower,
	}
	if err := f.encodeHeader(buf[:targetHeader], info, targetLegacy); err != nil {
		f.alloc.Release(buf)

		return 0, err
	}
	copy(buf[targetHeader:], payload)

	f.alloc.Release(raw)
	f.markCompressed(sec, targetLegacy)
	f.commitDone(sec, buf, totalSize)

	return totalSize, nil
}

// compressFresh compresses raw contents that carry no compression header,
// keeping them uncompressed when compression yields no gain.
func (f *File) compressFresh(sec *section.Section, raw []byte, rawSize, targetHeader uint64, targetLegacy bool) (uint64, error) {
	compressionType := f.compression
	if targetLegacy {
		// The legacy encoding has no type field; it means zlib.
		compressionType = format.CompressionZlib
	}
	codec, err := f.codecFor(compressionType)
	if err != nil {
		return 0, err
	}

	buf, err := f.allocBuffer(sec, uint64(codec.CompressBound(len(raw)))+targetHeader)
	if err != nil {
		return 0, err
	}
	n, err := codec.CompressInto(buf[targetHeader:], raw)
	if err != nil {
		f.alloc.Release(buf)

		return 0, fmt.Errorf("section %s: %w: %w", sec.Name(), errs.ErrBadValue, err)
	}

	totalSize := uint64(n) + targetHeader
	if totalSize >= rawSize {
		// Compression did not make the section smaller; keep the original
		// bytes and discard the attempt.
		f.alloc.Release(buf)
		sec.SetFlags(sec.Flags() &^ section.FlagCompressed)
		f.commitDone(sec, raw, rawSize)

		return rawSize, nil
	}

	info := section.HeaderInfo{
		Type:             compressionType,
		UncompressedSize: rawSize,
		AlignmentPower:   sec.AlignmentPower(),
	}
	if err := f.encodeHeader(buf[:targetHeader], info, targetLegacy); err != nil {
		f.alloc.Release(buf)

		return 0, err
	}

	f.alloc.Release(raw)
	f.markCompressed(sec, targetLegacy)
	f.commitDone(sec, buf[:totalSize], totalSize)

	return totalSize, nil
}

// markCompressed records on the section which header encoding its committed
// bytes open with; only embedded headers are announced through the section
// flag.
func (f *File) markCompressed(sec *section.Section, targetLegacy bool) {
	if targetLegacy {
		sec.SetFlags(sec.Flags() &^ section.FlagCompressed)
	} else {
		sec.SetFlags(sec.Flags() | section.FlagCompressed)
	}
}

// encodeHeader writes the target header for the final buffer.
func (f *File) encodeHeader(buf []byte, info section.HeaderInfo, targetLegacy bool) error {
	if targetLegacy {
		return section.EncodeLegacyHeader(buf, info.UncompressedSize)
	}

	return f.hdrFormat.Encode(buf, info)
}

// commitDone finalizes a commit: the buffer becomes the section's owned
// contents, the authoritative size is the final stored size, and the digest
// is recorded for cached-contents verification.
func (f *File) commitDone(sec *section.Section, buf []byte, size uint64) {
	sec.SetDone(buf, size)
	sec.SetDigest(hash.Sum(buf))
}
