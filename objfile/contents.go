package objfile

import (
	"fmt"

	"github.com/objfile/zsect/errs"
	"github.com/objfile/zsect/format"
	"github.com/objfile/zsect/internal/hash"
	"github.com/objfile/zsect/internal/pool"
	"github.com/objfile/zsect/section"
)

// presentedSize is the size a retrieval must produce: the pre-transform raw
// size when one is tracked on a read handle, otherwise the authoritative
// size.
func (f *File) presentedSize(sec *section.Section) uint64 {
	if f.direction != DirectionWrite && sec.RawSize() != 0 {
		return sec.RawSize()
	}

	return sec.Size()
}

// GetFullContents returns the fully materialized bytes of sec, regardless
// of its current lifecycle state, decompressing if needed.
//
// dst may be nil, in which case a buffer is allocated; otherwise it must
// hold the section's full size. A zero-size section yields (nil, nil).
//
// A successful decompression here is one-off: the section stays
// DecompressSized until the caller stashes the result with CacheContents.
// On any failure the section's state is untouched.
func (f *File) GetFullContents(sec *section.Section, dst []byte) ([]byte, error) {
	sz := f.presentedSize(sec)
	if sz == 0 {
		return nil, nil
	}
	if dst != nil && uint64(len(dst)) < sz {
		return nil, fmt.Errorf("section %s: destination holds %d bytes, contents need %d: %w",
			sec.Name(), len(dst), sz, errs.ErrInvalidOperation)
	}

	switch sec.Status() {
	case section.StatusNone:
		allocated := false
		if dst == nil {
			if fileSize := f.backendSize(); fileSize > 0 && uint64(fileSize) < sz &&
				sec.Flags()&section.FlagLinkerCreated == 0 &&
				sec.Flags()&section.FlagHasContents != 0 {
				return nil, fmt.Errorf("section %s size (%#x bytes) is larger than file size (%#x bytes): %w",
					sec.Name(), sz, fileSize, errs.ErrFileTruncated)
			}
			var err error
			dst, err = f.allocBuffer(sec, sz)
			if err != nil {
				return nil, err
			}
			allocated = true
		}
		if err := f.readStored(sec, dst, 0, sz); err != nil {
			if allocated {
				f.alloc.Release(dst)
			}

			return nil, err
		}

		return dst[:sz], nil

	case section.StatusDecompressSized:
		return f.decompressContents(sec, dst, sz)

	case section.StatusDone:
		contents, ok := sec.Contents()
		if !ok {
			// Done with no contents breaks the lifecycle invariant; report
			// it rather than crash, the handle may still serve other
			// sections.
			return nil, fmt.Errorf("section %s is materialized but has no contents: %w",
				sec.Name(), errs.ErrInvalidOperation)
		}
		if uint64(len(contents)) < sz {
			return nil, fmt.Errorf("section %s holds %d materialized bytes but presents %d: %w",
				sec.Name(), len(contents), sz, errs.ErrInvalidOperation)
		}
		if f.verify {
			if d := sec.Digest(); d != 0 && hash.Sum(contents) != d {
				return nil, fmt.Errorf("section %s: cached contents fail digest verification: %w",
					sec.Name(), errs.ErrBadValue)
			}
		}
		if dst == nil {
			return contents[:sz], nil
		}
		if &dst[0] == &contents[0] {
			// Caller handed back the owned buffer; nothing to copy.
			return contents[:sz], nil
		}
		copy(dst, contents[:sz])

		return dst[:sz], nil

	default:
		return nil, fmt.Errorf("section %s has unknown status %d: %w",
			sec.Name(), sec.Status(), errs.ErrInvalidOperation)
	}
}

// decompressContents completes a decompression promise for one read: the
// compressed bytes are staged back in from storage, the header skipped, and
// the payload inflated into a buffer of exactly the decompressed size.
func (f *File) decompressContents(sec *section.Section, dst []byte, sz uint64) ([]byte, error) {
	compressedSize, _ := sec.CompressedSize()

	staging := pool.GetStagingBuffer()
	defer pool.PutStagingBuffer(staging)
	staging.Grow(int(compressedSize))
	staging.SetLength(int(compressedSize))

	if err := f.readStored(sec, staging.Bytes(), 0, compressedSize); err != nil {
		return nil, err
	}

	headerSize := f.headerSize(sec)
	if headerSize == 0 {
		headerSize = format.LegacyHeaderSize
	}
	if uint64(headerSize) > compressedSize {
		return nil, fmt.Errorf("section %s: compressed size %#x is smaller than its %d-byte header: %w",
			sec.Name(), compressedSize, headerSize, errs.ErrBadValue)
	}

	allocated := false
	if dst == nil {
		var err error
		dst, err = f.allocBuffer(sec, sz)
		if err != nil {
			return nil, err
		}
		allocated = true
	}

	payloadType, _ := sec.PayloadCompression()
	codec, err := f.codecFor(payloadType)
	if err != nil {
		if allocated {
			f.alloc.Release(dst)
		}

		return nil, err
	}
	if err := codec.DecompressInto(dst[:sz], staging.Bytes()[headerSize:]); err != nil {
		if allocated {
			f.alloc.Release(dst)
		}

		return nil, fmt.Errorf("section %s: %w", sec.Name(), err)
	}

	return dst[:sz], nil
}

// CacheContents stashes contents so any following read of sec does not need
// to decompress again. A DecompressSized section becomes Done; the buffer
// becomes the section's exclusively owned contents and the section is
// marked resident in memory.
func (f *File) CacheContents(sec *section.Section, contents []byte) {
	sec.Cache(contents)
	sec.SetDigest(hash.Sum(contents))
}
