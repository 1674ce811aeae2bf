package objfile

import (
	"errors"
	"fmt"
	"io"

	"github.com/objfile/zsect/compress"
	"github.com/objfile/zsect/errs"
	"github.com/objfile/zsect/format"
	"github.com/objfile/zsect/internal/options"
	"github.com/objfile/zsect/section"
)

// Direction indicates whether a file handle was opened for reading or
// writing. Decompression promises belong to read handles; compression
// commits belong to write handles.
type Direction uint8

const (
	DirectionRead Direction = iota
	DirectionWrite
)

// Backend supplies raw section bytes from backing storage. bytes.Reader
// satisfies it, as does any seekable file wrapper exposing its total size.
type Backend interface {
	io.ReaderAt

	// Size returns the backing file's total size in bytes, or 0 when
	// unknown. The truncation guard compares declared section sizes
	// against it.
	Size() int64
}

// Allocator backs section buffers for the lifetime of the file handle.
// Implementations may be arenas; the default allocates from the Go heap and
// lets the garbage collector reclaim released buffers.
//
// Buffers handed to a section via commit or cache are owned by that section
// exclusively; every code path releases exactly the buffers it does not
// hand off.
type Allocator interface {
	// Alloc returns a zeroed buffer of the given size. Failures surface to
	// callers as errs.ErrNoMemory.
	Alloc(size uint64) ([]byte, error)

	// Release returns a buffer obtained from Alloc. Releasing a buffer the
	// allocator did not produce is allowed and ignored by the default
	// implementation.
	Release(buf []byte)
}

type heapAllocator struct{}

func (heapAllocator) Alloc(size uint64) ([]byte, error) { return make([]byte, size), nil }
func (heapAllocator) Release([]byte)                    {}

// DefaultMaxDecompressSize is the default ceiling on any single
// decompression target. Uncompressed sizes come from on-disk headers, so an
// implausible value must not drive an allocation.
const DefaultMaxDecompressSize = 4 << 30 // 4GiB

// File is a handle over one object file's backing storage, header format,
// and allocator. It exposes the compression lifecycle operations for the
// file's sections.
//
// File performs no internal synchronization. Operations on two different
// sections are safe concurrently only when the Backend and Allocator are;
// operations on one section must be serialized by the caller.
type File struct {
	backend       Backend
	hdrFormat     section.HeaderFormat // nil means the legacy encoding
	alloc         Allocator
	direction     Direction
	compression   format.CompressionType
	codec         compress.Codec // optional override for every payload type
	maxDecompress uint64
	verify        bool
}

// FileOption is a functional option for configuring a File.
type FileOption = options.Option[*File]

// Open creates a file handle over backend. With no options the handle is
// read-mode, uses the legacy header encoding, compresses with zlib, and
// allocates from the Go heap.
//
// backend may be nil for write-mode handles that only commit contents.
func Open(backend Backend, opts ...FileOption) (*File, error) {
	f := &File{
		backend:       backend,
		alloc:         heapAllocator{},
		direction:     DirectionRead,
		compression:   format.CompressionZlib,
		maxDecompress: DefaultMaxDecompressSize,
	}
	if err := options.Apply(f, opts...); err != nil {
		return nil, err
	}

	return f, nil
}

// WithHeaderFormat selects the embedded compression header format. Without
// it the handle uses the legacy "ZLIB" encoding.
func WithHeaderFormat(hf section.HeaderFormat) FileOption {
	return options.NoError(func(f *File) {
		f.hdrFormat = hf
	})
}

// WithAllocator supplies the allocator backing section buffers.
func WithAllocator(alloc Allocator) FileOption {
	return options.New(func(f *File) error {
		if alloc == nil {
			return errors.New("allocator cannot be nil")
		}
		f.alloc = alloc

		return nil
	})
}

// WithWriteMode opens the handle for writing. Compression commits require
// it; decompression promises refuse it.
func WithWriteMode() FileOption {
	return options.NoError(func(f *File) {
		f.direction = DirectionWrite
	})
}

// WithCompression selects the codec used when freshly compressing section
// contents. The legacy header encoding can only describe zlib.
func WithCompression(compressionType format.CompressionType) FileOption {
	return options.New(func(f *File) error {
		if _, err := compress.GetCodec(compressionType); err != nil {
			return err
		}
		f.compression = compressionType

		return nil
	})
}

// WithCodec overrides the codec for every payload type, bypassing the
// registry. Intended for instrumented codecs in tests and for callers with
// a custom stream primitive.
func WithCodec(codec compress.Codec) FileOption {
	return options.NoError(func(f *File) {
		f.codec = codec
	})
}

// WithMaxDecompressSize replaces the ceiling on any single decompression
// target; 0 disables the check.
func WithMaxDecompressSize(size uint64) FileOption {
	return options.NoError(func(f *File) {
		f.maxDecompress = size
	})
}

// WithContentsVerification makes Done-state reads verify the xxHash64
// digest recorded when the contents were cached.
func WithContentsVerification() FileOption {
	return options.NoError(func(f *File) {
		f.verify = true
	})
}

// Direction returns the handle's open direction.
func (f *File) Direction() Direction { return f.direction }

// headerSize returns the embedded header size for sec, or 0 when the legacy
// encoding applies. sec may be nil to ask about the target format. A format
// reporting a size beyond the maximum window has broken its contract; that
// is not a data condition, so it panics.
func (f *File) headerSize(sec *section.Section) int {
	if f.hdrFormat == nil {
		return 0
	}
	n := f.hdrFormat.HeaderSize(sec)
	if n > format.MaxHeaderSize {
		panic(fmt.Sprintf("zsect: header format reports a %d-byte header, beyond the %d-byte maximum", n, format.MaxHeaderSize))
	}

	return n
}

// codecFor resolves the codec for a payload type, honoring the override.
func (f *File) codecFor(compressionType format.CompressionType) (compress.Codec, error) {
	if f.codec != nil {
		return f.codec, nil
	}

	return compress.GetCodec(compressionType)
}

// allocBuffer wraps the allocator with a size-aware diagnostic.
func (f *File) allocBuffer(sec *section.Section, size uint64) ([]byte, error) {
	buf, err := f.alloc.Alloc(size)
	if err != nil {
		return nil, fmt.Errorf("section %s is too large (%#x bytes): %w",
			sec.Name(), size, errs.ErrNoMemory)
	}

	return buf, nil
}

// backendSize returns the backing file's size, or 0 when there is no
// backend or its size is unknown.
func (f *File) backendSize() int64 {
	if f.backend == nil {
		return 0
	}

	return f.backend.Size()
}

// readStored reads length bytes of the section's stored representation
// starting at off: from resident contents when the section is in memory,
// otherwise from the backend at the section's file position.
func (f *File) readStored(sec *section.Section, buf []byte, off int64, length uint64) error {
	if sec.InMemory() {
		if contents, ok := sec.Contents(); ok {
			if off < 0 || uint64(off)+length > uint64(len(contents)) {
				return fmt.Errorf("section %s: read of %d bytes at offset %#x beyond resident contents: %w",
					sec.Name(), length, off, errs.ErrInvalidOperation)
			}
			copy(buf[:length], contents[off:])

			return nil
		}
	}
	if f.backend == nil {
		return fmt.Errorf("section %s has no backing storage: %w", sec.Name(), errs.ErrInvalidOperation)
	}
	if _, err := f.backend.ReadAt(buf[:length], sec.Offset()+off); err != nil {
		return fmt.Errorf("reading %d bytes of section %s at offset %#x: %w",
			length, sec.Name(), off, err)
	}

	return nil
}
