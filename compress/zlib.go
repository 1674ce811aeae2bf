package compress

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"

	"github.com/objfile/zsect/errs"
)

// zlibWriterPool pools zlib writers for reuse; each Get is followed by a
// Reset against the current destination, so leftover stream state from a
// previous use is irrelevant.
var zlibWriterPool = sync.Pool{
	New: func() any {
		return zlib.NewWriter(nil)
	},
}

// ZlibCodec is the primary stream codec for compressed sections. The legacy
// "ZLIB" header format implies it, and it is the default payload codec for
// embedded header formats as well.
//
// Decompression tolerates payloads built from several independently
// terminated zlib streams concatenated back to back, an artifact of
// producers that flush large sections in chunks. Each stream is inflated to
// completion and the next one picked up where the previous checksum ended.
type ZlibCodec struct{}

var _ Codec = ZlibCodec{}

// NewZlibCodec creates a new zlib codec.
func NewZlibCodec() ZlibCodec {
	return ZlibCodec{}
}

// Compress compresses data into a single zlib stream.
func (c ZlibCodec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	zw, _ := zlibWriterPool.Get().(*zlib.Writer)
	defer zlibWriterPool.Put(zw)
	zw.Reset(&buf)

	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("zlib compression failed: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zlib compression failed: %w", err)
	}

	return buf.Bytes(), nil
}

// CompressBound returns the worst-case zlib output size for n input bytes:
// the deflate stored-block expansion plus the 2-byte header and 4-byte
// Adler-32 trailer.
func (c ZlibCodec) CompressBound(n int) int {
	return n + n>>12 + n>>14 + n>>25 + 13
}

// CompressInto compresses data into dst, returning the produced length.
func (c ZlibCodec) CompressInto(dst, data []byte) (int, error) {
	sw := &sliceWriter{buf: dst}
	zw, _ := zlibWriterPool.Get().(*zlib.Writer)
	defer zlibWriterPool.Put(zw)
	zw.Reset(sw)

	if _, err := zw.Write(data); err != nil {
		return 0, fmt.Errorf("zlib compression of %d bytes failed: %w", len(data), err)
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("zlib compression of %d bytes failed: %w", len(data), err)
	}

	return sw.n, nil
}

// Decompress decompresses one or more concatenated zlib streams.
func (c ZlibCodec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	br := bytes.NewReader(data)
	var out bytes.Buffer
	for br.Len() > 0 {
		zr, err := zlib.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("zlib decompression failed: %w", err)
		}
		_, err = io.Copy(&out, zr)
		if cerr := zr.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, fmt.Errorf("zlib decompression failed: %w", err)
		}
	}

	return out.Bytes(), nil
}

// DecompressInto decompresses data into dst, which must be sized to the
// exact decompressed total across all concatenated streams.
//
// The reader passed to zlib must satisfy io.ByteReader (bytes.Reader does)
// so the inflater consumes exactly one stream's bytes and leaves the next
// stream's opening byte in place for the following iteration.
func (c ZlibCodec) DecompressInto(dst, data []byte) error {
	br := bytes.NewReader(data)
	filled := 0
	for br.Len() > 0 {
		zr, err := zlib.NewReader(br)
		if err != nil {
			return fmt.Errorf("compressed block %d bytes into input is malformed: %w: %w",
				len(data)-br.Len(), errs.ErrBadValue, err)
		}
		n, err := readWholeStream(zr, dst[filled:])
		filled += n
		if cerr := zr.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("%w: %w", errs.ErrBadValue, err)
		}
	}
	if filled != len(dst) {
		return fmt.Errorf("decompressed to %d bytes, expected exactly %d: %w",
			filled, len(dst), errs.ErrBadValue)
	}

	return nil
}

// readWholeStream inflates a single stream to its end-of-stream marker,
// writing into dst. A stream still producing data once dst is exhausted is
// an overrun; a stream ending early leaves the shortfall for the caller's
// exact-fill check.
func readWholeStream(zr io.Reader, dst []byte) (int, error) {
	filled := 0
	for {
		if filled == len(dst) {
			// Probe with a one-byte scratch so an overlong stream cannot
			// write past dst.
			var probe [1]byte
			n, err := zr.Read(probe[:])
			if n > 0 {
				return filled, fmt.Errorf("stream produces more than the declared %d bytes", len(dst))
			}
			if err == io.EOF {
				return filled, nil
			}
			if err != nil {
				return filled, err
			}

			continue
		}

		n, err := zr.Read(dst[filled:])
		filled += n
		if err == io.EOF {
			return filled, nil
		}
		if err != nil {
			return filled, err
		}
	}
}

// sliceWriter writes into a fixed byte slice and fails once full. It backs
// CompressInto's never-truncate contract.
type sliceWriter struct {
	buf []byte
	n   int
}

func (w *sliceWriter) Write(p []byte) (int, error) {
	if len(p) > len(w.buf)-w.n {
		return 0, fmt.Errorf("destination buffer of %d bytes is too small: %w",
			len(w.buf), errs.ErrInvalidOperation)
	}
	copy(w.buf[w.n:], p)
	w.n += len(p)

	return len(p), nil
}
