package compress

import "github.com/klauspost/compress/s2"

// S2Codec provides S2 block compression for sections whose embedded header
// carries a vendor-specific S2 type.
type S2Codec struct{}

var _ Codec = S2Codec{}

// NewS2Codec creates a new S2 codec.
func NewS2Codec() S2Codec {
	return S2Codec{}
}

// Compress compresses the input data using S2 compression.
func (c S2Codec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return s2.Encode(nil, data), nil
}

// CompressBound returns the maximum S2 encoded size for n input bytes.
func (c S2Codec) CompressBound(n int) int {
	return s2.MaxEncodedLen(n)
}

// CompressInto compresses data into dst, returning the produced length.
func (c S2Codec) CompressInto(dst, data []byte) (int, error) {
	return compressIntoBuffer(c, dst, data)
}

// Decompress decompresses the input data using S2 decompression.
func (c S2Codec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return s2.Decode(nil, data)
}

// DecompressInto decompresses data into dst, which must be sized to the
// exact decompressed length.
func (c S2Codec) DecompressInto(dst, data []byte) error {
	return decompressIntoExact(c, dst, data)
}
