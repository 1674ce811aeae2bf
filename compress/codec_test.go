package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/objfile/zsect/errs"
	"github.com/objfile/zsect/format"
)

func TestGetCodec(t *testing.T) {
	tests := []struct {
		name            string
		compressionType format.CompressionType
		wantErr         bool
	}{
		{name: "zlib", compressionType: format.CompressionZlib},
		{name: "zstd", compressionType: format.CompressionZstd},
		{name: "lz4", compressionType: format.CompressionLZ4},
		{name: "s2", compressionType: format.CompressionS2},
		{name: "none", compressionType: format.CompressionNone},
		{name: "unknown", compressionType: format.CompressionType(0xAA), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codec, err := GetCodec(tt.compressionType)
			if tt.wantErr {
				require.Error(t, err)
				require.Nil(t, codec)

				return
			}
			require.NoError(t, err)
			require.NotNil(t, codec)
		})
	}
}

func TestAllCodecs_RoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("section contents, repeated enough to compress well "), 64)

	types := []format.CompressionType{
		format.CompressionZlib,
		format.CompressionZstd,
		format.CompressionLZ4,
		format.CompressionS2,
		format.CompressionNone,
	}

	for _, ct := range types {
		t.Run(ct.String(), func(t *testing.T) {
			codec, err := GetCodec(ct)
			require.NoError(t, err)

			compressed, err := codec.Compress(data)
			require.NoError(t, err)

			decompressed, err := codec.Decompress(compressed)
			require.NoError(t, err)
			require.Equal(t, data, decompressed)

			// Buffered form: bound-sized destination, then exact-fill back.
			dst := make([]byte, codec.CompressBound(len(data)))
			n, err := codec.CompressInto(dst, data)
			require.NoError(t, err)
			require.Positive(t, n)

			out := make([]byte, len(data))
			require.NoError(t, codec.DecompressInto(out, dst[:n]))
			require.Equal(t, data, out)
		})
	}
}

func TestAllCodecs_DecompressInto_SizeMismatch(t *testing.T) {
	data := bytes.Repeat([]byte("payload "), 128)

	types := []format.CompressionType{
		format.CompressionZlib,
		format.CompressionZstd,
		format.CompressionLZ4,
		format.CompressionS2,
		format.CompressionNone,
	}

	for _, ct := range types {
		t.Run(ct.String(), func(t *testing.T) {
			codec, err := GetCodec(ct)
			require.NoError(t, err)

			compressed, err := codec.Compress(data)
			require.NoError(t, err)

			err = codec.DecompressInto(make([]byte, len(data)+16), compressed)
			require.Error(t, err)
			require.ErrorIs(t, err, errs.ErrBadValue)
		})
	}
}

func TestZstdCodec_ConcatenatedFrames(t *testing.T) {
	codec := NewZstdCodec()

	first := bytes.Repeat([]byte("frame one "), 64)
	second := bytes.Repeat([]byte("frame two "), 32)

	a, err := codec.Compress(first)
	require.NoError(t, err)
	b, err := codec.Compress(second)
	require.NoError(t, err)

	dst := make([]byte, len(first)+len(second))
	require.NoError(t, codec.DecompressInto(dst, append(append([]byte{}, a...), b...)))
	require.Equal(t, append(append([]byte{}, first...), second...), dst)
}

func TestLZ4Codec_IncompressibleInput(t *testing.T) {
	codec := NewLZ4Codec()

	// LZ4 reports incompressible input as a zero-length block; the codec
	// stores the bytes verbatim so the commit size policy sees no gain.
	data := make([]byte, 64)
	for i := range data {
		data[i] = byte((i*113 + 57) % 256)
	}

	dst := make([]byte, codec.CompressBound(len(data)))
	n, err := codec.CompressInto(dst, data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, data, dst[:n])
}

func TestNoopCodec_Bypass(t *testing.T) {
	codec := NewNoopCodec()
	data := []byte("passthrough payload")

	compressed, err := codec.Compress(data)
	require.NoError(t, err)
	require.Equal(t, data, compressed)
	require.Equal(t, len(data), codec.CompressBound(len(data)))

	_, err = codec.CompressInto(make([]byte, len(data)-1), data)
	require.ErrorIs(t, err, errs.ErrInvalidOperation)

	err = codec.DecompressInto(make([]byte, len(data)-1), data)
	require.ErrorIs(t, err, errs.ErrBadValue)
}
