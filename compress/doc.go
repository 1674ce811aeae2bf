// Package compress provides the stream codecs behind compressed
// object-file sections.
//
// The zlib codec is the primary one: the legacy "ZLIB" header format
// implies it, and it is the default for embedded headers. The remaining
// codecs serve embedded header types that select other algorithms.
//
// Beyond the usual whole-buffer Compress/Decompress pair, every codec
// implements the section contracts: CompressInto writes into a destination
// sized by CompressBound and never silently truncates, and DecompressInto
// fills a destination of exactly the recorded uncompressed size, failing on
// truncated, overlong, or otherwise malformed payloads without writing past
// the buffer. Compressed payloads made of several independently terminated
// streams concatenated back to back decompress to the concatenation of
// their plaintexts.
package compress
