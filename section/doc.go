// Package section defines the section model for compressed object-file
// contents: the per-section compression lifecycle, the legacy "ZLIB" header
// codec, and the HeaderFormat interface behind embedded (format-owned)
// compression headers, with ELF Chdr implementations included.
//
// A section moves through three lifecycle states. None means the stored
// bytes are untouched on backing storage. DecompressSized records a
// promise: sizes have been swapped so the section already reports its
// decompressed size, but no bytes have been inflated. Done means the
// section owns materialized contents and is terminal. The state is a tagged
// variant; fields like the stashed compressed size or the owned buffer only
// exist while the state that defines them is current.
package section
