package hash

import "github.com/cespare/xxhash/v2"

// Sum computes the xxHash64 digest of the given bytes.
func Sum(data []byte) uint64 {
	return xxhash.Sum64(data)
}
