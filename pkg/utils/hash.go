package utils

import (
	"fmt"
	"hash/fnv"
)

// HashString returns a short stable hex digest of the input. It keys cache
// entries and record fingerprints; a collision only costs a cache miss or an
// extra dedupe comparison, so a 64-bit non-cryptographic hash is enough.
func HashString(input string) string {
	h := fnv.New64a()
	h.Write([]byte(input))
	return fmt.Sprintf("%016x", h.Sum64())
}
