// Package contenthash derives stable names from ordered string sequences.
//
// The digest is used to name checkpoint blobs deterministically and to
// derive dataset identifiers from tabular column values. Collision
// resistance, not cryptographic strength, is the requirement, so SHA-1
// is sufficient and keeps names short.
package contenthash

import (
	"crypto/sha1"
	"encoding/hex"
)

// Keys returns the SHA-1 hex digest of the given strings concatenated
// in order with no separator.
//
// The result is deterministic and order-sensitive: the same sequence in
// the same order always yields the same digest, and reordering the
// sequence generally yields a different one. Callers must therefore pass
// keys in a stable, meaningful order.
func Keys(keys []string) string {
	h := sha1.New()
	for _, k := range keys {
		h.Write([]byte(k))
	}
	return hex.EncodeToString(h.Sum(nil))
}
