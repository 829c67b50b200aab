// Package checksum derives the content digests used as note ETags and by
// the vault mirror to detect external edits.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// String is Sum for note content held as a string.
func String(s string) string {
	return Sum([]byte(s))
}
