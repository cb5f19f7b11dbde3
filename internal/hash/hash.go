// Package hash provides the content digests used for cache freshness checks.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
)

// HexLength is the length of a hex encoded SHA-256 digest.
const HexLength = sha256.Size * 2

// SHA256Hex returns the full hex encoded SHA-256 digest of the input string.
func SHA256Hex(data string) string {
	h := sha256.Sum256([]byte(data))
	return hex.EncodeToString(h[:])
}
