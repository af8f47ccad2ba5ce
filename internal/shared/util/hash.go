package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentDigest returns the hex sha256 of data.
func ContentDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
