package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns the hex SHA-256 of the input string. Used to derive fixed-size
// cache keys from request paths.
func Hash(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
