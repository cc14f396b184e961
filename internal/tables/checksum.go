package tables

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

const checksumPrefix = "sha256:"

// ComputeChecksum returns the "sha256:<hex>" digest of an exported file.
func ComputeChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return checksumPrefix + hex.EncodeToString(sum[:])
}

// VerifyChecksum reports whether data matches expected. A bare hex digest
// without the algorithm prefix is accepted.
func VerifyChecksum(data []byte, expected string) bool {
	want, err := hex.DecodeString(strings.TrimPrefix(expected, checksumPrefix))
	if err != nil {
		return false
	}
	sum := sha256.Sum256(data)
	return subtle.ConstantTimeCompare(sum[:], want) == 1
}
