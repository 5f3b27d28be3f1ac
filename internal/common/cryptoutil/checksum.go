// Package cryptoutil provides content checksums for deployed files
package cryptoutil

import (
	"crypto/sha256"
	"encoding/hex"
)

// ShortLen is the number of hex digits kept by Short
const ShortLen = 12

// SHA256 returns the hex-encoded SHA-256 digest of data
func SHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Short truncates a hex checksum for log output
func Short(checksum string) string {
	if len(checksum) <= ShortLen {
		return checksum
	}
	return checksum[:ShortLen]
}
