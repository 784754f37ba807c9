package quality

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// ChecksumMatches reports whether a client-declared digest matches the object
// bytes. Two candidates are accepted: the SHA-256 of the raw bytes, and the
// SHA-256 of their standard-base64 text, because some clients digest the
// base64 payload they transmit instead of the decoded bytes. An empty declared
// checksum is not a mismatch; clients are not required to send one.
func ChecksumMatches(data []byte, declared string) bool {
	if declared == "" {
		return true
	}
	raw := sha256.Sum256(data)
	if strings.EqualFold(hex.EncodeToString(raw[:]), declared) {
		return true
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	b64 := sha256.Sum256([]byte(encoded))
	return strings.EqualFold(hex.EncodeToString(b64[:]), declared)
}

// RawChecksum returns the hex SHA-256 of the bytes, the digest servers use when
// recording content identity themselves.
func RawChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
