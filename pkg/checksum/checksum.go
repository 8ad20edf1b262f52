// Package checksum computes SHA-256 digests of index snapshots. The digest
// doubles as the snapshot's identity: it is compared against the checksum the
// storage backend reports and served as the ETag of the JSON exports.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// CalculateSHA256 returns the lowercase hex SHA-256 of everything read from reader
func CalculateSHA256(reader io.Reader) (string, error) {
	hasher := sha256.New()

	if _, err := io.Copy(hasher, reader); err != nil {
		return "", fmt.Errorf("failed to calculate checksum: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// SumBytes is CalculateSHA256 for data already in memory
func SumBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Matches reports whether data hashes to expected. Hex case is ignored.
func Matches(data []byte, expected string) bool {
	return strings.EqualFold(SumBytes(data), strings.TrimSpace(expected))
}

// ETag formats a hex digest as a strong HTTP entity tag
func ETag(sum string) string {
	return `"` + sum + `"`
}
