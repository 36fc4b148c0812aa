package dataset

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint is the "0x" prefixed hex SHA-256 of b.
func Fingerprint(b []byte) string {
	sum := sha256.Sum256(b)
	return "0x" + hex.EncodeToString(sum[:])
}

// Hash fingerprints the rendered table. It changes with any cell, header, or
// column order change.
func (d *Dataset) Hash() string {
	return Fingerprint([]byte(d.Render()))
}
