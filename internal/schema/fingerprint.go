package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Fingerprint returns a hex SHA-256 digest over the canonical JSON encoding
// of a record. encoding/json writes struct fields in declaration order and
// map keys sorted, so equal content always produces equal digests.
func Fingerprint(v any) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal for fingerprint: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// BodyHash digests raw fetched bytes for snapshot naming and content
// comparison.
func BodyHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
