// Package canonhash provides deterministic hashing over RFC 8785 (JSON
// Canonicalization Scheme) serialized values. Event chain hashes must be
// reproducible across processes, so plain json.Marshal output (map order,
// HTML escaping) is not hashed directly.
package canonhash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Canonical returns the RFC 8785 canonical JSON encoding of v.
func Canonical(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonhash: marshal failed: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonhash: canonicalization failed: %w", err)
	}
	return canonical, nil
}

// Hash returns "sha256:<hex>" over the canonical JSON encoding of v.
func Hash(v interface{}) (string, error) {
	canonical, err := Canonical(v)
	if err != nil {
		return "", err
	}
	return HashBytes(canonical), nil
}

// HashBytes returns "sha256:<hex>" over raw bytes.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}
