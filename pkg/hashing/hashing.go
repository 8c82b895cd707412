package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// CanonicalJSON serializes v to JSON with deterministic key ordering,
// independent of struct field order or the order keys were inserted.
// Structs are round-tripped through a map so that two values with the
// same content always produce the same bytes.
func CanonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}

	// encoding/json sorts map keys, which gives us the canonical form
	return json.Marshal(generic)
}

// PayloadHash returns the hex-encoded SHA-256 of the canonical JSON form of v
func PayloadHash(v interface{}) (string, error) {
	canonical, err := CanonicalJSON(v)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
