package util

import (
	"crypto/rand"
	"encoding/hex"
)

// idBytes sizes row IDs; 16 random bytes keep collisions out of reach even
// across job, target and metric rows created in the same request.
const idBytes = 16

// NewID returns a random lowercase hex identifier used as the primary key
// for every persisted row.
func NewID() string {
	b := make([]byte, idBytes)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
