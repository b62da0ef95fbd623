// Package random generates cryptographically random values for session
// keys and cookie names.
package random

import (
	"crypto/rand"
	"encoding/hex"
)

// Bytes returns n cryptographically random bytes. It panics when the
// system's entropy source fails, which is unrecoverable at startup.
func Bytes(n int) []byte {
	bytes := make([]byte, n)

	_, err := rand.Read(bytes)
	if err != nil {
		panic(err)
	}

	return bytes
}

// String returns the hex encoding of n random bytes (2n characters).
func String(n int) string {
	return hex.EncodeToString(Bytes(n))
}
