package entitlement

import (
	"crypto/rand"
	"fmt"
)

// Keys are 12 characters from a 36-symbol alphabet, ~62 bits of entropy.
// Collisions are negligible at any realistic key volume; Store.CreateAuthKey
// still regenerates on the off chance.
const (
	keyLength   = 12
	keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

func generateKey() (string, error) {
	// Rejection sampling keeps the symbol distribution uniform. 252 is the
	// largest multiple of 36 below 256.
	const limit = 252
	out := make([]byte, 0, keyLength)
	buf := make([]byte, keyLength*2)
	for len(out) < keyLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, keyAlphabet[int(b)%len(keyAlphabet)])
			if len(out) == keyLength {
				break
			}
		}
	}
	return string(out), nil
}

// LooksLikeKey reports whether text has the shape of a generated auth key:
// exactly 12 uppercase alphanumeric characters.
func LooksLikeKey(text string) bool {
	if len(text) != keyLength {
		return false
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
