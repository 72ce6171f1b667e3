package util

import (
	"crypto/rand"
	"math/big"
)

const (
	usernamePrefix = "user"
	usernameDigits = 4

	secretLength   = 8
	secretAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*"
)

// GenerateUsername returns a pseudonymous display name: "user" followed by
// four random digits. Uniqueness is enforced by the store, not here.
func GenerateUsername() string {
	return usernamePrefix + randomFrom("0123456789", usernameDigits)
}

// GenerateSecret returns an 8-character credential secret. It is a display
// string for the bot flow, not a security boundary.
func GenerateSecret() string {
	return randomFrom(secretAlphabet, secretLength)
}

func randomFrom(alphabet string, n int) string {
	out := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform source is broken;
			// fall back to the first symbol rather than panic mid-request.
			out[i] = alphabet[0]
			continue
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out)
}
