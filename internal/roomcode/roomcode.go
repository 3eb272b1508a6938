// Package roomcode normalizes host-supplied room identifiers and generates
// fresh ones, per spec §3/§4.6. Normalize keeps uppercase A-Z and 0-9, at
// most 8 chars; Generate draws 6 chars from Alphabet, which excludes the
// visually-ambiguous I/O/0/1.
package roomcode

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	// Alphabet excludes I, O, 0, 1 for readability when read aloud or typed.
	Alphabet  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	MaxLength = 8
	GenLength = 6
)

// Normalize uppercases id, strips non-alphanumeric characters, and clamps
// the result to MaxLength. It is idempotent: Normalize(Normalize(x)) ==
// Normalize(x).
func Normalize(id string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(id) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}

	out := b.String()
	if len(out) > MaxLength {
		out = out[:MaxLength]
	}

	return out
}

// Generate returns a fresh random GenLength-character code drawn from
// Alphabet. Callers are responsible for collision-checking against a
// registry.
func Generate() string {
	b := make([]byte, GenLength)
	max := big.NewInt(int64(len(Alphabet)))

	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failing is effectively fatal for ID generation;
			// fall back to a fixed index rather than panicking mid-room-creation.
			n = big.NewInt(0)
		}
		b[i] = Alphabet[n.Int64()]
	}

	return string(b)
}

// NormalizeOrGenerate returns Normalize(id) unless that yields an empty
// string, in which case it returns a freshly Generate()-d code.
func NormalizeOrGenerate(id string) string {
	if n := Normalize(id); n != "" {
		return n
	}

	return Generate()
}
