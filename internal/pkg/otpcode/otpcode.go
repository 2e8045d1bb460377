// Package otpcode produces the secrets delivered to users as one-time codes.
package otpcode

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

const digits = "0123456789"

// Generator returns fixed-length numeric codes drawn from a cryptographic source.
type Generator struct {
	length int
	rand   io.Reader
}

// NewGenerator returns a Generator producing codes of the given length.
func NewGenerator(length int) *Generator {
	return &Generator{length: length, rand: rand.Reader}
}

// Next returns a fresh code. Every digit is drawn independently, so codes are
// neither sequential nor derived from the clock.
func (g *Generator) Next() (string, error) {
	if g.length <= 0 {
		return "", fmt.Errorf("code length must be positive, got %d", g.length)
	}
	n := big.NewInt(int64(len(digits)))
	b := make([]byte, g.length)
	for i := range b {
		idx, err := rand.Int(g.rand, n)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		b[i] = digits[idx.Int64()]
	}
	return string(b), nil
}
