package otpcode

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext_LengthAndAlphabet(t *testing.T) {
	g := NewGenerator(6)
	for i := 0; i < 50; i++ {
		code, err := g.Next()
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, c := range code {
			assert.True(t, c >= '0' && c <= '9', "unexpected rune %q", c)
		}
	}
}

func TestNext_NotRepeating(t *testing.T) {
	g := NewGenerator(10)
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		code, err := g.Next()
		require.NoError(t, err)
		seen[code] = struct{}{}
	}
	// 10 random digits colliding within 200 draws is astronomically unlikely.
	assert.Len(t, seen, 200)
}

func TestNext_InvalidLength(t *testing.T) {
	_, err := NewGenerator(0).Next()
	assert.Error(t, err)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestNext_PropagatesRandomFailure(t *testing.T) {
	g := &Generator{length: 6, rand: failingReader{}}
	_, err := g.Next()
	assert.ErrorContains(t, err, "entropy exhausted")
}
