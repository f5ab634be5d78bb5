package token

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoginToken_Is64HexChars(t *testing.T) {
	tok, err := NewLoginToken()
	require.NoError(t, err)
	assert.Len(t, tok, 64)

	_, err = hex.DecodeString(tok)
	assert.NoError(t, err)
}

func TestNewLoginToken_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := NewLoginToken()
		require.NoError(t, err)
		require.False(t, seen[tok])
		seen[tok] = true
	}
}
