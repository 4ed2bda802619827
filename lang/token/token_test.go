package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	for k := Kind(0); k < maxKind; k++ {
		require.NotEqual(t, "", k.String())
	}
}

func TestKeywords(t *testing.T) {
	for word, kind := range Keywords {
		require.Equal(t, word, kind.String())
	}
	require.Equal(t, IDENT, Kind(IDENT))
}
