package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndComparePassword(t *testing.T) {
	hash, err := HashPassword("Abcdef1!", 4)
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	require.NotEqual(t, "Abcdef1!", hash)

	require.NoError(t, ComparePassword(hash, "Abcdef1!"))
	require.Error(t, ComparePassword(hash, "Abcdef1?"))
}

func TestHashPasswordFreshSalt(t *testing.T) {
	first, err := HashPassword("Abcdef1!", 4)
	require.NoError(t, err)
	second, err := HashPassword("Abcdef1!", 4)
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestComparePasswordMalformedDigest(t *testing.T) {
	require.Error(t, ComparePassword("not-a-bcrypt-digest", "Abcdef1!"))
}

func TestHashPasswordDefaultCost(t *testing.T) {
	hash, err := HashPassword("Abcdef1!", 0)
	require.NoError(t, err)
	require.NoError(t, ComparePassword(hash, "Abcdef1!"))
}
