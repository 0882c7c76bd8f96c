package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashDeterminism(t *testing.T) {
	v := map[string]any{"b": 1, "a": "x"}
	h1, err := Hash(DomainSchema, v)
	require.NoError(t, err)
	h2, err := Hash(DomainSchema, map[string]any{"a": "x", "b": 1})
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestHashDomainSeparation(t *testing.T) {
	h1, err := Hash(DomainSchema, "x")
	require.NoError(t, err)
	h2, err := Hash(DomainTranslation, "x")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestTranslationKey(t *testing.T) {
	base := TranslationKey("fp", "sqlite", 10, "MATCH (n) RETURN n")

	assert.Equal(t, base, TranslationKey("fp", "sqlite", 10, "MATCH (n) RETURN n"))
	assert.NotEqual(t, base, TranslationKey("fp2", "sqlite", 10, "MATCH (n) RETURN n"))
	assert.NotEqual(t, base, TranslationKey("fp", "postgres", 10, "MATCH (n) RETURN n"))
	assert.NotEqual(t, base, TranslationKey("fp", "sqlite", 0, "MATCH (n) RETURN n"))
	assert.NotEqual(t, base, TranslationKey("fp", "sqlite", 10, "MATCH (m) RETURN m"))
}
