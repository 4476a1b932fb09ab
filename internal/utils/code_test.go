package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCodeUsesUnambiguousAlphabet(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateCode(6)
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, ch := range code {
			assert.Contains(t, codeAlphabet, string(ch))
		}
		// The confusable characters must never appear.
		assert.NotContains(t, code, "0")
		assert.NotContains(t, code, "O")
		assert.NotContains(t, code, "1")
		assert.NotContains(t, code, "I")
	}
}

func TestGenerateCodeDefaultsLength(t *testing.T) {
	code, err := GenerateCode(0)
	require.NoError(t, err)
	assert.Len(t, code, 6)
}

func TestFormatCode(t *testing.T) {
	assert.Equal(t, "ABC-123", FormatCode("ABC123"))
	assert.Equal(t, "AB", FormatCode("AB"))
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "ABC123", NormalizeCode("abc-123"))
	assert.Equal(t, "ABC123", NormalizeCode(" abc 123 "))
	assert.Equal(t, "ABC123", NormalizeCode("ABC123"))
}

func TestFormatNormalizeRoundTrip(t *testing.T) {
	code, err := GenerateCode(6)
	require.NoError(t, err)
	assert.Equal(t, code, NormalizeCode(FormatCode(code)))
	assert.Equal(t, code, NormalizeCode(strings.ToLower(FormatCode(code))))
}
