package utils

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // omit easily confused chars

// GenerateCode produces an n-character access code from the unambiguous
// alphabet. n <= 0 falls back to the standard 6-character code.
func GenerateCode(n int) (string, error) {
	if n <= 0 {
		n = 6
	}
	b := make([]byte, n)
	for i := 0; i < n; i++ {
		idxBig, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		b[i] = codeAlphabet[idxBig.Int64()]
	}
	return string(b), nil
}

// FormatCode renders a code for display with a separator after the third
// character (ABC123 -> ABC-123).
func FormatCode(code string) string {
	if len(code) <= 3 {
		return code
	}
	return code[:3] + "-" + code[3:]
}

// NormalizeCode strips separators and whitespace and uppercases, so user
// input compares case-insensitively against stored codes.
func NormalizeCode(code string) string {
	code = strings.ReplaceAll(code, "-", "")
	code = strings.ReplaceAll(code, " ", "")
	return strings.ToUpper(code)
}
