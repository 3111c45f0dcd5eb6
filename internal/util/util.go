package util

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"unicode"
)

func GetIDFromString(str *string) string {
	hasher := sha1.New()
	hasher.Write([]byte(*str))

	return hex.EncodeToString(hasher.Sum(nil))
}

// Tokenize lowercases s and splits it on anything that is not a letter or a
// digit. Empty tokens are dropped.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
