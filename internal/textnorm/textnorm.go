// Package textnorm canonicalizes free-form product text and vendor
// codes. Normalized strings are the join keys for the exact-match
// index structures, so every function here is total, deterministic
// and idempotent; the same rules must run at index build time and at
// query time.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	// Visual multiplication signs collapse to a single Latin X so
	// dimension specs like 3х2.5 compare equal regardless of which
	// alphabet or symbol the sender typed.
	multFold = strings.NewReplacer("×", "X", "Х", "X", "х", "X", "*", "X")

	reArea   = regexp.MustCompile(`ММ²|MM²|КВ\.?\s*ММ|MM2`)
	reSpaces = regexp.MustCompile(`\s+`)
)

// NormalizeHeader canonicalizes a display name: NFC, uppercase, Ё→Е,
// multiplication signs→X, area-unit spellings→MM2, then everything
// outside {Latin, Cyrillic, digits, - / . } becomes a space and runs
// of whitespace collapse.
func NormalizeHeader(input string) string {
	s := strings.ToUpper(norm.NFC.String(input))
	s = strings.ReplaceAll(s, "Ё", "Е")
	s = multFold.Replace(s)
	s = reArea.ReplaceAllString(s, "MM2")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if headerRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.TrimSpace(reSpaces.ReplaceAllString(b.String(), " "))
}

// NormalizeCode canonicalizes a vendor code: NFC, uppercase,
// multiplication signs→X, then keep only Latin, Cyrillic, digits and
// - _ /. Whitespace and punctuation (including periods) are dropped.
func NormalizeCode(input string) string {
	s := strings.ToUpper(norm.NFC.String(input))
	s = multFold.Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if codeRune(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Tokenize splits the normalized header into word-like units of at
// least two runes, left to right, duplicates preserved.
func Tokenize(input string) []string {
	parts := strings.Split(NormalizeHeader(input), " ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if utf8.RuneCountInString(p) >= 2 {
			out = append(out, p)
		}
	}
	return out
}

// LooksLikeCode reports whether the line is plausibly a vendor code:
// at least one Latin letter, at least one digit, length ≥ 3 and no
// characters outside letters, digits, - _ / . and whitespace. Used to
// decide whether the code lookup runs before the header lookup.
func LooksLikeCode(input string) bool {
	t := strings.TrimSpace(input)
	if utf8.RuneCountInString(t) < 3 {
		return false
	}

	hasLatin, hasDigit := false, false
	for _, r := range t {
		switch {
		case (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z'):
			hasLatin = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case (r >= 'А' && r <= 'Я') || (r >= 'а' && r <= 'я'):
		case r == '-' || r == '_' || r == '/' || r == '.':
		case unicode.IsSpace(r):
		default:
			return false
		}
	}
	return hasLatin && hasDigit
}

func headerRune(r rune) bool {
	return (r >= 'A' && r <= 'Z') ||
		(r >= 'А' && r <= 'Я') ||
		(r >= '0' && r <= '9') ||
		r == '-' || r == '/' || r == '.'
}

func codeRune(r rune) bool {
	return (r >= 'A' && r <= 'Z') ||
		(r >= 'А' && r <= 'Я') ||
		(r >= '0' && r <= '9') ||
		r == '-' || r == '_' || r == '/'
}
