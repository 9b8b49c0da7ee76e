package textnorm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeHeader(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "uppercase and latin x", input: "Кабель ВВГнг 3x2.5", want: "КАБЕЛЬ ВВГНГ 3X2.5"},
		{name: "cyrillic multiplication sign", input: "Кабель ВВГнг 3х2.5", want: "КАБЕЛЬ ВВГНГ 3X2.5"},
		{name: "asterisk multiplication", input: "кабель 3*2.5", want: "КАБЕЛЬ 3X2.5"},
		{name: "unicode multiplication", input: "кабель 3×2.5", want: "КАБЕЛЬ 3X2.5"},
		{name: "yo folding", input: "провод чёрный", want: "ПРОВОД ЧЕРНЫЙ"},
		{name: "quotes to spaces", input: `Провод ПуГВ «красный»`, want: "ПРОВОД ПУГВ КРАСНЫЙ"},
		{name: "area unit superscript", input: "кабель 4 мм²", want: "КАБЕЛЬ 4 MM2"},
		{name: "area unit kv mm", input: "кабель 4 кв.мм", want: "КАБЕЛЬ 4 MM2"},
		{name: "area unit kv space mm", input: "кабель 4 кв мм", want: "КАБЕЛЬ 4 MM2"},
		{name: "punctuation dropped", input: "Автомат, C16; (хар-ка C)", want: "АВТОМАТ C16 XАР-КА C"},
		{name: "whitespace collapsed", input: "  кабель \t ввг  ", want: "КАБЕЛЬ ВВГ"},
		{name: "empty", input: "", want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, NormalizeHeader(tc.input))
		})
	}
}

func TestNormalizeHeaderIdempotent(t *testing.T) {
	inputs := []string{
		"Кабель ВВГнг 3х2.5 кв.мм",
		`ELC0100203802 "оригинал"`,
		"провод чёрный 4 мм²",
		"Автомат C16 (тип C) 3*25",
		"",
	}
	for _, input := range inputs {
		once := NormalizeHeader(input)
		require.Equal(t, once, NormalizeHeader(once), "input %q", input)
	}
}

func TestNormalizeCode(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "lowercase articul", input: "elc0100203802", want: "ELC0100203802"},
		{name: "inner whitespace removed", input: "ELC 0100 203 802", want: "ELC0100203802"},
		{name: "periods dropped", input: "ELC.0100.203", want: "ELC0100203"},
		{name: "multiplication folded", input: "ввг 3х2", want: "ВВГ3X2"},
		{name: "keeps dash underscore slash", input: "a-b_c/d", want: "A-B_C/D"},
		{name: "symbols dropped", input: "NYM(J) №5", want: "NYMJ5"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, NormalizeCode(tc.input))
		})
	}
}

func TestNormalizeCodeIdempotent(t *testing.T) {
	for _, input := range []string{"ELC 0100.203", "ввг 3х2.5", "a-b_c/d"} {
		once := NormalizeCode(input)
		require.Equal(t, once, NormalizeCode(once))
	}
}

func TestTokenize(t *testing.T) {
	require.Equal(t, []string{"КАБЕЛЬ", "ВВГНГ", "3X2.5"}, Tokenize("Кабель, ВВГнг 3х2.5"))
	// Single-rune fragments are dropped, duplicates kept in order.
	require.Equal(t, []string{"ВВГ", "ВВГ"}, Tokenize("ВВГ и ВВГ"))
	require.Empty(t, Tokenize(""))
	require.Empty(t, Tokenize("а б в"))
}

func TestLooksLikeCode(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"ELC0100203802", true},
		{"elc-0100/203", true},
		{"NYM 3x1.5", true},
		{"Кабель", false},        // no latin letter, no digit
		{"ВВГнг 3х2.5", false},   // digits but no latin letter
		{"ABCDEF", false},        // no digit
		{"123456", false},        // no letter
		{"A1", false},            // too short
		{"EL#123", false},        // disallowed character
		{"  ELC123  ", true},     // surrounding space trimmed
		{"", false},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, LooksLikeCode(tc.input), "input %q", tc.input)
	}
}
