package similarity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDice(t *testing.T) {
	t.Run("identity", func(t *testing.T) {
		require.Equal(t, 1.0, Dice("КАБЕЛЬ ВВГНГ 3X2.5", "КАБЕЛЬ ВВГНГ 3X2.5"))
	})

	t.Run("empty and single rune", func(t *testing.T) {
		require.Equal(t, 0.0, Dice("", "КАБЕЛЬ"))
		require.Equal(t, 0.0, Dice("КАБЕЛЬ", ""))
		require.Equal(t, 0.0, Dice("", ""))
		require.Equal(t, 0.0, Dice("A", "AB"))
	})

	t.Run("disjoint", func(t *testing.T) {
		require.Equal(t, 0.0, Dice("АБВГ", "ДЕЖЗ"))
	})

	t.Run("symmetry", func(t *testing.T) {
		a, b := "КАБЕЛЬ ВВГНГ 3X2.5", "КАБЕЛЬ ВВГНГ 3X4"
		require.Equal(t, Dice(a, b), Dice(b, a))
	})

	t.Run("bounds", func(t *testing.T) {
		pairs := [][2]string{
			{"КАБЕЛЬ ВВГНГ", "КАБЕЛЬ ВВГ"},
			{"ПРОВОД ПВС 2X1.5", "ПРОВОД ПУГВ 1X6"},
			{"ELC0100203802", "ELC0100203803"},
		}
		for _, p := range pairs {
			s := Dice(p[0], p[1])
			require.GreaterOrEqual(t, s, 0.0)
			require.LessOrEqual(t, s, 1.0)
		}
	})

	t.Run("known value", func(t *testing.T) {
		// АБВГ: {АБ, БВ, ВГ}; БВГД: {БВ, ВГ, ГД}; shared 2 of 3+3.
		require.InDelta(t, 2.0*2/6, Dice("АБВГ", "БВГД"), 1e-9)
	})

	t.Run("repeated bigrams capped", func(t *testing.T) {
		// XXX has bigrams {XX, XX}, XX has {XX}: only one instance is
		// shared, not two.
		require.InDelta(t, 2.0*1/3, Dice("XXX", "XX"), 1e-9)
	})
}

func TestHeaderScore(t *testing.T) {
	t.Run("falls back to dice without tokens", func(t *testing.T) {
		require.Equal(t, Dice("АБВГ", "БВГД"), HeaderScore("АБВГ", "БВГД", nil, nil))
		require.Equal(t, Dice("АБВГ", "БВГД"), HeaderScore("АБВГ", "БВГД", []string{"АБВГ"}, nil))
	})

	t.Run("blends dice and token overlap", func(t *testing.T) {
		// Dice("АБ ВГ","АБ") = 2·1/(4+1); one of two query tokens hits.
		want := 0.65*(2.0/5) + 0.35*0.5
		got := HeaderScore("АБ ВГ", "АБ", []string{"АБ", "ВГ"}, []string{"АБ"})
		require.InDelta(t, want, got, 1e-9)
	})

	t.Run("duplicate query tokens count once", func(t *testing.T) {
		full := HeaderScore("ВВГ ВВГ", "ВВГ ВВГ", []string{"ВВГ", "ВВГ"}, []string{"ВВГ"})
		require.InDelta(t, 0.65*Dice("ВВГ ВВГ", "ВВГ ВВГ")+0.35*1.0, full, 1e-9)
	})

	t.Run("perfect match", func(t *testing.T) {
		got := HeaderScore("КАБЕЛЬ ВВГНГ", "КАБЕЛЬ ВВГНГ", []string{"КАБЕЛЬ", "ВВГНГ"}, []string{"КАБЕЛЬ", "ВВГНГ"})
		require.InDelta(t, 1.0, got, 1e-9)
	})
}
