package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"quotematch/internal"
	"quotematch/internal/util"
)

func record(id int, header string) internal.ProductRecord {
	return internal.ProductRecord{ID: id, Header: header}
}

func TestBuildIndexLastRecordWins(t *testing.T) {
	idx := BuildIndex([]internal.ProductRecord{
		record(1, "Кабель ВВГнг 3x2.5"),
		{ID: 1, Header: "Кабель ВВГнг 3x4", Articul: util.StringPtr("ELC-NEW")},
	})

	require.Equal(t, 1, idx.Len())
	p, ok := idx.Product(1)
	require.True(t, ok)
	require.Equal(t, "Кабель ВВГнг 3x4", p.Header)
	require.Equal(t, "КАБЕЛЬ ВВГНГ 3X4", idx.NormalizedHeader(1))
}

func TestBuildIndexCodeKeys(t *testing.T) {
	p := internal.ProductRecord{
		ID:      7,
		Header:  "Автомат C16",
		Articul: util.StringPtr("elc 0100.203"),
		SyncUID: util.StringPtr("SYNC-7"),
		FlatCodes: internal.FlatCodes{
			Manufacturer: util.StringPtr("c16-mfr"),
			Etm:          util.StringPtr(""),
		},
		AnalogCodes: []string{"ALT/7"},
	}
	idx := BuildIndex([]internal.ProductRecord{p})

	// Every non-empty code field is reachable under its normalized key.
	for _, key := range []string{"ELC0100203", "SYNC-7", "C16-MFR", "ALT/7"} {
		got := idx.ByCode(key)
		require.Len(t, got, 1, "key %s", key)
		require.Equal(t, 7, got[0].ID)
	}
	require.Empty(t, idx.ByCode(""))
}

func TestBuildIndexSharedCode(t *testing.T) {
	idx := BuildIndex([]internal.ProductRecord{
		{ID: 1, Header: "Реле А", Articul: util.StringPtr("DUP-1")},
		{ID: 2, Header: "Реле Б", Articul: util.StringPtr("dup-1")},
	})

	got := idx.ByCode("DUP-1")
	require.Len(t, got, 2)
}

func TestByHeaderInsertionOrder(t *testing.T) {
	idx := BuildIndex([]internal.ProductRecord{
		record(3, "Кабель ВВГнг 3х2.5"),
		record(1, "КАБЕЛЬ ВВГНГ 3X2.5"),
	})

	got := idx.ByHeader("КАБЕЛЬ ВВГНГ 3X2.5")
	require.Len(t, got, 2)
	require.Equal(t, 3, got[0].ID)
	require.Equal(t, 1, got[1].ID)
}

func TestCandidateIDs(t *testing.T) {
	idx := BuildIndex([]internal.ProductRecord{
		record(5, "Кабель ВВГнг 3x2.5"),
		record(2, "Кабель ПВС 2x1.5"),
		record(9, "Провод ПуГВ 1x6"),
	})

	// Union over tokens, ascending, no duplicates.
	require.Equal(t, []int{2, 5}, idx.CandidateIDs([]string{"КАБЕЛЬ"}))
	require.Equal(t, []int{2, 5, 9}, idx.CandidateIDs([]string{"КАБЕЛЬ", "ПРОВОД"}))
	require.Empty(t, idx.CandidateIDs([]string{"ШКАФ"}))
	require.Empty(t, idx.CandidateIDs(nil))
}

func TestCandidateIDsRepeatedTokenInHeader(t *testing.T) {
	idx := BuildIndex([]internal.ProductRecord{
		record(4, "Клемма клемма винтовая"),
	})
	require.Equal(t, []int{4}, idx.CandidateIDs([]string{"КЛЕММА"}))
}

func TestSampleIDs(t *testing.T) {
	idx := BuildIndex([]internal.ProductRecord{
		record(30, "А продукт"),
		record(10, "Б продукт"),
		record(20, "В продукт"),
	})

	require.Equal(t, []int{10, 20}, idx.SampleIDs(2))
	require.Equal(t, []int{10, 20, 30}, idx.SampleIDs(3))
	require.Equal(t, []int{10, 20, 30}, idx.SampleIDs(100))
}
