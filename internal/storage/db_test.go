package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"quotematch/internal"
	"quotematch/internal/util"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "quotematch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestProductsRoundTrip(t *testing.T) {
	db := openTestDB(t)

	products := []internal.ProductRecord{
		{
			ID:          101,
			Header:      "Кабель ВВГнг 3x2.5",
			Articul:     util.StringPtr("ELC0100203802"),
			SyncUID:     util.StringPtr("S-101"),
			AnalogCodes: []string{"ALT-1", "ALT-2"},
			FlatCodes:   internal.FlatCodes{Manufacturer: util.StringPtr("MFR-101")},
			RawJSON:     `{"id":101}`,
		},
		{ID: 102, Header: "Кабель ВВГнг 3x4", RawJSON: `{"id":102}`},
	}
	require.NoError(t, db.UpsertProducts(products))

	got, err := db.Products()
	require.NoError(t, err)
	require.Len(t, got, 2)

	byID := map[int]internal.ProductRecord{}
	for _, p := range got {
		byID[p.ID] = p
	}
	require.Equal(t, "Кабель ВВГнг 3x2.5", byID[101].Header)
	require.Equal(t, "ELC0100203802", *byID[101].Articul)
	require.Equal(t, []string{"ALT-1", "ALT-2"}, byID[101].AnalogCodes)
	require.Equal(t, "MFR-101", *byID[101].FlatCodes.Manufacturer)
	require.Nil(t, byID[102].Articul)

	// Upsert with the same id replaces the record in place.
	products[0].Header = "Кабель ВВГнг 3x2.5 новый"
	require.NoError(t, db.UpsertProducts(products[:1]))

	got, err = db.Products()
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, p := range got {
		if p.ID == 101 {
			require.Equal(t, "Кабель ВВГнг 3x2.5 новый", p.Header)
		}
	}
}

func TestEmailLifecycle(t *testing.T) {
	db := openTestDB(t)

	row, err := db.UpsertEmail("imap", "<msg-1@example.com>", "Заявка", "buyer@example.com",
		"2026-08-30T10:00:00Z", "hash-1", "/mail/raw/msg-1.eml", "fetched")
	require.NoError(t, err)
	require.Equal(t, "fetched", row.Status)
	// Status and raw_ref land in their own columns, not each other's.
	require.Equal(t, "/mail/raw/msg-1.eml", row.RawRef)
	require.Equal(t, "hash-1", row.Hash)

	// Re-upserting the same message keeps one row and the current
	// status, refreshing the payload fields.
	again, err := db.UpsertEmail("imap", "<msg-1@example.com>", "Заявка (upd)", "buyer@example.com",
		"2026-08-30T10:00:00Z", "hash-2", "/mail/raw/msg-1.eml", "fetched")
	require.NoError(t, err)
	require.Equal(t, row.ID, again.ID)
	require.Equal(t, "Заявка (upd)", again.Subject)
	require.Equal(t, "hash-2", again.Hash)

	pending, err := db.EmailsByStatus("fetched", 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, db.SetEmailStatus(row.ID, "processed"))

	pending, err = db.EmailsByStatus("fetched", 10)
	require.NoError(t, err)
	require.Empty(t, pending)

	found, err := db.RequireEmail("imap", "<msg-1@example.com>")
	require.NoError(t, err)
	require.Equal(t, "processed", found.Status)

	_, err = db.RequireEmail("imap", "<unknown@example.com>")
	require.Error(t, err)

	missing, err := db.EmailByProviderMessageID("gmail", "<msg-1@example.com>")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestLineItemsAndExportRows(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.UpsertProducts([]internal.ProductRecord{
		{ID: 101, Header: "Кабель ВВГнг 3x2.5", Articul: util.StringPtr("ELC-101"), RawJSON: `{}`},
	}))
	email, err := db.UpsertEmail("imap", "<msg-2@example.com>", "Заявка", "buyer@example.com",
		"2026-08-30T11:00:00Z", "hash", "/mail/raw/msg-2.eml", "fetched")
	require.NoError(t, err)

	miss := internal.LineItem{LineNo: 1, Source: internal.SourceEmailText, RawLine: "Совсем другой товар 5 шт", Qty: util.FloatPtr(5)}
	hit := internal.LineItem{LineNo: 2, Source: internal.SourceEmailText, RawLine: "ELC-101 10 шт",
		NameOrCode: util.StringPtr("ELC-101"), Qty: util.FloatPtr(10), Unit: util.StringPtr("шт")}

	missID, err := db.InsertLineItem(email.ID, miss)
	require.NoError(t, err)
	hitID, err := db.InsertLineItem(email.ID, hit)
	require.NoError(t, err)

	pid := 101
	require.NoError(t, db.InsertLineMatch(missID, internal.MatchResult{
		Status: internal.StatusNotFound, Confidence: 0.1, Reason: internal.ReasonNone,
		Candidates: []internal.MatchCandidate{},
	}))
	require.NoError(t, db.InsertLineMatch(hitID, internal.MatchResult{
		Status: internal.StatusOK, Confidence: 0.99, Reason: internal.ReasonCode,
		Product: &internal.MatchedProduct{ID: &pid},
		Candidates: []internal.MatchCandidate{
			{ID: 101, Header: "Кабель ВВГнг 3x2.5", Score: 0.99},
			{ID: 102, Header: "Кабель ВВГнг 3x4", Score: 0.82},
		},
	}))

	rows, err := db.ExportRows(email.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// OK rows come before misses regardless of line order.
	require.Equal(t, "OK", rows[0].Status)
	require.Equal(t, 2, rows[0].LineNo)
	require.Equal(t, 101, *rows[0].ProductID)
	require.Equal(t, "Кабель ВВГнг 3x2.5", *rows[0].ProductHeader)
	require.Equal(t, "ELC-101", *rows[0].ProductArticul)
	require.Equal(t, "Кабель ВВГнг 3x4", *rows[0].RunnerUpHeader)
	require.InDelta(t, 0.82, *rows[0].RunnerUpScore, 1e-9)

	require.Equal(t, "NOT_FOUND", rows[1].Status)
	require.Nil(t, rows[1].ProductID)
	require.Nil(t, rows[1].RunnerUpHeader)

	// Reset clears extractions so the email can be reprocessed.
	require.NoError(t, db.ResetEmailLines(email.ID))
	rows, err = db.ExportRows(email.ID)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestMeta(t *testing.T) {
	db := openTestDB(t)

	got, err := db.GetMeta("catalog.last_full_tree_sync")
	require.NoError(t, err)
	require.Nil(t, got)

	require.NoError(t, db.SetMeta("catalog.last_full_tree_sync", "2026-08-30T00:00:00Z"))
	require.NoError(t, db.SetMeta("catalog.last_full_tree_sync", "2026-08-31T00:00:00Z"))

	got, err = db.GetMeta("catalog.last_full_tree_sync")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "2026-08-31T00:00:00Z", *got)
}

func TestInsertRun(t *testing.T) {
	db := openTestDB(t)

	email, err := db.UpsertEmail("imap", "<msg-3@example.com>", "Заявка", "b@example.com",
		"2026-08-30T12:00:00Z", "hash", "/mail/raw/msg-3.eml", "fetched")
	require.NoError(t, err)

	err = db.InsertRun("trace-1", email.ID,
		map[string]float64{"extract_ms": 12.5, "match_ms": 3.1},
		map[string]int{"ok": 2, "review": 1, "not_found": 0})
	require.NoError(t, err)
}
