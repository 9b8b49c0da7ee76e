// Package storage persists catalog snapshots, fetched emails and
// match results in sqlite.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"quotematch/internal"
	"quotematch/internal/util"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS products (
  id INTEGER PRIMARY KEY,
  sync_uid TEXT,
  header TEXT NOT NULL,
  articul TEXT,
  unit_header TEXT,
  code_elcom TEXT,
  code_manufacturer TEXT,
  code_raec TEXT,
  code_pc TEXT,
  code_etm TEXT,
  analog_codes TEXT,
  updated_at TEXT,
  manufacturer_header TEXT,
  multiplicity_order REAL,
  raw_json TEXT NOT NULL,
  last_seen_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_products_header ON products(header);
CREATE INDEX IF NOT EXISTS idx_products_articul ON products(articul);
CREATE INDEX IF NOT EXISTS idx_products_sync_uid ON products(sync_uid);

CREATE TABLE IF NOT EXISTS emails (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  message_id TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  received_at TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  raw_ref TEXT NOT NULL,
  created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, message_id)
);

CREATE TABLE IF NOT EXISTS line_items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  email_id INTEGER NOT NULL,
  line_no INTEGER NOT NULL,
  source TEXT NOT NULL,
  raw_line TEXT NOT NULL,
  parsed_name_or_code TEXT,
  parsed_qty REAL,
  parsed_unit TEXT,
  parsed_json TEXT NOT NULL,
  created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(email_id, line_no, source, raw_line),
  FOREIGN KEY(email_id) REFERENCES emails(id)
);

CREATE TABLE IF NOT EXISTS line_matches (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  line_item_id INTEGER NOT NULL UNIQUE,
  status TEXT NOT NULL,
  confidence REAL NOT NULL,
  reason TEXT NOT NULL,
  product_id INTEGER,
  product_sync_uid TEXT,
  candidates_json TEXT NOT NULL,
  created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(line_item_id) REFERENCES line_items(id)
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  trace_id TEXT NOT NULL,
  email_id INTEGER,
  timings_json TEXT NOT NULL,
  counts_json TEXT NOT NULL,
  created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(email_id) REFERENCES emails(id)
);

CREATE TABLE IF NOT EXISTS meta (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) UpsertProducts(products []internal.ProductRecord) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO products (
  id, sync_uid, header, articul, unit_header,
  code_elcom, code_manufacturer, code_raec, code_pc, code_etm,
  analog_codes, updated_at, manufacturer_header, multiplicity_order, raw_json, last_seen_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(id) DO UPDATE SET
  sync_uid=excluded.sync_uid,
  header=excluded.header,
  articul=excluded.articul,
  unit_header=excluded.unit_header,
  code_elcom=excluded.code_elcom,
  code_manufacturer=excluded.code_manufacturer,
  code_raec=excluded.code_raec,
  code_pc=excluded.code_pc,
  code_etm=excluded.code_etm,
  analog_codes=excluded.analog_codes,
  updated_at=excluded.updated_at,
  manufacturer_header=excluded.manufacturer_header,
  multiplicity_order=excluded.multiplicity_order,
  raw_json=excluded.raw_json,
  last_seen_at=CURRENT_TIMESTAMP
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range products {
		analogJSON, _ := json.Marshal(p.AnalogCodes)
		if _, err := stmt.Exec(
			p.ID, p.SyncUID, p.Header, p.Articul, p.UnitHeader,
			p.FlatCodes.Elcom, p.FlatCodes.Manufacturer, p.FlatCodes.Raec, p.FlatCodes.PC, p.FlatCodes.Etm,
			string(analogJSON), p.UpdatedAt, p.ManufacturerHeader, p.MultiplicityOrder, p.RawJSON,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Products returns the full catalog snapshot for index building.
func (d *DB) Products() ([]internal.ProductRecord, error) {
	rows, err := d.conn.Query(`
SELECT id, sync_uid, header, articul, unit_header,
       code_elcom, code_manufacturer, code_raec, code_pc, code_etm,
       analog_codes, updated_at, manufacturer_header, multiplicity_order, raw_json
FROM products`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ProductRecord
	for rows.Next() {
		var p internal.ProductRecord
		var analogJSON string
		if err := rows.Scan(
			&p.ID, &p.SyncUID, &p.Header, &p.Articul, &p.UnitHeader,
			&p.FlatCodes.Elcom, &p.FlatCodes.Manufacturer, &p.FlatCodes.Raec, &p.FlatCodes.PC, &p.FlatCodes.Etm,
			&analogJSON, &p.UpdatedAt, &p.ManufacturerHeader, &p.MultiplicityOrder, &p.RawJSON,
		); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(analogJSON), &p.AnalogCodes)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (d *DB) UpsertEmail(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.EmailRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO emails (provider, message_id, subject, sender, received_at, hash, status, raw_ref)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, message_id) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  received_at=excluded.received_at,
  hash=excluded.hash,
  raw_ref=excluded.raw_ref,
  updated_at=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.EmailRow{}, err
	}

	row, err := d.EmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, errors.New("failed to upsert email")
	}
	return *row, nil
}

func (d *DB) EmailByProviderMessageID(provider, messageID string) (*internal.EmailRow, error) {
	var row internal.EmailRow
	err := d.conn.QueryRow(`
SELECT id, provider, message_id, subject, sender, received_at, hash, status, raw_ref
FROM emails WHERE provider = ? AND message_id = ?
`, provider, messageID).Scan(
		&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) RequireEmail(provider, messageID string) (internal.EmailRow, error) {
	row, err := d.EmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, fmt.Errorf("email not found: provider=%s message_id=%s", provider, messageID)
	}
	return *row, nil
}

func (d *DB) EmailsByStatus(status string, limit int) ([]internal.EmailRow, error) {
	rows, err := d.conn.Query(`
SELECT id, provider, message_id, subject, sender, received_at, hash, status, raw_ref
FROM emails WHERE status = ? ORDER BY received_at ASC LIMIT ?
`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.EmailRow
	for rows.Next() {
		var row internal.EmailRow
		if err := rows.Scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) SetEmailStatus(emailID int, status string) error {
	_, err := d.conn.Exec(`UPDATE emails SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, status, emailID)
	return err
}

// ResetEmailLines drops prior extractions and matches so an email
// can be reprocessed from scratch.
func (d *DB) ResetEmailLines(emailID int) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
DELETE FROM line_matches WHERE line_item_id IN (SELECT id FROM line_items WHERE email_id = ?)
`, emailID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM line_items WHERE email_id = ?`, emailID); err != nil {
		return err
	}
	return tx.Commit()
}

func (d *DB) InsertLineItem(emailID int, item internal.LineItem) (int64, error) {
	metaJSON, _ := json.Marshal(item.Meta)
	result, err := d.conn.Exec(`
INSERT INTO line_items (email_id, line_no, source, raw_line, parsed_name_or_code, parsed_qty, parsed_unit, parsed_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, emailID, item.LineNo, string(item.Source), item.RawLine, item.NameOrCode, item.Qty, item.Unit, string(metaJSON))
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (d *DB) InsertLineMatch(lineItemID int64, result internal.MatchResult) error {
	candidatesJSON, _ := json.Marshal(result.Candidates)
	var productID *int
	var productSyncUID *string
	if result.Product != nil {
		productID = result.Product.ID
		productSyncUID = result.Product.SyncUID
	}

	_, err := d.conn.Exec(`
INSERT INTO line_matches (line_item_id, status, confidence, reason, product_id, product_sync_uid, candidates_json)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, lineItemID, string(result.Status), result.Confidence, string(result.Reason), productID, productSyncUID, string(candidatesJSON))
	return err
}

func (d *DB) InsertRun(traceID string, emailID int, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`INSERT INTO runs (trace_id, email_id, timings_json, counts_json) VALUES (?, ?, ?, ?)`,
		traceID, emailID, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) SetMeta(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO meta (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMeta(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

// ExportRows joins line items with their verdicts and the resolved
// product, ordered OK → REVIEW → NOT_FOUND and by line number.
func (d *DB) ExportRows(emailID int) ([]internal.ExportRow, error) {
	rows, err := d.conn.Query(`
SELECT
  l.line_no, l.source, l.raw_line, l.parsed_name_or_code, l.parsed_qty, l.parsed_unit,
  m.status, m.confidence, m.reason,
  p.id, p.sync_uid, p.header, p.articul, p.unit_header,
  p.code_elcom, p.code_manufacturer, p.code_raec, p.code_pc, p.code_etm,
  m.candidates_json
FROM line_items l
JOIN line_matches m ON m.line_item_id = l.id
LEFT JOIN products p ON p.id = m.product_id
WHERE l.email_id = ?
ORDER BY
  CASE m.status WHEN 'OK' THEN 1 WHEN 'REVIEW' THEN 2 ELSE 3 END,
  l.line_no ASC
`, emailID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ExportRow
	for rows.Next() {
		var row internal.ExportRow
		var candidatesJSON string
		if err := rows.Scan(
			&row.LineNo, &row.Source, &row.RawLine, &row.ParsedNameOrCode, &row.ParsedQty, &row.ParsedUnit,
			&row.Status, &row.Confidence, &row.Reason,
			&row.ProductID, &row.ProductSyncUID, &row.ProductHeader, &row.ProductArticul, &row.UnitHeader,
			&row.CodeElcom, &row.CodeManufacturer, &row.CodeRaec, &row.CodePC, &row.CodeEtm,
			&candidatesJSON,
		); err != nil {
			return nil, err
		}

		var candidates []internal.MatchCandidate
		_ = json.Unmarshal([]byte(candidatesJSON), &candidates)
		if len(candidates) > 1 {
			row.RunnerUpHeader = util.StringPtr(candidates[1].Header)
			row.RunnerUpScore = util.FloatPtr(candidates[1].Score)
		}
		out = append(out, row)
	}

	return out, rows.Err()
}
