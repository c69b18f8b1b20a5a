package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"weighocr/internal"
)

const documentColumns = `id, source, name, subject, sender, receivedAt, hash, status, rawRef, updatedAt`

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

	// one writer; the listener, watcher and HTTP handlers share this handle
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := conn.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS documents (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  source TEXT NOT NULL,
  name TEXT NOT NULL,
  subject TEXT NOT NULL DEFAULT '',
  sender TEXT NOT NULL DEFAULT '',
  receivedAt TEXT NOT NULL DEFAULT '',
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(source, name)
);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);

CREATE TABLE IF NOT EXISTS records (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  documentId INTEGER NOT NULL,
  attachment TEXT NOT NULL,
  runId TEXT NOT NULL,
  docType TEXT NOT NULL,
  weighDate TEXT,
  weighTimeIn TEXT,
  weighTimeOut TEXT,
  serialNo TEXT,
  vehicleNo TEXT,
  partnerName TEXT,
  itemName TEXT,
  direction TEXT,
  grossWeightKg REAL,
  tareWeightKg REAL,
  netWeightKg REAL,
  deductionWeightKg REAL,
  issuer TEXT,
  timestamp TEXT,
  parseConfidence REAL NOT NULL,
  record_json TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(documentId) REFERENCES documents(id)
);
CREATE INDEX IF NOT EXISTS idx_records_document ON records(documentId);

CREATE TABLE IF NOT EXISTS warnings (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  recordId INTEGER NOT NULL,
  position INTEGER NOT NULL,
  code TEXT NOT NULL,
  severity TEXT NOT NULL,
  message TEXT NOT NULL,
  contextJson TEXT NOT NULL,
  UNIQUE(recordId, position),
  FOREIGN KEY(recordId) REFERENCES records(id)
);
CREATE INDEX IF NOT EXISTS idx_warnings_code ON warnings(code);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  documentId INTEGER,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(documentId) REFERENCES documents(id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// UpsertDocument keeps the stored status of an existing (source, name) row.
func (d *DB) UpsertDocument(source, name, subject, sender, receivedAt, hash, rawRef, status string) (internal.DocumentRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO documents (source, name, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(source, name) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, source, name, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.DocumentRow{}, err
	}

	row, err := d.GetDocumentBySourceName(source, name)
	if err != nil {
		return internal.DocumentRow{}, err
	}
	if row == nil {
		return internal.DocumentRow{}, errors.New("failed to upsert document")
	}
	return *row, nil
}

func scanDocument(scan func(dest ...any) error) (internal.DocumentRow, error) {
	var row internal.DocumentRow
	err := scan(&row.ID, &row.Source, &row.Name, &row.Subject, &row.Sender, &row.Received, &row.Hash, &row.Status, &row.RawRef, &row.UpdatedAt)
	return row, err
}

func (d *DB) GetDocumentBySourceName(source, name string) (*internal.DocumentRow, error) {
	row, err := scanDocument(d.conn.QueryRow(`SELECT `+documentColumns+` FROM documents WHERE source = ? AND name = ?`, source, name).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) GetDocument(id int) (*internal.DocumentRow, error) {
	row, err := scanDocument(d.conn.QueryRow(`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) MustDocument(id int) (internal.DocumentRow, error) {
	row, err := d.GetDocument(id)
	if err != nil {
		return internal.DocumentRow{}, err
	}
	if row == nil {
		return internal.DocumentRow{}, fmt.Errorf("document not found: id=%d", id)
	}
	return *row, nil
}

// ListDocumentsByStatus returns the oldest documents first. An empty source matches all sources.
func (d *DB) ListDocumentsByStatus(status, source string, limit int) ([]internal.DocumentRow, error) {
	rows, err := d.conn.Query(`
SELECT `+documentColumns+`
FROM documents WHERE status = ? AND (? = '' OR source = ?)
ORDER BY receivedAt ASC, id ASC LIMIT ?
`, status, source, source, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.DocumentRow
	for rows.Next() {
		row, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) CountDocumentsByStatus() (map[string]int, error) {
	rows, err := d.conn.Query(`SELECT status, COUNT(*) FROM documents GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

func (d *DB) UpdateDocumentStatus(documentID int, status string) error {
	_, err := d.conn.Exec(`UPDATE documents SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, documentID)
	return err
}

func (d *DB) ClearDocumentRecords(documentID int) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM warnings WHERE recordId IN (SELECT id FROM records WHERE documentId = ?)`, documentID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM records WHERE documentId = ?`, documentID); err != nil {
		return err
	}

	return tx.Commit()
}

// InsertRecord stores the flattened fields, the full record JSON and one warnings row per warning.
func (d *DB) InsertRecord(documentID int, attachment, runID string, rec internal.ParsedRecord) (int64, error) {
	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return 0, err
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.Exec(`
INSERT INTO records (
  documentId, attachment, runId, docType,
  weighDate, weighTimeIn, weighTimeOut, serialNo, vehicleNo, partnerName, itemName, direction,
  grossWeightKg, tareWeightKg, netWeightKg, deductionWeightKg,
  issuer, timestamp, parseConfidence, record_json
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, documentID, attachment, runID, rec.DocType,
		rec.WeighDate, rec.WeighTimeIn, rec.WeighTimeOut, rec.SerialNo, rec.VehicleNo, rec.PartnerName, rec.ItemName, rec.Direction,
		rec.GrossWeightKg, rec.TareWeightKg, rec.NetWeightKg, rec.DeductionWeightKg,
		rec.Issuer, rec.Timestamp, rec.ParseConfidence, string(recordJSON))
	if err != nil {
		return 0, err
	}
	recordID, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(`INSERT INTO warnings (recordId, position, code, severity, message, contextJson) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, w := range rec.Warnings {
		ctxJSON, _ := json.Marshal(w.Context)
		if _, err := stmt.Exec(recordID, i, w.Code, string(w.Severity), w.Message, string(ctxJSON)); err != nil {
			return 0, err
		}
	}

	return recordID, tx.Commit()
}

const recordColumns = `id, documentId, attachment, runId, createdAt, record_json`

func scanRecord(scan func(dest ...any) error) (internal.StoredRecord, error) {
	var row internal.StoredRecord
	var recordJSON string
	if err := scan(&row.ID, &row.DocumentID, &row.Attachment, &row.RunID, &row.CreatedAt, &recordJSON); err != nil {
		return row, err
	}
	if err := json.Unmarshal([]byte(recordJSON), &row.Record); err != nil {
		return row, fmt.Errorf("decode record %d: %w", row.ID, err)
	}
	return row, nil
}

func (d *DB) GetRecord(id int64) (*internal.StoredRecord, error) {
	row, err := scanRecord(d.conn.QueryRow(`SELECT `+recordColumns+` FROM records WHERE id = ?`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListRecords returns the newest records first.
func (d *DB) ListRecords(limit int) ([]internal.StoredRecord, error) {
	return d.queryRecords(`SELECT `+recordColumns+` FROM records ORDER BY id DESC LIMIT ?`, limit)
}

func (d *DB) ListDocumentRecords(documentID int) ([]internal.StoredRecord, error) {
	return d.queryRecords(`SELECT `+recordColumns+` FROM records WHERE documentId = ? ORDER BY id ASC`, documentID)
}

func (d *DB) queryRecords(query string, args ...any) ([]internal.StoredRecord, error) {
	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []internal.StoredRecord{}
	for rows.Next() {
		row, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) CountWarningsByCode() (map[string]int, error) {
	rows, err := d.conn.Query(`SELECT code, COUNT(*) FROM warnings GROUP BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var code string
		var n int
		if err := rows.Scan(&code, &n); err != nil {
			return nil, err
		}
		out[code] = n
	}
	return out, rows.Err()
}

func (d *DB) InsertRun(traceID string, documentID int, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, documentId, timingsJson, countsJson) VALUES (?, ?, ?, ?)`, traceID, documentID, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) CountRuns(documentID int) (int, error) {
	var n int
	err := d.conn.QueryRow(`SELECT COUNT(*) FROM runs WHERE documentId = ?`, documentID).Scan(&n)
	return n, err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

// GetExportRows flattens the records of one document, or of every document when documentID <= 0.
// Low-confidence records sort last.
func (d *DB) GetExportRows(documentID int) ([]internal.RecordExportRow, error) {
	rows, err := d.conn.Query(`
SELECT
  r.id,
  r.documentId,
  doc.source,
  doc.name,
  r.attachment,
  r.docType,
  r.weighDate,
  r.weighTimeIn,
  r.weighTimeOut,
  r.serialNo,
  r.vehicleNo,
  r.partnerName,
  r.itemName,
  r.direction,
  r.grossWeightKg,
  r.tareWeightKg,
  r.netWeightKg,
  r.deductionWeightKg,
  r.issuer,
  r.timestamp,
  r.parseConfidence,
  COALESCE((SELECT GROUP_CONCAT(code, ', ') FROM (SELECT code FROM warnings w WHERE w.recordId = r.id ORDER BY w.position)), '')
FROM records r
JOIN documents doc ON doc.id = r.documentId
WHERE ? <= 0 OR r.documentId = ?
ORDER BY r.documentId ASC, r.parseConfidence DESC, r.id ASC
`, documentID, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.RecordExportRow
	for rows.Next() {
		var row internal.RecordExportRow
		if err := rows.Scan(
			&row.RecordID,
			&row.DocumentID,
			&row.Source,
			&row.Name,
			&row.Attachment,
			&row.DocType,
			&row.WeighDate,
			&row.WeighTimeIn,
			&row.WeighTimeOut,
			&row.SerialNo,
			&row.VehicleNo,
			&row.PartnerName,
			&row.ItemName,
			&row.Direction,
			&row.GrossWeightKg,
			&row.TareWeightKg,
			&row.NetWeightKg,
			&row.DeductionWeightKg,
			&row.Issuer,
			&row.Timestamp,
			&row.ParseConfidence,
			&row.WarningCodes,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}

	return out, rows.Err()
}
