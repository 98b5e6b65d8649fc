// Package sqlite implements monitor.DocumentStore on an embedded SQLite
// database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/parlwatch/parliament-monitor/internal/monitor"
)

// Store wraps the SQLite connection and provides document persistence.
type Store struct {
	conn *sql.DB
}

// New opens (or creates) the database at path and initializes the schema.
func New(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// The modernc driver is not safe for concurrent writers on one file.
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn}
	if err := s.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_url TEXT NOT NULL,
		document_url TEXT,
		title TEXT NOT NULL,
		description TEXT,
		document_type TEXT,
		chamber TEXT,
		date_published TIMESTAMP,
		date_discovered TIMESTAMP NOT NULL,
		member TEXT,
		committee TEXT,
		portfolio TEXT,
		fingerprint TEXT UNIQUE,
		keywords_found TEXT NOT NULL DEFAULT '[]',
		alert_level TEXT,
		processed BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_documents_discovered ON documents(date_discovered);
	CREATE INDEX IF NOT EXISTS idx_documents_type ON documents(document_type);

	CREATE TABLE IF NOT EXISTS alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		document_id INTEGER REFERENCES documents(id),
		alert_level TEXT,
		title TEXT,
		description TEXT,
		keywords_matched TEXT,
		date_created TIMESTAMP NOT NULL,
		sent BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_alerts_sent ON alerts(sent);

	CREATE TABLE IF NOT EXISTS scrape_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_url TEXT NOT NULL,
		scrape_date TIMESTAMP NOT NULL,
		documents_found INTEGER NOT NULL DEFAULT 0,
		new_documents INTEGER NOT NULL DEFAULT 0,
		status TEXT,
		error_message TEXT
	);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// InsertDocument stores doc and sets doc.ID. A fingerprint collision leaves
// the existing row untouched and reports inserted=false.
func (s *Store) InsertDocument(ctx context.Context, doc *monitor.Document) (bool, error) {
	keywordsJSON, err := json.Marshal(doc.Keywords)
	if err != nil {
		return false, &monitor.StoreError{Op: "insert document", Err: err}
	}

	query := `
	INSERT INTO documents (
		source_url, document_url, title, description, document_type, chamber,
		date_published, date_discovered, member, committee, portfolio,
		fingerprint, keywords_found, alert_level, processed
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(fingerprint) DO NOTHING
	`
	res, err := s.conn.ExecContext(ctx, query,
		doc.SourceURL,
		doc.DocumentURL,
		doc.Title,
		doc.Description,
		string(doc.Type),
		doc.Chamber,
		nullTime(doc.Published),
		doc.Discovered,
		doc.Member,
		doc.Committee,
		doc.Portfolio,
		doc.Fingerprint,
		string(keywordsJSON),
		string(doc.Tier),
		doc.Processed,
	)
	if err != nil {
		return false, &monitor.StoreError{Op: "insert document", Err: err}
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, &monitor.StoreError{Op: "insert document", Err: err}
	}
	if affected == 0 {
		return false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, &monitor.StoreError{Op: "insert document", Err: err}
	}
	doc.ID = id
	return true, nil
}

// DocumentExists reports whether a fingerprint is already stored.
func (s *Store) DocumentExists(ctx context.Context, fingerprint string) (bool, error) {
	var one int
	err := s.conn.QueryRowContext(ctx,
		`SELECT 1 FROM documents WHERE fingerprint = ?`, fingerprint,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, &monitor.StoreError{Op: "document exists", Err: err}
	}
	return true, nil
}

// MarkProcessed flags a document as fully handled by the pipeline.
func (s *Store) MarkProcessed(ctx context.Context, id int64) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE documents SET processed = TRUE WHERE id = ?`, id,
	)
	if err != nil {
		return &monitor.StoreError{Op: "mark processed", Err: err}
	}
	return nil
}

// InsertAlert stores a pending alert and sets alert.ID.
func (s *Store) InsertAlert(ctx context.Context, alert *monitor.Alert) error {
	res, err := s.conn.ExecContext(ctx, `
	INSERT INTO alerts (document_id, alert_level, title, description, keywords_matched, date_created, sent)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		alert.DocumentID,
		string(alert.Tier),
		alert.Title,
		alert.Description,
		alert.Keywords,
		alert.Created,
		alert.Sent,
	)
	if err != nil {
		return &monitor.StoreError{Op: "insert alert", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return &monitor.StoreError{Op: "insert alert", Err: err}
	}
	alert.ID = id
	return nil
}

// UnsentAlerts returns pending alerts oldest first.
func (s *Store) UnsentAlerts(ctx context.Context) ([]monitor.Alert, error) {
	rows, err := s.conn.QueryContext(ctx, `
	SELECT id, document_id, alert_level, title, description, keywords_matched, date_created, sent
	FROM alerts WHERE sent = FALSE ORDER BY id`)
	if err != nil {
		return nil, &monitor.StoreError{Op: "unsent alerts", Err: err}
	}
	defer rows.Close()
	return scanAlerts(rows)
}

// MarkAlertsSent flags the given alerts as delivered.
func (s *Store) MarkAlertsSent(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.conn.ExecContext(ctx,
		`UPDATE alerts SET sent = TRUE WHERE id IN (`+placeholders+`)`, args...,
	)
	if err != nil {
		return &monitor.StoreError{Op: "mark alerts sent", Err: err}
	}
	return nil
}

// RecordScrape appends one source check outcome to the history.
func (s *Store) RecordScrape(ctx context.Context, rec monitor.ScrapeRecord) error {
	_, err := s.conn.ExecContext(ctx, `
	INSERT INTO scrape_history (source_url, scrape_date, documents_found, new_documents, status, error_message)
	VALUES (?, ?, ?, ?, ?, ?)`,
		rec.SourceURL, rec.Scraped, rec.Found, rec.New, rec.Status, rec.Error,
	)
	if err != nil {
		return &monitor.StoreError{Op: "record scrape", Err: err}
	}
	return nil
}

// ListDocuments returns documents newest first, narrowed by filter.
func (s *Store) ListDocuments(ctx context.Context, filter monitor.DocumentFilter) ([]monitor.Document, error) {
	query := selectDocuments + ` WHERE 1=1`
	var args []any
	if filter.Type != "" {
		query += ` AND document_type = ?`
		args = append(args, string(filter.Type))
	}
	if filter.Tier != "" {
		query += ` AND alert_level = ?`
		args = append(args, string(filter.Tier))
	}
	if filter.Chamber != "" {
		query += ` AND chamber = ?`
		args = append(args, filter.Chamber)
	}
	query += ` ORDER BY date_discovered DESC, id DESC LIMIT ?`
	args = append(args, limitOrDefault(filter.Limit))

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &monitor.StoreError{Op: "list documents", Err: err}
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// ListAlerts returns the most recent alerts.
func (s *Store) ListAlerts(ctx context.Context, limit int) ([]monitor.Alert, error) {
	rows, err := s.conn.QueryContext(ctx, `
	SELECT id, document_id, alert_level, title, description, keywords_matched, date_created, sent
	FROM alerts ORDER BY id DESC LIMIT ?`, limitOrDefault(limit))
	if err != nil {
		return nil, &monitor.StoreError{Op: "list alerts", Err: err}
	}
	defer rows.Close()
	return scanAlerts(rows)
}

// SearchDocuments matches the query against titles, descriptions and
// recorded keywords.
func (s *Store) SearchDocuments(ctx context.Context, query string, limit int) ([]monitor.Document, error) {
	pattern := "%" + query + "%"
	rows, err := s.conn.QueryContext(ctx, selectDocuments+`
	WHERE title LIKE ? OR description LIKE ? OR keywords_found LIKE ?
	ORDER BY date_discovered DESC, id DESC LIMIT ?`,
		pattern, pattern, pattern, limitOrDefault(limit),
	)
	if err != nil {
		return nil, &monitor.StoreError{Op: "search documents", Err: err}
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// Stats summarizes store contents.
func (s *Store) Stats(ctx context.Context) (monitor.Stats, error) {
	stats := monitor.Stats{AlertsByTier: make(map[string]int)}

	if err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents`,
	).Scan(&stats.TotalDocuments); err != nil {
		return monitor.Stats{}, &monitor.StoreError{Op: "stats", Err: err}
	}

	startOfDay := time.Now().UTC().Truncate(24 * time.Hour)
	if err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE date_discovered >= ?`, startOfDay,
	).Scan(&stats.DocumentsToday); err != nil {
		return monitor.Stats{}, &monitor.StoreError{Op: "stats", Err: err}
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT alert_level, COUNT(*) FROM alerts GROUP BY alert_level`,
	)
	if err != nil {
		return monitor.Stats{}, &monitor.StoreError{Op: "stats", Err: err}
	}
	defer rows.Close()
	for rows.Next() {
		var tier string
		var count int
		if err := rows.Scan(&tier, &count); err != nil {
			return monitor.Stats{}, &monitor.StoreError{Op: "stats", Err: err}
		}
		stats.AlertsByTier[tier] = count
	}
	if err := rows.Err(); err != nil {
		return monitor.Stats{}, &monitor.StoreError{Op: "stats", Err: err}
	}

	if err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM alerts WHERE sent = FALSE`,
	).Scan(&stats.PendingAlerts); err != nil {
		return monitor.Stats{}, &monitor.StoreError{Op: "stats", Err: err}
	}
	return stats, nil
}

const selectDocuments = `
	SELECT id, source_url, document_url, title, description, document_type,
	       chamber, date_published, date_discovered, member, committee,
	       portfolio, fingerprint, keywords_found, alert_level, processed
	FROM documents`

func scanDocuments(rows *sql.Rows) ([]monitor.Document, error) {
	var docs []monitor.Document
	for rows.Next() {
		var (
			doc          monitor.Document
			published    sql.NullTime
			keywordsJSON string
			docType      string
			tier         string
		)
		err := rows.Scan(
			&doc.ID, &doc.SourceURL, &doc.DocumentURL, &doc.Title,
			&doc.Description, &docType, &doc.Chamber, &published,
			&doc.Discovered, &doc.Member, &doc.Committee, &doc.Portfolio,
			&doc.Fingerprint, &keywordsJSON, &tier, &doc.Processed,
		)
		if err != nil {
			return nil, &monitor.StoreError{Op: "scan document", Err: err}
		}
		doc.Type = monitor.DocumentType(docType)
		doc.Tier = monitor.AlertTier(tier)
		if published.Valid {
			t := published.Time
			doc.Published = &t
		}
		if err := json.Unmarshal([]byte(keywordsJSON), &doc.Keywords); err != nil {
			return nil, &monitor.StoreError{Op: "scan document", Err: err}
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, &monitor.StoreError{Op: "scan document", Err: err}
	}
	return docs, nil
}

func scanAlerts(rows *sql.Rows) ([]monitor.Alert, error) {
	var alerts []monitor.Alert
	for rows.Next() {
		var (
			alert monitor.Alert
			tier  string
		)
		err := rows.Scan(
			&alert.ID, &alert.DocumentID, &tier, &alert.Title,
			&alert.Description, &alert.Keywords, &alert.Created, &alert.Sent,
		)
		if err != nil {
			return nil, &monitor.StoreError{Op: "scan alert", Err: err}
		}
		alert.Tier = monitor.AlertTier(tier)
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, &monitor.StoreError{Op: "scan alert", Err: err}
	}
	return alerts, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}
