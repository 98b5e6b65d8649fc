// Package postgres provides Postgres-backed persistence for documents,
// alerts and scrape history.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parlwatch/parliament-monitor/internal/monitor"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// Store implements monitor.DocumentStore over a pgx pool.
type Store struct {
	pool pgxPool
}

// New connects to Postgres and ensures the schema exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool pgxPool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id BIGSERIAL PRIMARY KEY,
		source_url TEXT NOT NULL,
		document_url TEXT,
		title TEXT NOT NULL,
		description TEXT,
		document_type TEXT,
		chamber TEXT,
		date_published TIMESTAMPTZ,
		date_discovered TIMESTAMPTZ NOT NULL,
		member TEXT,
		committee TEXT,
		portfolio TEXT,
		fingerprint TEXT UNIQUE,
		keywords_found JSONB NOT NULL DEFAULT '[]',
		alert_level TEXT,
		processed BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_documents_discovered ON documents(date_discovered);

	CREATE TABLE IF NOT EXISTS alerts (
		id BIGSERIAL PRIMARY KEY,
		document_id BIGINT REFERENCES documents(id),
		alert_level TEXT,
		title TEXT,
		description TEXT,
		keywords_matched TEXT,
		date_created TIMESTAMPTZ NOT NULL,
		sent BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_alerts_sent ON alerts(sent);

	CREATE TABLE IF NOT EXISTS scrape_history (
		id BIGSERIAL PRIMARY KEY,
		source_url TEXT NOT NULL,
		scrape_date TIMESTAMPTZ NOT NULL,
		documents_found INT NOT NULL DEFAULT 0,
		new_documents INT NOT NULL DEFAULT 0,
		status TEXT,
		error_message TEXT
	);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// InsertDocument stores doc and sets doc.ID. A fingerprint collision leaves
// the existing row untouched and reports inserted=false.
func (s *Store) InsertDocument(ctx context.Context, doc *monitor.Document) (bool, error) {
	keywordsJSON, err := json.Marshal(doc.Keywords)
	if err != nil {
		return false, &monitor.StoreError{Op: "insert document", Err: err}
	}

	row := s.pool.QueryRow(ctx, `
	INSERT INTO documents (
		source_url, document_url, title, description, document_type, chamber,
		date_published, date_discovered, member, committee, portfolio,
		fingerprint, keywords_found, alert_level, processed
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	ON CONFLICT (fingerprint) DO NOTHING
	RETURNING id`,
		doc.SourceURL,
		doc.DocumentURL,
		doc.Title,
		doc.Description,
		string(doc.Type),
		doc.Chamber,
		doc.Published,
		doc.Discovered,
		doc.Member,
		doc.Committee,
		doc.Portfolio,
		doc.Fingerprint,
		keywordsJSON,
		string(doc.Tier),
		doc.Processed,
	)

	var id int64
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, &monitor.StoreError{Op: "insert document", Err: err}
	}
	doc.ID = id
	return true, nil
}

// DocumentExists reports whether a fingerprint is already stored.
func (s *Store) DocumentExists(ctx context.Context, fingerprint string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM documents WHERE fingerprint = $1`, fingerprint,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, &monitor.StoreError{Op: "document exists", Err: err}
	}
	return true, nil
}

// MarkProcessed flags a document as fully handled by the pipeline.
func (s *Store) MarkProcessed(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE documents SET processed = TRUE WHERE id = $1`, id,
	); err != nil {
		return &monitor.StoreError{Op: "mark processed", Err: err}
	}
	return nil
}

// InsertAlert stores a pending alert and sets alert.ID.
func (s *Store) InsertAlert(ctx context.Context, alert *monitor.Alert) error {
	row := s.pool.QueryRow(ctx, `
	INSERT INTO alerts (document_id, alert_level, title, description, keywords_matched, date_created, sent)
	VALUES ($1,$2,$3,$4,$5,$6,$7)
	RETURNING id`,
		alert.DocumentID,
		string(alert.Tier),
		alert.Title,
		alert.Description,
		alert.Keywords,
		alert.Created,
		alert.Sent,
	)
	if err := row.Scan(&alert.ID); err != nil {
		return &monitor.StoreError{Op: "insert alert", Err: err}
	}
	return nil
}

// UnsentAlerts returns pending alerts oldest first.
func (s *Store) UnsentAlerts(ctx context.Context) ([]monitor.Alert, error) {
	rows, err := s.pool.Query(ctx, `
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
	if _, err := s.pool.Exec(ctx,
		`UPDATE alerts SET sent = TRUE WHERE id = ANY($1)`, ids,
	); err != nil {
		return &monitor.StoreError{Op: "mark alerts sent", Err: err}
	}
	return nil
}

// RecordScrape appends one source check outcome to the history.
func (s *Store) RecordScrape(ctx context.Context, rec monitor.ScrapeRecord) error {
	if _, err := s.pool.Exec(ctx, `
	INSERT INTO scrape_history (source_url, scrape_date, documents_found, new_documents, status, error_message)
	VALUES ($1,$2,$3,$4,$5,$6)`,
		rec.SourceURL, rec.Scraped, rec.Found, rec.New, rec.Status, rec.Error,
	); err != nil {
		return &monitor.StoreError{Op: "record scrape", Err: err}
	}
	return nil
}

// ListDocuments returns documents newest first, narrowed by filter.
func (s *Store) ListDocuments(ctx context.Context, filter monitor.DocumentFilter) ([]monitor.Document, error) {
	query := selectDocuments + ` WHERE 1=1`
	var args []any
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		query += fmt.Sprintf(` AND document_type = $%d`, len(args))
	}
	if filter.Tier != "" {
		args = append(args, string(filter.Tier))
		query += fmt.Sprintf(` AND alert_level = $%d`, len(args))
	}
	if filter.Chamber != "" {
		args = append(args, filter.Chamber)
		query += fmt.Sprintf(` AND chamber = $%d`, len(args))
	}
	args = append(args, limitOrDefault(filter.Limit))
	query += fmt.Sprintf(` ORDER BY date_discovered DESC, id DESC LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &monitor.StoreError{Op: "list documents", Err: err}
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// ListAlerts returns the most recent alerts.
func (s *Store) ListAlerts(ctx context.Context, limit int) ([]monitor.Alert, error) {
	rows, err := s.pool.Query(ctx, `
	SELECT id, document_id, alert_level, title, description, keywords_matched, date_created, sent
	FROM alerts ORDER BY id DESC LIMIT $1`, limitOrDefault(limit))
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
	rows, err := s.pool.Query(ctx, selectDocuments+`
	WHERE title ILIKE $1 OR description ILIKE $1 OR keywords_found::text ILIKE $1
	ORDER BY date_discovered DESC, id DESC LIMIT $2`,
		pattern, limitOrDefault(limit),
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

	row := s.pool.QueryRow(ctx, `
	SELECT
		(SELECT COUNT(*) FROM documents),
		(SELECT COUNT(*) FROM documents WHERE date_discovered >= date_trunc('day', now())),
		(SELECT COUNT(*) FROM alerts WHERE sent = FALSE)`)
	if err := row.Scan(&stats.TotalDocuments, &stats.DocumentsToday, &stats.PendingAlerts); err != nil {
		return monitor.Stats{}, &monitor.StoreError{Op: "stats", Err: err}
	}

	rows, err := s.pool.Query(ctx,
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
	return stats, nil
}

const selectDocuments = `
	SELECT id, source_url, document_url, title, description, document_type,
	       chamber, date_published, date_discovered, member, committee,
	       portfolio, fingerprint, keywords_found, alert_level, processed
	FROM documents`

func scanDocuments(rows pgx.Rows) ([]monitor.Document, error) {
	var docs []monitor.Document
	for rows.Next() {
		var (
			doc          monitor.Document
			keywordsJSON []byte
			docType      string
			tier         string
		)
		err := rows.Scan(
			&doc.ID, &doc.SourceURL, &doc.DocumentURL, &doc.Title,
			&doc.Description, &docType, &doc.Chamber, &doc.Published,
			&doc.Discovered, &doc.Member, &doc.Committee, &doc.Portfolio,
			&doc.Fingerprint, &keywordsJSON, &tier, &doc.Processed,
		)
		if err != nil {
			return nil, &monitor.StoreError{Op: "scan document", Err: err}
		}
		doc.Type = monitor.DocumentType(docType)
		doc.Tier = monitor.AlertTier(tier)
		if err := json.Unmarshal(keywordsJSON, &doc.Keywords); err != nil {
			return nil, &monitor.StoreError{Op: "scan document", Err: err}
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, &monitor.StoreError{Op: "scan document", Err: err}
	}
	return docs, nil
}

func scanAlerts(rows pgx.Rows) ([]monitor.Alert, error) {
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

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}
