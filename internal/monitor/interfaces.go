package monitor

import (
	"context"
	"time"
)

// Fetcher retrieves raw content from parliament pages.
type Fetcher interface {
	// FetchPage returns the raw HTML of a listing page.
	FetchPage(ctx context.Context, url string) ([]byte, error)
	// FetchPDF returns raw PDF bytes, or (nil, nil) when the URL does not
	// serve a PDF.
	FetchPDF(ctx context.Context, url string) ([]byte, error)
}

// Extractor turns a fetched listing page into candidate documents. Extraction
// is best effort: malformed entries are skipped, never fatal.
type Extractor interface {
	Extract(kind SourceKind, rawHTML []byte, sourceURL, chamber string) []Document
}

// Fingerprinter derives the stable deduplication key for a document.
type Fingerprinter interface {
	Fingerprint(doc Document) string
}

// Classifier assigns keywords and an alert tier in place.
type Classifier interface {
	Classify(ctx context.Context, doc *Document)
}

// ContentLoader fetches and extracts plain text for a document URL so the
// classifier can match against body text, not just titles.
type ContentLoader interface {
	Load(ctx context.Context, docURL string) (string, error)
}

// DocumentStore persists documents, alerts and scrape history.
type DocumentStore interface {
	// InsertDocument stores doc and sets doc.ID. A fingerprint conflict is
	// not an error: the insert is a no-op and inserted is false.
	InsertDocument(ctx context.Context, doc *Document) (inserted bool, err error)
	DocumentExists(ctx context.Context, fingerprint string) (bool, error)
	MarkProcessed(ctx context.Context, id int64) error
	InsertAlert(ctx context.Context, alert *Alert) error
	UnsentAlerts(ctx context.Context) ([]Alert, error)
	MarkAlertsSent(ctx context.Context, ids []int64) error
	RecordScrape(ctx context.Context, rec ScrapeRecord) error
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]Document, error)
	ListAlerts(ctx context.Context, limit int) ([]Alert, error)
	SearchDocuments(ctx context.Context, query string, limit int) ([]Document, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Notifier delivers a digest of pending alerts. A disabled transport returns
// (false, nil) so the alerts stay queued without being treated as a failure.
type Notifier interface {
	Dispatch(ctx context.Context, alerts []Alert) (sent bool, err error)
}

// Publisher emits alert events to a stream for downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore archives raw page snapshots.
type BlobStore interface {
	PutObject(ctx context.Context, path, contentType string, data []byte) (string, error)
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}
