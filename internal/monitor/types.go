// Package monitor defines core types shared across subsystems.
package monitor

import (
	"strings"
	"time"
)

// DocumentType categorizes a discovered parliamentary document.
type DocumentType string

const (
	TypeTabledPaper     DocumentType = "tabled_paper"
	TypeBill            DocumentType = "bill"
	TypeCommitteeReport DocumentType = "committee_report"
	TypeHansard         DocumentType = "hansard"
	TypeRegister        DocumentType = "register"
	TypeStandingOrder   DocumentType = "standing_order"
	TypeOther           DocumentType = "other"
)

// AlertTier ranks how loudly a document should be surfaced.
type AlertTier string

const (
	TierCritical AlertTier = "critical"
	TierHigh     AlertTier = "high"
	TierStandard AlertTier = "standard"
	TierInfo     AlertTier = "info"
)

// SourceKind names the page layout a source serves, which selects the
// extraction strategy.
type SourceKind string

const (
	KindTabledPapers SourceKind = "chamber-tabled-papers"
	KindBills        SourceKind = "bills-list"
	KindCommittees   SourceKind = "committees-list"
)

// Source is one monitored parliament page.
type Source struct {
	Name    string
	URL     string
	Kind    SourceKind
	Chamber string
}

// InferKind guesses a source kind from its configured name. The boolean is
// false when the name matches no known layout.
func InferKind(name string) (SourceKind, bool) {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "committee"):
		return KindCommittees, true
	case strings.Contains(lower, "bill"):
		return KindBills, true
	case strings.Contains(lower, "tabled"):
		return KindTabledPapers, true
	}
	return "", false
}

// Document is a single discovered parliamentary item, enriched as it moves
// through the pipeline.
type Document struct {
	ID          int64        `json:"id"`
	SourceURL   string       `json:"source_url"`
	DocumentURL string       `json:"document_url"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Type        DocumentType `json:"document_type"`
	Chamber     string       `json:"chamber"`
	Published   *time.Time   `json:"date_published"`
	Discovered  time.Time    `json:"date_discovered"`
	Member      string       `json:"member"`
	Committee   string       `json:"committee"`
	Portfolio   string       `json:"portfolio"`
	BodyText    string       `json:"-"`
	Fingerprint string       `json:"file_hash"`
	Keywords    []string     `json:"keywords_found"`
	Tier        AlertTier    `json:"alert_level"`
	Processed   bool         `json:"processed"`
}

// Alert is a pending or sent notification about one document.
type Alert struct {
	ID          int64     `json:"id"`
	DocumentID  int64     `json:"document_id"`
	Tier        AlertTier `json:"alert_type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Keywords    string    `json:"keywords"`
	Created     time.Time `json:"date_created"`
	Sent        bool      `json:"sent"`
}

// ScrapeRecord is one source check outcome kept for operational history.
type ScrapeRecord struct {
	ID        int64     `json:"id"`
	SourceURL string    `json:"source_url"`
	Scraped   time.Time `json:"scrape_date"`
	Found     int       `json:"documents_found"`
	New       int       `json:"new_documents"`
	Status    string    `json:"status"`
	Error     string    `json:"error_message,omitempty"`
}

// DocumentFilter narrows document listings.
type DocumentFilter struct {
	Type    DocumentType
	Tier    AlertTier
	Chamber string
	Limit   int
}

// Stats summarizes store contents for the API.
type Stats struct {
	TotalDocuments int            `json:"total_documents"`
	DocumentsToday int            `json:"documents_today"`
	AlertsByTier   map[string]int `json:"alerts_by_tier"`
	PendingAlerts  int            `json:"pending_alerts"`
}

// CycleResult reports one monitoring cycle. Alerted is the subset of
// NewDocuments that queued an alert.
type CycleResult struct {
	NewDocuments []Document `json:"new_documents"`
	Alerted      []Document `json:"alerted"`
	Dispatched   bool       `json:"dispatched"`
}
