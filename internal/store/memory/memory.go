// Package memory implements monitor.DocumentStore with in-process maps.
// It backs tests and ephemeral runs where persistence is not wanted.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/parlwatch/parliament-monitor/internal/monitor"
)

// Store is a thread-safe in-memory document store.
type Store struct {
	mu sync.RWMutex

	nextDocID    int64
	nextAlertID  int64
	docs         []monitor.Document
	fingerprints map[string]int64
	alerts       []monitor.Alert
	history      []monitor.ScrapeRecord
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		nextDocID:    1,
		nextAlertID:  1,
		fingerprints: make(map[string]int64),
	}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// InsertDocument stores doc and sets doc.ID, skipping known fingerprints.
func (s *Store) InsertDocument(_ context.Context, doc *monitor.Document) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.fingerprints[doc.Fingerprint]; ok {
		return false, nil
	}
	doc.ID = s.nextDocID
	s.nextDocID++
	s.fingerprints[doc.Fingerprint] = doc.ID
	s.docs = append(s.docs, *doc)
	return true, nil
}

// DocumentExists reports whether a fingerprint is already stored.
func (s *Store) DocumentExists(_ context.Context, fingerprint string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.fingerprints[fingerprint]
	return ok, nil
}

// MarkProcessed flags a document as fully handled.
func (s *Store) MarkProcessed(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.docs {
		if s.docs[i].ID == id {
			s.docs[i].Processed = true
			return nil
		}
	}
	return nil
}

// InsertAlert stores a pending alert and sets alert.ID.
func (s *Store) InsertAlert(_ context.Context, alert *monitor.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert.ID = s.nextAlertID
	s.nextAlertID++
	s.alerts = append(s.alerts, *alert)
	return nil
}

// UnsentAlerts returns pending alerts oldest first.
func (s *Store) UnsentAlerts(_ context.Context) ([]monitor.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []monitor.Alert
	for _, a := range s.alerts {
		if !a.Sent {
			out = append(out, a)
		}
	}
	return out, nil
}

// MarkAlertsSent flags the given alerts as delivered.
func (s *Store) MarkAlertsSent(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sent := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		sent[id] = struct{}{}
	}
	for i := range s.alerts {
		if _, ok := sent[s.alerts[i].ID]; ok {
			s.alerts[i].Sent = true
		}
	}
	return nil
}

// RecordScrape appends one source check outcome.
func (s *Store) RecordScrape(_ context.Context, rec monitor.ScrapeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = int64(len(s.history) + 1)
	s.history = append(s.history, rec)
	return nil
}

// ScrapeHistory returns recorded scrape outcomes, for tests.
func (s *Store) ScrapeHistory() []monitor.ScrapeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]monitor.ScrapeRecord(nil), s.history...)
}

// ListDocuments returns documents newest first, narrowed by filter.
func (s *Store) ListDocuments(_ context.Context, filter monitor.DocumentFilter) ([]monitor.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []monitor.Document
	for _, doc := range s.docs {
		if filter.Type != "" && doc.Type != filter.Type {
			continue
		}
		if filter.Tier != "" && doc.Tier != filter.Tier {
			continue
		}
		if filter.Chamber != "" && doc.Chamber != filter.Chamber {
			continue
		}
		out = append(out, doc)
	}
	sortNewestFirst(out)
	return clip(out, filter.Limit), nil
}

// ListAlerts returns the most recent alerts.
func (s *Store) ListAlerts(_ context.Context, limit int) ([]monitor.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]monitor.Alert(nil), s.alerts...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit <= 0 {
		limit = 50
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SearchDocuments matches the query against titles, descriptions and keywords.
func (s *Store) SearchDocuments(_ context.Context, query string, limit int) ([]monitor.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(query)
	var out []monitor.Document
	for _, doc := range s.docs {
		haystack := strings.ToLower(doc.Title + " " + doc.Description + " " + strings.Join(doc.Keywords, " "))
		if strings.Contains(haystack, needle) {
			out = append(out, doc)
		}
	}
	sortNewestFirst(out)
	return clip(out, limit), nil
}

// Stats summarizes store contents.
func (s *Store) Stats(_ context.Context) (monitor.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := monitor.Stats{
		TotalDocuments: len(s.docs),
		AlertsByTier:   make(map[string]int),
	}
	startOfDay := time.Now().UTC().Truncate(24 * time.Hour)
	for _, doc := range s.docs {
		if !doc.Discovered.Before(startOfDay) {
			stats.DocumentsToday++
		}
	}
	for _, a := range s.alerts {
		stats.AlertsByTier[string(a.Tier)]++
		if !a.Sent {
			stats.PendingAlerts++
		}
	}
	return stats, nil
}

func sortNewestFirst(docs []monitor.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Discovered.Equal(docs[j].Discovered) {
			return docs[i].ID > docs[j].ID
		}
		return docs[i].Discovered.After(docs[j].Discovered)
	})
}

func clip(docs []monitor.Document, limit int) []monitor.Document {
	if limit <= 0 {
		limit = 50
	}
	if len(docs) > limit {
		return docs[:limit]
	}
	return docs
}
