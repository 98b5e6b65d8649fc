// Package fingerprint derives stable deduplication keys for documents.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/parlwatch/parliament-monitor/internal/monitor"
)

// unsetDate is the canonical rendering of an absent published date. Undated
// papers must keep hashing apart from dated ones with the same title.
const unsetDate = "unset"

// Fingerprinter implements monitor.Fingerprinter using SHA-256 over a
// type-specific canonical string.
type Fingerprinter struct{}

// New returns a Fingerprinter.
func New() *Fingerprinter {
	return &Fingerprinter{}
}

// Fingerprint hashes the document's identity fields and returns a hex digest.
// Tabled papers hash title+chamber+published because identical titles recur
// across chambers and sitting days; committee updates hash name+inquiry text;
// every other kind hashes the title alone, bills included.
func (f *Fingerprinter) Fingerprint(doc monitor.Document) string {
	var canonical string
	switch doc.Type {
	case monitor.TypeTabledPaper:
		canonical = doc.Title + doc.Chamber + publishedString(doc.Published)
	case monitor.TypeCommitteeReport:
		canonical = doc.Committee + doc.Description
	default:
		canonical = doc.Title
	}
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

func publishedString(published *time.Time) string {
	if published == nil {
		return unsetDate
	}
	return published.Format("2006-01-02")
}
