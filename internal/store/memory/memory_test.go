package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/parlwatch/parliament-monitor/internal/monitor"
)

func TestInsertDocument_Deduplicates(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	doc := monitor.Document{Title: "Report", Fingerprint: "fp-1", Discovered: time.Now().UTC()}
	inserted, err := s.InsertDocument(ctx, &doc)
	require.NoError(t, err)
	require.True(t, inserted)
	require.Equal(t, int64(1), doc.ID)

	dup := monitor.Document{Title: "Report", Fingerprint: "fp-1"}
	inserted, err = s.InsertDocument(ctx, &dup)
	require.NoError(t, err)
	require.False(t, inserted)

	exists, err := s.DocumentExists(ctx, "fp-1")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestAlertLifecycle(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	a := monitor.Alert{Tier: monitor.TierCritical, Title: "one", Created: time.Now().UTC()}
	b := monitor.Alert{Tier: monitor.TierHigh, Title: "two", Created: time.Now().UTC()}
	require.NoError(t, s.InsertAlert(ctx, &a))
	require.NoError(t, s.InsertAlert(ctx, &b))

	unsent, err := s.UnsentAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, unsent, 2)

	require.NoError(t, s.MarkAlertsSent(ctx, []int64{a.ID}))
	unsent, err = s.UnsentAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, unsent, 1)
	require.Equal(t, b.ID, unsent[0].ID)

	recent, err := s.ListAlerts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, b.ID, recent[0].ID)
}

func TestListDocuments_FiltersAndOrder(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	older := monitor.Document{Title: "older", Fingerprint: "fp-old", Type: monitor.TypeBill, Discovered: now.Add(-time.Hour)}
	newer := monitor.Document{Title: "newer", Fingerprint: "fp-new", Type: monitor.TypeTabledPaper, Chamber: "House of Assembly", Discovered: now}
	_, err := s.InsertDocument(ctx, &older)
	require.NoError(t, err)
	_, err = s.InsertDocument(ctx, &newer)
	require.NoError(t, err)

	all, err := s.ListDocuments(ctx, monitor.DocumentFilter{})
	require.NoError(t, err)
	require.Equal(t, []string{"newer", "older"}, []string{all[0].Title, all[1].Title})

	bills, err := s.ListDocuments(ctx, monitor.DocumentFilter{Type: monitor.TypeBill})
	require.NoError(t, err)
	require.Len(t, bills, 1)

	chamber, err := s.ListDocuments(ctx, monitor.DocumentFilter{Chamber: "House of Assembly"})
	require.NoError(t, err)
	require.Len(t, chamber, 1)
}

func TestSearchAndStats(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	doc := monitor.Document{
		Title:       "Gaming Commission Report",
		Fingerprint: "fp-g",
		Keywords:    []string{"casino"},
		Discovered:  time.Now().UTC(),
	}
	_, err := s.InsertDocument(ctx, &doc)
	require.NoError(t, err)

	found, err := s.SearchDocuments(ctx, "CASINO", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)

	require.NoError(t, s.InsertAlert(ctx, &monitor.Alert{Tier: monitor.TierStandard, Created: time.Now().UTC()}))
	require.NoError(t, s.RecordScrape(ctx, monitor.ScrapeRecord{SourceURL: "https://src", Scraped: time.Now().UTC(), Found: 1, New: 1, Status: "ok"}))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.TotalDocuments)
	require.Equal(t, 1, stats.DocumentsToday)
	require.Equal(t, 1, stats.PendingAlerts)
	require.Equal(t, map[string]int{"standard": 1}, stats.AlertsByTier)
	require.Len(t, s.ScrapeHistory(), 1)
}
