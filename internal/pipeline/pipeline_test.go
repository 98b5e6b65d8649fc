package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parlwatch/parliament-monitor/internal/classify"
	"github.com/parlwatch/parliament-monitor/internal/extract"
	"github.com/parlwatch/parliament-monitor/internal/fingerprint"
	"github.com/parlwatch/parliament-monitor/internal/metrics"
	"github.com/parlwatch/parliament-monitor/internal/monitor"
	pubmemory "github.com/parlwatch/parliament-monitor/internal/publisher/memory"
	"github.com/parlwatch/parliament-monitor/internal/store/memory"
)

func TestMain(m *testing.M) {
	metrics.Init()
	m.Run()
}

const tabledPage = `
<html><body><table>
<tr class="tabled-paper">
  <td><a href="/papers/levy.pdf">Urgent Casino Levy Direction</a></td>
  <td>4 March 2025</td>
</tr>
<tr class="tabled-paper">
  <td><a href="/papers/roads.pdf">Roads Program Statement</a></td>
</tr>
</table></body></html>`

const billsPage = `
<html><body><table>
<tr class="bill-entry"><td><a href="/bills/standing">Standing Orders Amendment Bill</a></td></tr>
</table></body></html>`

type fakeFetcher struct {
	pages map[string][]byte
	errs  map[string]error
}

func (f *fakeFetcher) FetchPage(_ context.Context, url string) ([]byte, error) {
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	return f.pages[url], nil
}

func (f *fakeFetcher) FetchPDF(_ context.Context, _ string) ([]byte, error) {
	return nil, nil
}

type fakeNotifier struct {
	sent    bool
	err     error
	batches [][]monitor.Alert
}

func (f *fakeNotifier) Dispatch(_ context.Context, alerts []monitor.Alert) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.sent {
		f.batches = append(f.batches, alerts)
	}
	return f.sent, nil
}

type fakeArchive struct {
	paths []string
}

func (f *fakeArchive) PutObject(_ context.Context, path, _ string, _ []byte) (string, error) {
	f.paths = append(f.paths, path)
	return "file:///" + path, nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fixture struct {
	pipeline  *Pipeline
	store     *memory.Store
	notifier  *fakeNotifier
	publisher *pubmemory.Publisher
	archive   *fakeArchive
	fetcher   *fakeFetcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()

	fetcher := &fakeFetcher{
		pages: map[string][]byte{
			"https://parl.test/tabled": []byte(tabledPage),
			"https://parl.test/bills":  []byte(billsPage),
		},
		errs: map[string]error{},
	}
	store := memory.New()
	notifier := &fakeNotifier{sent: true}
	publisher := pubmemory.New()
	arch := &fakeArchive{}

	classifier := classify.New(
		map[string][]string{"gaming": {"casino", "levy"}},
		[]string{"urgent"},
		[]string{"Premier"},
		nil,
		logger,
	)

	p := New(Deps{
		Sources: []monitor.Source{
			{Name: "house_tabled", URL: "https://parl.test/tabled", Kind: monitor.KindTabledPapers, Chamber: "House of Assembly"},
			{Name: "bills", URL: "https://parl.test/bills", Kind: monitor.KindBills},
		},
		Fetcher:       fetcher,
		Extractor:     extract.New(logger),
		Fingerprinter: fingerprint.New(),
		Classifier:    classifier,
		Store:         store,
		Notifier:      notifier,
		Publisher:     publisher,
		Archive:       arch,
		Clock:         fixedClock{now: time.Date(2025, time.March, 4, 10, 0, 0, 0, time.UTC)},
		Logger:        logger,
		AlertTopic:    "alerts",
		ArchivePrefix: "pages",
	})

	return &fixture{pipeline: p, store: store, notifier: notifier, publisher: publisher, archive: arch, fetcher: fetcher}
}

func TestRunCycle_EndToEnd(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	result, err := f.pipeline.RunCycle(ctx)
	require.NoError(t, err)
	require.Len(t, result.NewDocuments, 3)
	require.Len(t, result.Alerted, 1)
	require.Equal(t, "Urgent Casino Levy Direction", result.Alerted[0].Title)
	require.True(t, result.Dispatched)

	// The urgent paper is critical, the roads paper matches nothing, the
	// standing orders bill matches nothing. Only alert-worthy documents
	// queue alerts.
	require.Len(t, f.notifier.batches, 1)
	require.Len(t, f.notifier.batches[0], 1)
	require.Equal(t, monitor.TierCritical, f.notifier.batches[0][0].Tier)
	require.Equal(t, "Urgent Casino Levy Direction", f.notifier.batches[0][0].Title)

	// Dispatched alerts are marked sent.
	unsent, err := f.store.UnsentAlerts(ctx)
	require.NoError(t, err)
	require.Empty(t, unsent)

	// One published event per queued alert.
	events := f.publisher.Events()
	require.Len(t, events, 1)
	require.Equal(t, "alerts", events[0].Topic)

	// One snapshot per source.
	require.Len(t, f.archive.paths, 2)
	require.Contains(t, f.archive.paths[0], "pages/house_tabled/")

	// Scrape history records both sources.
	history := f.store.ScrapeHistory()
	require.Len(t, history, 2)
	require.Equal(t, "ok", history[0].Status)
	require.Equal(t, 2, history[0].Found)

	// Stored documents are marked processed.
	docs, err := f.store.ListDocuments(ctx, monitor.DocumentFilter{})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	for _, doc := range docs {
		require.True(t, doc.Processed)
		require.NotEmpty(t, doc.Fingerprint)
	}
}

func TestRunCycle_NoAlertWithoutMatchedKeyword(t *testing.T) {
	t.Parallel()

	// "Urgent Notice" trips the critical keyword but matches nothing on the
	// watchlist: the document is stored at its raised tier, yet no alert may
	// be queued for it.
	page := `<html><body><table>
<tr class="tabled-paper"><td><a href="/papers/notice">Urgent Notice</a></td></tr>
</table></body></html>`

	logger := zap.NewNop()
	fetcher := &fakeFetcher{
		pages: map[string][]byte{"https://parl.test/tabled": []byte(page)},
		errs:  map[string]error{},
	}
	store := memory.New()
	notifier := &fakeNotifier{sent: true}

	p := New(Deps{
		Sources: []monitor.Source{
			{Name: "house_tabled", URL: "https://parl.test/tabled", Kind: monitor.KindTabledPapers, Chamber: "House of Assembly"},
		},
		Fetcher:       fetcher,
		Extractor:     extract.New(logger),
		Fingerprinter: fingerprint.New(),
		Classifier: classify.New(
			map[string][]string{"gaming": {"casino"}},
			[]string{"urgent"},
			nil,
			nil,
			logger,
		),
		Store:     store,
		Notifier:  notifier,
		Publisher: pubmemory.New(),
		Archive:   &fakeArchive{},
		Clock:     fixedClock{now: time.Date(2025, time.March, 4, 10, 0, 0, 0, time.UTC)},
		Logger:    logger,
	})

	ctx := context.Background()
	result, err := p.RunCycle(ctx)
	require.NoError(t, err)
	require.Len(t, result.NewDocuments, 1)
	require.Equal(t, monitor.TierCritical, result.NewDocuments[0].Tier)
	require.Empty(t, result.NewDocuments[0].Keywords)
	require.Empty(t, result.Alerted)
	require.False(t, result.Dispatched)
	require.Empty(t, notifier.batches)

	unsent, err := store.UnsentAlerts(ctx)
	require.NoError(t, err)
	require.Empty(t, unsent)
}

func TestRunCycle_SecondRunFindsNothingNew(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.pipeline.RunCycle(ctx)
	require.NoError(t, err)

	result, err := f.pipeline.RunCycle(ctx)
	require.NoError(t, err)
	require.Empty(t, result.NewDocuments)
	require.Empty(t, result.Alerted)
	require.False(t, result.Dispatched)
	require.Len(t, f.notifier.batches, 1)

	stats, err := f.store.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, stats.TotalDocuments)
}

func TestRunCycle_SourceFailureIsIsolated(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.fetcher.errs["https://parl.test/tabled"] = errors.New("connection refused")
	ctx := context.Background()

	result, err := f.pipeline.RunCycle(ctx)
	require.NoError(t, err)
	require.Len(t, result.NewDocuments, 1) // bills source still ran

	history := f.store.ScrapeHistory()
	require.Len(t, history, 2)
	require.Equal(t, "error", history[0].Status)
	require.Contains(t, history[0].Error, "connection refused")
	require.Equal(t, "ok", history[1].Status)
}

func TestRunCycle_FailedDispatchRetriesNextCycle(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.notifier.err = errors.New("telegram unreachable")
	ctx := context.Background()

	result, err := f.pipeline.RunCycle(ctx)
	require.NoError(t, err)
	require.False(t, result.Dispatched)

	unsent, err := f.store.UnsentAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, unsent, 1)

	// Transport recovers; queued alert goes out even though nothing new
	// was discovered.
	f.notifier.err = nil
	result, err = f.pipeline.RunCycle(ctx)
	require.NoError(t, err)
	require.True(t, result.Dispatched)
	require.Empty(t, result.NewDocuments)

	unsent, err = f.store.UnsentAlerts(ctx)
	require.NoError(t, err)
	require.Empty(t, unsent)
}

func TestRunSource_DoesNotDispatch(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	fresh, err := f.pipeline.RunSource(ctx, "house_tabled")
	require.NoError(t, err)
	require.Len(t, fresh, 2)
	require.Empty(t, f.notifier.batches)

	unsent, err := f.store.UnsentAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, unsent, 1)

	_, err = f.pipeline.RunSource(ctx, "no_such_source")
	require.Error(t, err)
}

func TestRunCycle_CanceledContext(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.pipeline.RunCycle(ctx)
	require.Error(t, err)
}

func TestSourceNames(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.Equal(t, []string{"house_tabled", "bills"}, f.pipeline.SourceNames())
}
