// Package pipeline drives monitoring cycles: fetch, extract, deduplicate,
// classify, persist and alert.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/parlwatch/parliament-monitor/internal/metrics"
	"github.com/parlwatch/parliament-monitor/internal/monitor"
)

// Deps collects everything a Pipeline needs.
type Deps struct {
	Sources       []monitor.Source
	Fetcher       monitor.Fetcher
	Extractor     monitor.Extractor
	Fingerprinter monitor.Fingerprinter
	Classifier    monitor.Classifier
	Store         monitor.DocumentStore
	Notifier      monitor.Notifier
	Publisher     monitor.Publisher
	Archive       monitor.BlobStore
	Clock         monitor.Clock
	Logger        *zap.Logger

	// AlertTopic names the event stream for published alerts.
	AlertTopic string
	// ArchivePrefix is prepended to snapshot object paths.
	ArchivePrefix string
}

// Pipeline runs monitoring cycles over a fixed source registry.
type Pipeline struct {
	deps Deps
}

// New builds a Pipeline.
func New(deps Deps) *Pipeline {
	if deps.AlertTopic == "" {
		deps.AlertTopic = "alerts"
	}
	if deps.ArchivePrefix == "" {
		deps.ArchivePrefix = "pages"
	}
	return &Pipeline{deps: deps}
}

// RunCycle checks every source, then dispatches all pending alerts as one
// digest. A failing source never aborts the cycle; its error is recorded in
// the scrape history and the cycle moves on.
func (p *Pipeline) RunCycle(ctx context.Context) (monitor.CycleResult, error) {
	start := time.Now()
	defer func() { metrics.ObserveCycle(time.Since(start)) }()

	var result monitor.CycleResult
	for _, src := range p.deps.Sources {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("cycle interrupted: %w", err)
		}
		fresh, alerted, err := p.checkSource(ctx, src)
		if err != nil {
			p.deps.Logger.Warn("source check failed",
				zap.String("source", src.Name),
				zap.Error(err),
			)
			continue
		}
		result.NewDocuments = append(result.NewDocuments, fresh...)
		result.Alerted = append(result.Alerted, alerted...)
	}

	dispatched, err := p.dispatch(ctx)
	if err != nil {
		p.deps.Logger.Warn("alert dispatch failed, alerts remain queued", zap.Error(err))
	}
	result.Dispatched = dispatched

	p.deps.Logger.Info("cycle complete",
		zap.Int("new_documents", len(result.NewDocuments)),
		zap.Int("alerted", len(result.Alerted)),
		zap.Bool("dispatched", result.Dispatched),
		zap.Duration("took", time.Since(start)),
	)
	return result, nil
}

// RunSource checks a single source by name without dispatching alerts; they
// queue until the next full cycle. Used by the per-source schedules.
func (p *Pipeline) RunSource(ctx context.Context, name string) ([]monitor.Document, error) {
	for _, src := range p.deps.Sources {
		if src.Name == name {
			fresh, _, err := p.checkSource(ctx, src)
			return fresh, err
		}
	}
	return nil, fmt.Errorf("unknown source %q", name)
}

// SourceNames returns the registry's source names in order.
func (p *Pipeline) SourceNames() []string {
	names := make([]string, 0, len(p.deps.Sources))
	for _, src := range p.deps.Sources {
		names = append(names, src.Name)
	}
	return names
}

func (p *Pipeline) checkSource(ctx context.Context, src monitor.Source) (fresh, alerted []monitor.Document, err error) {
	raw, err := p.deps.Fetcher.FetchPage(ctx, src.URL)
	if err != nil {
		p.recordScrape(ctx, src, 0, 0, err)
		return nil, nil, err
	}

	p.archiveSnapshot(ctx, src, raw)

	docs := p.deps.Extractor.Extract(src.Kind, raw, src.URL, src.Chamber)
	for i := range docs {
		doc := docs[i]
		doc.Fingerprint = p.deps.Fingerprinter.Fingerprint(doc)

		// Cheap prefilter. The insert below remains the only dedup gate
		// that counts; a concurrent insert between the two is harmless.
		exists, err := p.deps.Store.DocumentExists(ctx, doc.Fingerprint)
		if err != nil {
			p.deps.Logger.Warn("dedup check failed", zap.String("title", doc.Title), zap.Error(err))
			continue
		}
		if exists {
			continue
		}

		doc.Discovered = p.deps.Clock.Now()
		p.deps.Classifier.Classify(ctx, &doc)

		inserted, err := p.deps.Store.InsertDocument(ctx, &doc)
		if err != nil {
			p.deps.Logger.Warn("insert failed", zap.String("title", doc.Title), zap.Error(err))
			continue
		}
		if !inserted {
			continue
		}

		if p.queueAlert(ctx, doc) {
			alerted = append(alerted, doc)
		}

		if err := p.deps.Store.MarkProcessed(ctx, doc.ID); err != nil {
			p.deps.Logger.Warn("mark processed failed", zap.Int64("id", doc.ID), zap.Error(err))
		}
		fresh = append(fresh, doc)
	}

	p.recordScrape(ctx, src, len(docs), len(fresh), nil)
	metrics.ObserveDiscovered(src.Name, len(docs), len(fresh))
	p.deps.Logger.Info("source checked",
		zap.String("source", src.Name),
		zap.Int("found", len(docs)),
		zap.Int("new", len(fresh)),
	)
	return fresh, alerted, nil
}

// queueAlert stores an alert for any document worth surfacing and publishes
// the event. Only documents that matched at least one watchlist keyword are
// alert-worthy; a tier raised by a critical keyword or priority source alone
// is stored but stays quiet. Reports whether an alert was queued.
func (p *Pipeline) queueAlert(ctx context.Context, doc monitor.Document) bool {
	if len(doc.Keywords) == 0 {
		return false
	}
	if doc.Tier == monitor.TierInfo || doc.Tier == "" {
		return false
	}
	alert := monitor.Alert{
		DocumentID:  doc.ID,
		Tier:        doc.Tier,
		Title:       doc.Title,
		Description: doc.Description,
		Keywords:    strings.Join(doc.Keywords, ", "),
		Created:     p.deps.Clock.Now(),
	}
	if err := p.deps.Store.InsertAlert(ctx, &alert); err != nil {
		p.deps.Logger.Warn("queue alert failed", zap.Int64("document_id", doc.ID), zap.Error(err))
		return false
	}
	if _, err := p.deps.Publisher.Publish(ctx, p.deps.AlertTopic, doc); err != nil {
		p.deps.Logger.Warn("publish alert event failed", zap.Int64("document_id", doc.ID), zap.Error(err))
	}
	return true
}

// dispatch delivers every pending alert as one digest. Alerts are marked
// sent only after the transport confirms delivery, so a failed or disabled
// transport retries them next cycle.
func (p *Pipeline) dispatch(ctx context.Context) (bool, error) {
	alerts, err := p.deps.Store.UnsentAlerts(ctx)
	if err != nil {
		return false, err
	}
	if len(alerts) == 0 {
		return false, nil
	}

	sent, err := p.deps.Notifier.Dispatch(ctx, alerts)
	if err != nil {
		return false, err
	}
	if !sent {
		return false, nil
	}

	ids := make([]int64, len(alerts))
	for i, a := range alerts {
		ids[i] = a.ID
	}
	if err := p.deps.Store.MarkAlertsSent(ctx, ids); err != nil {
		return true, err
	}
	return true, nil
}

func (p *Pipeline) archiveSnapshot(ctx context.Context, src monitor.Source, raw []byte) {
	path := fmt.Sprintf("%s/%s/%s.html",
		p.deps.ArchivePrefix,
		src.Name,
		p.deps.Clock.Now().Format("2006-01-02T15-04-05Z"),
	)
	if _, err := p.deps.Archive.PutObject(ctx, path, "text/html", raw); err != nil {
		p.deps.Logger.Warn("snapshot archive failed", zap.String("source", src.Name), zap.Error(err))
	}
}

func (p *Pipeline) recordScrape(ctx context.Context, src monitor.Source, found, fresh int, cause error) {
	rec := monitor.ScrapeRecord{
		SourceURL: src.URL,
		Scraped:   p.deps.Clock.Now(),
		Found:     found,
		New:       fresh,
		Status:    "ok",
	}
	if cause != nil {
		rec.Status = "error"
		rec.Error = cause.Error()
	}
	if err := p.deps.Store.RecordScrape(ctx, rec); err != nil {
		p.deps.Logger.Warn("record scrape failed", zap.String("source", src.Name), zap.Error(err))
	}
}
