// Package collyfetcher implements monitor.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/parlwatch/parliament-monitor/internal/metrics"
	"github.com/parlwatch/parliament-monitor/internal/monitor"
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	IgnoreRobots  bool
}

// Fetcher implements monitor.Fetcher using the Colly collector. Each fetch
// runs on a clone of the base collector so repeated visits to the same URL
// are never deduplicated away.
type Fetcher struct {
	cfg           Config
	logger        *zap.Logger
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())

	return &Fetcher{
		cfg:           cfg,
		logger:        logger,
		baseCollector: c,
	}
}

// FetchPage retrieves the raw HTML of a listing page, retrying transient
// failures up to the configured attempt budget.
func (f *Fetcher) FetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	body, _, err := f.fetch(ctx, pageURL)
	return body, err
}

// FetchPDF retrieves raw PDF bytes. URLs that resolve but do not serve a PDF
// content type return (nil, nil) so callers can fall back to other text
// sources.
func (f *Fetcher) FetchPDF(ctx context.Context, docURL string) ([]byte, error) {
	body, contentType, err := f.fetch(ctx, docURL)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(strings.ToLower(contentType), "application/pdf") {
		f.logger.Debug("skipping non-pdf response",
			zap.String("url", docURL),
			zap.String("content_type", contentType),
		)
		return nil, nil
	}
	return body, nil
}

func (f *Fetcher) fetch(ctx context.Context, target string) (body []byte, contentType string, err error) {
	attempts := f.cfg.RetryAttempts + 1
	var (
		lastErr error
		tried   int
	)

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			metrics.ObserveFetchRetry(hostOf(target))
			f.logger.Debug("retrying fetch",
				zap.String("url", target),
				zap.Int("attempt", attempt),
			)
			select {
			case <-ctx.Done():
				metrics.ObserveFetchFailure(hostOf(target))
				return nil, "", &monitor.FetchError{URL: target, Attempts: attempt - 1, Err: ctx.Err()}
			case <-time.After(f.cfg.RetryDelay):
			}
		}

		tried = attempt
		body, contentType, lastErr = f.visit(ctx, target)
		if lastErr == nil {
			return body, contentType, nil
		}
		if ctx.Err() != nil {
			break
		}
	}

	metrics.ObserveFetchFailure(hostOf(target))
	return nil, "", &monitor.FetchError{URL: target, Attempts: tried, Err: lastErr}
}

// visit performs one HTTP GET on a fresh collector clone.
func (f *Fetcher) visit(ctx context.Context, target string) (body []byte, contentType string, fetchErr error) {
	collector := f.baseCollector.Clone()
	collector.AllowURLRevisit = true
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = f.cfg.IgnoreRobots
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
		contentType = r.Headers.Get("Content-Type")
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, "", fmt.Errorf("visit failed: %w", err)
		}
		if fetchErr != nil {
			return nil, "", fmt.Errorf("response failed: %w", fetchErr)
		}
		return body, contentType, nil
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
