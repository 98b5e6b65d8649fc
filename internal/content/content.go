// Package content loads plain text for discovered document URLs so the
// classifier can match keywords against more than titles.
package content

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/parlwatch/parliament-monitor/internal/monitor"
)

const defaultMaxTextLen = 20000

// Loader implements monitor.ContentLoader. PDF links are always loaded;
// plain HTML pages only when fetchHTML is set, since most parliament links
// point at landing pages with little classifiable text.
type Loader struct {
	fetcher    monitor.Fetcher
	logger     *zap.Logger
	fetchHTML  bool
	maxTextLen int
}

// New builds a Loader.
func New(fetcher monitor.Fetcher, fetchHTML bool, logger *zap.Logger) *Loader {
	return &Loader{
		fetcher:    fetcher,
		logger:     logger,
		fetchHTML:  fetchHTML,
		maxTextLen: defaultMaxTextLen,
	}
}

// Load returns extracted text for docURL, or "" when the URL yields nothing
// usable. Only transport failures surface as errors.
func (l *Loader) Load(ctx context.Context, docURL string) (string, error) {
	parsed, err := url.Parse(docURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("invalid document url %q", docURL)
	}

	if strings.HasSuffix(strings.ToLower(parsed.Path), ".pdf") {
		return l.loadPDF(ctx, docURL)
	}
	if !l.fetchHTML {
		return "", nil
	}
	return l.loadHTML(ctx, docURL, parsed)
}

func (l *Loader) loadPDF(ctx context.Context, docURL string) (string, error) {
	data, err := l.fetcher.FetchPDF(ctx, docURL)
	if err != nil {
		return "", err
	}
	if data == nil {
		return "", nil
	}

	text, err := extractPDFText(data)
	if err != nil {
		l.logger.Debug("unreadable pdf", zap.String("url", docURL), zap.Error(err))
		return "", nil
	}
	return l.truncate(text), nil
}

func (l *Loader) loadHTML(ctx context.Context, docURL string, parsed *url.URL) (string, error) {
	raw, err := l.fetcher.FetchPage(ctx, docURL)
	if err != nil {
		return "", err
	}

	article, err := readability.FromReader(bytes.NewReader(raw), parsed)
	if err != nil {
		l.logger.Debug("unreadable page", zap.String("url", docURL), zap.Error(err))
		return "", nil
	}
	return l.truncate(strings.TrimSpace(article.TextContent)), nil
}

func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func (l *Loader) truncate(text string) string {
	if len(text) > l.maxTextLen {
		return text[:l.maxTextLen]
	}
	return text
}
