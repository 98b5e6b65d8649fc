// Package classify assigns keywords and alert tiers to documents.
package classify

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/parlwatch/parliament-monitor/internal/monitor"
)

// Classifier implements monitor.Classifier. Keyword matching is
// case-insensitive substring matching over title, description and body text.
type Classifier struct {
	keywords         []keyword
	criticalKeywords []string
	prioritySources  []string
	loader           monitor.ContentLoader
	logger           *zap.Logger
}

// keyword pairs a watchlist entry's configured form, which is what gets
// recorded on matched documents, with the lowercased form used for matching.
type keyword struct {
	text  string
	lower string
}

// New builds a Classifier. The keyword categories are flattened, deduplicated
// and sorted so match order is stable regardless of map iteration.
func New(
	keywordsByCategory map[string][]string,
	criticalKeywords []string,
	prioritySources []string,
	loader monitor.ContentLoader,
	logger *zap.Logger,
) *Classifier {
	return &Classifier{
		keywords:         flatten(keywordsByCategory),
		criticalKeywords: lowerAll(criticalKeywords),
		prioritySources:  lowerAll(prioritySources),
		loader:           loader,
		logger:           logger,
	}
}

// Classify fills in doc.Keywords and doc.Tier. When the document has a URL
// but no body text yet, one load attempt is made; a failed load classifies
// on title and description alone.
func (c *Classifier) Classify(ctx context.Context, doc *monitor.Document) {
	if doc.BodyText == "" && doc.DocumentURL != "" && c.loader != nil {
		text, err := c.loader.Load(ctx, doc.DocumentURL)
		if err != nil {
			c.logger.Debug("body text unavailable",
				zap.String("url", doc.DocumentURL),
				zap.Error(err),
			)
		} else {
			doc.BodyText = text
		}
	}

	corpus := strings.ToLower(doc.Title + " " + doc.Description + " " + doc.BodyText)

	doc.Keywords = nil
	for _, kw := range c.keywords {
		if strings.Contains(corpus, kw.lower) {
			doc.Keywords = append(doc.Keywords, kw.text)
		}
	}

	doc.Tier = c.tier(corpus, len(doc.Keywords))
}

func (c *Classifier) tier(corpus string, matched int) monitor.AlertTier {
	for _, kw := range c.criticalKeywords {
		if strings.Contains(corpus, kw) {
			return monitor.TierCritical
		}
	}
	for _, source := range c.prioritySources {
		if strings.Contains(corpus, source) {
			return monitor.TierHigh
		}
	}
	if matched > 3 {
		return monitor.TierHigh
	}
	if matched > 0 {
		return monitor.TierStandard
	}
	return monitor.TierInfo
}

func flatten(byCategory map[string][]string) []keyword {
	seen := make(map[string]struct{})
	var flat []keyword
	for _, kws := range byCategory {
		for _, kw := range kws {
			text := strings.TrimSpace(kw)
			lower := strings.ToLower(text)
			if lower == "" {
				continue
			}
			if _, ok := seen[lower]; ok {
				continue
			}
			seen[lower] = struct{}{}
			flat = append(flat, keyword{text: text, lower: lower})
		}
	}
	sort.Slice(flat, func(i, j int) bool { return flat[i].lower < flat[j].lower })
	return flat
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.ToLower(v))
	}
	return out
}
