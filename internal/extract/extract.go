// Package extract parses parliament listing pages into candidate documents.
package extract

import (
	"bytes"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/parlwatch/parliament-monitor/internal/monitor"
)

const siteBase = "https://www.parliament.tas.gov.au"

var (
	paperClassRe  = regexp.MustCompile(`(?i)paper|document|tabled`)
	titleClassRe  = regexp.MustCompile(`(?i)title`)
	dateRe        = regexp.MustCompile(`\d{1,2}\s+[A-Za-z]+\s+\d{4}`)
	billClassRe   = regexp.MustCompile(`(?i)bill`)
	billStatusRe  = regexp.MustCompile(`(?i)(first|second|third) reading|royal assent`)
	commClassRe   = regexp.MustCompile(`(?i)committee`)
	commInquiryRe = regexp.MustCompile(`(?i)inquiry|submission`)
)

// Extractor implements monitor.Extractor over goquery. Parsing is lenient:
// entries missing required pieces are skipped and logged at debug.
type Extractor struct {
	logger *zap.Logger
}

// New returns an Extractor.
func New(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract dispatches on the source kind. Unknown kinds yield nothing.
func (e *Extractor) Extract(kind monitor.SourceKind, rawHTML []byte, sourceURL, chamber string) []monitor.Document {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(rawHTML))
	if err != nil {
		e.logger.Warn("unparseable page", zap.Error(&monitor.ParseError{Source: sourceURL, Err: err}))
		return nil
	}

	switch kind {
	case monitor.KindTabledPapers:
		return e.tabledPapers(doc, sourceURL, chamber)
	case monitor.KindBills:
		return e.bills(doc, sourceURL)
	case monitor.KindCommittees:
		return e.committees(doc, sourceURL)
	}
	e.logger.Warn("unknown source kind", zap.String("kind", string(kind)), zap.String("source_url", sourceURL))
	return nil
}

func (e *Extractor) tabledPapers(page *goquery.Document, sourceURL, chamber string) []monitor.Document {
	var docs []monitor.Document
	classMatches(page, []string{"tr", "div", "li"}, paperClassRe).Each(func(_ int, row *goquery.Selection) {
		title, link := titleAndLink(row)
		if title == "" {
			e.logger.Debug("paper entry without title", zap.String("source_url", sourceURL))
			return
		}
		docs = append(docs, monitor.Document{
			SourceURL:   sourceURL,
			DocumentURL: link,
			Title:       title,
			Type:        monitor.TypeTabledPaper,
			Chamber:     chamber,
			Published:   publishedDate(row),
		})
	})
	return docs
}

func (e *Extractor) bills(page *goquery.Document, sourceURL string) []monitor.Document {
	var docs []monitor.Document
	classMatches(page, []string{"tr", "div"}, billClassRe).Each(func(_ int, row *goquery.Selection) {
		anchor := row.Find("a").First()
		title := strings.TrimSpace(anchor.Text())
		if title == "" {
			e.logger.Debug("bill entry without title", zap.String("source_url", sourceURL))
			return
		}
		docs = append(docs, monitor.Document{
			SourceURL:   sourceURL,
			DocumentURL: absolutize(anchor.AttrOr("href", "")),
			Title:       title,
			Description: findText(row, billStatusRe),
			Type:        monitor.TypeBill,
		})
	})
	return docs
}

func (e *Extractor) committees(page *goquery.Document, sourceURL string) []monitor.Document {
	var docs []monitor.Document
	classMatches(page, []string{"div", "section"}, commClassRe).Each(func(_ int, block *goquery.Selection) {
		name := strings.TrimSpace(block.Find("h2, h3, h4").First().Text())
		if name == "" {
			e.logger.Debug("committee block without heading", zap.String("source_url", sourceURL))
			return
		}
		inquiry := findText(block, commInquiryRe)
		if inquiry == "" {
			return
		}
		docs = append(docs, monitor.Document{
			SourceURL:   sourceURL,
			Title:       "Committee Update: " + name,
			Description: inquiry,
			Type:        monitor.TypeCommitteeReport,
			Committee:   name,
		})
	})
	return docs
}

// classMatches selects elements with any of the given tags whose class
// attribute matches re.
func classMatches(page *goquery.Document, tags []string, re *regexp.Regexp) *goquery.Selection {
	return page.Find(strings.Join(tags, ", ")).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return re.MatchString(s.AttrOr("class", ""))
	})
}

// titleAndLink finds an entry's title element, preferring anchors or spans
// carrying a title class and falling back to the first anchor.
func titleAndLink(row *goquery.Selection) (title, link string) {
	elem := row.Find("a, span").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return titleClassRe.MatchString(s.AttrOr("class", ""))
	}).First()
	if elem.Length() == 0 {
		elem = row.Find("a").First()
	}
	if elem.Length() == 0 {
		return "", ""
	}
	title = strings.TrimSpace(elem.Text())
	if goquery.NodeName(elem) == "a" {
		link = absolutize(elem.AttrOr("href", ""))
	}
	return title, link
}

// publishedDate scans an entry's text nodes for a "2 January 2006" style
// date. Unparseable dates are left nil rather than guessed.
func publishedDate(row *goquery.Selection) *time.Time {
	text := findText(row, dateRe)
	if text == "" {
		return nil
	}
	parsed, err := time.Parse("2 January 2006", dateRe.FindString(text))
	if err != nil {
		return nil
	}
	return &parsed
}

// findText returns the first text node under sel matching re, trimmed.
func findText(sel *goquery.Selection, re *regexp.Regexp) string {
	var found string
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.TextNode && re.MatchString(n.Data) {
			found = strings.TrimSpace(n.Data)
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	for _, node := range sel.Nodes {
		if walk(node) {
			break
		}
	}
	return found
}

func absolutize(href string) string {
	if href == "" || strings.HasPrefix(href, "http") {
		return href
	}
	return siteBase + href
}
