package collectors

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"P3Recon/internal/collector"
	"P3Recon/internal/config"
	"P3Recon/internal/domain"
	"P3Recon/internal/fetch"
)

// DefaultDistressKeywords are appended to the parcel query to isolate
// tax-sale and foreclosure coverage from plain news mentions.
var DefaultDistressKeywords = []string{"tax sale", "foreclosure", "delinquent"}

// TaxKeywordCollector reuses the news-search transport with added distress
// keywords. Hits are a distinct signal from plain news coverage even though
// the upstream feed is shared.
type TaxKeywordCollector struct {
	gate     *fetch.Gate
	baseURL  string
	keywords []string
	logger   *slog.Logger
}

var _ collector.Collector = (*TaxKeywordCollector)(nil)

// NewTaxKeywordCollector wires the shared feed endpoint; nil keywords get
// the defaults.
func NewTaxKeywordCollector(gate *fetch.Gate, baseURL string, keywords []string, logger *slog.Logger) *TaxKeywordCollector {
	if len(keywords) == 0 {
		keywords = DefaultDistressKeywords
	}
	return &TaxKeywordCollector{gate: gate, baseURL: baseURL, keywords: keywords, logger: logger}
}

// Name identifies the collector inside the registry.
func (c *TaxKeywordCollector) Name() string {
	return config.SourceTaxKeyword
}

// Collect fills the tax-distress section of the bundle, degrading to an
// Unavailable zero-count section when the feed is down.
func (c *TaxKeywordCollector) Collect(ctx context.Context, candidate domain.Candidate) (domain.SignalBundle, error) {
	now := time.Now().UTC()
	bundle := domain.SignalBundle{APN: candidate.Parcel.APN}

	searchURL, err := buildSearchURL(c.baseURL, c.query(candidate.Parcel))
	if err != nil {
		return bundle, err
	}

	res, fetchErr := c.gate.Fetch(ctx, config.SourceTaxKeyword, searchURL)
	if ctx.Err() != nil {
		return bundle, ctx.Err()
	}
	if fetchErr != nil || res.Failed {
		bundle.TaxKeyword = domain.KeywordSignal{CollectedAt: now, Unavailable: true}
		return bundle, nil
	}

	articles, err := parseArticles(res.Body)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("keyword feed payload unusable", "apn", candidate.Parcel.APN, "error", err)
		}
		bundle.TaxKeyword = domain.KeywordSignal{CollectedAt: now, Unavailable: true}
		return bundle, nil
	}

	items := make([]domain.KeywordItem, 0, len(articles))
	for _, a := range articles {
		items = append(items, domain.KeywordItem{
			Snippet:     a.Title,
			URL:         a.URL,
			PublishedAt: a.publishedAt(),
		})
	}

	bundle.TaxKeyword = domain.KeywordSignal{
		Count:       len(items),
		Items:       items,
		CollectedAt: now,
	}
	return bundle, nil
}

func (c *TaxKeywordCollector) query(parcel domain.Parcel) string {
	quoted := make([]string, 0, len(c.keywords))
	for _, kw := range c.keywords {
		quoted = append(quoted, fmt.Sprintf("%q", kw))
	}
	return fmt.Sprintf("%s (%s)", searchTerms(parcel), strings.Join(quoted, " OR "))
}
