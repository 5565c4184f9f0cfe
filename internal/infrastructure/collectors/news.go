package collectors

import (
	"context"
	"log/slog"
	"time"

	"P3Recon/internal/collector"
	"P3Recon/internal/config"
	"P3Recon/internal/domain"
	"P3Recon/internal/fetch"
)

// NewsCollector queries a public news-search feed for mentions of the
// parcel and counts hits within a bounded lookback window.
type NewsCollector struct {
	gate     *fetch.Gate
	baseURL  string
	lookback time.Duration
	logger   *slog.Logger
}

var _ collector.Collector = (*NewsCollector)(nil)

// NewNewsCollector wires the fetch gate and feed endpoint; lookback bounds
// how old a mention may be and still count.
func NewNewsCollector(gate *fetch.Gate, baseURL string, lookback time.Duration, logger *slog.Logger) *NewsCollector {
	if lookback <= 0 {
		lookback = 730 * 24 * time.Hour
	}
	return &NewsCollector{gate: gate, baseURL: baseURL, lookback: lookback, logger: logger}
}

// Name identifies the collector inside the registry.
func (c *NewsCollector) Name() string {
	return config.SourceNews
}

// Collect fills the news section of the bundle. A failing source yields a
// zero-count section flagged Unavailable, never an error.
func (c *NewsCollector) Collect(ctx context.Context, candidate domain.Candidate) (domain.SignalBundle, error) {
	now := time.Now().UTC()
	bundle := domain.SignalBundle{APN: candidate.Parcel.APN}

	searchURL, err := buildSearchURL(c.baseURL, searchTerms(candidate.Parcel))
	if err != nil {
		return bundle, err
	}

	res, fetchErr := c.gate.Fetch(ctx, config.SourceNews, searchURL)
	if ctx.Err() != nil {
		return bundle, ctx.Err()
	}
	if fetchErr != nil || res.Failed {
		bundle.News = domain.NewsSignal{CollectedAt: now, Unavailable: true}
		return bundle, nil
	}

	articles, err := parseArticles(res.Body)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("news feed payload unusable", "apn", candidate.Parcel.APN, "error", err)
		}
		bundle.News = domain.NewsSignal{CollectedAt: now, Unavailable: true}
		return bundle, nil
	}

	items := make([]domain.NewsItem, 0, len(articles))
	for _, a := range withinLookback(articles, now.Add(-c.lookback)) {
		items = append(items, domain.NewsItem{
			Headline:    a.Title,
			URL:         a.URL,
			PublishedAt: a.publishedAt(),
		})
	}

	bundle.News = domain.NewsSignal{
		Count:       len(items),
		Items:       items,
		CollectedAt: now,
	}
	return bundle, nil
}
