package collectors

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"P3Recon/internal/collector"
	"P3Recon/internal/config"
	"P3Recon/internal/domain"
	"P3Recon/internal/fetch"
)

// Filler words that carry no identity when matching an employer name
// against a parcel.
var matchStopwords = map[string]struct{}{
	"llc": {}, "inc": {}, "corp": {}, "company": {}, "group": {},
	"the": {}, "and": {}, "park": {}, "campus": {}, "center": {},
}

// LaborNoticeCollector queries the public labor-notice (WARN) listing for
// the parcel's region and matches filings to the parcel by employer name or
// address overlap. The listing URL is region-wide, so the fetch gate serves
// every candidate in a run from one cached download.
type LaborNoticeCollector struct {
	gate    *fetch.Gate
	listURL string
	logger  *slog.Logger
}

var _ collector.Collector = (*LaborNoticeCollector)(nil)

// NewLaborNoticeCollector wires the regional listing endpoint.
func NewLaborNoticeCollector(gate *fetch.Gate, listURL string, logger *slog.Logger) *LaborNoticeCollector {
	return &LaborNoticeCollector{gate: gate, listURL: listURL, logger: logger}
}

// Name identifies the collector inside the registry.
func (c *LaborNoticeCollector) Name() string {
	return config.SourceLabor
}

// Collect fills the labor section of the bundle, degrading to an
// Unavailable zero-count section when the listing is down.
func (c *LaborNoticeCollector) Collect(ctx context.Context, candidate domain.Candidate) (domain.SignalBundle, error) {
	now := time.Now().UTC()
	bundle := domain.SignalBundle{APN: candidate.Parcel.APN}

	res, fetchErr := c.gate.Fetch(ctx, config.SourceLabor, c.listURL)
	if ctx.Err() != nil {
		return bundle, ctx.Err()
	}
	if fetchErr != nil || res.Failed {
		bundle.Labor = domain.LaborSignal{CollectedAt: now, Unavailable: true}
		return bundle, nil
	}

	notices, err := parseNotices(res.Body, c.listURL)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("labor-notice listing unusable", "apn", candidate.Parcel.APN, "error", err)
		}
		bundle.Labor = domain.LaborSignal{CollectedAt: now, Unavailable: true}
		return bundle, nil
	}

	var items []domain.LaborItem
	for _, notice := range notices {
		if matchesParcel(notice, candidate.Parcel) {
			items = append(items, domain.LaborItem{
				Employer: notice.employer,
				FiledAt:  notice.filedAt,
				URL:      notice.url,
			})
		}
	}

	bundle.Labor = domain.LaborSignal{
		Count:       len(items),
		Items:       items,
		CollectedAt: now,
	}
	return bundle, nil
}

type notice struct {
	employer string
	location string
	filedAt  time.Time
	url      string
}

// parseNotices walks the listing's table rows: employer (with a detail
// link), filing date, location.
func parseNotices(raw []byte, listURL string) ([]notice, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	base, _ := url.Parse(listURL)

	var notices []notice
	doc.Find("table tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return // header or malformed row
		}

		n := notice{
			employer: strings.TrimSpace(cells.Eq(0).Text()),
			filedAt:  parseNoticeDate(strings.TrimSpace(cells.Eq(1).Text())),
		}
		if cells.Length() > 2 {
			n.location = strings.TrimSpace(cells.Eq(2).Text())
		}
		if href, ok := cells.Eq(0).Find("a").First().Attr("href"); ok {
			n.url = resolveHref(base, href)
		}
		if n.employer == "" || n.url == "" {
			return // evidence must stay dereferenceable
		}
		notices = append(notices, n)
	})

	return notices, nil
}

func resolveHref(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

func parseNoticeDate(value string) time.Time {
	for _, layout := range []string{"2006-01-02", "01/02/2006", "Jan 2, 2006"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

// matchesParcel links a filing to a parcel by employer-name token overlap
// with the site name, or by the filing location appearing in the parcel
// address.
func matchesParcel(n notice, parcel domain.Parcel) bool {
	employerTokens := identityTokens(n.employer)
	for token := range identityTokens(parcel.Name) {
		if _, ok := employerTokens[token]; ok {
			return true
		}
	}
	if n.location != "" {
		address := strings.ToLower(parcel.Address)
		for token := range identityTokens(n.location) {
			if strings.Contains(address, token) {
				return true
			}
		}
	}
	return false
}

func identityTokens(value string) map[string]struct{} {
	tokens := map[string]struct{}{}
	for _, raw := range strings.Fields(strings.ToLower(value)) {
		token := strings.Trim(raw, ".,()-&")
		if len(token) < 4 {
			continue
		}
		if _, skip := matchStopwords[token]; skip {
			continue
		}
		tokens[token] = struct{}{}
	}
	return tokens
}
