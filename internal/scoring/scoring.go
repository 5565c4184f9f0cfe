package scoring

import (
	"fmt"
	"strings"
	"time"

	"P3Recon/internal/config"
	"P3Recon/internal/domain"
)

// Factor names as they appear in persisted score breakdowns.
const (
	FactorNews        = "news"
	FactorLabor       = "labor_notices"
	FactorImagery     = "imagery_flags"
	FactorTaxDistress = "tax_distress"
	FactorRangeClamp  = "range_clamp"
)

// Engine turns a signal bundle into an explainable score. Strictly pure:
// all I/O happened in the collectors, so identical inputs always produce an
// identical factor breakdown.
type Engine struct {
	cfg config.ScoringConfig
}

// NewEngine builds an engine from named weight/cap configuration.
func NewEngine(cfg config.ScoringConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Score combines weighted, capped factor contributions. The factor list
// reproduces exactly how the total was derived: raw counts, whether a cap
// clamped them, and the evidence behind each. When the [0,100] clamp fires
// it is recorded as its own negative factor, so contributions always sum to
// the final value.
func (e *Engine) Score(candidate domain.Candidate, bundle domain.SignalBundle) domain.Score {
	var factors []domain.Factor

	addFactor := func(name string, count, limit int, weight float64, urls []string) {
		if count == 0 {
			return
		}
		effective := count
		capped := count > limit
		if capped {
			effective = limit
		}
		factors = append(factors, domain.Factor{
			Name:         name,
			RawCount:     count,
			Capped:       capped,
			Contribution: float64(effective) * weight,
			EvidenceURLs: urls,
		})
	}

	addFactor(FactorNews, bundle.News.Count, e.cfg.NewsCap, e.cfg.NewsWeight, newsURLs(bundle.News.Items))
	addFactor(FactorLabor, bundle.Labor.Count, e.cfg.LaborCap, e.cfg.LaborWeight, laborURLs(bundle.Labor.Items))
	addFactor(FactorImagery, len(distinctFlags(bundle.ImageryFlags)), e.cfg.ImageryFlagCap, e.cfg.ImageryBonus, nil)
	addFactor(FactorTaxDistress, bundle.TaxKeyword.Count, e.cfg.TaxKeywordCap, e.cfg.TaxKeywordWeight, keywordURLs(bundle.TaxKeyword.Items))

	var total float64
	for _, f := range factors {
		total += f.Contribution
	}
	if total > 100 {
		factors = append(factors, domain.Factor{
			Name:         FactorRangeClamp,
			Contribution: 100 - total,
		})
		total = 100
	}

	return domain.Score{
		Value:      total,
		Factors:    factors,
		ComputedAt: time.Now().UTC(),
	}
}

// Summarize derives the one-line lead summary from the bundle's counts.
func Summarize(bundle domain.SignalBundle) string {
	var parts []string
	if bundle.News.Count > 0 {
		parts = append(parts, fmt.Sprintf("%d news %s", bundle.News.Count, plural(bundle.News.Count, "hit", "hits")))
	}
	if bundle.Labor.Count > 0 {
		parts = append(parts, fmt.Sprintf("%d labor %s", bundle.Labor.Count, plural(bundle.Labor.Count, "notice", "notices")))
	}
	if flags := distinctFlags(bundle.ImageryFlags); len(flags) > 0 {
		parts = append(parts, fmt.Sprintf("imagery: %s", strings.Join(flags, ", ")))
	}
	if bundle.TaxKeyword.Count > 0 {
		parts = append(parts, fmt.Sprintf("%d tax-distress %s", bundle.TaxKeyword.Count, plural(bundle.TaxKeyword.Count, "mention", "mentions")))
	}
	if len(parts) == 0 {
		return "no active signals"
	}
	return strings.Join(parts, "; ")
}

func plural(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}

func distinctFlags(flags []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, flag := range flags {
		normalized := strings.TrimSpace(flag)
		if normalized == "" {
			continue
		}
		key := strings.ToLower(normalized)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

func newsURLs(items []domain.NewsItem) []string {
	urls := make([]string, 0, len(items))
	for _, item := range items {
		urls = append(urls, item.URL)
	}
	return urls
}

func laborURLs(items []domain.LaborItem) []string {
	urls := make([]string, 0, len(items))
	for _, item := range items {
		urls = append(urls, item.URL)
	}
	return urls
}

func keywordURLs(items []domain.KeywordItem) []string {
	urls := make([]string, 0, len(items))
	for _, item := range items {
		urls = append(urls, item.URL)
	}
	return urls
}
