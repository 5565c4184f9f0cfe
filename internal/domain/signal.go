package domain

import "time"

// NewsItem is one dereferenceable news mention backing the news count.
type NewsItem struct {
	Headline    string
	URL         string
	PublishedAt time.Time
}

// LaborItem is one labor-notice filing matched to the parcel.
type LaborItem struct {
	Employer string
	FiledAt  time.Time
	URL      string
}

// KeywordItem is one tax-sale/foreclosure keyword hit.
type KeywordItem struct {
	Snippet     string
	URL         string
	PublishedAt time.Time
}

// NewsSignal is the news section of a bundle. Unavailable marks a section
// whose source could not be reached; its count is then zero by construction.
type NewsSignal struct {
	Count       int
	Items       []NewsItem
	CollectedAt time.Time
	Unavailable bool
}

// LaborSignal is the labor-notice section of a bundle.
type LaborSignal struct {
	Count       int
	Items       []LaborItem
	CollectedAt time.Time
	Unavailable bool
}

// KeywordSignal is the tax-distress keyword section of a bundle.
type KeywordSignal struct {
	Count       int
	Items       []KeywordItem
	CollectedAt time.Time
	Unavailable bool
}

// SignalBundle is the raw enrichment evidence for one candidate. The schema
// is closed: adding a source means adding a field here, not a free-form key.
type SignalBundle struct {
	APN          string
	News         NewsSignal
	Labor        LaborSignal
	TaxKeyword   KeywordSignal
	ImageryFlags []string
}

// Merge copies the sections a collector filled into the receiver. Each
// collector only ever populates its own section, so a non-zero CollectedAt
// identifies the sections to take.
func (b *SignalBundle) Merge(part SignalBundle) {
	if !part.News.CollectedAt.IsZero() {
		b.News = part.News
	}
	if !part.Labor.CollectedAt.IsZero() {
		b.Labor = part.Labor
	}
	if !part.TaxKeyword.CollectedAt.IsZero() {
		b.TaxKeyword = part.TaxKeyword
	}
	if len(part.ImageryFlags) > 0 {
		b.ImageryFlags = append(b.ImageryFlags, part.ImageryFlags...)
	}
}

// LatestCollectedAt returns the most recent collection timestamp across
// sections. Used for tie-breaking in lead ranking.
func (b SignalBundle) LatestCollectedAt() time.Time {
	latest := b.News.CollectedAt
	if b.Labor.CollectedAt.After(latest) {
		latest = b.Labor.CollectedAt
	}
	if b.TaxKeyword.CollectedAt.After(latest) {
		latest = b.TaxKeyword.CollectedAt
	}
	return latest
}
