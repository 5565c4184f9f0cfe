package domain

import "time"

// Factor is one named contribution to a score. RawCount is the count before
// capping; Capped reports whether the configured cap clamped it.
type Factor struct {
	Name         string
	RawCount     int
	Capped       bool
	Contribution float64
	EvidenceURLs []string
}

// Score is the explainable output for one candidate. The factor
// contributions always sum exactly to Value; when the [0,100] clamp fires it
// appears as its own negative factor rather than as a hidden adjustment.
type Score struct {
	Value      float64
	Factors    []Factor
	ComputedAt time.Time
}

// Lead is the persisted read model: a parcel with its latest score and the
// evidence bundle the score was derived from.
type Lead struct {
	Parcel      Parcel
	Score       Score
	Signals     SignalBundle
	Summary     string
	RefreshedAt time.Time
}

// RefreshResult is what a completed refresh run hands to the caller.
type RefreshResult struct {
	Candidates []Candidate
	Scores     map[string]Score
	Warnings   []string
}
