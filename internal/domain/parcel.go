package domain

import "time"

// Category is the normalized land-use classification. The set is closed:
// collectors and scoring only ever see one of these four values.
type Category string

const (
	CategoryCommercial    Category = "Commercial"
	CategoryIndustrial    Category = "Industrial"
	CategoryInstitutional Category = "Institutional"
	CategoryOther         Category = "Other"
)

// Parcel is one assessed real-estate unit from the source dataset.
// A parcel is immutable within a refresh run; the next run supersedes it
// with a new row under the same APN.
type Parcel struct {
	APN          string
	Name         string
	Address      string
	Lat          float64
	Lng          float64
	LandUse      string // raw classification text as it appears in the dataset
	Category     Category
	Acres        float64
	BuildingSqFt float64
	LastSaleDate time.Time
	ImageryFlags []string
}

// Thresholds are the admission criteria applied by the candidate filter.
type Thresholds struct {
	AllowedCategories []Category
	MinAcres          float64
	MinBuildingSqFt   float64
}

// Allows reports whether the category is in the allowed set.
func (t Thresholds) Allows(c Category) bool {
	for _, allowed := range t.AllowedCategories {
		if allowed == c {
			return true
		}
	}
	return false
}

// Candidate wraps a Parcel that passed filter thresholds, together with the
// threshold values that admitted it.
type Candidate struct {
	Parcel     Parcel
	Admitted   Thresholds
	AdmittedAt time.Time
}
