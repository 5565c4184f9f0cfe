package filter

import (
	"time"

	"P3Recon/internal/domain"
)

// Defaults returns the documented admission thresholds.
func Defaults() domain.Thresholds {
	return domain.Thresholds{
		AllowedCategories: []domain.Category{
			domain.CategoryCommercial,
			domain.CategoryIndustrial,
			domain.CategoryInstitutional,
		},
		MinAcres:        10,
		MinBuildingSqFt: 50000,
	}
}

// Filter admits parcels whose category is allowed and whose acreage and
// building area both meet the minimums. Pure function; output preserves
// input order. Sorting is a presentation concern and happens elsewhere.
func Filter(parcels []domain.Parcel, thresholds domain.Thresholds) []domain.Candidate {
	now := time.Now().UTC()
	candidates := make([]domain.Candidate, 0, len(parcels))
	for _, parcel := range parcels {
		if !Admits(parcel, thresholds) {
			continue
		}
		candidates = append(candidates, domain.Candidate{
			Parcel:     parcel,
			Admitted:   thresholds,
			AdmittedAt: now,
		})
	}
	return candidates
}

// Admits reports whether one parcel satisfies the thresholds.
func Admits(parcel domain.Parcel, thresholds domain.Thresholds) bool {
	return thresholds.Allows(parcel.Category) &&
		parcel.Acres >= thresholds.MinAcres &&
		parcel.BuildingSqFt >= thresholds.MinBuildingSqFt
}
