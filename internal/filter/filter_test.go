package filter

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"P3Recon/internal/domain"
)

func TestFilterAdmitsKCIScenario(t *testing.T) {
	t.Parallel()

	kci := domain.Parcel{
		APN:          "13-200-05-01",
		Name:         "KCI Logistics Campus",
		Category:     domain.CategoryIndustrial,
		Acres:        12,
		BuildingSqFt: 60000,
	}

	candidates := Filter([]domain.Parcel{kci}, Defaults())
	require.Len(t, candidates, 1)
	assert.Equal(t, "13-200-05-01", candidates[0].Parcel.APN)
	assert.Equal(t, Defaults().MinAcres, candidates[0].Admitted.MinAcres)
}

func TestFilterBoundaries(t *testing.T) {
	t.Parallel()

	base := domain.Parcel{Category: domain.CategoryIndustrial, Acres: 10, BuildingSqFt: 50000}

	cases := []struct {
		name   string
		mutate func(*domain.Parcel)
		admit  bool
	}{
		{"exactly at thresholds", func(p *domain.Parcel) {}, true},
		{"acres just below", func(p *domain.Parcel) { p.Acres = 9.999 }, false},
		{"sqft just below", func(p *domain.Parcel) { p.BuildingSqFt = 49999 }, false},
		{"category excluded", func(p *domain.Parcel) { p.Category = domain.CategoryOther }, false},
		{"zero fields filtered naturally", func(p *domain.Parcel) { p.Acres = 0; p.BuildingSqFt = 0 }, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			parcel := base
			tc.mutate(&parcel)
			got := len(Filter([]domain.Parcel{parcel}, Defaults())) == 1
			assert.Equal(t, tc.admit, got)
		})
	}
}

// Randomized parcels checked against hand-computed admission.
func TestFilterProperty(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	thresholds := Defaults()
	categories := []domain.Category{
		domain.CategoryCommercial,
		domain.CategoryIndustrial,
		domain.CategoryInstitutional,
		domain.CategoryOther,
	}

	parcels := make([]domain.Parcel, 500)
	for i := range parcels {
		parcels[i] = domain.Parcel{
			APN:          fmt.Sprintf("rand-%03d", i),
			Category:     categories[rng.Intn(len(categories))],
			Acres:        rng.Float64() * 25,
			BuildingSqFt: rng.Float64() * 120000,
		}
	}

	admitted := map[string]bool{}
	for _, c := range Filter(parcels, thresholds) {
		admitted[c.Parcel.APN] = true
	}

	var expectedOrder []string
	for _, p := range parcels {
		want := thresholds.Allows(p.Category) && p.Acres >= thresholds.MinAcres && p.BuildingSqFt >= thresholds.MinBuildingSqFt
		assert.Equal(t, want, admitted[p.APN], "parcel %s cat=%s acres=%v sqft=%v", p.APN, p.Category, p.Acres, p.BuildingSqFt)
		if want {
			expectedOrder = append(expectedOrder, p.APN)
		}
	}

	// Output order is input order.
	got := Filter(parcels, thresholds)
	require.Len(t, got, len(expectedOrder))
	for i, apn := range expectedOrder {
		assert.Equal(t, apn, got[i].Parcel.APN)
	}
}

func TestFilterIsDeterministic(t *testing.T) {
	t.Parallel()

	parcels := []domain.Parcel{
		{APN: "a", Category: domain.CategoryIndustrial, Acres: 15, BuildingSqFt: 70000},
		{APN: "b", Category: domain.CategoryCommercial, Acres: 11, BuildingSqFt: 51000},
	}
	first := Filter(parcels, Defaults())
	second := Filter(parcels, Defaults())
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Parcel, second[i].Parcel)
	}
}
