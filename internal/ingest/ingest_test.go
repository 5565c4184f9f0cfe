package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"P3Recon/internal/domain"
)

func TestNormalizeLandUse(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want domain.Category
	}{
		{"Warehouse / Distribution", domain.CategoryIndustrial},
		{"RAIL YARD", domain.CategoryIndustrial},
		{"Neighborhood retail", domain.CategoryCommercial},
		{"Mixed-use corridor", domain.CategoryCommercial},
		{"Transit center", domain.CategoryInstitutional},
		{"Multi-family residential", domain.CategoryOther},
		{"", domain.CategoryOther},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeLandUse(tc.raw), "raw %q", tc.raw)
	}
}

func TestParseParcelsSkipsMalformedRows(t *testing.T) {
	t.Parallel()

	csvData := strings.Join([]string{
		"apn,name,address,lat,lng,land_use,acres,building_sqft,last_sale_date,imagery_flags",
		"11-111-11-11,Good Site,1 Main St,39.1,-94.6,Warehouse,12,60000,2024-08-09,Vacancy",
		",Missing APN,2 Main St,39.1,-94.6,Warehouse,12,60000,2024-08-09,",
		"22-222-22-22,Bad Coords,3 Main St,not-a-lat,-94.6,Warehouse,12,60000,2024-08-09,",
		"33-333-33-33,Zeroed Numbers,4 Main St,39.2,-94.5,Retail,n/a,,,",
	}, "\n")

	parcels, warnings, err := parseParcels([]byte(csvData))
	require.NoError(t, err)

	require.Len(t, parcels, 2)
	assert.Equal(t, "11-111-11-11", parcels[0].APN)
	assert.Equal(t, domain.CategoryIndustrial, parcels[0].Category)
	assert.Equal(t, []string{"Vacancy"}, parcels[0].ImageryFlags)

	assert.Zero(t, parcels[1].Acres, "unparseable acres coerce to zero")
	assert.Zero(t, parcels[1].BuildingSqFt)

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "skipped 2 parcel rows")
	assert.Contains(t, warnings[0], "MALFORMED_RECORD")
}

func TestParseParcelsRejectsMissingColumns(t *testing.T) {
	t.Parallel()

	_, _, err := parseParcels([]byte("apn,name\n11,Site"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lat")
}

func TestIngestDownloadsDataset(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("apn,lat,lng,land_use,acres,building_sqft\n44-1,39.0,-94.5,Office park,11,52000"))
	}))
	defer server.Close()

	ing := NewIngestor(server.Client(), "", nil)
	parcels, warnings, err := ing.Ingest(context.Background(), server.URL+"/parcels.csv")
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, parcels, 1)
	assert.Equal(t, domain.CategoryCommercial, parcels[0].Category)
}

func TestIngestFallsBackToBundledSample(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	ing := NewIngestor(server.Client(), "", nil)
	parcels, warnings, err := ing.Ingest(context.Background(), server.URL+"/parcels.csv")
	require.NoError(t, err)

	require.NotEmpty(t, parcels)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "DATASET_UNAVAILABLE")

	var kci *domain.Parcel
	for idx := range parcels {
		if parcels[idx].Name == "KCI Logistics Campus" {
			kci = &parcels[idx]
		}
	}
	require.NotNil(t, kci, "bundled sample must include the KCI demo site")
	assert.Equal(t, 12.0, kci.Acres)
	assert.Equal(t, 60000.0, kci.BuildingSqFt)
	assert.Equal(t, domain.CategoryIndustrial, kci.Category)
}

func TestIngestWithoutSourceUsesSample(t *testing.T) {
	t.Parallel()

	ing := NewIngestor(nil, "", nil)
	parcels, warnings, err := ing.Ingest(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Len(t, parcels, 8)
}
