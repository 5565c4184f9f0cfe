package collectors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"P3Recon/internal/domain"
)

const warnListingHTML = `
<table class="warn-listing">
  <tr><th>Employer</th><th>Notice date</th><th>Location</th></tr>
  <tr><td><a href="/warn/101">Ambassador Logistics LLC</a></td><td>2024-06-02</td><td>Platte County</td></tr>
  <tr><td><a href="/warn/102">Heartland Paper Co</a></td><td>05/17/2024</td><td>Springfield</td></tr>
  <tr><td><a href="/warn/103">Riverside Packaging Inc</a></td><td>Apr 9, 2024</td><td>Riverside</td></tr>
  <tr><td>No Link Employer</td><td>2024-03-01</td><td>Kansas City</td></tr>
</table>`

func TestParseNotices(t *testing.T) {
	t.Parallel()

	notices, err := parseNotices([]byte(warnListingHTML), "https://jobs.example/warn/current")
	require.NoError(t, err)

	require.Len(t, notices, 3, "rows without a detail link are dropped")
	assert.Equal(t, "Ambassador Logistics LLC", notices[0].employer)
	assert.Equal(t, "https://jobs.example/warn/101", notices[0].url)
	assert.Equal(t, time.Date(2024, time.June, 2, 0, 0, 0, 0, time.UTC), notices[0].filedAt)
	assert.Equal(t, time.Date(2024, time.May, 17, 0, 0, 0, 0, time.UTC), notices[1].filedAt)
	assert.Equal(t, time.Date(2024, time.April, 9, 0, 0, 0, 0, time.UTC), notices[2].filedAt)
}

func TestMatchesParcel(t *testing.T) {
	t.Parallel()

	parcel := domain.Parcel{
		Name:    "KCI Logistics Campus",
		Address: "11200 NW Ambassador Dr Kansas City MO",
	}

	byName := notice{employer: "Ambassador Logistics LLC", location: "Platte County"}
	assert.True(t, matchesParcel(byName, parcel), "employer-name token overlap")

	byLocation := notice{employer: "Heartland Paper Co", location: "Ambassador Dr"}
	assert.True(t, matchesParcel(byLocation, parcel), "location appears in parcel address")

	unrelated := notice{employer: "Heartland Paper Co", location: "Springfield"}
	assert.False(t, matchesParcel(unrelated, parcel))
}

func TestLaborNoticeCollectorMatchesFilings(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(warnListingHTML))
	}))
	defer server.Close()

	c := NewLaborNoticeCollector(testGate(server), server.URL+"/warn/current", nil)
	bundle, err := c.Collect(context.Background(), kciCandidate())
	require.NoError(t, err)

	require.Equal(t, 1, bundle.Labor.Count)
	assert.Equal(t, "Ambassador Logistics LLC", bundle.Labor.Items[0].Employer)
	assert.Contains(t, bundle.Labor.Items[0].URL, "/warn/101")
	assert.False(t, bundle.Labor.Unavailable)
}

func TestLaborNoticeCollectorDegradesWhenListingDown(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewLaborNoticeCollector(testGate(server), server.URL+"/warn/current", nil)
	bundle, err := c.Collect(context.Background(), kciCandidate())
	require.NoError(t, err)

	assert.True(t, bundle.Labor.Unavailable)
	assert.Zero(t, bundle.Labor.Count)
}
