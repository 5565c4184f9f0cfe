package ports

import (
	"context"

	"P3Recon/internal/domain"
)

// ParcelSource produces the normalized parcel set for a refresh run.
// Warnings carry contained faults (fallback to sample, skipped rows).
type ParcelSource interface {
	Ingest(ctx context.Context, sourceURL string) (parcels []domain.Parcel, warnings []string, err error)
}

// LeadRepository persists scored leads and serves the read contract the API
// layer consumes. UpsertLead is transactional per lead: the parcel, its
// signal bundle, and its score land together or not at all.
type LeadRepository interface {
	UpsertLead(ctx context.Context, lead domain.Lead) error
	GetLeads(ctx context.Context, lat, lng, radiusMiles float64) ([]domain.Lead, error)
}
