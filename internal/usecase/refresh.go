package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"P3Recon/internal/collector"
	"P3Recon/internal/domain"
	"P3Recon/internal/filter"
	"P3Recon/internal/ports"
	"P3Recon/internal/scoring"
)

// PipelineDeps wires all driven adapters into the refresh pipeline.
type PipelineDeps struct {
	Source      ports.ParcelSource
	Registry    *collector.Registry
	Engine      *scoring.Engine
	Repository  ports.LeadRepository
	DatasetURL  string
	Concurrency int
	Logger      *slog.Logger
}

// Pipeline implements the candidate refresh workflow: ingest the parcel
// dataset, filter candidates, enrich each with every registered collector,
// score, and persist.
type Pipeline struct {
	source      ports.ParcelSource
	registry    *collector.Registry
	engine      *scoring.Engine
	repository  ports.LeadRepository
	datasetURL  string
	concurrency int
	logger      *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	concurrency := deps.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		source:      deps.Source,
		registry:    deps.Registry,
		engine:      deps.Engine,
		repository:  deps.Repository,
		datasetURL:  deps.DatasetURL,
		concurrency: concurrency,
		logger:      logger,
	}
}

// RunRefresh executes one full refresh for the scan area. Contained faults
// (dataset fallback, unreachable sources, skipped rows) surface as warnings
// on the result; only cancellation or a completely unusable dataset abort
// the run, and an aborted run publishes nothing.
func (p *Pipeline) RunRefresh(ctx context.Context, lat, lng, radiusMiles float64, thresholds domain.Thresholds) (domain.RefreshResult, error) {
	started := time.Now().UTC()

	parcels, warnings, err := p.source.Ingest(ctx, p.datasetURL)
	if err != nil {
		return domain.RefreshResult{}, fmt.Errorf("ingest parcels: %w", err)
	}

	candidates := filter.Filter(inArea(parcels, lat, lng, radiusMiles), thresholds)
	p.logger.Info("refresh started",
		"parcels", len(parcels),
		"candidates", len(candidates),
		"lat", lat, "lng", lng, "radius_miles", radiusMiles)

	var (
		mu          sync.Mutex
		scores      = make(map[string]domain.Score, len(candidates))
		unavailable = map[string]struct{}{}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, candidate := range candidates {
		candidate := candidate
		g.Go(func() error {
			lead, down, err := p.enrich(gctx, candidate, started)
			if err != nil {
				return err
			}

			if p.repository != nil {
				if err := p.repository.UpsertLead(gctx, lead); err != nil {
					return fmt.Errorf("persist lead %s: %w", candidate.Parcel.APN, err)
				}
			}

			mu.Lock()
			scores[candidate.Parcel.APN] = lead.Score
			for _, name := range down {
				unavailable[name] = struct{}{}
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.RefreshResult{}, err
	}

	for _, name := range sortedKeys(unavailable) {
		warnings = append(warnings, fmt.Sprintf("SOURCE_UNAVAILABLE: %s degraded during this run", name))
	}

	p.logger.Info("refresh finished",
		"candidates", len(candidates),
		"warnings", len(warnings),
		"elapsed", time.Since(started))

	return domain.RefreshResult{
		Candidates: candidates,
		Scores:     scores,
		Warnings:   warnings,
	}, nil
}

// enrich runs every registered collector for one candidate and scores the
// merged bundle. Returned names list the sources that degraded.
func (p *Pipeline) enrich(ctx context.Context, candidate domain.Candidate, refreshedAt time.Time) (domain.Lead, []string, error) {
	bundle := domain.SignalBundle{
		APN:          candidate.Parcel.APN,
		ImageryFlags: candidate.Parcel.ImageryFlags,
	}

	var down []string
	for _, c := range p.registry.All() {
		part, err := c.Collect(ctx, candidate)
		if err != nil {
			return domain.Lead{}, nil, fmt.Errorf("collect %s for %s: %w", c.Name(), candidate.Parcel.APN, err)
		}
		bundle.Merge(part)
		if sectionUnavailable(part) {
			down = append(down, c.Name())
		}
	}

	score := p.engine.Score(candidate, bundle)
	p.logger.Debug("candidate scored",
		"apn", candidate.Parcel.APN,
		"score", score.Value,
		"factors", len(score.Factors))

	return domain.Lead{
		Parcel:      candidate.Parcel,
		Score:       score,
		Signals:     bundle,
		Summary:     scoring.Summarize(bundle),
		RefreshedAt: refreshedAt,
	}, down, nil
}

func inArea(parcels []domain.Parcel, lat, lng, radiusMiles float64) []domain.Parcel {
	out := make([]domain.Parcel, 0, len(parcels))
	for _, parcel := range parcels {
		if domain.WithinRadiusMiles(lat, lng, parcel.Lat, parcel.Lng, radiusMiles) {
			out = append(out, parcel)
		}
	}
	return out
}

func sectionUnavailable(part domain.SignalBundle) bool {
	return part.News.Unavailable || part.Labor.Unavailable || part.TaxKeyword.Unavailable
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
