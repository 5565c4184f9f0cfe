package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"P3Recon/internal/domain"
	"P3Recon/internal/ports"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS parcels (
		apn            TEXT PRIMARY KEY,
		name           TEXT NOT NULL DEFAULT '',
		address        TEXT NOT NULL DEFAULT '',
		lat            DOUBLE PRECISION NOT NULL,
		lng            DOUBLE PRECISION NOT NULL,
		land_use       TEXT NOT NULL DEFAULT '',
		category       TEXT NOT NULL DEFAULT '',
		acres          DOUBLE PRECISION NOT NULL DEFAULT 0,
		building_sqft  DOUBLE PRECISION NOT NULL DEFAULT 0,
		last_sale_date TIMESTAMPTZ,
		imagery_flags  TEXT[] NOT NULL DEFAULT '{}',
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS leads (
		apn          TEXT NOT NULL REFERENCES parcels(apn),
		refreshed_at TIMESTAMPTZ NOT NULL,
		score        DOUBLE PRECISION NOT NULL,
		factors      JSONB NOT NULL DEFAULT '[]',
		signals      JSONB NOT NULL DEFAULT '{}',
		summary      TEXT NOT NULL DEFAULT '',
		collected_at TIMESTAMPTZ,
		PRIMARY KEY (apn, refreshed_at)
	)`,
	`CREATE INDEX IF NOT EXISTS leads_apn_refreshed_idx ON leads (apn, refreshed_at DESC)`,
}

// PostgresRepository persists scored leads. Each refresh writes a new
// (apn, refreshed_at) row, so the table keeps score history while reads
// serve only the latest row per parcel.
type PostgresRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.LeadRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Migrate creates the schema when it does not exist yet.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// UpsertLead writes the parcel snapshot and its scored lead in one
// transaction, so readers never see a score without its evidence.
func (r *PostgresRepository) UpsertLead(ctx context.Context, lead domain.Lead) error {
	if r.db == nil {
		return nil
	}

	factors, err := json.Marshal(lead.Score.Factors)
	if err != nil {
		return fmt.Errorf("encode factors: %w", err)
	}
	signals, err := json.Marshal(lead.Signals)
	if err != nil {
		return fmt.Errorf("encode signals: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	parcelQuery, parcelArgs, err := r.parcelUpsertSQL(lead.Parcel)
	if err != nil {
		return fmt.Errorf("build parcel upsert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, parcelQuery, parcelArgs...); err != nil {
		return fmt.Errorf("upsert parcel %s: %w", lead.Parcel.APN, err)
	}

	leadQuery, leadArgs, err := r.leadUpsertSQL(lead, factors, signals)
	if err != nil {
		return fmt.Errorf("build lead upsert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, leadQuery, leadArgs...); err != nil {
		return fmt.Errorf("upsert lead %s: %w", lead.Parcel.APN, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit lead %s: %w", lead.Parcel.APN, err)
	}
	return nil
}

func (r *PostgresRepository) parcelUpsertSQL(parcel domain.Parcel) (string, []interface{}, error) {
	return r.sb.Insert("parcels").
		Columns("apn", "name", "address", "lat", "lng", "land_use", "category",
			"acres", "building_sqft", "last_sale_date", "imagery_flags").
		Values(parcel.APN, parcel.Name, parcel.Address,
			parcel.Lat, parcel.Lng, parcel.LandUse, string(parcel.Category),
			parcel.Acres, parcel.BuildingSqFt, nullTime(parcel.LastSaleDate),
			flagArray(parcel.ImageryFlags)).
		Suffix(`ON CONFLICT (apn) DO UPDATE SET
			name = EXCLUDED.name,
			address = EXCLUDED.address,
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			land_use = EXCLUDED.land_use,
			category = EXCLUDED.category,
			acres = EXCLUDED.acres,
			building_sqft = EXCLUDED.building_sqft,
			last_sale_date = EXCLUDED.last_sale_date,
			imagery_flags = EXCLUDED.imagery_flags,
			updated_at = NOW()`).
		ToSql()
}

func (r *PostgresRepository) leadUpsertSQL(lead domain.Lead, factors, signals []byte) (string, []interface{}, error) {
	return r.sb.Insert("leads").
		Columns("apn", "refreshed_at", "score", "factors", "signals", "summary", "collected_at").
		Values(lead.Parcel.APN, lead.RefreshedAt, lead.Score.Value,
			factors, signals, lead.Summary, nullTime(lead.Signals.LatestCollectedAt())).
		Suffix(`ON CONFLICT (apn, refreshed_at) DO UPDATE SET
			score = EXCLUDED.score,
			factors = EXCLUDED.factors,
			signals = EXCLUDED.signals,
			summary = EXCLUDED.summary,
			collected_at = EXCLUDED.collected_at`).
		ToSql()
}

// GetLeads returns the latest lead per parcel within the radius, ranked by
// score descending. The radius filter runs in Go; the dataset is regional,
// so the candidate set a query scans stays small.
func (r *PostgresRepository) GetLeads(ctx context.Context, lat, lng, radiusMiles float64) ([]domain.Lead, error) {
	if r.db == nil {
		return nil, nil
	}

	query, args, err := r.latestLeadsSQL()
	if err != nil {
		return nil, fmt.Errorf("build leads query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}
	defer rows.Close()

	var leads []domain.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		if domain.WithinRadiusMiles(lat, lng, lead.Parcel.Lat, lead.Parcel.Lng, radiusMiles) {
			leads = append(leads, lead)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leads: %w", err)
	}

	SortLeads(leads)
	return leads, nil
}

func (r *PostgresRepository) latestLeadsSQL() (string, []interface{}, error) {
	return r.sb.Select(
		"p.apn", "p.name", "p.address", "p.lat", "p.lng", "p.land_use", "p.category",
		"p.acres", "p.building_sqft", "p.last_sale_date", "p.imagery_flags",
		"l.refreshed_at", "l.score", "l.factors", "l.signals", "l.summary").
		Options("DISTINCT ON (l.apn)").
		From("leads l").
		Join("parcels p ON p.apn = l.apn").
		OrderBy("l.apn", "l.refreshed_at DESC").
		ToSql()
}

func scanLead(rows *sql.Rows) (domain.Lead, error) {
	var (
		lead       domain.Lead
		category   string
		lastSale   sql.NullTime
		flags      pq.StringArray
		rawFactors []byte
		rawSignals []byte
	)
	if err := rows.Scan(
		&lead.Parcel.APN, &lead.Parcel.Name, &lead.Parcel.Address,
		&lead.Parcel.Lat, &lead.Parcel.Lng, &lead.Parcel.LandUse, &category,
		&lead.Parcel.Acres, &lead.Parcel.BuildingSqFt, &lastSale, &flags,
		&lead.RefreshedAt, &lead.Score.Value, &rawFactors, &rawSignals, &lead.Summary,
	); err != nil {
		return domain.Lead{}, fmt.Errorf("scan lead: %w", err)
	}

	lead.Parcel.Category = domain.Category(category)
	if lastSale.Valid {
		lead.Parcel.LastSaleDate = lastSale.Time
	}
	lead.Parcel.ImageryFlags = []string(flags)

	if err := json.Unmarshal(rawFactors, &lead.Score.Factors); err != nil {
		return domain.Lead{}, fmt.Errorf("decode factors for %s: %w", lead.Parcel.APN, err)
	}
	if err := json.Unmarshal(rawSignals, &lead.Signals); err != nil {
		return domain.Lead{}, fmt.Errorf("decode signals for %s: %w", lead.Parcel.APN, err)
	}
	lead.Score.ComputedAt = lead.RefreshedAt
	return lead, nil
}

// SortLeads ranks by score descending, then by the most recent signal
// collection, then by APN so equal leads order deterministically.
func SortLeads(leads []domain.Lead) {
	sort.SliceStable(leads, func(i, j int) bool {
		if leads[i].Score.Value != leads[j].Score.Value {
			return leads[i].Score.Value > leads[j].Score.Value
		}
		ti, tj := leads[i].Signals.LatestCollectedAt(), leads[j].Signals.LatestCollectedAt()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return leads[i].Parcel.APN < leads[j].Parcel.APN
	})
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

// flagArray maps a flagless parcel to an empty array value, never SQL NULL;
// the imagery_flags column is NOT NULL.
func flagArray(flags []string) pq.StringArray {
	if flags == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(flags)
}
