package ingest

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"P3Recon/internal/domain"
	"P3Recon/internal/errs"
)

//go:embed sample_parcels.csv
var sampleCSV []byte

// KeywordMapping binds a lowercase substring of the raw land-use text to a
// normalized category.
type KeywordMapping struct {
	Keyword  string
	Category domain.Category
}

// CategoryKeywords is the normalization table for land-use free text. First
// match wins; extend by appending entries. Anything unmatched is Other.
var CategoryKeywords = []KeywordMapping{
	{"warehouse", domain.CategoryIndustrial},
	{"industrial", domain.CategoryIndustrial},
	{"manufactur", domain.CategoryIndustrial},
	{"freight", domain.CategoryIndustrial},
	{"rail", domain.CategoryIndustrial},
	{"distribution", domain.CategoryIndustrial},
	{"logistics", domain.CategoryIndustrial},
	{"intermodal", domain.CategoryIndustrial},
	{"retail", domain.CategoryCommercial},
	{"office", domain.CategoryCommercial},
	{"commercial", domain.CategoryCommercial},
	{"mixed-use", domain.CategoryCommercial},
	{"mixed use", domain.CategoryCommercial},
	{"hotel", domain.CategoryCommercial},
	{"school", domain.CategoryInstitutional},
	{"church", domain.CategoryInstitutional},
	{"hospital", domain.CategoryInstitutional},
	{"university", domain.CategoryInstitutional},
	{"transit", domain.CategoryInstitutional},
	{"civic", domain.CategoryInstitutional},
	{"municipal", domain.CategoryInstitutional},
	{"institutional", domain.CategoryInstitutional},
}

// NormalizeLandUse maps raw land-use text to the closed category set.
func NormalizeLandUse(raw string) domain.Category {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	for _, m := range CategoryKeywords {
		if strings.Contains(lowered, m.Keyword) {
			return m.Category
		}
	}
	return domain.CategoryOther
}

// Ingestor downloads and parses the parcel dataset, falling back to a local
// file and finally the bundled sample. Ingestion faults become warnings,
// never fatal errors.
type Ingestor struct {
	client       *http.Client
	fallbackPath string
	logger       *slog.Logger
}

// NewIngestor wires an HTTP client; fallbackPath may be empty.
func NewIngestor(client *http.Client, fallbackPath string, logger *slog.Logger) *Ingestor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Ingestor{client: client, fallbackPath: fallbackPath, logger: logger}
}

// Ingest returns the normalized parcels for this run plus run warnings.
// Only context cancellation or a broken bundled sample surface as an error.
func (i *Ingestor) Ingest(ctx context.Context, sourceURL string) ([]domain.Parcel, []string, error) {
	var warnings []string

	if sourceURL != "" {
		raw, err := i.download(ctx, sourceURL)
		if err == nil {
			parcels, parseWarnings, parseErr := parseParcels(raw)
			if parseErr == nil {
				return parcels, append(warnings, parseWarnings...), nil
			}
			err = parseErr
		}
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		warning := errs.DatasetUnavailable(fmt.Sprintf("dataset %s unusable, using fallback", sourceURL), err)
		warnings = append(warnings, warning.Error())
		if i.logger != nil {
			i.logger.Warn("dataset unavailable", "url", sourceURL, "error", err)
		}
	}

	if i.fallbackPath != "" {
		raw, err := os.ReadFile(i.fallbackPath)
		if err == nil {
			parcels, parseWarnings, parseErr := parseParcels(raw)
			if parseErr == nil {
				return parcels, append(warnings, parseWarnings...), nil
			}
			err = parseErr
		}
		warning := errs.DatasetUnavailable(fmt.Sprintf("fallback file %s unusable, using bundled sample", i.fallbackPath), err)
		warnings = append(warnings, warning.Error())
	}

	parcels, parseWarnings, err := parseParcels(sampleCSV)
	if err != nil {
		return nil, warnings, fmt.Errorf("parse bundled sample: %w", err)
	}
	return parcels, append(warnings, parseWarnings...), nil
}

func (i *Ingestor) download(ctx context.Context, sourceURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "P3Recon/1.0")

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request dataset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dataset returned %s", resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return raw, nil
}

// parseParcels reads the dataset CSV. Rows missing apn, lat, or lng are
// skipped and reported as one aggregate warning; numeric fields that do not
// parse become zero and are filtered out naturally by the thresholds.
func parseParcels(raw []byte) ([]domain.Parcel, []string, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	columns := map[string]int{}
	for idx, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = idx
	}
	for _, required := range []string{"apn", "lat", "lng"} {
		if _, ok := columns[required]; !ok {
			return nil, nil, fmt.Errorf("dataset missing required column %q", required)
		}
	}

	field := func(record []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var (
		parcels []domain.Parcel
		skipped int
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		apn := field(record, "apn")
		lat, latErr := strconv.ParseFloat(field(record, "lat"), 64)
		lng, lngErr := strconv.ParseFloat(field(record, "lng"), 64)
		if apn == "" || latErr != nil || lngErr != nil {
			skipped++
			continue
		}

		landUse := field(record, "land_use")
		parcel := domain.Parcel{
			APN:          apn,
			Name:         field(record, "name"),
			Address:      field(record, "address"),
			Lat:          lat,
			Lng:          lng,
			LandUse:      landUse,
			Category:     NormalizeLandUse(landUse),
			Acres:        parseNumber(field(record, "acres")),
			BuildingSqFt: parseNumber(field(record, "building_sqft")),
			LastSaleDate: parseDate(field(record, "last_sale_date")),
			ImageryFlags: parseFlags(field(record, "imagery_flags")),
		}
		parcels = append(parcels, parcel)
	}

	var warnings []string
	if skipped > 0 {
		warnings = append(warnings, errs.MalformedRecord(fmt.Sprintf("skipped %d parcel rows missing apn/lat/lng", skipped)).Error())
	}
	return parcels, warnings, nil
}

func parseNumber(value string) float64 {
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}

func parseDate(value string) time.Time {
	for _, layout := range []string{"2006-01-02", "01/02/2006"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

func parseFlags(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ";")
	flags := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			flags = append(flags, trimmed)
		}
	}
	return flags
}
