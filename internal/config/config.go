package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"P3Recon/internal/domain"
	"P3Recon/internal/errs"
)

const (
	configPathEnv  = "P3RECON_CONFIG"
	databaseDSNEnv = "DATABASE_DSN"
	datasetURLEnv  = "PARCEL_DATASET_URL"
)

// Source keys recognized by the fetch gate and collector registry.
const (
	SourceNews       = "news-rss"
	SourceLabor      = "warn-notices"
	SourceTaxKeyword = "tax-keyword-search"
)

// Duration wraps time.Duration so YAML values like "30s" or "12h" parse.
type Duration time.Duration

// UnmarshalYAML parses Go duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the underlying time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds all settings the pipeline consumes.
type Config struct {
	Logging    LoggingConfig           `yaml:"logging"`
	Database   DatabaseConfig          `yaml:"database"`
	Dataset    DatasetConfig           `yaml:"dataset"`
	Thresholds ThresholdConfig         `yaml:"thresholds"`
	Sources    map[string]SourceConfig `yaml:"sources"`
	Scoring    ScoringConfig           `yaml:"scoring"`
	Refresh    RefreshConfig           `yaml:"refresh"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig describes Postgres connection details. An empty DSN runs
// the pipeline without persistence.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// DatasetConfig points at the parcel dataset and its local fallback.
type DatasetConfig struct {
	URL          string `yaml:"url"`
	FallbackPath string `yaml:"fallbackPath"`
}

// ThresholdConfig mirrors domain.Thresholds in YAML form.
type ThresholdConfig struct {
	AllowedCategories []string `yaml:"allowedCategories"`
	MinAcres          float64  `yaml:"minAcres"`
	MinBuildingSqFt   float64  `yaml:"minBuildingSqft"`
}

// Thresholds converts the YAML form into the domain structure.
func (t ThresholdConfig) Thresholds() domain.Thresholds {
	categories := make([]domain.Category, 0, len(t.AllowedCategories))
	for _, c := range t.AllowedCategories {
		categories = append(categories, domain.Category(c))
	}
	return domain.Thresholds{
		AllowedCategories: categories,
		MinAcres:          t.MinAcres,
		MinBuildingSqFt:   t.MinBuildingSqFt,
	}
}

// SourceConfig describes one external enrichment source: its endpoint, how
// long a cached response stays fresh, and the minimum spacing between
// consecutive requests to it.
type SourceConfig struct {
	BaseURL         string   `yaml:"baseUrl"`
	FreshnessWindow Duration `yaml:"freshnessWindow"`
	PolitenessDelay Duration `yaml:"politenessDelay"`
}

// ScoringConfig names every weight and cap the scoring engine uses. These
// are tuning defaults, not business rules; all are overridable.
type ScoringConfig struct {
	NewsWeight       float64 `yaml:"newsWeight"`
	NewsCap          int     `yaml:"newsCap"`
	LaborWeight      float64 `yaml:"laborWeight"`
	LaborCap         int     `yaml:"laborCap"`
	ImageryBonus     float64 `yaml:"imageryBonus"`
	ImageryFlagCap   int     `yaml:"imageryFlagCap"`
	TaxKeywordWeight float64 `yaml:"taxKeywordWeight"`
	TaxKeywordCap    int     `yaml:"taxKeywordCap"`
}

// RefreshConfig controls a refresh run: default scan center/radius and the
// bound on concurrent candidate enrichment.
type RefreshConfig struct {
	CenterLat    float64  `yaml:"centerLat"`
	CenterLng    float64  `yaml:"centerLng"`
	RadiusMiles  float64  `yaml:"radiusMiles"`
	Concurrency  int      `yaml:"concurrency"`
	NewsLookback Duration `yaml:"newsLookback"`
}

// Load reads YAML configuration (if present) and applies environment
// overrides. Load never fails; Validate reports invalid values.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(datasetURLEnv); v != "" {
		c.Dataset.URL = v
	}
}

// Validate rejects threshold and scoring values no run should start with.
func (c Config) Validate() error {
	if c.Thresholds.MinAcres < 0 {
		return errs.Configuration(fmt.Sprintf("minAcres must not be negative, got %v", c.Thresholds.MinAcres))
	}
	if c.Thresholds.MinBuildingSqFt < 0 {
		return errs.Configuration(fmt.Sprintf("minBuildingSqft must not be negative, got %v", c.Thresholds.MinBuildingSqFt))
	}
	if len(c.Thresholds.AllowedCategories) == 0 {
		return errs.Configuration("allowedCategories must not be empty")
	}
	for _, raw := range c.Thresholds.AllowedCategories {
		switch domain.Category(raw) {
		case domain.CategoryCommercial, domain.CategoryIndustrial, domain.CategoryInstitutional, domain.CategoryOther:
		default:
			return errs.Configuration(fmt.Sprintf("unknown land-use category %q", raw))
		}
	}
	if c.Scoring.NewsWeight < 0 || c.Scoring.LaborWeight < 0 || c.Scoring.TaxKeywordWeight < 0 || c.Scoring.ImageryBonus < 0 {
		return errs.Configuration("scoring weights must not be negative")
	}
	if c.Scoring.NewsCap < 0 || c.Scoring.LaborCap < 0 || c.Scoring.TaxKeywordCap < 0 || c.Scoring.ImageryFlagCap < 0 {
		return errs.Configuration("scoring caps must not be negative")
	}
	if c.Refresh.Concurrency < 1 {
		return errs.Configuration(fmt.Sprintf("refresh concurrency must be at least 1, got %d", c.Refresh.Concurrency))
	}
	if c.Refresh.RadiusMiles < 0 {
		return errs.Configuration(fmt.Sprintf("radiusMiles must not be negative, got %v", c.Refresh.RadiusMiles))
	}
	for key, src := range c.Sources {
		if src.FreshnessWindow < 0 || src.PolitenessDelay < 0 {
			return errs.Configuration(fmt.Sprintf("source %s windows must not be negative", key))
		}
	}
	return nil
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}
	if override.Database.DSN != "" {
		base.Database = override.Database
	}
	if override.Dataset.URL != "" {
		base.Dataset.URL = override.Dataset.URL
	}
	if override.Dataset.FallbackPath != "" {
		base.Dataset.FallbackPath = override.Dataset.FallbackPath
	}

	if len(override.Thresholds.AllowedCategories) > 0 {
		base.Thresholds.AllowedCategories = override.Thresholds.AllowedCategories
	}
	if override.Thresholds.MinAcres != 0 {
		base.Thresholds.MinAcres = override.Thresholds.MinAcres
	}
	if override.Thresholds.MinBuildingSqFt != 0 {
		base.Thresholds.MinBuildingSqFt = override.Thresholds.MinBuildingSqFt
	}

	for key, src := range override.Sources {
		merged, ok := base.Sources[key]
		if !ok {
			base.Sources[key] = src
			continue
		}
		if src.BaseURL != "" {
			merged.BaseURL = src.BaseURL
		}
		if src.FreshnessWindow != 0 {
			merged.FreshnessWindow = src.FreshnessWindow
		}
		if src.PolitenessDelay != 0 {
			merged.PolitenessDelay = src.PolitenessDelay
		}
		base.Sources[key] = merged
	}

	if override.Scoring.NewsWeight != 0 {
		base.Scoring.NewsWeight = override.Scoring.NewsWeight
	}
	if override.Scoring.NewsCap != 0 {
		base.Scoring.NewsCap = override.Scoring.NewsCap
	}
	if override.Scoring.LaborWeight != 0 {
		base.Scoring.LaborWeight = override.Scoring.LaborWeight
	}
	if override.Scoring.LaborCap != 0 {
		base.Scoring.LaborCap = override.Scoring.LaborCap
	}
	if override.Scoring.ImageryBonus != 0 {
		base.Scoring.ImageryBonus = override.Scoring.ImageryBonus
	}
	if override.Scoring.ImageryFlagCap != 0 {
		base.Scoring.ImageryFlagCap = override.Scoring.ImageryFlagCap
	}
	if override.Scoring.TaxKeywordWeight != 0 {
		base.Scoring.TaxKeywordWeight = override.Scoring.TaxKeywordWeight
	}
	if override.Scoring.TaxKeywordCap != 0 {
		base.Scoring.TaxKeywordCap = override.Scoring.TaxKeywordCap
	}

	if override.Refresh.CenterLat != 0 {
		base.Refresh.CenterLat = override.Refresh.CenterLat
	}
	if override.Refresh.CenterLng != 0 {
		base.Refresh.CenterLng = override.Refresh.CenterLng
	}
	if override.Refresh.RadiusMiles != 0 {
		base.Refresh.RadiusMiles = override.Refresh.RadiusMiles
	}
	if override.Refresh.Concurrency != 0 {
		base.Refresh.Concurrency = override.Refresh.Concurrency
	}
	if override.Refresh.NewsLookback != 0 {
		base.Refresh.NewsLookback = override.Refresh.NewsLookback
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging:  LoggingConfig{Level: "info"},
		Database: DatabaseConfig{DSN: ""},
		Dataset:  DatasetConfig{URL: "", FallbackPath: ""},
		Thresholds: ThresholdConfig{
			AllowedCategories: []string{
				string(domain.CategoryCommercial),
				string(domain.CategoryIndustrial),
				string(domain.CategoryInstitutional),
			},
			MinAcres:        10,
			MinBuildingSqFt: 50000,
		},
		Sources: map[string]SourceConfig{
			SourceNews: {
				BaseURL:         "https://api.gdeltproject.org/api/v2/doc/doc",
				FreshnessWindow: Duration(12 * time.Hour),
				PolitenessDelay: Duration(2 * time.Second),
			},
			SourceLabor: {
				BaseURL:         "https://jobs.mo.gov/warn/current",
				FreshnessWindow: Duration(24 * time.Hour),
				PolitenessDelay: Duration(5 * time.Second),
			},
			SourceTaxKeyword: {
				BaseURL:         "https://api.gdeltproject.org/api/v2/doc/doc",
				FreshnessWindow: Duration(12 * time.Hour),
				PolitenessDelay: Duration(2 * time.Second),
			},
		},
		Scoring: ScoringConfig{
			NewsWeight:       2,
			NewsCap:          10,
			LaborWeight:      5,
			LaborCap:         5,
			ImageryBonus:     5,
			ImageryFlagCap:   3,
			TaxKeywordWeight: 4,
			TaxKeywordCap:    5,
		},
		Refresh: RefreshConfig{
			CenterLat:    39.0997,
			CenterLng:    -94.5786,
			RadiusMiles:  30,
			Concurrency:  4,
			NewsLookback: Duration(730 * 24 * time.Hour), // 24 months
		},
	}
}
