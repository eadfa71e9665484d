package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ExampleConfigPath is the checked-in example with every field spelled out.
const ExampleConfigPath = "config/surrogate.example.json"

// Defaults applied by the Get* methods when a field is omitted.
const (
	DefaultCacheDirectory  = "~/experiments/openml_cache"
	DefaultOutputDirectory = "~/experiments/openml-defaults"
	DefaultStudyID         = "OpenML100"
	DefaultClassifier      = "libsvm_svc"
	DefaultScoring         = "predictive_accuracy"
	DefaultNumRuns         = 500
	DefaultGridSize        = 16
	DefaultNominalMin      = 10
	DefaultEstimators      = 64
	DefaultRandomSeed      = 1
	DefaultOpenMLURL       = "https://www.openml.org/api/v1/json"
	DefaultHTTPTimeout     = 60 * time.Second
)

// PipelineConfig is the JSON configuration of a surrogate build. Every field
// is optional.
type PipelineConfig struct {
	CacheDirectory  *string `json:"cache_directory,omitempty"`
	CacheMaxAge     *string `json:"cache_max_age,omitempty"` // duration string; empty never expires
	OutputDirectory *string `json:"output_directory,omitempty"`
	StudyID         *string `json:"study_id,omitempty"`
	Classifier      *string `json:"classifier,omitempty"`
	Scoring         *string `json:"scoring,omitempty"`
	NumRuns         *int    `json:"num_runs,omitempty"`
	GridSize        *int    `json:"resized_grid_size,omitempty"`
	NominalMin      *int    `json:"nominal_values_min,omitempty"`

	// Forest params
	Estimators *int    `json:"n_estimators,omitempty"`
	RandomSeed *uint64 `json:"random_seed,omitempty"`

	// OpenML access
	OpenMLURL   *string `json:"openml_url,omitempty"`
	APIKey      *string `json:"api_key,omitempty"`
	HTTPTimeout *string `json:"http_timeout,omitempty"` // duration string like "60s"

	NormalizeScores *string `json:"normalize_scores,omitempty"` // "", MinMaxScaler or StandardScaler
	Report          *bool   `json:"report,omitempty"`
	DisableCache    *bool   `json:"disable_cache,omitempty"`
}

// LoadPipelineConfig loads a PipelineConfig from a JSON file. The file must
// have a .json extension and be at most 1MB.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &PipelineConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the fields that are set.
func (c *PipelineConfig) Validate() error {
	if c.NumRuns != nil && *c.NumRuns < 1 {
		return fmt.Errorf("num_runs must be at least 1, got %d", *c.NumRuns)
	}
	if c.GridSize != nil && *c.GridSize < 1 {
		return fmt.Errorf("resized_grid_size must be at least 1, got %d", *c.GridSize)
	}
	if c.NominalMin != nil && *c.NominalMin < 1 {
		return fmt.Errorf("nominal_values_min must be at least 1, got %d", *c.NominalMin)
	}
	if c.Estimators != nil && *c.Estimators < 1 {
		return fmt.Errorf("n_estimators must be at least 1, got %d", *c.Estimators)
	}
	if c.HTTPTimeout != nil && *c.HTTPTimeout != "" {
		d, err := time.ParseDuration(*c.HTTPTimeout)
		if err != nil {
			return fmt.Errorf("invalid http_timeout '%s': %w", *c.HTTPTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("http_timeout must be positive, got %s", d)
		}
	}
	if c.CacheMaxAge != nil && *c.CacheMaxAge != "" {
		d, err := time.ParseDuration(*c.CacheMaxAge)
		if err != nil {
			return fmt.Errorf("invalid cache_max_age '%s': %w", *c.CacheMaxAge, err)
		}
		if d < 0 {
			return fmt.Errorf("cache_max_age must not be negative, got %s", d)
		}
	}
	if c.NormalizeScores != nil {
		switch *c.NormalizeScores {
		case "", "MinMaxScaler", "StandardScaler":
		default:
			return fmt.Errorf("normalize_scores must be MinMaxScaler or StandardScaler, got %q", *c.NormalizeScores)
		}
	}
	if c.StudyID != nil && strings.TrimSpace(*c.StudyID) == "" {
		return fmt.Errorf("study_id must not be empty")
	}
	return nil
}

func stringOr(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// GetCacheDirectory returns the cache directory with "~" expanded.
func (c *PipelineConfig) GetCacheDirectory() string {
	return ExpandHome(stringOr(c.CacheDirectory, DefaultCacheDirectory))
}

// GetOutputDirectory returns the output directory with "~" expanded.
func (c *PipelineConfig) GetOutputDirectory() string {
	return ExpandHome(stringOr(c.OutputDirectory, DefaultOutputDirectory))
}

func (c *PipelineConfig) GetStudyID() string    { return stringOr(c.StudyID, DefaultStudyID) }
func (c *PipelineConfig) GetClassifier() string { return stringOr(c.Classifier, DefaultClassifier) }
func (c *PipelineConfig) GetScoring() string    { return stringOr(c.Scoring, DefaultScoring) }
func (c *PipelineConfig) GetNumRuns() int       { return intOr(c.NumRuns, DefaultNumRuns) }
func (c *PipelineConfig) GetGridSize() int      { return intOr(c.GridSize, DefaultGridSize) }
func (c *PipelineConfig) GetNominalMin() int    { return intOr(c.NominalMin, DefaultNominalMin) }
func (c *PipelineConfig) GetEstimators() int    { return intOr(c.Estimators, DefaultEstimators) }
func (c *PipelineConfig) GetOpenMLURL() string  { return stringOr(c.OpenMLURL, DefaultOpenMLURL) }
func (c *PipelineConfig) GetAPIKey() string     { return stringOr(c.APIKey, "") }
func (c *PipelineConfig) GetReport() bool       { return boolOr(c.Report, false) }
func (c *PipelineConfig) GetDisableCache() bool { return boolOr(c.DisableCache, false) }

// GetRandomSeed returns the forest seed.
func (c *PipelineConfig) GetRandomSeed() uint64 {
	if c.RandomSeed == nil {
		return DefaultRandomSeed
	}
	return *c.RandomSeed
}

// GetNormalizeScores returns the scaling applied to score columns, or "".
func (c *PipelineConfig) GetNormalizeScores() string {
	return stringOr(c.NormalizeScores, "")
}

// GetHTTPTimeout parses and returns the HTTPTimeout as a time.Duration.
func (c *PipelineConfig) GetHTTPTimeout() time.Duration {
	if c.HTTPTimeout == nil || *c.HTTPTimeout == "" {
		return DefaultHTTPTimeout
	}
	d, err := time.ParseDuration(*c.HTTPTimeout)
	if err != nil || d <= 0 {
		return DefaultHTTPTimeout
	}
	return d
}

// GetCacheMaxAge returns how long cached OpenML listings stay valid. Zero
// means forever.
func (c *PipelineConfig) GetCacheMaxAge() time.Duration {
	if c.CacheMaxAge == nil || *c.CacheMaxAge == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.CacheMaxAge)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// ExpandHome replaces a leading "~" with the user's home directory. Paths
// are returned unchanged when the home directory is unknown.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
