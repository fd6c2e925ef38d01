package config

import (
	"os"
	"strconv"
	"strings"

	"gaitlab/domain/core"
	"gaitlab/domain/gait"
	"gaitlab/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Paths    PathConfig
	Filter   FilterConfig
	Anomaly  AnomalyConfig
	Splice   SpliceConfig
	Model    ModelConfig
	Server   ServerConfig
	Database DatabaseConfig
	Workers  int
	Debug    bool
}

// PathConfig holds file system paths
type PathConfig struct {
	DataDir      string // root directory of subject-keyed trial directories
	MetadataFile string // subject metadata table (.xlsx or .csv)
	ExportFile   string // optional workbook output path
}

// FilterConfig holds subject- and trial-level inclusion predicates.
// Zero bounds mean "no bound" for that predicate.
type FilterConfig struct {
	MinAge             float64
	MaxAge             float64
	MaxTargetSize      float64
	MinStrides         int
	MaxStrides         int
	RequiredTrialTypes []gait.TrialType
}

// AnomalyConfig holds anomaly detector settings
type AnomalyConfig struct {
	SigmaThreshold float64 // k in the k-sigma step-length rule
}

// SpliceConfig holds fragment splicer settings
type SpliceConfig struct {
	OverlapPolicy string // "first_wins", "longest_wins" or "latest_wins"
}

// ModelConfig holds model engine settings
type ModelConfig struct {
	Outcome              core.MetricName
	RegressionPredictors []core.MetricName
	ClassifierPredictors []core.MetricName
	ClassThreshold       float64
}

// ServerConfig holds results API settings
type ServerConfig struct {
	Port    string
	Enabled bool
}

// DatabaseConfig holds the optional archive sink settings
type DatabaseConfig struct {
	URL string // empty disables the archive adapter
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := &Config{
		Paths: PathConfig{
			DataDir:      getEnvOrDefault("DATA_DIR", "./data"),
			MetadataFile: getEnvOrDefault("METADATA_FILE", ""),
			ExportFile:   getEnvOrDefault("EXPORT_FILE", ""),
		},
		Filter: FilterConfig{
			MinAge:             getEnvFloatOrDefault("MIN_AGE", 0),
			MaxAge:             getEnvFloatOrDefault("MAX_AGE", 0),
			MaxTargetSize:      getEnvFloatOrDefault("MAX_TARGET_SIZE", 0),
			MinStrides:         getEnvIntOrDefault("MIN_STRIDES", 0),
			MaxStrides:         getEnvIntOrDefault("MAX_STRIDES", 0),
			RequiredTrialTypes: parseTrialTypes(os.Getenv("REQUIRED_TRIAL_TYPES")),
		},
		Anomaly: AnomalyConfig{
			SigmaThreshold: getEnvFloatOrDefault("ANOMALY_SIGMA", 3.0),
		},
		Splice: SpliceConfig{
			OverlapPolicy: getEnvOrDefault("SPLICE_POLICY", "first_wins"),
		},
		Model: ModelConfig{
			Outcome:              core.MetricName(getEnvOrDefault("OUTCOME_METRIC", "success_rate")),
			RegressionPredictors: parseMetricNames(getEnvOrDefault("REGRESSION_PREDICTORS", "asymmetry,mean_stride_length")),
			ClassifierPredictors: parseMetricNames(getEnvOrDefault("CLASSIFIER_PREDICTORS", "asymmetry,stride_variability")),
			ClassThreshold:       getEnvFloatOrDefault("CLASS_THRESHOLD", 0.68),
		},
		Server: ServerConfig{
			Port:    getEnvOrDefault("PORT", "8080"),
			Enabled: getEnvBoolOrDefault("SERVER_ENABLED", false),
		},
		Database: DatabaseConfig{
			URL: getEnvOrDefault("DATABASE_URL", ""),
		},
		Workers: getEnvIntOrDefault("WORKERS", 4),
		Debug:   getEnvBoolOrDefault("DEBUG", false),
	}

	if err := validate(cfg); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Paths.DataDir == "" {
		return errors.ConfigInvalid("DATA_DIR is required")
	}
	if cfg.Filter.MinAge < 0 || cfg.Filter.MaxAge < 0 {
		return errors.ConfigInvalid("age bounds must be non-negative")
	}
	if cfg.Filter.MaxAge > 0 && cfg.Filter.MinAge > cfg.Filter.MaxAge {
		return errors.ConfigInvalid("MIN_AGE exceeds MAX_AGE")
	}
	if cfg.Filter.MaxStrides > 0 && cfg.Filter.MinStrides > cfg.Filter.MaxStrides {
		return errors.ConfigInvalid("MIN_STRIDES exceeds MAX_STRIDES")
	}
	if cfg.Anomaly.SigmaThreshold <= 0 {
		return errors.ConfigInvalid("ANOMALY_SIGMA must be positive")
	}
	if cfg.Model.ClassThreshold < 0 || cfg.Model.ClassThreshold > 1 {
		return errors.ConfigInvalid("CLASS_THRESHOLD must be in [0,1]")
	}
	switch cfg.Splice.OverlapPolicy {
	case "first_wins", "longest_wins", "latest_wins":
	default:
		return errors.ConfigInvalid("SPLICE_POLICY must be first_wins, longest_wins or latest_wins")
	}
	if cfg.Workers < 1 {
		return errors.ConfigInvalid("WORKERS must be at least 1")
	}
	return nil
}

func parseTrialTypes(s string) []gait.TrialType {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []gait.TrialType
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if gait.IsValidTrialType(part) {
			out = append(out, gait.TrialType(part))
		}
	}
	return out
}

func parseMetricNames(s string) []core.MetricName {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []core.MetricName
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, core.MetricName(part))
		}
	}
	return out
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
