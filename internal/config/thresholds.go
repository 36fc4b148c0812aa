package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultFileName is looked up in the user's home directory when no
	// config path is given.
	DefaultFileName = ".datatrust.yaml"
	fileMode        = 0600
)

// Thresholds holds every tunable constant used by the column classifier and
// the quality and bias scorers. Values are copied into the scorers at
// construction, so a Thresholds is never shared mutably.
type Thresholds struct {
	// Column classification
	NumericCoercionRatio   float64 `yaml:"numeric_coercion_ratio"`
	CategoricalCardinality float64 `yaml:"categorical_cardinality"`

	// Anomaly caps, as fractions of the row count
	MaxAnomaliesPerColumn float64 `yaml:"max_anomalies_per_column"`
	MaxAnomaliesTotal     float64 `yaml:"max_anomalies_total"`

	// Anomaly skip rule
	SkipMaxDistinct int     `yaml:"skip_max_distinct"`
	SkipMinStd      float64 `yaml:"skip_min_std"`
	MinValidValues  int     `yaml:"min_valid_values"`

	// PCA-like detection
	PCAMeanMax float64 `yaml:"pca_mean_max"`
	PCAStdMin  float64 `yaml:"pca_std_min"`
	PCAStdMax  float64 `yaml:"pca_std_max"`

	// Range anomalies
	IQRMultiplierPCA    float64 `yaml:"iqr_multiplier_pca"`
	IQRMultiplierAmount float64 `yaml:"iqr_multiplier_amount"`
	IQRMultiplier       float64 `yaml:"iqr_multiplier"`

	// Outlier anomalies
	MADScale           float64 `yaml:"mad_scale"`
	MADThresholdPCA    float64 `yaml:"mad_threshold_pca"`
	MADThresholdAmount float64 `yaml:"mad_threshold_amount"`
	MADThreshold       float64 `yaml:"mad_threshold"`

	// Bias
	BiasMinStd       float64 `yaml:"bias_min_std"`
	SkewThresholdPCA float64 `yaml:"skew_threshold_pca"`
	SkewThreshold    float64 `yaml:"skew_threshold"`
	ImbalanceCutoff  float64 `yaml:"imbalance_cutoff"`

	// Diversity. ExpectedUniqueNumeric of 0 means "the column's non-null count".
	ExpectedUniqueCategorical int     `yaml:"expected_unique_categorical"`
	ExpectedUniqueNumeric     int     `yaml:"expected_unique_numeric"`
	ExpectedUniquePCAFactor   float64 `yaml:"expected_unique_pca_factor"`
	DiversityCapPCA           float64 `yaml:"diversity_cap_pca"`
}

// Default returns the hand-tuned thresholds.
func Default() Thresholds {
	return Thresholds{
		NumericCoercionRatio:   0.8,
		CategoricalCardinality: 0.1,

		MaxAnomaliesPerColumn: 0.01,
		MaxAnomaliesTotal:     0.02,

		SkipMaxDistinct: 2,
		SkipMinStd:      0.01,
		MinValidValues:  20,

		PCAMeanMax: 0.1,
		PCAStdMin:  0.5,
		PCAStdMax:  2.0,

		IQRMultiplierPCA:    20.0,
		IQRMultiplierAmount: 6.0,
		IQRMultiplier:       4.0,

		MADScale:           0.6745,
		MADThresholdPCA:    50.0,
		MADThresholdAmount: 12.0,
		MADThreshold:       8.0,

		BiasMinStd:       1e-3,
		SkewThresholdPCA: 5.0,
		SkewThreshold:    3.0,
		ImbalanceCutoff:  0.5,

		ExpectedUniqueCategorical: 5,
		ExpectedUniqueNumeric:     0,
		ExpectedUniquePCAFactor:   2.0,
		DiversityCapPCA:           0.7,
	}
}

// Validate rejects thresholds the scorers cannot work with.
func (t Thresholds) Validate() error {
	positive := map[string]float64{
		"iqr_multiplier_pca":         t.IQRMultiplierPCA,
		"iqr_multiplier_amount":      t.IQRMultiplierAmount,
		"iqr_multiplier":             t.IQRMultiplier,
		"mad_scale":                  t.MADScale,
		"mad_threshold_pca":          t.MADThresholdPCA,
		"mad_threshold_amount":       t.MADThresholdAmount,
		"mad_threshold":              t.MADThreshold,
		"skew_threshold_pca":         t.SkewThresholdPCA,
		"skew_threshold":             t.SkewThreshold,
		"expected_unique_pca_factor": t.ExpectedUniquePCAFactor,
	}
	for name, v := range positive {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, v)
		}
	}

	fractions := map[string]float64{
		"numeric_coercion_ratio":   t.NumericCoercionRatio,
		"categorical_cardinality":  t.CategoricalCardinality,
		"max_anomalies_per_column": t.MaxAnomaliesPerColumn,
		"max_anomalies_total":      t.MaxAnomaliesTotal,
		"imbalance_cutoff":         t.ImbalanceCutoff,
		"diversity_cap_pca":        t.DiversityCapPCA,
	}
	for name, v := range fractions {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", name, v)
		}
	}

	if t.ExpectedUniqueCategorical <= 0 {
		return fmt.Errorf("expected_unique_categorical must be positive, got %d", t.ExpectedUniqueCategorical)
	}
	if t.ExpectedUniqueNumeric < 0 {
		return fmt.Errorf("expected_unique_numeric cannot be negative, got %d", t.ExpectedUniqueNumeric)
	}
	if t.PCAStdMin >= t.PCAStdMax {
		return fmt.Errorf("pca_std_min (%v) must be below pca_std_max (%v)", t.PCAStdMin, t.PCAStdMax)
	}
	return nil
}

// Load reads thresholds from a YAML file. Keys missing from the file keep
// their default values.
func Load(path string) (Thresholds, error) {
	t := Default()
	if path == "" {
		return t, errors.New("config path required")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &t); err != nil {
		return t, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return t, nil
}

// LoadOrDefault loads path when set, otherwise the default file in the home
// directory if one exists, otherwise the defaults.
func LoadOrDefault(path string) (Thresholds, error) {
	if path != "" {
		return Load(path)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return Default(), nil
	}
	candidate := filepath.Join(home, DefaultFileName)
	if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return Load(candidate)
}

// Save writes thresholds as YAML.
func Save(path string, t Thresholds) error {
	if path == "" {
		return errors.New("config path required")
	}
	b, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, b, fileMode); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}
