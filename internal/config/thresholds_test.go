package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")

	c1 := Default()
	c1.IQRMultiplierPCA = 9.5
	c1.ExpectedUniqueNumeric = 10000
	require.NoError(t, Save(path, c1))

	c2, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, c1, c2)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mad_threshold_pca: 25\n"), 0600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 25.0, c.MADThresholdPCA)
	assert.Equal(t, Default().IQRMultiplierPCA, c.IQRMultiplierPCA)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("iqr_multiplier: -1\n"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadEmptyPath(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)
	assert.Error(t, Save("", Default()))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Thresholds)
	}{
		{"zero skew threshold", func(c *Thresholds) { c.SkewThreshold = 0 }},
		{"ratio above one", func(c *Thresholds) { c.NumericCoercionRatio = 1.5 }},
		{"no categorical expectation", func(c *Thresholds) { c.ExpectedUniqueCategorical = 0 }},
		{"negative numeric expectation", func(c *Thresholds) { c.ExpectedUniqueNumeric = -3 }},
		{"inverted pca band", func(c *Thresholds) { c.PCAStdMin = 3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
