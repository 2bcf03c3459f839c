package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.Headless)
	assert.Empty(t, cfg.APIKey)
	require.Len(t, cfg.Scenarios, 3)
	assert.Equal(t, "case2", cfg.Scenarios[1].Name)
	assert.Equal(t, 8000.0, cfg.Scenarios[1].Salary)
	assert.Equal(t, 1000.0, cfg.Scenarios[1].Allowances)
	assert.Equal(t, 200.0, cfg.Scenarios[1].Relief)
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cediplan.yaml")
	data := `
api_key: test-key
headless: false
output_dir: /tmp/reports
scenarios:
  - name: solo
    salary: 2500
    allowances: 100
    relief: 0
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test-key", cfg.APIKey)
	assert.False(t, cfg.Headless)
	assert.Equal(t, "/tmp/reports", cfg.OutputDir)
	require.Len(t, cfg.Scenarios, 1)
	assert.Equal(t, "solo", cfg.Scenarios[0].Name)
	// Untouched keys keep their defaults.
	assert.Equal(t, "https://kessir.github.io/taxcalculatorgh/", cfg.CalculatorURL)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Len(t, cfg.Scenarios, 3)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("CEDIPLAN_MODEL", "gemini-exotic")
	t.Setenv("CEDIPLAN_HEADFUL", "1")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, "gemini-exotic", cfg.Model)
	assert.False(t, cfg.Headless)
}

func TestValidateRejectsBadScenarios(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no scenarios", func(c *Config) { c.Scenarios = nil }},
		{"empty name", func(c *Config) { c.Scenarios[0].Name = "" }},
		{"duplicate name", func(c *Config) { c.Scenarios[1].Name = c.Scenarios[0].Name }},
		{"negative salary", func(c *Config) { c.Scenarios[0].Salary = -1 }},
		{"missing url", func(c *Config) { c.CalculatorURL = "" }},
		{"missing output dir", func(c *Config) { c.OutputDir = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
