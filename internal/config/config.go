// Package config holds all cediplan configuration. Everything ambient is
// resolved here, once, at load time: components receive explicit values and
// never read the environment themselves.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"cediplan/internal/llm"
)

// Scenario is one immutable input triple for the tax calculator.
type Scenario struct {
	Name       string  `yaml:"name"`
	Salary     float64 `yaml:"salary"`
	Allowances float64 `yaml:"allowances"`
	Relief     float64 `yaml:"relief"`
}

// Config is the explicit configuration surface passed into the orchestrator.
type Config struct {
	// APIKey enables the LLM generation strategy when non-empty. An empty
	// key is a normal precondition: allocations are rule-based.
	APIKey string `yaml:"api_key"`

	// Model overrides the default generator model identifier.
	Model string `yaml:"model"`

	// Headless controls automation visibility.
	Headless bool `yaml:"headless"`

	// CalculatorURL is the external tax calculator to scrape.
	CalculatorURL string `yaml:"calculator_url"`

	// OutputDir receives rendered reports and diagnostic dumps.
	OutputDir string `yaml:"output_dir"`

	// HistoryDB is the sqlite run-history path; empty disables history.
	HistoryDB string `yaml:"history_db"`

	Scenarios []Scenario `yaml:"scenarios"`
}

// Default returns the baseline configuration with the stock scenarios.
func Default() *Config {
	return &Config{
		Model:         llm.DefaultModel,
		Headless:      true,
		CalculatorURL: "https://kessir.github.io/taxcalculatorgh/",
		OutputDir:     "outputs",
		HistoryDB:     "outputs/history.db",
		Scenarios: []Scenario{
			{Name: "case1", Salary: 4000, Allowances: 0, Relief: 0},
			{Name: "case2", Salary: 8000, Allowances: 1000, Relief: 200},
			{Name: "case3", Salary: 15000, Allowances: 2500, Relief: 500},
		},
	}
}

// Load reads path (if non-empty and present) over the defaults, then applies
// environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv maps the recognized environment variables onto the config.
func (c *Config) applyEnv() {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("CEDIPLAN_MODEL"); v != "" {
		c.Model = v
	}
	if os.Getenv("CEDIPLAN_HEADFUL") == "1" {
		c.Headless = false
	}
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if c.CalculatorURL == "" {
		return fmt.Errorf("config: calculator_url is required")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("config: output_dir is required")
	}
	if len(c.Scenarios) == 0 {
		return fmt.Errorf("config: at least one scenario is required")
	}

	seen := make(map[string]bool, len(c.Scenarios))
	for _, sc := range c.Scenarios {
		if sc.Name == "" {
			return fmt.Errorf("config: scenario with empty name")
		}
		if seen[sc.Name] {
			return fmt.Errorf("config: duplicate scenario name %q", sc.Name)
		}
		seen[sc.Name] = true
		if sc.Salary < 0 || sc.Allowances < 0 || sc.Relief < 0 {
			return fmt.Errorf("config: scenario %q has a negative amount", sc.Name)
		}
	}
	return nil
}
