// Package config provides configuration loading and management for apidelta.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/emenda-labs/apidelta/core/changespec"
	"github.com/emenda-labs/apidelta/core/check"
	"github.com/emenda-labs/apidelta/core/filter"
	"github.com/emenda-labs/apidelta/core/report"
)

// Config represents the complete apidelta configuration
type Config struct {
	Filter   FilterConfig   `yaml:"filter" toml:"filter"`
	Checks   ChecksConfig   `yaml:"checks" toml:"checks"`
	Report   ReportConfig   `yaml:"report" toml:"report"`
	Analysis AnalysisConfig `yaml:"analysis" toml:"analysis"`
}

// FilterConfig selects the elements taking part in an analysis
type FilterConfig struct {
	Annotated filter.AnnotatedConfig `yaml:"annotated" toml:"annotated"`
	Paths     filter.PathsConfig     `yaml:"paths" toml:"paths"`
	// Order lists the filters by precedence; the first decisive filter wins
	Order []string `yaml:"order,omitempty" toml:"order"`
}

// ChecksConfig turns checks and difference codes off
type ChecksConfig struct {
	// Disabled lists check names that do not run
	Disabled []string `yaml:"disabled,omitempty" toml:"disabled"`
	// Suppress lists difference codes that are never reported
	Suppress []string `yaml:"suppress,omitempty" toml:"suppress"`
}

// ReportConfig configures output
type ReportConfig struct {
	// Format is text or json
	Format string `yaml:"format" toml:"format"`
	// Color is auto, always or never
	Color string `yaml:"color" toml:"color"`
	// FailOn is the severity that makes the command fail, or none
	FailOn string `yaml:"fail_on" toml:"fail_on"`
	// Threshold hides differences below this severity
	Threshold string `yaml:"threshold,omitempty" toml:"threshold"`
}

// AnalysisConfig tunes the engine
type AnalysisConfig struct {
	// Jobs bounds concurrent check evaluation (0 = sequential)
	Jobs int `yaml:"jobs,omitempty" toml:"jobs"`
	// DescendUnmatched reports members of added and removed elements
	DescendUnmatched bool `yaml:"descend_unmatched,omitempty" toml:"descend_unmatched"`
	// DetectRenames hints at the likely new name of removed members
	DetectRenames bool `yaml:"detect_renames,omitempty" toml:"detect_renames"`
}

var (
	filterNames = []string{"annotated", "paths"}
	colorModes  = []string{"auto", "always", "never"}
)

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Filter: FilterConfig{
			Order: []string{"annotated", "paths"},
		},
		Report: ReportConfig{
			Format:    "text",
			Color:     "auto",
			FailOn:    "breaking",
			Threshold: "equivalent",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if !slices.Contains(report.Formats, c.Report.Format) {
		return fmt.Errorf("report.format must be one of %v, got %q", report.Formats, c.Report.Format)
	}
	if !slices.Contains(colorModes, c.Report.Color) {
		return fmt.Errorf("report.color must be one of %v, got %q", colorModes, c.Report.Color)
	}
	if _, _, err := c.FailOn(); err != nil {
		return err
	}
	if _, err := c.Threshold(); err != nil {
		return err
	}
	if c.Analysis.Jobs < 0 {
		return fmt.Errorf("analysis.jobs must not be negative")
	}
	for _, name := range c.Filter.Order {
		if !slices.Contains(filterNames, name) {
			return fmt.Errorf("filter.order: unknown filter %q", name)
		}
	}
	if _, err := c.Filters(); err != nil {
		return err
	}
	return nil
}

// FailOn resolves report.fail_on. enabled is false for "none".
func (c *Config) FailOn() (sev changespec.Severity, enabled bool, err error) {
	if strings.EqualFold(c.Report.FailOn, "none") {
		return changespec.SeverityEquivalent, false, nil
	}
	sev, ok := changespec.ParseSeverity(c.Report.FailOn)
	if !ok {
		return sev, false, fmt.Errorf("report.fail_on: unknown severity %q", c.Report.FailOn)
	}
	return sev, true, nil
}

// Threshold resolves report.threshold.
func (c *Config) Threshold() (changespec.Severity, error) {
	if c.Report.Threshold == "" {
		return changespec.SeverityEquivalent, nil
	}
	sev, ok := changespec.ParseSeverity(c.Report.Threshold)
	if !ok {
		return sev, fmt.Errorf("report.threshold: unknown severity %q", c.Report.Threshold)
	}
	return sev, nil
}

// Filters builds the filter chain in configured order. Filters without
// patterns are left out.
func (c *Config) Filters() (*filter.Chain, error) {
	var filters []filter.Filter
	for _, name := range c.Filter.Order {
		switch name {
		case "annotated":
			if c.Filter.Annotated.IsZero() {
				continue
			}
			f, err := filter.NewAnnotated(c.Filter.Annotated)
			if err != nil {
				return nil, err
			}
			filters = append(filters, f)
		case "paths":
			if c.Filter.Paths.IsZero() {
				continue
			}
			f, err := filter.NewPaths(c.Filter.Paths)
			if err != nil {
				return nil, err
			}
			filters = append(filters, f)
		}
	}
	return filter.NewChain(filters...), nil
}

// Registry removes the disabled checks from base.
func (c *Config) Registry(base *check.Registry) (*check.Registry, error) {
	if len(c.Checks.Disabled) == 0 {
		return base, nil
	}
	reg, err := base.Without(c.Checks.Disabled...)
	if err != nil {
		return nil, fmt.Errorf("checks.disabled: %w", err)
	}
	return reg, nil
}

// Suppressed returns the suppressed difference codes.
func (c *Config) Suppressed() []changespec.Code {
	out := make([]changespec.Code, len(c.Checks.Suppress))
	for i, s := range c.Checks.Suppress {
		out[i] = changespec.Code(s)
	}
	return out
}

// LoadFromFile loads configuration from a YAML, JSON or TOML file. The
// format follows the file extension; anything but .toml is read as YAML,
// which JSON is a subset of.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		return config, nil
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Filter
	if len(other.Filter.Annotated.Include) > 0 {
		c.Filter.Annotated.Include = other.Filter.Annotated.Include
	}
	if len(other.Filter.Annotated.Exclude) > 0 {
		c.Filter.Annotated.Exclude = other.Filter.Annotated.Exclude
	}
	if other.Filter.Annotated.Regex {
		c.Filter.Annotated.Regex = true
	}
	if len(other.Filter.Paths.Include) > 0 {
		c.Filter.Paths.Include = other.Filter.Paths.Include
	}
	if len(other.Filter.Paths.Exclude) > 0 {
		c.Filter.Paths.Exclude = other.Filter.Paths.Exclude
	}
	if len(other.Filter.Order) > 0 {
		c.Filter.Order = other.Filter.Order
	}

	// Checks
	if len(other.Checks.Disabled) > 0 {
		c.Checks.Disabled = other.Checks.Disabled
	}
	if len(other.Checks.Suppress) > 0 {
		c.Checks.Suppress = other.Checks.Suppress
	}

	// Report
	if other.Report.Format != "" {
		c.Report.Format = other.Report.Format
	}
	if other.Report.Color != "" {
		c.Report.Color = other.Report.Color
	}
	if other.Report.FailOn != "" {
		c.Report.FailOn = other.Report.FailOn
	}
	if other.Report.Threshold != "" {
		c.Report.Threshold = other.Report.Threshold
	}

	// Analysis
	if other.Analysis.Jobs != 0 {
		c.Analysis.Jobs = other.Analysis.Jobs
	}
	if other.Analysis.DescendUnmatched {
		c.Analysis.DescendUnmatched = true
	}
	if other.Analysis.DetectRenames {
		c.Analysis.DetectRenames = true
	}
}
