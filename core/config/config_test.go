package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emenda-labs/apidelta/core/changespec"
	"github.com/emenda-labs/apidelta/core/check/builtin"
	"github.com/emenda-labs/apidelta/core/filter"
)

const yamlConfig = `
filter:
  annotated:
    include: ["@Public"]
    exclude: ["@Internal.*"]
    regex: true
  paths:
    exclude: ["**/internal/**"]
checks:
  disabled: [deprecation]
  suppress: [java.annotation.added]
report:
  format: json
  fail_on: potentially_breaking
analysis:
  jobs: 4
  descend_unmatched: true
`

const jsonConfig = `{
  "filter": {
    "annotated": {"include": ["@Public"], "exclude": ["@Internal.*"], "regex": true},
    "paths": {"exclude": ["**/internal/**"]}
  },
  "checks": {"disabled": ["deprecation"], "suppress": ["java.annotation.added"]},
  "report": {"format": "json", "fail_on": "potentially_breaking"},
  "analysis": {"jobs": 4, "descend_unmatched": true}
}`

const tomlConfig = `
[filter.annotated]
include = ["@Public"]
exclude = ["@Internal.*"]
regex = true

[filter.paths]
exclude = ["**/internal/**"]

[checks]
disabled = ["deprecation"]
suppress = ["java.annotation.added"]

[report]
format = "json"
fail_on = "potentially_breaking"

[analysis]
jobs = 4
descend_unmatched = true
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "text", cfg.Report.Format)
	assert.Equal(t, []string{"annotated", "paths"}, cfg.Filter.Order)

	sev, enabled, err := cfg.FailOn()
	require.NoError(t, err)
	assert.True(t, enabled)
	assert.Equal(t, changespec.SeverityBreaking, sev)

	chain, err := cfg.Filters()
	require.NoError(t, err)
	assert.Equal(t, 0, chain.Len())
}

func TestLoadFromFile_Formats(t *testing.T) {
	dir := t.TempDir()
	var loaded []*Config
	for name, content := range map[string]string{
		"c.yaml": yamlConfig,
		"c.json": jsonConfig,
		"c.toml": tomlConfig,
	} {
		cfg, err := LoadFromFile(writeFile(t, dir, name, content))
		require.NoError(t, err, name)
		loaded = append(loaded, cfg)
	}

	want := &Config{
		Filter: FilterConfig{
			Annotated: filter.AnnotatedConfig{Include: []string{"@Public"}, Exclude: []string{"@Internal.*"}, Regex: true},
			Paths:     filter.PathsConfig{Exclude: []string{"**/internal/**"}},
		},
		Checks:   ChecksConfig{Disabled: []string{"deprecation"}, Suppress: []string{"java.annotation.added"}},
		Report:   ReportConfig{Format: "json", FailOn: "potentially_breaking"},
		Analysis: AnalysisConfig{Jobs: 4, DescendUnmatched: true},
	}
	for _, cfg := range loaded {
		assert.Equal(t, want, cfg)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFromFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadFromFile(writeFile(t, dir, "bad.yaml", "report: [unclosed"))
	assert.Error(t, err)

	_, err = LoadFromFile(writeFile(t, dir, "bad.toml", "report = = 1"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid default config", func(c *Config) {}, false},
		{"unknown format", func(c *Config) { c.Report.Format = "xml" }, true},
		{"unknown color", func(c *Config) { c.Report.Color = "sometimes" }, true},
		{"fail_on none", func(c *Config) { c.Report.FailOn = "none" }, false},
		{"unknown fail_on", func(c *Config) { c.Report.FailOn = "fatal" }, true},
		{"unknown threshold", func(c *Config) { c.Report.Threshold = "minor" }, true},
		{"negative jobs", func(c *Config) { c.Analysis.Jobs = -1 }, true},
		{"unknown filter", func(c *Config) { c.Filter.Order = []string{"annotated", "magic"} }, true},
		{"bad annotation", func(c *Config) { c.Filter.Annotated.Include = []string{"Public"} }, true},
		{"bad glob", func(c *Config) { c.Filter.Paths.Include = []string{"a/[b"} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigValidate_FilterErrorsAreConfigurationErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Filter.Annotated = filter.AnnotatedConfig{Include: []string{"@A("}, Regex: true}
	var cfgErr *filter.ConfigurationError
	assert.True(t, errors.As(cfg.Validate(), &cfgErr))
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	base.Analysis.Jobs = 2
	base.Checks.Disabled = []string{"visibility"}

	base.Merge(&Config{
		Report:   ReportConfig{Format: "json"},
		Analysis: AnalysisConfig{DescendUnmatched: true},
	})

	assert.Equal(t, "json", base.Report.Format)
	assert.Equal(t, "auto", base.Report.Color, "zero values do not override")
	assert.Equal(t, 2, base.Analysis.Jobs)
	assert.True(t, base.Analysis.DescendUnmatched)
	assert.Equal(t, []string{"visibility"}, base.Checks.Disabled)

	base.Merge(nil)
	assert.Equal(t, "json", base.Report.Format)
}

func TestConfig_FiltersAndChecks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Merge(&Config{Filter: FilterConfig{
		Annotated: filter.AnnotatedConfig{Include: []string{"@Public"}},
		Paths:     filter.PathsConfig{Exclude: []string{"**/internal/**"}},
	}})

	chain, err := cfg.Filters()
	require.NoError(t, err)
	assert.Equal(t, 2, chain.Len())

	cfg.Checks.Disabled = []string{"deprecation", "visibility"}
	reg, err := cfg.Registry(builtin.Default())
	require.NoError(t, err)
	assert.Equal(t, builtin.Default().Len()-2, reg.Len())

	cfg.Checks.Disabled = []string{"no-such-check"}
	_, err = cfg.Registry(builtin.Default())
	assert.Error(t, err)

	cfg.Checks.Suppress = []string{"java.method.added"}
	assert.Equal(t, []changespec.Code{"java.method.added"}, cfg.Suppressed())
}

func TestSaveToFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Analysis.Jobs = 3
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoader_Layers(t *testing.T) {
	home := t.TempDir()
	work := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(work)

	writeFile(t, home, filepath.Join(UserConfigDir, UserConfigFile), "report:\n  format: json\n  color: never\nanalysis:\n  jobs: 2\n")
	writeFile(t, work, "apidelta.toml", "[report]\ncolor = \"always\"\n")
	explicit := writeFile(t, t.TempDir(), "ci.yaml", "analysis:\n  jobs: 8\n")

	cfg, err := NewLoader(nil).Load(explicit)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Report.Format, "from user config")
	assert.Equal(t, "always", cfg.Report.Color, "project overrides user")
	assert.Equal(t, 8, cfg.Analysis.Jobs, "explicit file overrides project")
	assert.Equal(t, "breaking", cfg.Report.FailOn, "defaults remain")
}

func TestLoader_Errors(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	_, err := NewLoader(nil).Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "an explicit file must exist")

	invalid := writeFile(t, t.TempDir(), "bad.yaml", "report:\n  format: xml\n")
	_, err = NewLoader(nil).Load(invalid)
	assert.Error(t, err)

	cfg, err := NewLoader(nil).Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}
