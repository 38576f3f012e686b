package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Default()
	cfg.ModulesDir = "modules"
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero population", func(c *Config) { c.Population = 0 }, "population"},
		{"negative min age", func(c *Config) { c.MinAge = -1 }, "min_age"},
		{"inverted ages", func(c *Config) { c.MinAge = 80; c.MaxAge = 20 }, "min_age"},
		{"excessive max age", func(c *Config) { c.MaxAge = 200 }, "max_age"},
		{"zero step", func(c *Config) { c.StepDays = 0 }, "step_days"},
		{"negative workers", func(c *Config) { c.Workers = -1 }, "workers"},
		{"bad format", func(c *Config) { c.Format = "xml" }, "format"},
		{"missing modules dir", func(c *Config) { c.ModulesDir = "" }, "modules_dir"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := validConfig()
			c.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			ve, ok := err.(*ValidationError)
			require.True(t, ok, "want ValidationError, got %T", err)
			assert.Equal(t, c.field, ve.Field)
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SYNTHMED_POPULATION", "25")
	t.Setenv("SYNTHMED_FORMAT", "csv")
	t.Setenv("SYNTHMED_ONLY_ALIVE", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Population)
	assert.Equal(t, FormatCSV, cfg.Format)
	assert.True(t, cfg.OnlyAlive)
	assert.Equal(t, 7, cfg.StepDays) // default survives
}

func TestSaveLoadFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")

	seed := int64(42)
	cfg := validConfig()
	cfg.Seed = &seed
	cfg.Population = 3
	cfg.OnlyAlive = true
	require.NoError(t, cfg.Save(path))

	got, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Population)
	assert.True(t, got.OnlyAlive)
	require.NotNil(t, got.Seed)
	assert.Equal(t, int64(42), *got.Seed)
	assert.Equal(t, cfg.ModulesDir, got.ModulesDir)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
