package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/pouchspec/internal/common"
	"github.com/Veraticus/pouchspec/internal/heuristics"
	"github.com/Veraticus/pouchspec/internal/model"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("POUCHSPEC_TEST_DIR", "/srv/pouch")

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"~", home},
		{"~/data/review.db", filepath.Join(home, "data", "review.db")},
		{"$POUCHSPEC_TEST_DIR/review.db", "/srv/pouch/review.db"},
		{"/abs/review.db", "/abs/review.db"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	want, err := DefaultDatabasePath()
	require.NoError(t, err)
	assert.Equal(t, want, cfg.DatabasePath)
	assert.InDelta(t, model.DefaultReviewThreshold, cfg.ReviewThreshold, 1e-9)
	assert.GreaterOrEqual(t, cfg.Parallel, 1)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: /tmp/pouch.db
review:
  threshold: 0.65
extraction:
  parallel: 3
logging:
  level: debug
  format: json
`), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, &Config{
		DatabasePath:    "/tmp/pouch.db",
		LogLevel:        "debug",
		LogFormat:       "json",
		ReviewThreshold: 0.65,
		Parallel:        3,
	}, cfg)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
	}{
		{"threshold above one", KeyReviewThreshold, 1.2},
		{"negative threshold", KeyReviewThreshold, -0.1},
		{"zero parallel", KeyParallel, 0},
		{"unknown level", KeyLogLevel, "verbose"},
		{"unknown format", KeyLogFormat, "xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set(KeyDatabasePath, "/tmp/pouch.db")
			v.Set(tt.key, tt.value)
			_, err := Load(v)
			require.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestLoadTables(t *testing.T) {
	t.Run("defaults without override", func(t *testing.T) {
		tables, err := (&Config{}).LoadTables()
		require.NoError(t, err)
		assert.Equal(t, heuristics.Defaults().Levels, tables.Levels)
	})

	t.Run("override file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tables.yaml")
		require.NoError(t, os.WriteFile(path, []byte("levels:\n  high: 0.9\n  medium: 0.6\n"), 0o600))

		tables, err := (&Config{HeuristicTables: path}).LoadTables()
		require.NoError(t, err)
		assert.InDelta(t, 0.9, tables.Levels.High, 1e-9)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := (&Config{HeuristicTables: filepath.Join(t.TempDir(), "nope.yaml")}).LoadTables()
		require.Error(t, err)
	})
}
