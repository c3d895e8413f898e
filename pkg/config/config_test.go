package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/gpload/pkg/gperrors"
)

func TestNewCopyConfigDefaults(t *testing.T) {
	cfg := NewCopyConfig("public.orders")

	assert.Equal(t, "public.orders", cfg.TargetTable)
	assert.Equal(t, "\t", cfg.Delimiter)
	assert.Equal(t, 10*time.Minute, cfg.CopyTimeout)
	assert.False(t, cfg.Transactional)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CopyConfig)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*CopyConfig) {},
		},
		{
			name:    "missing target table",
			mutate:  func(c *CopyConfig) { c.TargetTable = "" },
			wantErr: "target_table is required",
		},
		{
			name:    "empty delimiter",
			mutate:  func(c *CopyConfig) { c.Delimiter = "" },
			wantErr: "exactly one character",
		},
		{
			name:    "multi-character delimiter",
			mutate:  func(c *CopyConfig) { c.Delimiter = "ab" },
			wantErr: "exactly one character",
		},
		{
			name:    "backslash delimiter",
			mutate:  func(c *CopyConfig) { c.Delimiter = `\` },
			wantErr: "collides with the escape characters",
		},
		{
			name:    "newline delimiter",
			mutate:  func(c *CopyConfig) { c.Delimiter = "\n" },
			wantErr: "collides with the escape characters",
		},
		{
			name:    "carriage return delimiter",
			mutate:  func(c *CopyConfig) { c.Delimiter = "\r" },
			wantErr: "collides with the escape characters",
		},
		{
			name:   "pipe delimiter",
			mutate: func(c *CopyConfig) { c.Delimiter = "|" },
		},
		{
			name:    "zero timeout",
			mutate:  func(c *CopyConfig) { c.CopyTimeout = 0 },
			wantErr: "copy_timeout must be positive",
		},
		{
			name:    "negative timeout",
			mutate:  func(c *CopyConfig) { c.CopyTimeout = -time.Second },
			wantErr: "copy_timeout must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewCopyConfig("public.orders")
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, gperrors.IsType(err, gperrors.ErrorTypeConfig))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gpload.yaml")
	content := `target_table: analytics.events
dsn: postgres://gpadmin@mdw:5432/warehouse
delimiter: "|"
copy_timeout: 300000000000
transactional: true
create_table_extras: DISTRIBUTED BY (event_id)
column_types:
  payload: JSONB
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "analytics.events", cfg.TargetTable)
	assert.Equal(t, "postgres://gpadmin@mdw:5432/warehouse", cfg.DSN)
	assert.Equal(t, "|", cfg.Delimiter)
	assert.Equal(t, 5*time.Minute, cfg.CopyTimeout)
	assert.True(t, cfg.Transactional)
	assert.Equal(t, "DISTRIBUTED BY (event_id)", cfg.CreateTableExtras)
	assert.Equal(t, map[string]string{"payload": "JSONB"}, cfg.ColumnTypes)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFileAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gpload.yaml")
	require.NoError(t, os.WriteFile(path, []byte("target_table: public.orders\n"), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultDelimiter, cfg.Delimiter)
	assert.Equal(t, DefaultCopyTimeout, cfg.CopyTimeout)
}

func TestLoadFromFileErrors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, gperrors.IsType(err, gperrors.ErrorTypeConfig))

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("target_table: [unclosed\n"), 0o600))

	_, err = LoadFromFile(path)
	require.Error(t, err)
	assert.True(t, gperrors.IsType(err, gperrors.ErrorTypeConfig))
}
