// Package config provides the configuration surface for gpload jobs.
// A single CopyConfig structure carries everything a load job needs:
// the target table identifier, the wire-format delimiter, the
// per-partition transfer timeout, the transactional-mode flag and the
// DDL fragments used when building the staging table.
//
// Example usage:
//
//	cfg := config.NewCopyConfig("public.orders")
//	cfg.Transactional = true
//	cfg.CopyTimeout = 10 * time.Minute
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/gpload/pkg/gperrors"
)

// Default values applied by NewCopyConfig.
const (
	// DefaultDelimiter is the field separator used on the COPY wire
	DefaultDelimiter = "\t"
	// DefaultCopyTimeout bounds one partition's COPY transfer
	DefaultCopyTimeout = 10 * time.Minute
)

// CopyConfig is the configuration for one bulk-load job.
type CopyConfig struct {
	// TargetTable is the (optionally schema-qualified) destination table
	TargetTable string `yaml:"target_table" json:"target_table"`

	// DSN is the connection string used by the default pgx connection
	// factory. Ignored when a custom factory is supplied.
	DSN string `yaml:"dsn" json:"dsn"`

	// Delimiter is the single field-separator character on the wire.
	// It must differ from backslash, newline and carriage return, which
	// the encoding reserves for escaping.
	Delimiter string `yaml:"delimiter" json:"delimiter"`

	// CopyTimeout is the wall-clock deadline for one partition's COPY
	// transfer. A transfer exceeding it is cancelled and reported as a
	// timeout failure.
	CopyTimeout time.Duration `yaml:"copy_timeout" json:"copy_timeout"`

	// Transactional selects all-or-nothing semantics: partitions land in
	// a staging table that is atomically renamed over the target once
	// every partition has succeeded.
	Transactional bool `yaml:"transactional" json:"transactional"`

	// CreateTableExtras is appended verbatim to the staging CREATE TABLE
	// statement (e.g. "DISTRIBUTED BY (id)").
	CreateTableExtras string `yaml:"create_table_extras" json:"create_table_extras"`

	// ColumnTypes overrides the generated column type for named columns
	// in the staging DDL.
	ColumnTypes map[string]string `yaml:"column_types" json:"column_types"`
}

// NewCopyConfig creates a CopyConfig for the given target table with
// production defaults.
func NewCopyConfig(targetTable string) *CopyConfig {
	return &CopyConfig{
		TargetTable: targetTable,
		Delimiter:   DefaultDelimiter,
		CopyTimeout: DefaultCopyTimeout,
	}
}

// Validate checks the configuration for values the load pipeline cannot
// work with. It is called by the orchestrator before any I/O.
func (c *CopyConfig) Validate() error {
	if c.TargetTable == "" {
		return gperrors.New(gperrors.ErrorTypeConfig, "target_table is required")
	}

	if len(c.Delimiter) != 1 {
		return gperrors.Newf(gperrors.ErrorTypeConfig,
			"delimiter must be exactly one character, got %q", c.Delimiter)
	}

	switch c.Delimiter[0] {
	case '\\', '\n', '\r':
		return gperrors.Newf(gperrors.ErrorTypeConfig,
			"delimiter %q collides with the escape characters of the wire encoding", c.Delimiter)
	}

	if c.CopyTimeout <= 0 {
		return gperrors.New(gperrors.ErrorTypeConfig, "copy_timeout must be positive")
	}

	return nil
}

// LoadFromFile reads a CopyConfig from a YAML file, applying defaults
// for fields the file leaves unset.
func LoadFromFile(path string) (*CopyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, gperrors.Wrap(err, gperrors.ErrorTypeConfig, "failed to read config file").
			WithDetail("path", path)
	}

	cfg := NewCopyConfig("")
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, gperrors.Wrap(err, gperrors.ErrorTypeConfig, "failed to parse config file").
			WithDetail("path", path)
	}

	if cfg.Delimiter == "" {
		cfg.Delimiter = DefaultDelimiter
	}
	if cfg.CopyTimeout == 0 {
		cfg.CopyTimeout = DefaultCopyTimeout
	}

	return cfg, nil
}
