// Package copy implements the bulk-load pipeline for Greenplum and
// PostgreSQL warehouses: row encoding into COPY text lines, identifier
// parsing, per-partition streaming uploads with a transfer deadline,
// and the load orchestrator that turns many partition-parallel COPY
// transfers into a single all-or-nothing write through a staging table
// and an atomic rename.
package copy

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/gpload/pkg/config"
	"github.com/ajitpratap0/gpload/pkg/gperrors"
	"github.com/ajitpratap0/gpload/pkg/logger"
	"github.com/ajitpratap0/gpload/pkg/metrics"
	"github.com/ajitpratap0/gpload/pkg/models"
	"github.com/ajitpratap0/gpload/pkg/retry"
)

// stagingSuffix is the fixed trailer of generated staging table names:
// <rawname>_<32-hex-uuid>_<suffix>.
const stagingSuffix = "staging"

// Orchestrator coordinates one load job: staging-table lifecycle,
// partition fan-out through the Dataset capability, success accounting
// and the commit rename or abort.
type Orchestrator struct {
	opts          *Options
	logger        *zap.Logger
	cleanupPolicy *retry.Policy
}

// NewOrchestrator validates the options and builds an orchestrator.
func NewOrchestrator(opts *Options) (*Orchestrator, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	return &Orchestrator{
		opts: opts,
		logger: logger.Get().With(
			zap.String("component", "orchestrator"),
			zap.String("table", opts.Config.TargetTable)),
		cleanupPolicy: retry.DefaultCleanupPolicy(),
	}, nil
}

// Copy runs the load in the mode the configuration selects.
func (o *Orchestrator) Copy(ctx context.Context, dataset Dataset, schema *models.Schema) error {
	if o.opts.Config.Transactional {
		return o.TransactionalCopy(ctx, dataset, schema)
	}
	return o.NonTransactionalCopy(ctx, dataset, schema)
}

// TransactionalCopy loads the dataset with all-or-nothing semantics.
// Every partition is uploaded into a freshly created staging table; the
// job commits by renaming the staging table over the target only when
// all partitions succeeded, so the target transitions atomically from
// old content to new and is never partially visible. Leftover staging
// tables are dropped with bounded retry on every exit path.
func (o *Orchestrator) TransactionalCopy(ctx context.Context, dataset Dataset, schema *models.Schema) error {
	target, err := ParseTableIdentifier(o.opts.Config.TargetTable)
	if err != nil {
		return err
	}
	staging := newStagingIdentifier(target)

	conn, err := o.opts.Connect(ctx)
	if err != nil {
		return gperrors.Wrap(err, gperrors.ErrorTypeConnection, "failed to open orchestrator connection")
	}
	defer closeConn(ctx, conn, o.logger)

	createSQL := buildCreateTableSQL(staging.String(), schema, o.opts.Config)
	if err := conn.Exec(ctx, createSQL); err != nil {
		metrics.JobsCompleted.WithLabelValues("transactional", "staging_failed").Inc()
		return gperrors.Wrap(err, gperrors.ErrorTypeStaging, "failed to create staging table").
			WithDetail("staging_table", staging.String()).
			WithDetail("sql", createSQL)
	}
	o.logger.Info("staging table created", zap.String("staging_table", staging.String()))

	defer o.retryingDrop(ctx, conn, staging.String())

	var succeeded atomic.Int64
	total := dataset.PartitionCount()

	if err := dataset.ForeachPartition(ctx, func(ctx context.Context, p Partition) error {
		return UploadPartition(ctx, p, o.opts, schema, staging.String(), &succeeded)
	}); err != nil {
		// individual failures decide the job through the success count
		o.logger.Warn("partition uploads reported errors", zap.Error(err))
	}

	done := succeeded.Load()
	if done != int64(total) {
		metrics.JobsCompleted.WithLabelValues("transactional", "aborted").Inc()
		return gperrors.Newf(gperrors.ErrorTypeJobAborted,
			"%d of %d partitions succeeded; the target table is unchanged, resubmit the whole job", done, total).
			WithDetail("partitions_total", total).
			WithDetail("partitions_succeeded", done)
	}

	if err := conn.Exec(ctx, "DROP TABLE IF EXISTS "+target.String()); err != nil {
		metrics.JobsCompleted.WithLabelValues("transactional", "commit_failed").Inc()
		return gperrors.Wrap(err, gperrors.ErrorTypeQuery, "failed to drop existing target table").
			WithDetail("table", target.String())
	}

	renameSQL := fmt.Sprintf("ALTER TABLE %s RENAME TO %s", staging.String(), target.NameSQL())
	if err := conn.Exec(ctx, renameSQL); err != nil {
		metrics.JobsCompleted.WithLabelValues("transactional", "commit_failed").Inc()
		return gperrors.Wrap(err, gperrors.ErrorTypeQuery, "failed to rename staging table to target").
			WithDetail("staging_table", staging.String()).
			WithDetail("table", target.String())
	}

	metrics.JobsCompleted.WithLabelValues("transactional", "success").Inc()
	o.logger.Info("load committed",
		zap.Int("partitions", total),
		zap.String("staging_table", staging.String()))

	return nil
}

// NonTransactionalCopy loads every partition directly into the target
// table. There is no staging table, no success counter and no commit
// step; cross-partition atomicity is the caller's responsibility.
func (o *Orchestrator) NonTransactionalCopy(ctx context.Context, dataset Dataset, schema *models.Schema) error {
	target, err := ParseTableIdentifier(o.opts.Config.TargetTable)
	if err != nil {
		return err
	}

	if err := dataset.ForeachPartition(ctx, func(ctx context.Context, p Partition) error {
		return UploadPartition(ctx, p, o.opts, schema, target.String(), nil)
	}); err != nil {
		metrics.JobsCompleted.WithLabelValues("non_transactional", "failed").Inc()
		return gperrors.Wrap(err, gperrors.ErrorTypeUpload, "one or more partition uploads failed").
			WithDetail("table", target.String())
	}

	metrics.JobsCompleted.WithLabelValues("non_transactional", "success").Inc()
	o.logger.Info("load completed", zap.Int("partitions", dataset.PartitionCount()))

	return nil
}

// retryingDrop drops the staging table with bounded retry. Each failed
// attempt is logged as a warning; when all attempts fail an error is
// logged and the job continues. Cleanup never raises and keeps running
// even when the job context was already cancelled.
func (o *Orchestrator) retryingDrop(ctx context.Context, conn Conn, table string) {
	cleanupCtx := context.WithoutCancel(ctx)
	dropSQL := "DROP TABLE IF EXISTS " + table

	err := o.cleanupPolicy.Execute(cleanupCtx, func() error {
		return conn.Exec(cleanupCtx, dropSQL)
	}, func(attempt int, err error) {
		metrics.CleanupRetries.Inc()
		o.logger.Warn("failed to drop staging table",
			zap.Int("attempt", attempt),
			zap.String("staging_table", table),
			zap.Error(err))
	})
	if err != nil {
		o.logger.Error("giving up on staging table drop; manual cleanup required",
			zap.String("staging_table", table),
			zap.Error(gperrors.Wrap(err, gperrors.ErrorTypeCleanup, "staging table drop failed")))
	}
}

// newStagingIdentifier synthesizes a unique staging identifier in the
// target's schema. The random component makes the name unique per job
// and guarantees it never collides with the target name. The name is
// always quoted so a case-sensitive target keeps its case through the
// staging lifecycle.
func newStagingIdentifier(target TableIdentifier) TableIdentifier {
	random := strings.ReplaceAll(uuid.New().String(), "-", "")
	return TableIdentifier{
		Schema:       target.Schema,
		SchemaQuoted: target.SchemaQuoted,
		Name:         fmt.Sprintf("%s_%s_%s", target.Name, random, stagingSuffix),
		NameQuoted:   true,
	}
}

// buildCreateTableSQL generates the staging DDL from the schema, the
// per-column type overrides and the extra table options.
func buildCreateTableSQL(table string, schema *models.Schema, cfg *config.CopyConfig) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(table)
	b.WriteString(" (")

	for i, field := range schema.Fields {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q %s", field.Name, columnTypeFor(field, cfg.ColumnTypes))
	}
	b.WriteString(")")

	if cfg.CreateTableExtras != "" {
		b.WriteString(" ")
		b.WriteString(cfg.CreateTableExtras)
	}

	return b.String()
}

// columnTypeFor maps a field to its column type, honoring per-column
// overrides first and falling back to the default mapping for the
// field's underlying kind.
func columnTypeFor(field models.Field, overrides map[string]string) string {
	if t, ok := overrides[field.Name]; ok {
		return t
	}

	switch field.Type.Underlying() {
	case models.FieldTypeBool:
		return "BOOLEAN"
	case models.FieldTypeInt16:
		return "SMALLINT"
	case models.FieldTypeInt32:
		return "INTEGER"
	case models.FieldTypeInt64:
		return "BIGINT"
	case models.FieldTypeFloat32:
		return "REAL"
	case models.FieldTypeFloat64:
		return "DOUBLE PRECISION"
	case models.FieldTypeDecimal:
		return "NUMERIC"
	case models.FieldTypeDate:
		return "DATE"
	case models.FieldTypeTimestamp:
		return "TIMESTAMP"
	default:
		// binary travels as UTF-8 decoded text; strings and unknown
		// kinds are text as well
		return "TEXT"
	}
}
