package copy

import (
	"context"
	"sync"

	"go.uber.org/multierr"

	"github.com/ajitpratap0/gpload/pkg/logger"
	"github.com/ajitpratap0/gpload/pkg/models"
)

// Partition is a finite, single-pass sequence of rows: one unit of
// parallel work. Partitions are independent and their relative order is
// irrelevant to the load.
type Partition interface {
	// Next returns the next row, or ok=false when the partition is
	// exhausted or failed
	Next() (row models.Row, ok bool)
	// Err reports the failure that terminated iteration, if any
	Err() error
}

// PartitionFunc is the per-partition operation a Dataset maps over its
// partitions.
type PartitionFunc func(ctx context.Context, partition Partition) error

// Dataset is the injected partition-execution capability. gpload only
// consumes it: scheduling the per-partition operation across workers,
// machines or tasks is owned entirely by the implementation. Contract:
// ForeachPartition invokes fn once per partition, runs every partition
// to completion even when some fail, and returns the combined
// per-invocation errors.
type Dataset interface {
	PartitionCount() int
	ForeachPartition(ctx context.Context, fn PartitionFunc) error
}

// SlicePartition adapts an in-memory row slice to the Partition
// interface.
type SlicePartition struct {
	rows []models.Row
	pos  int
}

// NewSlicePartition wraps rows as a single-pass partition.
func NewSlicePartition(rows []models.Row) *SlicePartition {
	return &SlicePartition{rows: rows}
}

// Next returns the next row in the slice.
func (p *SlicePartition) Next() (models.Row, bool) {
	if p.pos >= len(p.rows) {
		return nil, false
	}
	row := p.rows[p.pos]
	p.pos++
	return row, true
}

// Err always returns nil; slice iteration cannot fail.
func (p *SlicePartition) Err() error {
	return nil
}

// LocalDataset is the in-process Dataset implementation: one goroutine
// per partition, all run to completion regardless of individual
// failures. The CLI and tests use it; distributed callers plug in
// their own engine.
type LocalDataset struct {
	partitions [][]models.Row
}

// NewLocalDataset builds a LocalDataset over pre-partitioned rows.
func NewLocalDataset(partitions [][]models.Row) *LocalDataset {
	return &LocalDataset{partitions: partitions}
}

// PartitionCount returns the number of partitions.
func (d *LocalDataset) PartitionCount() int {
	return len(d.partitions)
}

// ForeachPartition runs fn concurrently over every partition, waits for
// all of them and returns the combined errors. Each invocation's
// context carries the partition index for log enrichment.
func (d *LocalDataset) ForeachPartition(ctx context.Context, fn PartitionFunc) error {
	var wg sync.WaitGroup
	errs := make([]error, len(d.partitions))

	for i, rows := range d.partitions {
		wg.Add(1)
		go func(i int, rows []models.Row) {
			defer wg.Done()
			partCtx := context.WithValue(ctx, logger.PartitionKey, i)
			errs[i] = fn(partCtx, NewSlicePartition(rows))
		}(i, rows)
	}

	wg.Wait()
	return multierr.Combine(errs...)
}
