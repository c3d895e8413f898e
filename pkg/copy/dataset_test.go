package copy

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/gpload/pkg/logger"
	"github.com/ajitpratap0/gpload/pkg/models"
)

func TestSlicePartitionIteration(t *testing.T) {
	p := NewSlicePartition([]models.Row{{1}, {2}, {3}})

	var got []models.Row
	for {
		row, ok := p.Next()
		if !ok {
			break
		}
		got = append(got, row)
	}

	assert.Equal(t, []models.Row{{1}, {2}, {3}}, got)
	assert.NoError(t, p.Err())

	// exhausted partitions stay exhausted
	_, ok := p.Next()
	assert.False(t, ok)
}

func TestSlicePartitionEmpty(t *testing.T) {
	p := NewSlicePartition(nil)
	_, ok := p.Next()
	assert.False(t, ok)
	assert.NoError(t, p.Err())
}

func TestLocalDatasetRunsEveryPartition(t *testing.T) {
	ds := NewLocalDataset([][]models.Row{{{1}}, {{2}}, {{3}}, {{4}}})
	require.Equal(t, 4, ds.PartitionCount())

	var mu sync.Mutex
	var seen []int

	err := ds.ForeachPartition(context.Background(), func(ctx context.Context, p Partition) error {
		row, ok := p.Next()
		if !ok {
			return errors.New("partition had no rows")
		}
		mu.Lock()
		seen = append(seen, row[0].(int))
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2, 3, 4}, seen)
}

func TestLocalDatasetRunsAllDespiteFailures(t *testing.T) {
	ds := NewLocalDataset([][]models.Row{{{1}}, {{2}}, {{3}}})

	var ran sync.Map
	err := ds.ForeachPartition(context.Background(), func(ctx context.Context, p Partition) error {
		row, _ := p.Next()
		n := row[0].(int)
		ran.Store(n, true)
		if n == 2 {
			return errors.New("partition 2 failed")
		}
		return nil
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "partition 2 failed")

	for _, n := range []int{1, 2, 3} {
		_, ok := ran.Load(n)
		assert.True(t, ok, "partition %d must run even when a sibling fails", n)
	}
}

func TestLocalDatasetCombinesErrors(t *testing.T) {
	ds := NewLocalDataset([][]models.Row{{{1}}, {{2}}})

	err := ds.ForeachPartition(context.Background(), func(ctx context.Context, p Partition) error {
		row, _ := p.Next()
		if row[0].(int) == 1 {
			return errors.New("first")
		}
		return errors.New("second")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "first")
	assert.Contains(t, err.Error(), "second")
}

func TestLocalDatasetCarriesPartitionIndex(t *testing.T) {
	ds := NewLocalDataset([][]models.Row{{{10}}, {{20}}, {{30}}})

	var mu sync.Mutex
	indexes := make(map[int]int)

	err := ds.ForeachPartition(context.Background(), func(ctx context.Context, p Partition) error {
		idx, ok := ctx.Value(logger.PartitionKey).(int)
		if !ok {
			return errors.New("partition context carries no index")
		}
		row, _ := p.Next()
		mu.Lock()
		indexes[idx] = row[0].(int)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, map[int]int{0: 10, 1: 20, 2: 30}, indexes)
}

func TestLocalDatasetEmpty(t *testing.T) {
	ds := NewLocalDataset(nil)
	assert.Equal(t, 0, ds.PartitionCount())
	assert.NoError(t, ds.ForeachPartition(context.Background(), func(context.Context, Partition) error {
		t.Fatal("no partitions should run")
		return nil
	}))
}
