package copy

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/gpload/pkg/config"
	"github.com/ajitpratap0/gpload/pkg/gperrors"
	"github.com/ajitpratap0/gpload/pkg/models"
)

func uploadConfig() *config.CopyConfig {
	cfg := config.NewCopyConfig("public.orders")
	cfg.CopyTimeout = 5 * time.Second
	return cfg
}

func uploadOptions(factory *fakeFactory) *Options {
	return &Options{Config: uploadConfig(), Connect: factory.connect}
}

func twoColumnSchema() *models.Schema {
	return &models.Schema{
		Name: "orders",
		Fields: []models.Field{
			{Name: "id", Type: models.FieldTypeInt64},
			{Name: "name", Type: models.FieldTypeString},
		},
	}
}

func TestUploadPartitionSuccess(t *testing.T) {
	factory := newFakeFactory()
	var counter atomic.Int64

	partition := NewSlicePartition([]models.Row{
		{int64(1), "alpha"},
		{int64(2), "beta\twith tab"},
		{int64(3), nil},
	})

	err := UploadPartition(context.Background(), partition, uploadOptions(factory),
		twoColumnSchema(), "public.orders", &counter)
	require.NoError(t, err)

	copies := factory.recorder.copyCalls()
	require.Len(t, copies, 1)
	assert.Equal(t, "COPY public.orders FROM STDIN WITH NULL AS 'NULL' DELIMITER AS E'\\t'", copies[0].sql)
	assert.Equal(t, "1\talpha\n2\tbeta\\\twith tab\n3\tNULL\n", copies[0].payload)

	assert.Equal(t, int64(1), counter.Load())

	conns := factory.openConns()
	require.Len(t, conns, 1)
	assert.True(t, conns[0].isClosed())
}

func TestUploadPartitionWithoutCounter(t *testing.T) {
	factory := newFakeFactory()

	partition := NewSlicePartition([]models.Row{{int64(1), "a"}})
	err := UploadPartition(context.Background(), partition, uploadOptions(factory),
		twoColumnSchema(), "public.orders", nil)
	require.NoError(t, err)

	require.Len(t, factory.recorder.copyCalls(), 1)
}

func TestUploadPartitionTransferFailure(t *testing.T) {
	factory := newFakeFactory()
	factory.copyErr = func(int) error { return errors.New("connection reset") }
	var counter atomic.Int64

	partition := NewSlicePartition([]models.Row{{int64(1), "a"}})
	err := UploadPartition(context.Background(), partition, uploadOptions(factory),
		twoColumnSchema(), "public.orders", &counter)

	require.Error(t, err)
	assert.True(t, gperrors.IsType(err, gperrors.ErrorTypeUpload))
	assert.Equal(t, int64(0), counter.Load(), "failed partition must not count as a success")

	conns := factory.openConns()
	require.Len(t, conns, 1)
	assert.True(t, conns[0].isClosed(), "connection released on the failure path")
}

func TestUploadPartitionTimeout(t *testing.T) {
	factory := newFakeFactory()
	factory.blockCopy = true
	var counter atomic.Int64

	opts := uploadOptions(factory)
	opts.Config.CopyTimeout = 50 * time.Millisecond

	partition := NewSlicePartition([]models.Row{{int64(1), "a"}})

	start := time.Now()
	err := UploadPartition(context.Background(), partition, opts,
		twoColumnSchema(), "public.orders", &counter)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, gperrors.IsType(err, gperrors.ErrorTypeTimeout))
	assert.Contains(t, err.Error(), "50ms")
	assert.Contains(t, err.Error(), "copy_timeout")
	assert.Equal(t, int64(0), counter.Load())

	// the worker is joined and resources released within a bounded
	// grace period after cancellation
	assert.Less(t, elapsed, 2*time.Second)
	conns := factory.openConns()
	require.Len(t, conns, 1)
	assert.True(t, conns[0].isClosed())
}

func TestUploadPartitionConnectFailure(t *testing.T) {
	factory := newFakeFactory()
	factory.dialErr = errors.New("no route to host")
	var counter atomic.Int64

	partition := NewSlicePartition([]models.Row{{int64(1), "a"}})
	err := UploadPartition(context.Background(), partition, uploadOptions(factory),
		twoColumnSchema(), "public.orders", &counter)

	require.Error(t, err)
	assert.True(t, gperrors.IsType(err, gperrors.ErrorTypeConnection))
	assert.Equal(t, int64(0), counter.Load())
}

func TestUploadPartitionRejectsInvalidConfig(t *testing.T) {
	factory := newFakeFactory()
	var counter atomic.Int64

	opts := uploadOptions(factory)
	opts.Config.Delimiter = ""

	partition := NewSlicePartition([]models.Row{{int64(1), "a"}})
	err := UploadPartition(context.Background(), partition, opts,
		twoColumnSchema(), "public.orders", &counter)

	require.Error(t, err)
	assert.True(t, gperrors.IsType(err, gperrors.ErrorTypeConfig))
	assert.Empty(t, factory.openConns(), "invalid configs never reach the warehouse")
	assert.Equal(t, int64(0), counter.Load())
}

func TestUploadPartitionSwallowsCloseError(t *testing.T) {
	factory := newFakeFactory()
	factory.closeErr = errors.New("already closed")
	var counter atomic.Int64

	partition := NewSlicePartition([]models.Row{{int64(1), "a"}})
	err := UploadPartition(context.Background(), partition, uploadOptions(factory),
		twoColumnSchema(), "public.orders", &counter)

	require.NoError(t, err, "close errors never mask the primary result")
	assert.Equal(t, int64(1), counter.Load())
}

func TestCopyCommandDelimiters(t *testing.T) {
	assert.Equal(t,
		"COPY t FROM STDIN WITH NULL AS 'NULL' DELIMITER AS E'\\t'",
		copyCommand("t", '\t'))
	assert.Equal(t,
		"COPY t FROM STDIN WITH NULL AS 'NULL' DELIMITER AS E'|'",
		copyCommand("t", '|'))
	assert.Equal(t,
		`COPY t FROM STDIN WITH NULL AS 'NULL' DELIMITER AS E'\''`,
		copyCommand("t", '\''))
}
