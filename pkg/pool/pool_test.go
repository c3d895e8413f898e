package pool

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolResetOnPut(t *testing.T) {
	resets := 0
	p := New(
		func() *bytes.Buffer { return &bytes.Buffer{} },
		func(b *bytes.Buffer) { resets++; b.Reset() },
	)

	buf := p.Get()
	buf.WriteString("payload")
	p.Put(buf)

	assert.Equal(t, 1, resets)

	reused := p.Get()
	assert.Zero(t, reused.Len(), "pooled objects come back reset")
}

func TestSpoolWriterRoundTrip(t *testing.T) {
	var sink bytes.Buffer

	w := GetSpoolWriter(&sink)
	_, err := w.WriteString("1\talpha\n")
	require.NoError(t, err)
	require.NoError(t, w.Flush())
	PutSpoolWriter(w)

	assert.Equal(t, "1\talpha\n", sink.String())

	// a recycled writer binds cleanly to a new destination
	var other bytes.Buffer
	w = GetSpoolWriter(&other)
	_, err = w.WriteString("2\tbeta\n")
	require.NoError(t, err)
	require.NoError(t, w.Flush())
	PutSpoolWriter(w)

	assert.Equal(t, "2\tbeta\n", other.String())
	assert.Equal(t, "1\talpha\n", sink.String())
}
