// Package pool provides type-safe object pooling for gpload's hot
// paths. A load job encodes and spools many partitions concurrently;
// pooling the per-partition buffers keeps allocation pressure flat as
// partition counts grow.
//
// Example usage:
//
//	w := pool.GetSpoolWriter(file)
//	defer pool.PutSpoolWriter(w)
package pool

import (
	"bufio"
	"io"
	"sync"
)

// Pool is a generic object pool built on sync.Pool. The reset function,
// when non-nil, runs before an object is returned to the pool. Safe for
// concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
}

// New creates a pool with the given allocation and reset functions.
func New[T any](newFn func() T, resetFn func(T)) *Pool[T] {
	return &Pool[T]{
		pool:  sync.Pool{New: func() interface{} { return newFn() }},
		reset: resetFn,
	}
}

// Get returns an object from the pool, allocating when empty.
func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

// Put resets the object and returns it to the pool.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	p.pool.Put(obj)
}

// spoolWriterSize is the buffer size of pooled spool writers. Large
// enough that a partition's rows reach the file in few syscalls.
const spoolWriterSize = 256 * 1024

var spoolWriters = New(
	func() *bufio.Writer { return bufio.NewWriterSize(nil, spoolWriterSize) },
	func(w *bufio.Writer) { w.Reset(nil) },
)

// GetSpoolWriter returns a pooled buffered writer bound to w.
func GetSpoolWriter(w io.Writer) *bufio.Writer {
	bw := spoolWriters.Get()
	bw.Reset(w)
	return bw
}

// PutSpoolWriter returns a writer obtained from GetSpoolWriter. The
// caller must have flushed it; buffered bytes are discarded.
func PutSpoolWriter(bw *bufio.Writer) {
	spoolWriters.Put(bw)
}
