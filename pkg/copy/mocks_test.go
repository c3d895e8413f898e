package copy

import (
	"context"
	"io"
	"sync"
)

// sqlRecorder collects everything the fake connections were asked to
// do, across all connections a test opened.
type sqlRecorder struct {
	mu     sync.Mutex
	exec   []string
	copies []copyCall
}

type copyCall struct {
	sql     string
	payload string
}

func (r *sqlRecorder) execStatements() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.exec...)
}

func (r *sqlRecorder) copyCalls() []copyCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]copyCall(nil), r.copies...)
}

// fakeConn implements Conn against the shared recorder. Behavior is
// steered through the function fields; nil means success.
type fakeConn struct {
	recorder *sqlRecorder

	execErr   func(sql string) error
	copyErr   func(call int) error
	blockCopy bool
	closeErr  error

	mu     sync.Mutex
	closed bool
}

func (c *fakeConn) Exec(ctx context.Context, sql string) error {
	c.recorder.mu.Lock()
	c.recorder.exec = append(c.recorder.exec, sql)
	c.recorder.mu.Unlock()

	if c.execErr != nil {
		return c.execErr(sql)
	}
	return nil
}

func (c *fakeConn) CopyFrom(ctx context.Context, sql string, r io.Reader) (int64, error) {
	if c.blockCopy {
		<-ctx.Done()
		return 0, ctx.Err()
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}

	c.recorder.mu.Lock()
	call := len(c.recorder.copies)
	c.recorder.copies = append(c.recorder.copies, copyCall{sql: sql, payload: string(data)})
	c.recorder.mu.Unlock()

	if c.copyErr != nil {
		if err := c.copyErr(call); err != nil {
			return 0, err
		}
	}

	var rows int64
	for _, b := range data {
		if b == '\n' {
			rows++
		}
	}
	return rows, nil
}

func (c *fakeConn) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.closeErr
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeFactory hands out fake connections that share one recorder.
type fakeFactory struct {
	recorder *sqlRecorder

	execErr   func(sql string) error
	copyErr   func(call int) error
	blockCopy bool
	closeErr  error
	dialErr   error

	mu    sync.Mutex
	conns []*fakeConn
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{recorder: &sqlRecorder{}}
}

func (f *fakeFactory) connect(ctx context.Context) (Conn, error) {
	if f.dialErr != nil {
		return nil, f.dialErr
	}

	conn := &fakeConn{
		recorder:  f.recorder,
		execErr:   f.execErr,
		copyErr:   f.copyErr,
		blockCopy: f.blockCopy,
		closeErr:  f.closeErr,
	}

	f.mu.Lock()
	f.conns = append(f.conns, conn)
	f.mu.Unlock()

	return conn, nil
}

func (f *fakeFactory) openConns() []*fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeConn(nil), f.conns...)
}
