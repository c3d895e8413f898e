package copy

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/gpload/pkg/config"
	"github.com/ajitpratap0/gpload/pkg/gperrors"
	"github.com/ajitpratap0/gpload/pkg/logger"
	"github.com/ajitpratap0/gpload/pkg/metrics"
	"github.com/ajitpratap0/gpload/pkg/models"
	"github.com/ajitpratap0/gpload/pkg/pool"
)

// UploadPartition loads one partition into targetTable: it spools the
// encoded rows to a private local file, then streams the file to the
// table with a COPY FROM STDIN transfer bounded by the configured
// timeout. On success the shared counter, when supplied, is
// incremented by one; transactional jobs compare it against the
// partition count to decide commit or abort.
//
// The spool file and the dedicated connection are released on every
// exit path. Connection-close errors are logged and never mask the
// primary result.
func UploadPartition(ctx context.Context, partition Partition, opts *Options, schema *models.Schema, targetTable string, counter *atomic.Int64) error {
	if err := opts.validate(); err != nil {
		return err
	}
	log := logger.WithContext(ctx).With(zap.String("table", targetTable))

	spoolPath, rowCount, byteCount, err := spoolPartition(partition, schema, opts.Config)
	if spoolPath != "" {
		defer func() {
			if err := os.Remove(spoolPath); err != nil {
				log.Warn("failed to remove spool file", zap.String("path", spoolPath), zap.Error(err))
			}
		}()
	}
	if err != nil {
		metrics.PartitionsUploaded.WithLabelValues(targetTable, "failure").Inc()
		return err
	}

	file, err := os.Open(spoolPath)
	if err != nil {
		metrics.PartitionsUploaded.WithLabelValues(targetTable, "failure").Inc()
		return gperrors.Wrap(err, gperrors.ErrorTypeFile, "failed to reopen spool file for transfer").
			WithDetail("path", spoolPath)
	}
	defer file.Close()

	conn, err := opts.Connect(ctx)
	if err != nil {
		metrics.PartitionsUploaded.WithLabelValues(targetTable, "failure").Inc()
		return gperrors.Wrap(err, gperrors.ErrorTypeConnection, "failed to open upload connection")
	}
	defer closeConn(ctx, conn, log)

	sql := copyCommand(targetTable, opts.Config.Delimiter[0])
	loaded, elapsed, err := timedCopy(ctx, conn, sql, file, opts.Config.CopyTimeout)
	if err != nil {
		status := "failure"
		if gperrors.IsType(err, gperrors.ErrorTypeTimeout) {
			status = "timeout"
		}
		metrics.PartitionsUploaded.WithLabelValues(targetTable, status).Inc()
		return err
	}

	metrics.PartitionsUploaded.WithLabelValues(targetTable, "success").Inc()
	metrics.RowsEncoded.WithLabelValues(targetTable).Add(float64(rowCount))
	metrics.BytesStaged.WithLabelValues(targetTable).Add(float64(byteCount))
	metrics.CopyDuration.Observe(elapsed.Seconds())

	if counter != nil {
		counter.Add(1)
	}

	log.Info("partition uploaded",
		zap.Int64("rows", rowCount),
		zap.Int64("rows_loaded", loaded),
		zap.Int64("bytes", byteCount),
		zap.Duration("copy_duration", elapsed))

	return nil
}

// spoolPartition stream-encodes every row of the partition into a fresh
// temporary file and returns its path with row and byte counts. The
// file handle is closed on every exit path; the path is returned even
// on failure so the caller can remove the file.
func spoolPartition(partition Partition, schema *models.Schema, cfg *config.CopyConfig) (path string, rows, bytes int64, err error) {
	file, err := os.CreateTemp("", "gpload-partition-*.copy")
	if err != nil {
		return "", 0, 0, gperrors.Wrap(err, gperrors.ErrorTypeFile, "failed to create spool file")
	}
	path = file.Name()
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = gperrors.Wrap(closeErr, gperrors.ErrorTypeFile, "failed to close spool file").
				WithDetail("path", path)
		}
	}()

	writer := pool.GetSpoolWriter(file)
	defer pool.PutSpoolWriter(writer)
	encoder := NewRowEncoder(schema, cfg.Delimiter[0])

	for {
		row, ok := partition.Next()
		if !ok {
			break
		}

		line, encErr := encoder.EncodeRow(row)
		if encErr != nil {
			return path, rows, bytes, encErr
		}
		n, writeErr := writer.Write(line)
		if writeErr != nil {
			return path, rows, bytes, gperrors.Wrap(writeErr, gperrors.ErrorTypeFile, "failed to write spool file").
				WithDetail("path", path)
		}
		rows++
		bytes += int64(n)
	}

	if iterErr := partition.Err(); iterErr != nil {
		return path, rows, bytes, gperrors.Wrap(iterErr, gperrors.ErrorTypeData, "partition iteration failed")
	}

	if err := writer.Flush(); err != nil {
		return path, rows, bytes, gperrors.Wrap(err, gperrors.ErrorTypeFile, "failed to flush spool file").
			WithDetail("path", path)
	}

	return path, rows, bytes, nil
}

type copyResult struct {
	rows int64
	err  error
}

// timedCopy runs the COPY transfer on a separate goroutine so the
// caller can enforce a wall-clock deadline on the blocking network
// transfer. On expiry the transfer context is cancelled and the worker
// is joined before the connection and file handle are released.
func timedCopy(ctx context.Context, conn Conn, sql string, file *os.File, timeout time.Duration) (int64, time.Duration, error) {
	copyCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan copyResult, 1)
	start := time.Now()

	go func() {
		rows, err := conn.CopyFrom(copyCtx, sql, file)
		done <- copyResult{rows: rows, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		if res.err != nil {
			return 0, 0, gperrors.Wrap(res.err, gperrors.ErrorTypeUpload, "COPY transfer failed").
				WithDetail("sql", sql)
		}
		return res.rows, time.Since(start), nil

	case <-timer.C:
		cancel()
		<-done // join the worker before releasing connection and file
		return 0, 0, gperrors.Newf(gperrors.ErrorTypeTimeout,
			"COPY transfer did not finish within %s; raise copy_timeout to allow slower transfers", timeout).
			WithDetail("copy_timeout", timeout.String())

	case <-ctx.Done():
		cancel()
		<-done
		return 0, 0, gperrors.Wrap(ctx.Err(), gperrors.ErrorTypeUpload, "upload cancelled")
	}
}

// copyCommand builds the COPY statement for the target table and
// delimiter.
func copyCommand(table string, delimiter byte) string {
	return fmt.Sprintf("COPY %s FROM STDIN WITH NULL AS 'NULL' DELIMITER AS E'%s'",
		table, delimiterLiteral(delimiter))
}

// delimiterLiteral renders the delimiter inside an E'...' literal.
func delimiterLiteral(d byte) string {
	switch d {
	case '\t':
		return `\t`
	case '\'':
		return `\'`
	case '\\':
		return `\\`
	default:
		return string(d)
	}
}

// closeConn releases a connection, logging and swallowing close errors
// so they never mask an in-flight primary error.
func closeConn(ctx context.Context, conn Conn, log *zap.Logger) {
	if err := conn.Close(ctx); err != nil {
		log.Warn("failed to close connection", zap.Error(err))
	}
}
