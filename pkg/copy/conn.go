package copy

import (
	"context"
	"io"

	"github.com/jackc/pgx/v5"

	"github.com/ajitpratap0/gpload/pkg/config"
	"github.com/ajitpratap0/gpload/pkg/gperrors"
)

// Conn is the minimal database surface the load pipeline needs: DDL
// execution, a streaming COPY FROM STDIN transfer, and close.
type Conn interface {
	// Exec runs one SQL statement
	Exec(ctx context.Context, sql string) error
	// CopyFrom streams r as the STDIN of the given COPY command and
	// returns the number of rows loaded
	CopyFrom(ctx context.Context, sql string, r io.Reader) (int64, error)
	// Close releases the connection
	Close(ctx context.Context) error
}

// ConnFactory produces a new dedicated connection. Every partition
// upload and the orchestrator each open their own connection through
// the factory; none are shared.
type ConnFactory func(ctx context.Context) (Conn, error)

// PgxConnFactory returns a ConnFactory that dials a new pgx connection
// per call using the given DSN.
func PgxConnFactory(dsn string) ConnFactory {
	return func(ctx context.Context) (Conn, error) {
		conn, err := pgx.Connect(ctx, dsn)
		if err != nil {
			return nil, gperrors.Wrap(err, gperrors.ErrorTypeConnection, "failed to connect to database")
		}
		return &pgxConn{conn: conn}, nil
	}
}

// pgxConn adapts *pgx.Conn to the Conn interface. COPY goes through the
// underlying pgconn so the reader is streamed directly onto the wire.
type pgxConn struct {
	conn *pgx.Conn
}

func (c *pgxConn) Exec(ctx context.Context, sql string) error {
	_, err := c.conn.Exec(ctx, sql)
	return err
}

func (c *pgxConn) CopyFrom(ctx context.Context, sql string, r io.Reader) (int64, error) {
	tag, err := c.conn.PgConn().CopyFrom(ctx, r, sql)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (c *pgxConn) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}

// Options bundles the job configuration with the connection factory
// consumed by the uploader and the orchestrator.
type Options struct {
	Config  *config.CopyConfig
	Connect ConnFactory
}

// NewOptions builds Options from a validated configuration, wiring the
// default pgx factory against cfg.DSN. Supply a custom factory by
// setting Connect afterwards.
func NewOptions(cfg *config.CopyConfig) *Options {
	return &Options{
		Config:  cfg,
		Connect: PgxConnFactory(cfg.DSN),
	}
}

func (o *Options) validate() error {
	if o.Config == nil {
		return gperrors.New(gperrors.ErrorTypeConfig, "options carry no configuration")
	}
	if err := o.Config.Validate(); err != nil {
		return err
	}
	if o.Connect == nil {
		return gperrors.New(gperrors.ErrorTypeConfig, "options carry no connection factory")
	}
	return nil
}
