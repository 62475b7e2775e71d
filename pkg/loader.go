package pkg

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Conn is a scoped connection to the destination store. Close must be
// called exactly once.
type Conn interface {
	Begin(ctx context.Context) (Tx, error)
	Close(ctx context.Context) error
}

// Tx is one transaction. Rows inserted through it become visible only after
// Commit.
type Tx interface {
	Insert(ctx context.Context, table string, columns []string, values []interface{}) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Connector opens a new Conn.
type Connector func(ctx context.Context) (Conn, error)

const (
	DriverPostgres  = "postgres"
	DriverSQLite    = "sqlite"
	DriverSQLServer = "sqlserver"
	DriverArangoDB  = "arangodb"
)

// NewConnector returns the Connector for cfg.DBDriver.
func NewConnector(cfg *Config) (Connector, error) {
	switch cfg.DBDriver {
	case DriverPostgres:
		dsn := cfg.PostgresDSN()
		return func(ctx context.Context) (Conn, error) {
			return ConnectPostgres(ctx, dsn)
		}, nil
	case DriverSQLite:
		dsn := cfg.DBName
		return func(ctx context.Context) (Conn, error) {
			return ConnectSQL(ctx, SQLiteDialect, dsn)
		}, nil
	case DriverSQLServer:
		dsn := cfg.SQLServerDSN()
		return func(ctx context.Context) (Conn, error) {
			return ConnectSQL(ctx, SQLServerDialect, dsn)
		}, nil
	case DriverArangoDB:
		return func(ctx context.Context) (Conn, error) {
			db, err := ConnectToArango(
				ctx,
				cfg.ArangoEndpoint(),
				cfg.DBUser,
				cfg.DBPassword,
				cfg.ArangoCertificate,
				cfg.DBName,
			)
			if err != nil {
				return nil, err
			}
			return db, nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.DBDriver)
	}
}

type Loader struct {
	connect Connector
	table   string
	logger  zerolog.Logger
}

func NewLoader(connect Connector, table string, logger zerolog.Logger) *Loader {
	return &Loader{connect: connect, table: table, logger: logger}
}

// Load inserts rows one by one inside a single transaction and returns the
// number of rows committed. On any failure nothing is committed and a
// *LoadError is returned. Zero rows is a no-op that opens no connection.
func (l *Loader) Load(ctx context.Context, rows []CountryStatRow) (loaded int, err error) {
	if len(rows) == 0 {
		return 0, nil
	}

	conn, err := l.connect(ctx)
	if err != nil {
		l.logger.Err(err).Str("table", l.table).Msg("Error connecting to the database")
		return 0, &LoadError{Op: "connect", Row: -1, Err: err}
	}
	defer func() {
		if closeErr := conn.Close(ctx); closeErr != nil {
			l.logger.Warn().Err(closeErr).Msg("Error closing database connection")
		}
	}()

	tx, err := conn.Begin(ctx)
	if err != nil {
		l.logger.Err(err).Str("table", l.table).Msg("Error starting transaction")
		return 0, &LoadError{Op: "begin", Row: -1, Err: err}
	}

	columns := rows[0].Columns()
	for i, row := range rows {
		if err := tx.Insert(ctx, l.table, columns, row.Values()); err != nil {
			l.logger.Err(err).Str("table", l.table).Int("row", i).Str("country", row.Country).
				Msg("Error inserting row, rolling back")
			l.rollback(ctx, tx)
			return 0, &LoadError{Op: "insert", Row: i, Err: err}
		}
		l.logger.Trace().Fields(row.Map()).Msg("Inserted row")
	}

	if err := tx.Commit(ctx); err != nil {
		l.logger.Err(err).Str("table", l.table).Int("rows", len(rows)).Msg("Error committing transaction")
		return 0, &LoadError{Op: "commit", Row: -1, Err: err}
	}

	l.logger.Info().Str("table", l.table).Int("rows", len(rows)).
		Msgf("Successfully loaded %d records into %s", len(rows), l.table)
	return len(rows), nil
}

func (l *Loader) rollback(ctx context.Context, tx Tx) {
	if err := tx.Rollback(ctx); err != nil {
		l.logger.Warn().Err(err).Msg("Error rolling back transaction")
	}
}
