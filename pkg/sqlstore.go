package pkg

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"
)

// SQLDialect describes how a database/sql driver spells identifiers and
// positional parameters. BindValue, when set, rewrites each argument before
// it reaches the driver.
type SQLDialect struct {
	DriverName  string
	QuoteIdent  func(name string) string
	Placeholder func(position int) string
	BindValue   func(v interface{}) interface{}
}

// SQLiteDialect stores dates as ISO-8601 text so SQLite's date functions can
// read them.
var SQLiteDialect = SQLDialect{
	DriverName:  "sqlite",
	QuoteIdent:  func(name string) string { return `"` + strings.ReplaceAll(name, `"`, `""`) + `"` },
	Placeholder: func(int) string { return "?" },
	BindValue:   bindDateText,
}

var SQLServerDialect = SQLDialect{
	DriverName:  "sqlserver",
	QuoteIdent:  func(name string) string { return "[" + strings.ReplaceAll(name, "]", "]]") + "]" },
	Placeholder: func(position int) string { return fmt.Sprintf("@p%d", position) },
}

func bindDateText(v interface{}) interface{} {
	if t, ok := v.(time.Time); ok {
		return t.Format(DateLayout)
	}
	return v
}

// Insert builds a positional INSERT. A dotted table name is quoted part by part.
func (d SQLDialect) Insert(table string, columns []string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = d.QuoteIdent(p)
	}
	idents := make([]string, len(columns))
	params := make([]string, len(columns))
	for i, c := range columns {
		idents[i] = d.QuoteIdent(c)
		params[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		strings.Join(parts, "."),
		strings.Join(idents, ", "),
		strings.Join(params, ", "),
	)
}

// sqlConn pins one connection out of the database/sql handle for the
// lifetime of a load.
type sqlConn struct {
	dialect SQLDialect
	db      *sql.DB
	conn    *sql.Conn
}

// ConnectSQL opens dsn with the dialect's driver and checks out a single
// connection.
func ConnectSQL(ctx context.Context, dialect SQLDialect, dsn string) (Conn, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("%s: DSN must not be empty", dialect.DriverName)
	}
	db, err := sql.Open(dialect.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", dialect.DriverName, err)
	}
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close() // nolint: errcheck
		return nil, fmt.Errorf("%s: connect: %w", dialect.DriverName, err)
	}
	return &sqlConn{dialect: dialect, db: db, conn: conn}, nil
}

func (c *sqlConn) Begin(ctx context.Context) (Tx, error) {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{dialect: c.dialect, tx: tx}, nil
}

func (c *sqlConn) Close(ctx context.Context) error {
	connErr := c.conn.Close()
	dbErr := c.db.Close()
	if connErr != nil {
		return connErr
	}
	return dbErr
}

type sqlTx struct {
	dialect SQLDialect
	tx      *sql.Tx
}

func (t *sqlTx) Insert(ctx context.Context, table string, columns []string, values []interface{}) error {
	if bind := t.dialect.BindValue; bind != nil {
		bound := make([]interface{}, len(values))
		for i, v := range values {
			bound[i] = bind(v)
		}
		values = bound
	}
	res, err := t.tx.ExecContext(ctx, t.dialect.Insert(table, columns), values...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n != 1 {
		return fmt.Errorf("expected 1 row inserted, got %d", n)
	}
	return nil
}

func (t *sqlTx) Commit(context.Context) error { return t.tx.Commit() }

func (t *sqlTx) Rollback(context.Context) error { return t.tx.Rollback() }
