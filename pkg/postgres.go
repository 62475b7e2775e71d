package pkg

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// pgConnLike is the subset of *pgx.Conn used here, so tests can substitute it.
type pgConnLike interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Close(ctx context.Context) error
}

type pgConn struct {
	conn pgConnLike
}

// ConnectPostgres opens a single, unpooled connection.
func ConnectPostgres(ctx context.Context, dsn string) (Conn, error) {
	c, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed connecting to postgres: %w", err)
	}
	return &pgConn{conn: c}, nil
}

func (p *pgConn) Begin(ctx context.Context) (Tx, error) {
	tx, err := p.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgTx{tx: tx}, nil
}

func (p *pgConn) Close(ctx context.Context) error {
	return p.conn.Close(ctx)
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Insert(ctx context.Context, table string, columns []string, values []interface{}) error {
	tag, err := t.tx.Exec(ctx, postgresInsert(table, columns), values...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("expected 1 row inserted, got %d", tag.RowsAffected())
	}
	return nil
}

func (t *pgTx) Commit(ctx context.Context) error { return t.tx.Commit(ctx) }

func (t *pgTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

// postgresInsert builds a positional INSERT. A dotted table name is treated as
// schema.table.
func postgresInsert(table string, columns []string) string {
	idents := make([]string, len(columns))
	params := make([]string, len(columns))
	for i, c := range columns {
		idents[i] = pgx.Identifier{c}.Sanitize()
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		pgx.Identifier(strings.Split(table, ".")).Sanitize(),
		strings.Join(idents, ", "),
		strings.Join(params, ", "),
	)
}
