package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
)

// PostgresDatabase runs the Database contract over a pgx pool. SQL is
// written with "?" placeholders and rebound to $n here.
type PostgresDatabase struct {
	Pool *pgxpool.Pool
}

func NewPostgresDatabase(ctx context.Context, connString string) (*PostgresDatabase, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	return &PostgresDatabase{Pool: pool}, nil
}

func (p *PostgresDatabase) Dialect() string { return DialectPostgres }

func (p *PostgresDatabase) Close() error {
	p.Pool.Close()
	return nil
}

func (p *PostgresDatabase) Execute(ctx context.Context, query string, args ...any) (*ResultSet, error) {
	rows, err := p.Pool.Query(ctx, Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	rs, err := collectRows(rows)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	return rs, nil
}

func (p *PostgresDatabase) Batch(ctx context.Context, stmts []Statement, mode BatchMode) ([]*ResultSet, error) {
	if len(stmts) == 0 {
		return nil, nil
	}
	opts := pgx.TxOptions{}
	if mode == BatchRead {
		opts.AccessMode = pgx.ReadOnly
	}
	tx, err := p.Pool.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("begin %s batch: %w", mode, err)
	}
	defer tx.Rollback(ctx)

	results, err := sendBatch(ctx, tx, stmts)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}
	return results, nil
}

func (p *PostgresDatabase) InTx(ctx context.Context, fn func(tx Database) error) error {
	tx, err := p.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// pgTx is the Database handed to an InTx callback.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Execute(ctx context.Context, query string, args ...any) (*ResultSet, error) {
	rows, err := t.tx.Query(ctx, Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	rs, err := collectRows(rows)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	return rs, nil
}

func (t *pgTx) Batch(ctx context.Context, stmts []Statement, _ BatchMode) ([]*ResultSet, error) {
	if len(stmts) == 0 {
		return nil, nil
	}
	return sendBatch(ctx, t.tx, stmts)
}

func (t *pgTx) InTx(_ context.Context, fn func(tx Database) error) error { return fn(t) }

func (t *pgTx) Dialect() string { return DialectPostgres }

// Close is a no-op; the owning InTx ends the transaction.
func (t *pgTx) Close() error { return nil }

func sendBatch(ctx context.Context, tx pgx.Tx, stmts []Statement) ([]*ResultSet, error) {
	batch := &pgx.Batch{}
	for _, st := range stmts {
		batch.Queue(Rebind(st.SQL), st.Args...)
	}
	br := tx.SendBatch(ctx, batch)
	results := make([]*ResultSet, 0, len(stmts))
	for i := range stmts {
		rows, err := br.Query()
		if err != nil {
			br.Close()
			return nil, fmt.Errorf("batch statement %d: %w", i, err)
		}
		rs, err := collectRows(rows)
		if err != nil {
			br.Close()
			return nil, fmt.Errorf("batch statement %d: %w", i, err)
		}
		results = append(results, rs)
	}
	if err := br.Close(); err != nil {
		return nil, fmt.Errorf("close batch: %w", err)
	}
	return results, nil
}

// Rebind turns "?" placeholders into postgres "$n" ones.
func Rebind(query string) string {
	return sqlx.Rebind(sqlx.DOLLAR, query)
}

func collectRows(rows pgx.Rows) (*ResultSet, error) {
	defer rows.Close()
	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}
	rs := &ResultSet{Columns: lowerAll(cols)}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		rs.Rows = append(rs.Rows, newRow(rs.Columns, values))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	if len(fields) > 0 {
		rs.RowsAffected = int64(len(rs.Rows))
	} else {
		rs.RowsAffected = rows.CommandTag().RowsAffected()
	}
	return rs, nil
}
