package infrastructure

import (
	"context"
	"database/sql"
	"fmt"
	neturl "net/url"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// SQLDatabase runs the Database contract over database/sql. It serves
// remote libsql and local sqlite.
type SQLDatabase struct {
	db      *sqlx.DB
	dialect string
}

func NewSQLDatabase(db *sqlx.DB, dialect string) *SQLDatabase {
	return &SQLDatabase{db: db, dialect: dialect}
}

// OpenLibSQL connects to a remote libsql endpoint.
func OpenLibSQL(ctx context.Context, url, authToken string) (*SQLDatabase, error) {
	u, err := neturl.Parse(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	q := u.Query()
	q.Set("authToken", authToken)
	u.RawQuery = q.Encode()

	db, err := sqlx.Open("libsql", u.String())
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	return NewSQLDatabase(db, DialectSQLite), nil
}

// OpenSQLite opens a local sqlite file or ":memory:". A single connection
// keeps in-memory databases stable and serializes writers.
func OpenSQLite(ctx context.Context, dsn string) (*SQLDatabase, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	return NewSQLDatabase(db, DialectSQLite), nil
}

func (d *SQLDatabase) Dialect() string { return d.dialect }

func (d *SQLDatabase) Close() error { return d.db.Close() }

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (d *SQLDatabase) Execute(ctx context.Context, query string, args ...any) (*ResultSet, error) {
	rs, err := runStatement(ctx, d.db, query, args)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	return rs, nil
}

func (d *SQLDatabase) Batch(ctx context.Context, stmts []Statement, mode BatchMode) ([]*ResultSet, error) {
	if len(stmts) == 0 {
		return nil, nil
	}
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin %s batch: %w", mode, err)
	}
	results := make([]*ResultSet, 0, len(stmts))
	for i, st := range stmts {
		rs, err := runStatement(ctx, tx, st.SQL, st.Args)
		if err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("batch statement %d: %w", i, err)
		}
		results = append(results, rs)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}
	return results, nil
}

func (d *SQLDatabase) InTx(ctx context.Context, fn func(tx Database) error) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&sqlTx{tx: tx, dialect: d.dialect}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// sqlTx is the Database handed to an InTx callback.
type sqlTx struct {
	tx      *sqlx.Tx
	dialect string
}

func (t *sqlTx) Execute(ctx context.Context, query string, args ...any) (*ResultSet, error) {
	rs, err := runStatement(ctx, t.tx, query, args)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	return rs, nil
}

func (t *sqlTx) Batch(ctx context.Context, stmts []Statement, _ BatchMode) ([]*ResultSet, error) {
	results := make([]*ResultSet, 0, len(stmts))
	for i, st := range stmts {
		rs, err := runStatement(ctx, t.tx, st.SQL, st.Args)
		if err != nil {
			return nil, fmt.Errorf("batch statement %d: %w", i, err)
		}
		results = append(results, rs)
	}
	return results, nil
}

func (t *sqlTx) InTx(_ context.Context, fn func(tx Database) error) error { return fn(t) }

func (t *sqlTx) Dialect() string { return t.dialect }

// Close is a no-op; the owning InTx ends the transaction.
func (t *sqlTx) Close() error { return nil }

func runStatement(ctx context.Context, q queryer, query string, args []any) (*ResultSet, error) {
	args = bindArgs(args)
	if !returnsRows(query) {
		res, err := q.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		n, _ := res.RowsAffected()
		return &ResultSet{RowsAffected: n}, nil
	}

	rows, err := q.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	rs := &ResultSet{Columns: lowerAll(cols)}
	for rows.Next() {
		m := map[string]any{}
		if err := rows.MapScan(m); err != nil {
			return nil, err
		}
		rs.Rows = append(rs.Rows, normalizeRow(m))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rs.RowsAffected = int64(len(rs.Rows))
	return rs, nil
}

// bindArgs stores booleans as 0/1, the sqlite representation.
func bindArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case bool:
			if v {
				out[i] = int64(1)
			} else {
				out[i] = int64(0)
			}
		case time.Time:
			out[i] = v.UTC().Format("2006-01-02 15:04:05")
		default:
			out[i] = a
		}
	}
	return out
}

func lowerAll(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = strings.ToLower(c)
	}
	return out
}
