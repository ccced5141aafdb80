package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

var (
	ErrMissingDatabaseURL = errors.New("database url is not configured")
	ErrMissingAuthToken   = errors.New("database auth token is not configured")
	ErrUnsupportedScheme  = errors.New("unsupported database url scheme")
)

// BatchMode mirrors the libsql batch modes. Read batches run in a
// read-only transaction where the backend supports it.
type BatchMode string

const (
	BatchWrite    BatchMode = "write"
	BatchRead     BatchMode = "read"
	BatchDeferred BatchMode = "deferred"
)

// Statement is one SQL statement with positional "?" arguments.
type Statement struct {
	SQL  string
	Args []any
}

func NewStatement(sql string, args ...any) Statement {
	return Statement{SQL: sql, Args: args}
}

// ResultSet is the fully read result of one statement.
type ResultSet struct {
	Columns      []string
	Rows         []Row
	RowsAffected int64
}

// First returns the first row, if any.
func (r *ResultSet) First() (Row, bool) {
	if r == nil || len(r.Rows) == 0 {
		return nil, false
	}
	return r.Rows[0], true
}

// Database is the network SQL store. Every call is a self-contained
// request/response; Batch runs all statements in one transaction.
//
// InTx runs fn against a Database bound to a single transaction. Calls
// made through that Database, Batch included, join the transaction; it
// commits when fn returns nil and rolls back otherwise. fn must not use
// the outer Database.
type Database interface {
	Execute(ctx context.Context, sql string, args ...any) (*ResultSet, error)
	Batch(ctx context.Context, stmts []Statement, mode BatchMode) ([]*ResultSet, error)
	InTx(ctx context.Context, fn func(tx Database) error) error
	Dialect() string
	Close() error
}

// OpenDatabase picks a backend from the url scheme.
//
//   - libsql://, https://, wss:// : remote libsql, token required
//   - file:, :memory:             : local sqlite
//   - postgres://, postgresql://  : postgres via pgxpool, credentials in the url
func OpenDatabase(ctx context.Context, url, authToken string) (Database, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, ErrMissingDatabaseURL
	}
	switch {
	case strings.HasPrefix(url, "libsql://"), strings.HasPrefix(url, "https://"),
		strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "wss://"), strings.HasPrefix(url, "ws://"):
		if strings.TrimSpace(authToken) == "" {
			return nil, ErrMissingAuthToken
		}
		return OpenLibSQL(ctx, url, authToken)
	case strings.HasPrefix(url, "file:"), url == ":memory:":
		return OpenSQLite(ctx, url)
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return NewPostgresDatabase(ctx, url)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, redactURL(url))
}

// RequiresAuthToken reports whether url points at a remote libsql endpoint.
func RequiresAuthToken(url string) bool {
	for _, p := range []string{"libsql://", "https://", "http://", "wss://", "ws://"} {
		if strings.HasPrefix(url, p) {
			return true
		}
	}
	return false
}

func redactURL(url string) string {
	if i := strings.Index(url, "?"); i >= 0 {
		url = url[:i]
	}
	if at := strings.LastIndex(url, "@"); at >= 0 {
		if scheme := strings.Index(url, "://"); scheme >= 0 && scheme < at {
			return url[:scheme+3] + "***" + url[at:]
		}
	}
	return url
}

// returnsRows decides between Query and Exec on database/sql backends.
func returnsRows(sql string) bool {
	s := strings.ToUpper(strings.TrimSpace(sql))
	if strings.HasPrefix(s, "SELECT") || strings.HasPrefix(s, "WITH") || strings.HasPrefix(s, "PRAGMA") {
		return true
	}
	for _, word := range strings.Fields(s) {
		if word == "RETURNING" {
			return true
		}
	}
	return false
}
