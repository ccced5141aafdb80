package usecases

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wacontacts/internal/infrastructure"
	"wacontacts/internal/interfaces"
	"wacontacts/internal/repository"
	"wacontacts/internal/testutil"
)

const ownerPhone = "5511900000000"

type env struct {
	db       infrastructure.Database
	userID   int64
	contacts *repository.ContactRepository
	overlays *repository.ContactUserRepository
	messages *repository.MessageRepository
	views    *repository.ContactViewRepository
	resolver *IdentityResolver
	engine   *SyncEngine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewTestDatabase(t)
	contacts := repository.NewContactRepository(db)
	resolver := NewIdentityResolver(contacts, zap.NewNop())
	return &env{
		db:       db,
		userID:   testutil.SeedUser(t, db, "owner@example.com", ownerPhone),
		contacts: contacts,
		overlays: repository.NewContactUserRepository(db),
		messages: repository.NewMessageRepository(db),
		views:    repository.NewContactViewRepository(db),
		resolver: resolver,
		engine:   NewSyncEngine(db, resolver, SyncConfig{ChunkSize: 2}, zap.NewNop()),
	}
}

// failingBatchDB fails every Batch whose statements include failOn,
// inside or outside a transaction, and passes everything else to the
// wrapped store. With failExec, Execute calls inside a transaction that
// carry failOn fail too.
type failingBatchDB struct {
	infrastructure.Database
	mu       sync.Mutex
	failOn   string
	failExec bool
	batches  int
}

func (f *failingBatchDB) Batch(ctx context.Context, stmts []infrastructure.Statement, mode infrastructure.BatchMode) ([]*infrastructure.ResultSet, error) {
	return f.batch(ctx, f.Database, stmts, mode)
}

func (f *failingBatchDB) InTx(ctx context.Context, fn func(tx infrastructure.Database) error) error {
	return f.Database.InTx(ctx, func(tx infrastructure.Database) error {
		return fn(&failingTx{Database: tx, parent: f})
	})
}

func (f *failingBatchDB) batch(ctx context.Context, db infrastructure.Database, stmts []infrastructure.Statement, mode infrastructure.BatchMode) ([]*infrastructure.ResultSet, error) {
	f.mu.Lock()
	f.batches++
	f.mu.Unlock()
	for _, st := range stmts {
		if hasArg(st.Args, f.failOn) {
			return nil, errors.New("injected batch failure")
		}
	}
	return db.Batch(ctx, stmts, mode)
}

func hasArg(args []any, want string) bool {
	for _, a := range args {
		if s, ok := a.(string); ok && s == want {
			return true
		}
	}
	return false
}

type failingTx struct {
	infrastructure.Database
	parent *failingBatchDB
}

func (t *failingTx) Batch(ctx context.Context, stmts []infrastructure.Statement, mode infrastructure.BatchMode) ([]*infrastructure.ResultSet, error) {
	return t.parent.batch(ctx, t.Database, stmts, mode)
}

func (t *failingTx) Execute(ctx context.Context, query string, args ...any) (*infrastructure.ResultSet, error) {
	if t.parent.failExec && hasArg(args, t.parent.failOn) {
		return nil, errors.New("injected execute failure")
	}
	return t.Database.Execute(ctx, query, args...)
}

func (t *failingTx) InTx(_ context.Context, fn func(tx infrastructure.Database) error) error {
	return fn(t)
}

func countContacts(t *testing.T, db infrastructure.Database) int64 {
	t.Helper()
	rs, err := db.Execute(context.Background(), "SELECT COUNT(*) AS n FROM contacts")
	require.NoError(t, err)
	row, _ := rs.First()
	return row.Int64("n")
}

type recordingNotifier struct {
	mu      sync.Mutex
	reports []interfaces.SyncReport
	err     error
}

func (n *recordingNotifier) NotifySync(_ context.Context, r interfaces.SyncReport) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, r)
	return n.err
}
