// Package testutil provides an in-memory contact store for tests.
package testutil

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"wacontacts/internal/entities"
	"wacontacts/internal/infrastructure"
	"wacontacts/internal/repository"
)

// NewTestDatabase opens a migrated in-memory sqlite store closed with t.
func NewTestDatabase(t *testing.T) infrastructure.Database {
	t.Helper()
	ctx := context.Background()
	db, err := infrastructure.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, repository.Migrate(ctx, db))
	return db
}

// SeedUser inserts an active user whose profile phone is phone and
// returns its id.
func SeedUser(t *testing.T, db infrastructure.Database, email, phone string, waPhones ...string) int64 {
	t.Helper()
	ctx := context.Background()
	users := repository.NewUserRepository(db)

	user := &entities.User{
		Email:        email,
		PasswordHash: "x",
		Role:         entities.RoleUser,
		IsActive:     true,
	}
	require.NoError(t, users.Create(ctx, user))
	require.NoError(t, users.CreateProfile(ctx, &entities.Profile{
		UserID:   user.ID,
		Name:     strings.SplitN(email, "@", 2)[0],
		Phone:    phone,
		WAPhones: entities.PhoneList(waPhones),
	}))
	return user.ID
}
