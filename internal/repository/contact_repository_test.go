package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wacontacts/internal/entities"
	"wacontacts/internal/repository"
	"wacontacts/internal/testutil"
)

func widContact(wid, name, phone string) entities.Contact {
	return entities.Contact{
		WID:     entities.Some(wid),
		Name:    name,
		Phone:   phone,
		PhoneBR: phone,
		ThereIs: true,
		Link:    entities.Link{wid},
	}
}

func TestContactUpsertKeepsIDAndStoredName(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewContactRepository(testutil.NewTestDatabase(t))

	id, err := repo.Upsert(ctx, widContact("5511999990000@c.us", "Ana", "5511999990000"))
	require.NoError(t, err)

	again := widContact("5511999990000@c.us", "", "5511999990000")
	again.Link = entities.Link{"5511999990000@c.us", "123@lid"}
	id2, err := repo.Upsert(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	got, err := repo.GetByWID(ctx, "5511999990000@c.us")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ana", got.Name)
	assert.True(t, got.ThereIs)
	assert.Equal(t, entities.Link{"5511999990000@c.us", "123@lid"}, got.Link)

	_, err = repo.Upsert(ctx, entities.Contact{Name: "no wid"})
	assert.Error(t, err)
}

func TestContactOrphanPromotion(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewContactRepository(testutil.NewTestDatabase(t))

	id, err := repo.InsertOrphan(ctx, entities.Contact{Name: "Bia", Link: entities.Link{"777@lid"}})
	require.NoError(t, err)

	orphan, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, orphan.WID.Valid)

	promoted := widContact("555199765256@c.us", "", "555199765256")
	promoted.Link = entities.Link{"777@lid", "555199765256@c.us"}
	ok, err := repo.PromoteOrphan(ctx, id, promoted)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.GetByWID(ctx, "555199765256@c.us")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "Bia", got.Name)

	ok, err = repo.PromoteOrphan(ctx, id, promoted)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestContactRefreshKeepsWID(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewContactRepository(testutil.NewTestDatabase(t))

	id, err := repo.Upsert(ctx, widContact("5511999990000@c.us", "Ana", "5511999990000"))
	require.NoError(t, err)
	require.NoError(t, repo.Refresh(ctx, id, entities.Contact{
		Name: "", ThereIs: false, Link: entities.Link{"5511999990000@c.us", "9@lid"},
	}))

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "5511999990000@c.us", got.WID.Value)
	assert.Equal(t, "Ana", got.Name)
	assert.Equal(t, "5511999990000", got.Phone)
	assert.False(t, got.ThereIs)
}

func TestContactLookups(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDatabase(t)
	repo := repository.NewContactRepository(db)
	overlays := repository.NewContactUserRepository(db)
	userID := testutil.SeedUser(t, db, "owner@example.com", "5511900000000")

	br := widContact("5511999990000@c.us", "Ana", "551199990000")
	br.PhoneBR = "5511999990000"
	anaID, err := repo.Upsert(ctx, br)
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, widContact("5521888880000@c.us", "Caio", "5521888880000"))
	require.NoError(t, err)
	orphanID, err := repo.InsertOrphan(ctx, entities.Contact{Phone: "5511999990000", Link: entities.Link{"1@lid"}})
	require.NoError(t, err)

	found, err := repo.FindByPhone(ctx, "5511999990000", "5511999990000")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, anaID, found.ID)

	missing, err := repo.FindByPhone(ctx, "000", "000")
	require.NoError(t, err)
	assert.Nil(t, missing)

	byWID, err := repo.PrefetchByWIDs(ctx, []string{"5511999990000@c.us", "5521888880000@c.us", "nobody@c.us"})
	require.NoError(t, err)
	assert.Len(t, byWID, 2)
	assert.Equal(t, "Caio", byWID["5521888880000@c.us"].Name)

	empty, err := repo.PrefetchByWIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, overlays.Upsert(ctx, entities.ContactUser{
		ContactID: orphanID, UserID: userID, LID: entities.Some("1@lid"),
	}))
	byLID, err := repo.FindByUserLID(ctx, userID, "1@lid")
	require.NoError(t, err)
	require.NotNil(t, byLID)
	assert.Equal(t, orphanID, byLID.ID)

	other, err := repo.FindByUserLID(ctx, userID+1, "1@lid")
	require.NoError(t, err)
	assert.Nil(t, other)
}
