package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wacontacts/internal/entities"
	"wacontacts/internal/infrastructure"
	"wacontacts/internal/repository"
	"wacontacts/internal/testutil"
)

type fixture struct {
	db        infrastructure.Database
	contacts  *repository.ContactRepository
	overlays  *repository.ContactUserRepository
	messages  *repository.MessageRepository
	views     *repository.ContactViewRepository
	userID    int64
	contactID int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewTestDatabase(t)
	f := &fixture{
		db:       db,
		contacts: repository.NewContactRepository(db),
		overlays: repository.NewContactUserRepository(db),
		messages: repository.NewMessageRepository(db),
		views:    repository.NewContactViewRepository(db),
		userID:   testutil.SeedUser(t, db, "owner@example.com", "5511900000000"),
	}
	id, err := f.contacts.Upsert(context.Background(), widContact("5511999990000@c.us", "Ana", "5511999990000"))
	require.NoError(t, err)
	f.contactID = id
	return f
}

func TestOverlayAbsentFieldsKeepStoredValues(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.overlays.Upsert(ctx, entities.ContactUser{
		ContactID:  f.contactID,
		UserID:     f.userID,
		Name:       entities.Some("Ana Paula"),
		PushName:   entities.Some("ana"),
		IsBusiness: entities.Some(true),
		Labels:     entities.Labels{{ID: "18", Name: "Lead"}},
	}))
	require.NoError(t, f.overlays.Upsert(ctx, entities.ContactUser{
		ContactID: f.contactID,
		UserID:    f.userID,
		LID:       entities.Some("123@lid"),
		PushName:  entities.Some("Ana P"),
	}))

	got, err := f.overlays.Get(ctx, f.contactID, f.userID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ana Paula", got.Name.Value)
	assert.Equal(t, "Ana P", got.PushName.Value)
	assert.Equal(t, "123@lid", got.LID.Value)
	assert.True(t, got.IsBusiness.Value)
	assert.False(t, got.VerifiedName.Valid)
	assert.Empty(t, got.Labels)
	assert.True(t, got.AssignedAt.Valid)
	assert.False(t, got.DeletedAt.Valid)
}

func TestOverlayByWIDStatement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	st, err := f.overlays.UpsertByWIDStatement("5511999990000@c.us", entities.ContactUser{
		UserID: f.userID, Type: entities.Some("in"),
	})
	require.NoError(t, err)
	_, err = f.db.Batch(ctx, []infrastructure.Statement{st}, infrastructure.BatchWrite)
	require.NoError(t, err)

	got, err := f.overlays.Get(ctx, f.contactID, f.userID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "in", got.Type.Value)
}

func TestOverlaySoftDeleteSurvivesReobservation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ov := entities.ContactUser{ContactID: f.contactID, UserID: f.userID, Name: entities.Some("Ana")}
	require.NoError(t, f.overlays.Upsert(ctx, ov))

	require.NoError(t, f.overlays.SetDeleted(ctx, f.contactID, f.userID, true))
	require.NoError(t, f.overlays.Upsert(ctx, ov))

	got, err := f.overlays.Get(ctx, f.contactID, f.userID)
	require.NoError(t, err)
	assert.True(t, got.DeletedAt.Valid)

	require.NoError(t, f.overlays.SetDeleted(ctx, f.contactID, f.userID, false))
	got, err = f.overlays.Get(ctx, f.contactID, f.userID)
	require.NoError(t, err)
	assert.False(t, got.DeletedAt.Valid)

	assert.ErrorIs(t, f.overlays.SetDeleted(ctx, f.contactID+100, f.userID, true), repository.ErrNotFound)
}

func TestMessageUpsertDropsNonTextBody(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.messages.Upsert(ctx, entities.ContactMessage{
		ContactID: f.contactID, UserID: f.userID, MessageID: "M1",
		Body: entities.Some("hello"), Type: "chat", TimestampMs: 1000, UnreadCount: 2, HasUnread: true,
	}))
	got, err := f.messages.Get(ctx, f.contactID, f.userID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hello", got.Body.Value)
	assert.Equal(t, 2, got.UnreadCount)

	require.NoError(t, f.messages.Upsert(ctx, entities.ContactMessage{
		ContactID: f.contactID, UserID: f.userID, MessageID: "M2",
		Body: entities.Some("caption"), Type: "image", TimestampMs: 500,
	}))
	got, err = f.messages.Get(ctx, f.contactID, f.userID)
	require.NoError(t, err)
	assert.Equal(t, "M2", got.MessageID)
	assert.False(t, got.Body.Valid)
	assert.Equal(t, int64(500), got.TimestampMs)
	assert.False(t, got.HasUnread)

	none, err := f.messages.Get(ctx, f.contactID, f.userID+1)
	require.NoError(t, err)
	assert.Nil(t, none)
}
