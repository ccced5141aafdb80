package usecases

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wacontacts/internal/entities"
	"wacontacts/internal/interfaces"
)

func widRecord(phone, name string) entities.ContactRecord {
	wid := phone + "@c.us"
	return entities.ContactRecord{
		Contact: entities.Contact{
			WID: entities.Some(wid), Name: name, Phone: phone, PhoneBR: PhoneBR(phone),
			ThereIs: true, Link: entities.Link{wid},
		},
		Overlay: entities.ContactUser{Name: entities.OptString(name)},
	}
}

func lidRecord(lid, name string) entities.ContactRecord {
	return entities.ContactRecord{
		Contact: entities.Contact{Name: name, Link: entities.Link{lid}},
		Overlay: entities.ContactUser{LID: entities.Some(lid), Name: entities.OptString(name)},
	}
}

func TestSyncOneWritesOverlayAndMessage(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	rec := widRecord("5511999990000", "Ana")
	rec.Message = &entities.ContactMessage{MessageID: "M1", Body: entities.Some("oi"), Type: "chat"}

	require.True(t, e.engine.SyncOne(ctx, e.userID, rec))

	views, err := e.views.ListActive(ctx, e.userID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Ana", views[0].Overlay.Name.Value)
	require.NotNil(t, views[0].Message)
	assert.Equal(t, "M1", views[0].Message.MessageID)

	assert.False(t, e.engine.SyncOne(ctx, e.userID, entities.ContactRecord{}))
}

func TestSyncBatchCountsEveryItem(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	records := []entities.ContactRecord{
		widRecord("5511999990001", "A"),
		widRecord("5511999990002", "B"),
		{},
		widRecord("5511999990003", "C"),
		widRecord("5511999990001", "A again"),
		{Overlay: entities.ContactUser{LID: entities.Some("888@lid"), Name: entities.Some("orphan")}},
	}
	res := e.engine.SyncBatch(ctx, e.userID, records)
	assert.Equal(t, BatchResult{Saved: 5, Failed: 0, Skipped: 1}, res)
	assert.Equal(t, len(records)-res.Skipped, res.Saved+res.Failed)

	views, err := e.views.ListActive(ctx, e.userID)
	require.NoError(t, err)
	assert.Len(t, views, 4)

	again := e.engine.SyncBatch(ctx, e.userID, records)
	assert.Equal(t, res, again)
	views, err = e.views.ListActive(ctx, e.userID)
	require.NoError(t, err)
	assert.Len(t, views, 4)
}

func TestSyncBatchMergesLinksOfDuplicateWIDsInChunk(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	_, err := e.contacts.Upsert(ctx, widRecord("5511999990001", "A").Contact)
	require.NoError(t, err)

	first := widRecord("5511999990001", "A")
	first.Contact.Link = first.Contact.Link.Add("1@lid")
	first.Overlay.LID = entities.Some("1@lid")
	second := widRecord("5511999990001", "A")
	second.Contact.Link = second.Contact.Link.Add("2@lid")
	second.Overlay.LID = entities.Some("2@lid")

	res := e.engine.SyncBatch(ctx, e.userID, []entities.ContactRecord{first, second})
	assert.Equal(t, 2, res.Saved)

	c, err := e.contacts.GetByWID(ctx, "5511999990001@c.us")
	require.NoError(t, err)
	assert.Equal(t, entities.Link{"5511999990001@c.us", "1@lid", "2@lid"}, c.Link)
}

func TestSyncBatchFailedChunkDoesNotStopRun(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	db := &failingBatchDB{Database: e.db, failOn: "5511999990002@c.us"}
	engine := NewSyncEngine(db, e.resolver, SyncConfig{ChunkSize: 2}, zap.NewNop())

	records := []entities.ContactRecord{
		widRecord("5511999990001", "A"),
		widRecord("5511999990002", "B"),
		widRecord("5511999990003", "C"),
		widRecord("5511999990004", "D"),
		widRecord("5511999990005", "E"),
	}
	res := engine.SyncBatch(ctx, e.userID, records)
	assert.Equal(t, BatchResult{Saved: 3, Failed: 2}, res)
	assert.Equal(t, 3, db.batches)

	views, err := e.views.ListActive(ctx, e.userID)
	require.NoError(t, err)
	names := make([]string, 0, len(views))
	for _, v := range views {
		names = append(names, v.Contact.Name)
	}
	assert.Equal(t, []string{"C", "D", "E"}, names)
}

func TestSyncBatchFailedChunkLeavesNoOrphans(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	db := &failingBatchDB{Database: e.db, failOn: "555@lid"}
	failing := NewSyncEngine(db, e.resolver, SyncConfig{ChunkSize: 2}, zap.NewNop())

	records := []entities.ContactRecord{lidRecord("555@lid", "Dani")}
	for i := 0; i < 3; i++ {
		assert.Equal(t, BatchResult{Failed: 1}, failing.SyncBatch(ctx, e.userID, records))
	}
	assert.Zero(t, countContacts(t, e.db))

	assert.Equal(t, BatchResult{Saved: 1}, e.engine.SyncBatch(ctx, e.userID, records))
	assert.Equal(t, BatchResult{Saved: 1}, e.engine.SyncBatch(ctx, e.userID, records))
	assert.Equal(t, int64(1), countContacts(t, e.db))
}

func TestSyncBatchResolutionFailureFailsOnlyThatItem(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	db := &failingBatchDB{Database: e.db, failOn: "Zed", failExec: true}
	engine := NewSyncEngine(db, e.resolver, SyncConfig{ChunkSize: 3}, zap.NewNop())

	res := engine.SyncBatch(ctx, e.userID, []entities.ContactRecord{
		widRecord("5511999990001", "Ana"),
		lidRecord("1@lid", "Zed"),
		lidRecord("2@lid", "Yara"),
	})
	assert.Equal(t, BatchResult{Saved: 2, Failed: 1}, res)
	assert.Equal(t, int64(2), countContacts(t, e.db))

	views, err := e.views.ListActive(ctx, e.userID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, []string{"Ana", "Yara"}, []string{views[0].Contact.Name, views[1].Contact.Name})
}

func TestSyncBatchRepeatedIdentifiersInChunkShareContact(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	res := e.engine.SyncBatch(ctx, e.userID, []entities.ContactRecord{
		lidRecord("777@lid", "Bia"),
		lidRecord("777@lid", "Bia"),
	})
	assert.Equal(t, BatchResult{Saved: 2}, res)
	assert.Equal(t, int64(1), countContacts(t, e.db))

	withLID := widRecord("5511999990009", "Edu")
	withLID.Contact.Link = withLID.Contact.Link.Add("9@lid")
	withLID.Overlay.LID = entities.Some("9@lid")
	res = e.engine.SyncBatch(ctx, e.userID, []entities.ContactRecord{withLID, withLID})
	assert.Equal(t, BatchResult{Saved: 2}, res)
	assert.Equal(t, int64(2), countContacts(t, e.db))

	views, err := e.views.ListActive(ctx, e.userID)
	require.NoError(t, err)
	assert.Len(t, views, 2)
}

func TestSyncBatchConcurrentChunks(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	engine := NewSyncEngine(e.db, e.resolver, SyncConfig{ChunkSize: 3, Concurrency: 3}, zap.NewNop())

	records := make([]entities.ContactRecord, 0, 20)
	for i := 0; i < 20; i++ {
		records = append(records, widRecord(fmt.Sprintf("55119999900%02d", i), fmt.Sprintf("N%02d", i)))
	}
	res := engine.SyncBatch(ctx, e.userID, records)
	assert.Equal(t, BatchResult{Saved: 20}, res)

	stats, err := e.views.Stats(ctx, e.userID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), stats.ContactCount)
}

func TestSyncBatchCanceledContextFailsItems(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := e.engine.SyncBatch(ctx, e.userID, []entities.ContactRecord{
		widRecord("5511999990001", "A"),
		widRecord("5511999990002", "B"),
		widRecord("5511999990003", "C"),
	})
	assert.Equal(t, BatchResult{Failed: 3}, res)
}

func TestSyncBatchWithoutStore(t *testing.T) {
	engine := NewSyncEngine(nil, nil, SyncConfig{}, zap.NewNop())
	res := engine.SyncBatch(context.Background(), 1, []entities.ContactRecord{widRecord("5511999990001", "A"), {}})
	assert.Equal(t, BatchResult{Failed: 1, Skipped: 1}, res)
	assert.False(t, engine.SyncOne(context.Background(), 1, widRecord("5511999990001", "A")))
}

func TestSyncBatchPauses(t *testing.T) {
	e := newEnv(t)
	engine := NewSyncEngine(e.db, e.resolver, SyncConfig{
		ChunkSize: 1,
		Pause:     PausePolicy{Every: 2, Pause: 20 * time.Millisecond},
	}, zap.NewNop())

	started := time.Now()
	res := engine.SyncBatch(context.Background(), e.userID, []entities.ContactRecord{
		widRecord("5511999990001", "A"),
		widRecord("5511999990002", "B"),
		widRecord("5511999990003", "C"),
		widRecord("5511999990004", "D"),
	})
	assert.Equal(t, 4, res.Saved)
	assert.GreaterOrEqual(t, time.Since(started), 40*time.Millisecond)
}

func TestSyncMessageTracksUnread(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	require.True(t, e.engine.SyncOne(ctx, e.userID, widRecord("5511999990001", "A")))

	in := interfaces.MessageSnapshot{ID: "M1", ChatID: "5511999990001@c.us", Body: "oi", Type: "chat"}
	ok, err := e.engine.SyncMessage(ctx, e.userID, in.ChatID, in)
	require.NoError(t, err)
	require.True(t, ok)
	in.ID = "M2"
	_, err = e.engine.SyncMessage(ctx, e.userID, in.ChatID, in)
	require.NoError(t, err)

	view, err := e.views.FindByLink(ctx, e.userID, in.ChatID)
	require.NoError(t, err)
	require.NotNil(t, view.Message)
	assert.Equal(t, "M2", view.Message.MessageID)
	assert.Equal(t, 2, view.Message.UnreadCount)
	assert.True(t, view.Message.HasUnread)

	reply := interfaces.MessageSnapshot{ID: "M3", ChatID: in.ChatID, Type: "chat", Body: "ok", FromMe: true}
	_, err = e.engine.SyncMessage(ctx, e.userID, in.ChatID, reply)
	require.NoError(t, err)
	view, err = e.views.FindByLink(ctx, e.userID, in.ChatID)
	require.NoError(t, err)
	assert.Equal(t, 0, view.Message.UnreadCount)
	assert.False(t, view.Message.HasUnread)

	ok, err = e.engine.SyncMessage(ctx, e.userID, "5599000000000@c.us", in)
	require.NoError(t, err)
	assert.False(t, ok)
}
