package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"wacontacts/internal/entities"
	"wacontacts/internal/infrastructure"
	"wacontacts/internal/interfaces"
	"wacontacts/internal/repository"
)

const (
	DefaultChunkSize   = 25
	DefaultConcurrency = 1
)

var errChunkAborted = errors.New("chunk transaction aborted")

// PausePolicy inserts a cooperative pause after every Every processed
// items. A zero policy never pauses.
type PausePolicy struct {
	Every int
	Pause time.Duration
}

type SyncConfig struct {
	ChunkSize   int
	Concurrency int
	Pause       PausePolicy
}

func (c SyncConfig) withDefaults() SyncConfig {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	return c
}

// BatchResult counts a bulk run. Saved+Failed covers every addressable
// item; unaddressable ones are only Skipped.
type BatchResult struct {
	Saved   int `json:"saved"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

type SyncEngine struct {
	db       infrastructure.Database
	contacts *repository.ContactRepository
	overlays *repository.ContactUserRepository
	messages *repository.MessageRepository
	views    *repository.ContactViewRepository
	resolver *IdentityResolver
	cfg      SyncConfig
	log      *zap.Logger
}

func NewSyncEngine(db infrastructure.Database, resolver *IdentityResolver, cfg SyncConfig, logger *zap.Logger) *SyncEngine {
	return &SyncEngine{
		db:       db,
		contacts: repository.NewContactRepository(db),
		overlays: repository.NewContactUserRepository(db),
		messages: repository.NewMessageRepository(db),
		views:    repository.NewContactViewRepository(db),
		resolver: resolver,
		cfg:      cfg.withDefaults(),
		log:      logger,
	}
}

// SyncOne resolves rec and writes its overlay and message together.
func (e *SyncEngine) SyncOne(ctx context.Context, userID int64, rec entities.ContactRecord) bool {
	_, err := e.syncOne(ctx, userID, rec)
	if err != nil {
		e.log.Warn("contact sync failed",
			zap.Int64("user_id", userID),
			zap.String("contact_wid", rec.Contact.WID.Value),
			zap.String("contact_lid", rec.Overlay.LID.Value),
			zap.Error(err))
		return false
	}
	return true
}

func (e *SyncEngine) syncOne(ctx context.Context, userID int64, rec entities.ContactRecord) (Resolution, error) {
	if e.db == nil {
		return Resolution{}, ErrStoreUnavailable
	}
	var res Resolution
	err := e.db.InTx(ctx, func(tx infrastructure.Database) error {
		te := e.bound(tx)
		var err error
		res, err = te.resolver.ResolveIdentity(ctx, userID, identityFromContact(rec.Contact, rec.Overlay.LID))
		if err != nil {
			return err
		}
		stmts, err := te.writeStatements(userID, res.ContactID, rec)
		if err != nil {
			return err
		}
		_, err = tx.Batch(ctx, stmts, infrastructure.BatchWrite)
		return err
	})
	if err != nil {
		return Resolution{}, err
	}
	return res, nil
}

// bound returns a copy of e whose repositories and resolver use db.
func (e *SyncEngine) bound(db infrastructure.Database) *SyncEngine {
	contacts := repository.NewContactRepository(db)
	return &SyncEngine{
		db:       db,
		contacts: contacts,
		overlays: repository.NewContactUserRepository(db),
		messages: repository.NewMessageRepository(db),
		views:    repository.NewContactViewRepository(db),
		resolver: e.resolver.on(contacts),
		cfg:      e.cfg,
		log:      e.log,
	}
}

func (e *SyncEngine) writeStatements(userID, contactID int64, rec entities.ContactRecord) ([]infrastructure.Statement, error) {
	ov := rec.Overlay
	ov.ContactID = contactID
	ov.UserID = userID
	st, err := e.overlays.UpsertStatement(ov)
	if err != nil {
		return nil, err
	}
	stmts := []infrastructure.Statement{st}
	if rec.Message != nil {
		m := *rec.Message
		m.ContactID = contactID
		m.UserID = userID
		stmts = append(stmts, e.messages.UpsertStatement(m))
	}
	return stmts, nil
}

func (e *SyncEngine) widStatements(userID int64, rec entities.ContactRecord) ([]infrastructure.Statement, error) {
	wid := rec.Contact.WID.Value
	cst, err := e.contacts.UpsertStatement(rec.Contact)
	if err != nil {
		return nil, err
	}
	ov := rec.Overlay
	ov.UserID = userID
	ost, err := e.overlays.UpsertByWIDStatement(wid, ov)
	if err != nil {
		return nil, err
	}
	stmts := []infrastructure.Statement{cst, ost}
	if rec.Message != nil {
		m := *rec.Message
		m.UserID = userID
		stmts = append(stmts, e.messages.UpsertByWIDStatement(wid, m))
	}
	return stmts, nil
}

// SyncBatch writes records chunk by chunk. A failed chunk fails all of
// its items and the run moves on to the next chunk.
func (e *SyncEngine) SyncBatch(ctx context.Context, userID int64, records []entities.ContactRecord) BatchResult {
	var result BatchResult
	items := make([]entities.ContactRecord, 0, len(records))
	for _, rec := range records {
		if !rec.Addressable() {
			result.Skipped++
			continue
		}
		items = append(items, rec)
	}
	if e.db == nil {
		result.Failed = len(items)
		return result
	}

	var (
		mu        sync.Mutex
		processed int
		g         errgroup.Group
	)
	g.SetLimit(e.cfg.Concurrency)

	for start := 0; start < len(items); start += e.cfg.ChunkSize {
		end := start + e.cfg.ChunkSize
		if end > len(items) {
			end = len(items)
		}
		chunk := items[start:end]

		if ctx.Err() != nil {
			mu.Lock()
			result.Failed += len(chunk)
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			var saved, failed int
			if ctx.Err() != nil {
				failed = len(chunk)
			} else {
				saved, failed = e.syncChunk(ctx, userID, chunk)
			}

			mu.Lock()
			result.Saved += saved
			result.Failed += failed
			before := processed
			processed += len(chunk)
			pause := e.cfg.Pause.Every > 0 && processed/e.cfg.Pause.Every > before/e.cfg.Pause.Every
			mu.Unlock()

			if pause && e.cfg.Pause.Pause > 0 {
				sleepCtx(ctx, e.cfg.Pause.Pause)
			}
			return nil
		})
	}
	_ = g.Wait()

	e.log.Info("batch sync finished",
		zap.Int64("user_id", userID),
		zap.Int("saved", result.Saved),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped))
	return result
}

// syncChunk writes chunk in one transaction and returns how many items
// were saved and failed. Nothing from a failed chunk stays behind.
func (e *SyncEngine) syncChunk(ctx context.Context, userID int64, chunk []entities.ContactRecord) (int, int) {
	var saved, failed int
	err := e.db.InTx(ctx, func(tx infrastructure.Database) error {
		var err error
		saved, failed, err = e.bound(tx).writeChunk(ctx, userID, chunk)
		return err
	})
	if err != nil {
		e.log.Error("chunk write failed", zap.Int64("user_id", userID), zap.Int("items", len(chunk)), zap.Error(err))
		return 0, len(chunk)
	}
	return saved, failed
}

// writeChunk runs inside the chunk transaction. Items with a known wid, or
// a new wid and no lid, are queued as statements keyed by wid. The others
// go through the resolver after the queue is flushed, so repeats of one
// identifier within the chunk land on the same contact.
func (e *SyncEngine) writeChunk(ctx context.Context, userID int64, chunk []entities.ContactRecord) (int, int, error) {
	wids := make([]string, 0, len(chunk))
	for _, rec := range chunk {
		if rec.Contact.WID.Valid {
			wids = append(wids, rec.Contact.WID.Value)
		}
	}
	known, err := e.contacts.PrefetchByWIDs(ctx, wids)
	if err != nil {
		return 0, 0, err
	}

	var (
		queued   []infrastructure.Statement
		included int
		failed   int
	)
	for _, rec := range chunk {
		var itemStmts []infrastructure.Statement
		wid := rec.Contact.WID.Value
		stored, isKnown := known[wid]

		if rec.Contact.WID.Valid && (isKnown || !rec.Overlay.LID.Valid) {
			if isKnown {
				rec.Contact.Link = stored.Link.Merge(rec.Contact.Link)
			}
			itemStmts, err = e.widStatements(userID, rec)
			if err == nil {
				known[wid] = rec.Contact
			}
		} else {
			if len(queued) > 0 {
				if _, err := e.db.Batch(ctx, queued, infrastructure.BatchWrite); err != nil {
					return 0, 0, err
				}
				queued = nil
			}
			var contact *entities.Contact
			itemStmts, contact, err = e.resolveItem(ctx, userID, rec)
			if errors.Is(err, errChunkAborted) {
				return 0, 0, err
			}
			if contact != nil && contact.WID.Valid {
				known[contact.WID.Value] = *contact
			}
		}

		if err != nil {
			failed++
			e.log.Warn("contact sync failed",
				zap.Int64("user_id", userID),
				zap.String("contact_wid", wid),
				zap.String("contact_lid", rec.Overlay.LID.Value),
				zap.Error(err))
			continue
		}
		queued = append(queued, itemStmts...)
		included++
	}

	if len(queued) > 0 {
		if _, err := e.db.Batch(ctx, queued, infrastructure.BatchWrite); err != nil {
			return 0, 0, err
		}
	}
	return included, failed, nil
}

// resolveItem resolves rec under a savepoint, so a failure undoes only
// this item's writes. It returns the item's statements and the contact as
// stored after resolution.
func (e *SyncEngine) resolveItem(ctx context.Context, userID int64, rec entities.ContactRecord) ([]infrastructure.Statement, *entities.Contact, error) {
	if _, err := e.db.Execute(ctx, "SAVEPOINT resolve_item"); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", errChunkAborted, err)
	}
	stmts, contact, err := e.resolveAndBuild(ctx, userID, rec)
	if err != nil {
		for _, undo := range []string{"ROLLBACK TO SAVEPOINT resolve_item", "RELEASE SAVEPOINT resolve_item"} {
			if _, rerr := e.db.Execute(ctx, undo); rerr != nil {
				return nil, nil, fmt.Errorf("%w: %w", errChunkAborted, rerr)
			}
		}
		return nil, nil, err
	}
	if _, err := e.db.Execute(ctx, "RELEASE SAVEPOINT resolve_item"); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", errChunkAborted, err)
	}
	return stmts, contact, nil
}

func (e *SyncEngine) resolveAndBuild(ctx context.Context, userID int64, rec entities.ContactRecord) ([]infrastructure.Statement, *entities.Contact, error) {
	res, err := e.resolver.ResolveIdentity(ctx, userID, identityFromContact(rec.Contact, rec.Overlay.LID))
	if err != nil {
		return nil, nil, err
	}
	stmts, err := e.writeStatements(userID, res.ContactID, rec)
	if err != nil {
		return nil, nil, err
	}
	contact, err := e.contacts.GetByID(ctx, res.ContactID)
	if err != nil {
		return nil, nil, err
	}
	return stmts, contact, nil
}

// SyncMessage writes a message snapshot for a contact the user already
// has. It reports false when the chat is not a known contact.
func (e *SyncEngine) SyncMessage(ctx context.Context, userID int64, identifier string, snap interfaces.MessageSnapshot) (bool, error) {
	if e.db == nil {
		return false, ErrStoreUnavailable
	}
	view, err := e.views.FindByLink(ctx, userID, identifier)
	if err != nil {
		return false, err
	}
	if view == nil {
		return false, nil
	}

	unread := 0
	if view.Message != nil {
		unread = view.Message.UnreadCount
	}
	if snap.FromMe {
		unread = 0
	} else {
		unread++
	}
	chat := &interfaces.Chat{ID: identifier, UnreadCount: unread}
	msg := messagePayload(userID, snap, chat, view.Contact.ThereIs)
	msg.ContactID = view.Contact.ID
	if err := e.messages.Upsert(ctx, *msg); err != nil {
		return false, err
	}
	return true, nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
