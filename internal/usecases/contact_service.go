package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"wacontacts/internal/entities"
	"wacontacts/internal/infrastructure"
	"wacontacts/internal/interfaces"
	"wacontacts/internal/repository"
)

var (
	ErrNotAuthorized    = errors.New("session is not authorized")
	ErrSessionNotReady  = errors.New("session is not ready")
	ErrStoreUnavailable = errors.New("contact store is not configured")
	ErrContactNotFound  = errors.New("contact not found")
)

type SyncSummary struct {
	Success  bool `json:"success"`
	Total    int  `json:"total"`
	Saved    int  `json:"saved"`
	Failed   int  `json:"failed"`
	Skipped  int  `json:"skipped"`
	Promoted int  `json:"promoted"`
}

// ContactService is the entry point for every contact operation. Each
// call names its session explicitly and passes the auth gate first.
type ContactService struct {
	db       infrastructure.Database
	gate     *AuthGate
	engine   *SyncEngine
	cache    *ContactCache
	contacts *repository.ContactRepository
	overlays *repository.ContactUserRepository
	views    *repository.ContactViewRepository
	notifier interfaces.Notifier
	log      *zap.Logger
}

// NewContactService wires the engine over db. A nil db yields a service
// that refuses every operation with ErrStoreUnavailable.
func NewContactService(db infrastructure.Database, cfg SyncConfig, notifier interfaces.Notifier, logger *zap.Logger) *ContactService {
	if notifier == nil {
		notifier = infrastructure.NopNotifier{}
	}
	s := &ContactService{db: db, notifier: notifier, log: logger}
	if db == nil {
		return s
	}
	s.contacts = repository.NewContactRepository(db)
	s.overlays = repository.NewContactUserRepository(db)
	s.views = repository.NewContactViewRepository(db)
	s.gate = NewAuthGate(repository.NewUserRepository(db), logger)
	s.engine = NewSyncEngine(db, NewIdentityResolver(s.contacts, logger), cfg, logger)
	s.cache = NewContactCache(s.views, s.engine, logger)
	return s
}

func (s *ContactService) Engine() *SyncEngine { return s.engine }

// Authorize returns the user the session acts for.
func (s *ContactService) Authorize(ctx context.Context, session interfaces.Session) (int64, error) {
	if s.db == nil {
		return 0, ErrStoreUnavailable
	}
	if session == nil {
		return 0, ErrSessionNotReady
	}
	userID, ok := s.gate.Authorize(ctx, session.SessionIdentity())
	if !ok {
		return 0, ErrNotAuthorized
	}
	return userID, nil
}

// SyncAll scans the session's contacts and writes them in chunks.
func (s *ContactService) SyncAll(ctx context.Context, dir interfaces.Directory) (SyncSummary, error) {
	var summary SyncSummary
	userID, err := s.Authorize(ctx, dir)
	if err != nil {
		return summary, err
	}
	if !dir.Ready() {
		return summary, ErrSessionNotReady
	}
	started := time.Now()

	models, err := dir.ContactModels(ctx)
	if err != nil {
		return summary, fmt.Errorf("list contact models: %w", err)
	}
	summary.Total = len(models)

	chats := make(map[string]*interfaces.Chat)
	if list, err := dir.ListChats(ctx); err != nil {
		s.log.Warn("chat list unavailable, syncing without messages", zap.Int64("user_id", userID), zap.Error(err))
	} else {
		for i := range list {
			chats[list[i].ID] = &list[i]
		}
	}
	enricher := NewEnricher(LoadLabels(ctx, dir, s.log))

	records := make([]entities.ContactRecord, 0, len(models))
	byWID := make(map[string]int, len(models))
	var pending []interfaces.ContactModel
	for _, m := range models {
		if entities.IsLID(m.ID) {
			pending = append(pending, m)
			continue
		}
		rec := s.observe(ctx, userID, dir, enricher, chats, m)
		if !rec.Overlay.LID.Valid && rec.Contact.WID.Valid && !rec.Overlay.IsGroup {
			if entry, err := dir.LIDEntry(ctx, m.ID); err == nil && entry != nil {
				enricher.AdoptLID(&rec, entry)
			}
		}
		if rec.Contact.WID.Valid {
			byWID[rec.Contact.WID.Value] = len(records)
		}
		records = append(records, rec)
	}

	for _, m := range pending {
		rec := s.observe(ctx, userID, dir, enricher, chats, m)
		entry, err := dir.LIDEntry(ctx, m.ID)
		if err != nil || entry == nil || entry.Phone == "" {
			records = append(records, rec)
			continue
		}
		if entry.LID == "" {
			entry.LID = m.ID
		}

		existing, err := s.contacts.FindByPhone(ctx, entities.Digits(entry.Phone), PhoneBR(entry.Phone))
		if err != nil {
			s.log.Warn("phone lookup failed, keeping orphan", zap.String("contact_lid", m.ID), zap.Error(err))
			records = append(records, rec)
			continue
		}
		summary.Promoted++

		wid := entities.WIDForPhone(entry.Phone)
		phone := entities.Digits(entry.Phone)
		if existing != nil {
			wid, phone = existing.WID.Value, existing.Phone
		}
		if idx, ok := byWID[wid]; ok {
			enricher.AdoptLID(&records[idx], entry)
			continue
		}
		rec.Contact.WID = entities.Some(wid)
		rec.Contact.Phone = phone
		rec.Contact.PhoneBR = PhoneBR(phone)
		rec.Contact.Link = entities.Link{wid}.Merge(rec.Contact.Link)
		enricher.AdoptLID(&rec, entry)
		if existing != nil && existing.Name != "" {
			// An empty name keeps the stored one on upsert.
			rec.Contact.Name = ""
		}
		byWID[wid] = len(records)
		records = append(records, rec)
	}

	result := s.engine.SyncBatch(ctx, userID, records)
	summary.Success = true
	summary.Saved = result.Saved
	summary.Failed = result.Failed
	summary.Skipped = result.Skipped

	report := interfaces.SyncReport{
		UserID:   userID,
		Session:  dir.SessionIdentity(),
		Total:    summary.Total,
		Saved:    summary.Saved,
		Failed:   summary.Failed,
		Skipped:  summary.Skipped,
		Promoted: summary.Promoted,
		Duration: time.Since(started),
	}
	if err := s.notifier.NotifySync(ctx, report); err != nil {
		s.log.Warn("sync report not delivered", zap.Int64("user_id", userID), zap.Error(err))
	}
	s.log.Info("contact sync finished",
		zap.Int64("user_id", userID),
		zap.Int("total", summary.Total),
		zap.Int("saved", summary.Saved),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("promoted", summary.Promoted),
		zap.Duration("duration", report.Duration))
	return summary, nil
}

func (s *ContactService) observe(ctx context.Context, userID int64, dir interfaces.Directory, enricher *Enricher, chats map[string]*interfaces.Chat, m interfaces.ContactModel) entities.ContactRecord {
	chat := chats[m.ID]
	var msg *interfaces.MessageSnapshot
	if chat != nil {
		msgs, err := dir.RecentMessages(ctx, m.ID, 1)
		if err != nil {
			s.log.Debug("recent messages unavailable", zap.String("chat_id", m.ID), zap.Error(err))
		} else if len(msgs) > 0 {
			msg = &msgs[len(msgs)-1]
		}
	}
	return enricher.Enrich(ctx, userID, ContactObservation{Model: m, Exists: true, Chat: chat}, msg)
}

// Lookup resolves an identifier through the read-through cache.
func (s *ContactService) Lookup(ctx context.Context, dir interfaces.Directory, identifier string) (*entities.ContactView, bool, error) {
	userID, err := s.Authorize(ctx, dir)
	if err != nil {
		return nil, false, err
	}
	return s.cache.Lookup(ctx, userID, dir, identifier)
}

// ObserveMessage records a message snapshot for a known contact.
func (s *ContactService) ObserveMessage(ctx context.Context, session interfaces.Session, snap interfaces.MessageSnapshot) (bool, error) {
	userID, err := s.Authorize(ctx, session)
	if err != nil {
		return false, err
	}
	return s.engine.SyncMessage(ctx, userID, snap.ChatID, snap)
}

func (s *ContactService) SoftDelete(ctx context.Context, session interfaces.Session, contactID int64) error {
	return s.setDeleted(ctx, session, contactID, true)
}

func (s *ContactService) Restore(ctx context.Context, session interfaces.Session, contactID int64) error {
	return s.setDeleted(ctx, session, contactID, false)
}

func (s *ContactService) setDeleted(ctx context.Context, session interfaces.Session, contactID int64, deleted bool) error {
	userID, err := s.Authorize(ctx, session)
	if err != nil {
		return err
	}
	if err := s.overlays.SetDeleted(ctx, contactID, userID, deleted); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrContactNotFound
		}
		return err
	}
	return nil
}

func (s *ContactService) ListActive(ctx context.Context, session interfaces.Session) ([]entities.ContactView, error) {
	userID, err := s.Authorize(ctx, session)
	if err != nil {
		return nil, err
	}
	return s.views.ListActive(ctx, userID)
}

func (s *ContactService) ListDeleted(ctx context.Context, session interfaces.Session) ([]entities.ContactView, error) {
	userID, err := s.Authorize(ctx, session)
	if err != nil {
		return nil, err
	}
	return s.views.ListDeleted(ctx, userID)
}

func (s *ContactService) Stats(ctx context.Context, session interfaces.Session) (entities.ContactStats, error) {
	userID, err := s.Authorize(ctx, session)
	if err != nil {
		return entities.ContactStats{UserID: userID}, err
	}
	return s.views.Stats(ctx, userID)
}
