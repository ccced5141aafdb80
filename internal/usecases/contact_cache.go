package usecases

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"wacontacts/internal/entities"
	"wacontacts/internal/interfaces"
	"wacontacts/internal/repository"
)

// ContactCache serves identifier lookups from storage and falls back to
// the live collaborator on a miss, writing the result through.
type ContactCache struct {
	views  *repository.ContactViewRepository
	engine *SyncEngine
	log    *zap.Logger
}

func NewContactCache(views *repository.ContactViewRepository, engine *SyncEngine, logger *zap.Logger) *ContactCache {
	return &ContactCache{views: views, engine: engine, log: logger}
}

// NormalizeIdentifier turns a bare phone number into a primary identifier.
func NormalizeIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	switch {
	case identifier == "":
		return ""
	case strings.HasSuffix(identifier, "@s.whatsapp.net"):
		return entities.WIDForPhone(entities.UserPart(identifier))
	case strings.Contains(identifier, "@"):
		return identifier
	}
	return entities.WIDForPhone(identifier)
}

// Lookup returns (nil, false, nil) when the identifier is unknown both in
// storage and on the live collaborator.
func (c *ContactCache) Lookup(ctx context.Context, userID int64, dir interfaces.Directory, identifier string) (*entities.ContactView, bool, error) {
	identifier = NormalizeIdentifier(identifier)
	if identifier == "" {
		return nil, false, nil
	}

	view, err := c.views.FindByLink(ctx, userID, identifier)
	if err != nil {
		return nil, false, fmt.Errorf("lookup %s: %w", identifier, err)
	}
	if view != nil {
		return view, true, nil
	}

	if dir == nil || !dir.Ready() {
		return nil, false, ErrSessionNotReady
	}
	exists, err := dir.Exists(ctx, identifier)
	if err != nil {
		return nil, false, fmt.Errorf("live lookup %s: %w", identifier, err)
	}
	if exists == nil {
		return nil, false, nil
	}

	model := interfaces.ContactModel{
		ID:           exists.WID,
		LID:          exists.LID,
		Name:         exists.Name,
		VerifiedName: exists.VerifiedName,
		IsBusiness:   entities.Some(exists.IsBusiness),
	}
	if model.ID == "" {
		model.ID = identifier
	}
	if model.LID == "" && entities.IsLID(identifier) {
		model.LID = identifier
	}
	enricher := NewEnricher(LoadLabels(ctx, dir, c.log))
	rec := enricher.Enrich(ctx, userID, ContactObservation{Model: model, Exists: true}, nil)

	entry, err := dir.LIDEntry(ctx, model.ID)
	if err != nil {
		c.log.Debug("lid entry unavailable", zap.String("identifier", identifier), zap.Error(err))
	} else if entry != nil {
		enricher.AdoptLID(&rec, entry)
	}

	if c.engine.SyncOne(ctx, userID, rec) {
		readBack := identifier
		if rec.Contact.WID.Valid {
			readBack = rec.Contact.WID.Value
		}
		view, err := c.views.FindByLink(ctx, userID, readBack)
		if err == nil && view != nil {
			return view, true, nil
		}
		if err != nil {
			c.log.Warn("re-read after write-through failed", zap.String("identifier", identifier), zap.Error(err))
		}
	}

	rec.Overlay.UserID = userID
	return &entities.ContactView{Contact: rec.Contact, Overlay: rec.Overlay, Message: rec.Message}, true, nil
}
