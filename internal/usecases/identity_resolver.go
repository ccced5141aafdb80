package usecases

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"wacontacts/internal/entities"
	"wacontacts/internal/repository"
)

var (
	ErrNoIdentity        = errors.New("contact has neither wid nor lid")
	ErrResolutionFailure = errors.New("identity resolution failed")
)

// IdentityInput is what one observation knows about a contact.
type IdentityInput struct {
	WID     entities.Opt[string]
	LID     entities.Opt[string]
	Name    string
	Phone   string
	PhoneBR string
	Exists  bool
	Link    entities.Link
}

func identityFromContact(c entities.Contact, lid entities.Opt[string]) IdentityInput {
	return IdentityInput{
		WID:     c.WID,
		LID:     lid,
		Name:    c.Name,
		Phone:   c.Phone,
		PhoneBR: c.PhoneBR,
		Exists:  c.ThereIs,
		Link:    c.Link,
	}
}

func (in IdentityInput) contact() entities.Contact {
	link := entities.Link{}.Merge(in.Link)
	if in.WID.Valid {
		link = link.Add(in.WID.Value)
	}
	if in.LID.Valid {
		link = link.Add(in.LID.Value)
	}
	return entities.Contact{
		WID:     in.WID,
		Name:    in.Name,
		Phone:   in.Phone,
		PhoneBR: in.PhoneBR,
		ThereIs: in.Exists,
		Link:    link,
	}
}

type Resolution struct {
	ContactID int64
	Created   bool
	Promoted  bool
}

// IdentityResolver maps an observation to exactly one Contact row.
type IdentityResolver struct {
	contacts *repository.ContactRepository
	log      *zap.Logger
}

func NewIdentityResolver(contacts *repository.ContactRepository, logger *zap.Logger) *IdentityResolver {
	return &IdentityResolver{contacts: contacts, log: logger}
}

// on returns a resolver with the same logger writing through contacts.
func (r *IdentityResolver) on(contacts *repository.ContactRepository) *IdentityResolver {
	return &IdentityResolver{contacts: contacts, log: r.log}
}

func (r *IdentityResolver) Resolve(ctx context.Context, userID int64, in IdentityInput) (int64, error) {
	res, err := r.ResolveIdentity(ctx, userID, in)
	return res.ContactID, err
}

// ResolveIdentity applies the precedence wid, then the user's lid, then a
// fresh orphan. A wid seen for the first time together with a lid whose
// contact is still an orphan promotes that orphan in place.
func (r *IdentityResolver) ResolveIdentity(ctx context.Context, userID int64, in IdentityInput) (Resolution, error) {
	switch {
	case in.WID.Valid:
		return r.resolveWID(ctx, userID, in)
	case in.LID.Valid:
		return r.resolveLID(ctx, userID, in)
	}
	return Resolution{}, ErrNoIdentity
}

func (r *IdentityResolver) resolveWID(ctx context.Context, userID int64, in IdentityInput) (Resolution, error) {
	c := in.contact()
	existing, err := r.contacts.GetByWID(ctx, in.WID.Value)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: %w", ErrResolutionFailure, err)
	}

	if existing == nil && in.LID.Valid {
		orphan, err := r.contacts.FindByUserLID(ctx, userID, in.LID.Value)
		if err != nil {
			return Resolution{}, fmt.Errorf("%w: %w", ErrResolutionFailure, err)
		}
		if orphan != nil && !orphan.WID.Valid {
			c.Link = orphan.Link.Merge(c.Link)
			ok, err := r.contacts.PromoteOrphan(ctx, orphan.ID, c)
			if err != nil {
				return Resolution{}, fmt.Errorf("%w: %w", ErrResolutionFailure, err)
			}
			if ok {
				r.log.Info("orphan contact promoted",
					zap.Int64("contact_id", orphan.ID),
					zap.String("contact_wid", in.WID.Value),
					zap.String("contact_lid", in.LID.Value))
				return Resolution{ContactID: orphan.ID, Promoted: true}, nil
			}
		}
	}

	if existing != nil {
		c.Link = existing.Link.Merge(c.Link)
	}
	id, err := r.contacts.Upsert(ctx, c)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: %w", ErrResolutionFailure, err)
	}
	return Resolution{ContactID: id, Created: existing == nil}, nil
}

func (r *IdentityResolver) resolveLID(ctx context.Context, userID int64, in IdentityInput) (Resolution, error) {
	c := in.contact()
	found, err := r.contacts.FindByUserLID(ctx, userID, in.LID.Value)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: %w", ErrResolutionFailure, err)
	}
	if found != nil {
		c.Link = found.Link.Merge(c.Link)
		if err := r.contacts.Refresh(ctx, found.ID, c); err != nil {
			return Resolution{}, fmt.Errorf("%w: %w", ErrResolutionFailure, err)
		}
		return Resolution{ContactID: found.ID}, nil
	}

	id, err := r.contacts.InsertOrphan(ctx, c)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: %w", ErrResolutionFailure, err)
	}
	return Resolution{ContactID: id, Created: true}, nil
}
