package usecases

import (
	"context"

	"go.uber.org/zap"

	"wacontacts/internal/entities"
	"wacontacts/internal/interfaces"
)

// LabelDirectory resolves label ids to labels.
type LabelDirectory map[string]entities.Label

// LoadLabels reads the live label directory. A failing collaborator
// yields an empty directory so contacts still sync without labels.
func LoadLabels(ctx context.Context, dir interfaces.Directory, logger *zap.Logger) LabelDirectory {
	labels, err := dir.ListLabels(ctx)
	if err != nil {
		logger.Warn("label directory unavailable, syncing without labels", zap.Error(err))
		return LabelDirectory{}
	}
	out := make(LabelDirectory, len(labels))
	for _, l := range labels {
		out[l.ID] = l
	}
	return out
}

// Resolve maps ids to labels, deduplicated by id. Unknown ids keep the
// association with an empty name.
func (d LabelDirectory) Resolve(ids ...[]string) entities.Labels {
	var out entities.Labels
	for _, group := range ids {
		for _, id := range group {
			l, ok := d[id]
			if !ok {
				l = entities.Label{ID: id}
			}
			out = out.Merge(entities.Labels{l})
		}
	}
	if out == nil {
		out = entities.Labels{}
	}
	return out
}

// ContactObservation is one contact model with the live context it was
// seen in.
type ContactObservation struct {
	Model  interfaces.ContactModel
	Exists bool
	Chat   *interfaces.Chat
}

type Enricher struct {
	labels LabelDirectory
}

func NewEnricher(labels LabelDirectory) *Enricher {
	if labels == nil {
		labels = LabelDirectory{}
	}
	return &Enricher{labels: labels}
}

// Enrich builds the write payload for one observation. msg overrides the
// chat's last message when given.
func (e *Enricher) Enrich(ctx context.Context, userID int64, obs ContactObservation, msg *interfaces.MessageSnapshot) entities.ContactRecord {
	m := obs.Model
	var wid, lid entities.Opt[string]
	if entities.IsLID(m.ID) {
		lid = entities.OptString(m.ID)
	} else {
		wid = entities.OptString(m.ID)
		lid = entities.OptString(m.LID)
	}

	contact := entities.Contact{
		WID:     wid,
		Name:    firstNonEmpty(m.Name, m.PushName, m.VerifiedName),
		ThereIs: obs.Exists,
		Link:    entities.Link{}.Add(wid.Value).Add(lid.Value),
	}
	if wid.Valid && !entities.IsGroupID(wid.Value) {
		contact.Phone = entities.Digits(entities.UserPart(wid.Value))
		contact.PhoneBR = PhoneBR(contact.Phone)
	}

	var chatLabels []string
	if obs.Chat != nil {
		chatLabels = obs.Chat.LabelIDs
	}
	overlay := entities.ContactUser{
		UserID:                 userID,
		LID:                    lid,
		IsBusiness:             m.IsBusiness,
		IsContactSyncCompleted: entities.Some(m.IsContactSyncCompleted),
		IsEnterprise:           m.IsEnterprise,
		IsGroup:                m.IsGroup || entities.IsGroupID(m.ID),
		Name:                   entities.OptString(m.Name),
		PushName:               entities.OptString(m.PushName),
		ShortName:              entities.OptString(m.ShortName),
		SyncToAddressbook:      m.SyncToAddressbook,
		Type:                   entities.OptString(m.Type),
		VerifiedName:           entities.OptString(m.VerifiedName),
		Labels:                 e.labels.Resolve(m.LabelIDs, chatLabels),
	}

	rec := entities.ContactRecord{Contact: contact, Overlay: overlay}
	if msg == nil && obs.Chat != nil {
		msg = obs.Chat.LastMessage
	}
	if msg != nil {
		rec.Message = messagePayload(userID, *msg, obs.Chat, obs.Exists)
	}
	return rec
}

func messagePayload(userID int64, msg interfaces.MessageSnapshot, chat *interfaces.Chat, exists bool) *entities.ContactMessage {
	out := &entities.ContactMessage{
		UserID:      userID,
		MessageID:   msg.ID,
		ChatID:      msg.ChatID,
		Type:        msg.Type,
		TimestampMs: msg.TimestampMs,
		Ack:         msg.Ack,
		IsForwarded: msg.IsForwarded,
		Exists:      exists,
	}
	if entities.IsTextType(msg.Type) {
		out.Body = entities.Some(msg.Body)
	}
	if chat != nil {
		out.UnreadCount = chat.UnreadCount
		out.HasUnread = chat.UnreadCount > 0
	}
	return out
}

// MergeLabels adds the labels of extra whose id is not already in base.
func MergeLabels(base, extra entities.Labels) entities.Labels {
	return base.Merge(extra)
}

// AdoptLID folds a linked-identifier entry into rec: the lid joins the
// link and the overlay, the entry's name fills an empty overlay name and
// its labels are merged.
func (e *Enricher) AdoptLID(rec *entities.ContactRecord, entry *interfaces.LIDEntry) {
	if entry == nil || entry.LID == "" {
		return
	}
	rec.Contact.Link = rec.Contact.Link.Add(entry.LID)
	rec.Overlay.LID = entities.Some(entry.LID)
	if entry.Contact == nil {
		return
	}
	info := entry.Contact
	if !rec.Overlay.Name.Valid {
		if name := firstNonEmpty(info.Name, info.PushName); name != "" {
			rec.Overlay.Name = entities.Some(name)
		}
	}
	if !rec.Overlay.PushName.Valid {
		rec.Overlay.PushName = entities.OptString(info.PushName)
	}
	if rec.Contact.Name == "" {
		rec.Contact.Name = firstNonEmpty(info.Name, info.PushName, info.VerifiedName)
	}
	rec.Overlay.Labels = MergeLabels(rec.Overlay.Labels, e.labels.Resolve(info.LabelIDs))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
