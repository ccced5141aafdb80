package infrastructure

import (
	"context"
	"fmt"
	"sort"

	"go.mau.fi/whatsmeow/types"

	"wacontacts/internal/entities"
	"wacontacts/internal/interfaces"
)

var _ interfaces.Directory = (*WhatsAppClient)(nil)

func (w *WhatsAppClient) Exists(ctx context.Context, identifier string) (*interfaces.ExistsResult, error) {
	phone := entities.UserPart(identifier)
	if entities.IsLID(identifier) {
		pn, err := w.Client.Store.LIDs.GetPNForLID(ctx, types.NewJID(phone, types.HiddenUserServer))
		if err != nil {
			return nil, fmt.Errorf("lid to phone: %w", err)
		}
		if pn.IsEmpty() {
			return nil, nil
		}
		phone = pn.User
	}

	if w.Limiter != nil {
		if err := w.Limiter.Wait(ctx, w.UserID); err != nil {
			return nil, err
		}
	}
	resp, err := w.Client.IsOnWhatsApp(ctx, []string{"+" + phone})
	if err != nil {
		return nil, fmt.Errorf("is on whatsapp: %w", err)
	}
	if len(resp) == 0 || !resp[0].IsIn {
		return nil, nil
	}

	jid := resp[0].JID
	res := &interfaces.ExistsResult{WID: contactID(jid)}
	if resp[0].VerifiedName != nil {
		res.VerifiedName = resp[0].VerifiedName.Details.GetVerifiedName()
		res.IsBusiness = true
	}
	if lid, err := w.Client.Store.LIDs.GetLIDForPN(ctx, jid); err == nil && !lid.IsEmpty() {
		res.LID = contactID(lid)
	}
	if info, err := w.Client.Store.Contacts.GetContact(ctx, jid); err == nil && info.Found {
		res.Name = displayName(info)
	}
	if res.Name == "" {
		res.Name = res.VerifiedName
	}
	return res, nil
}

func (w *WhatsAppClient) LIDEntry(ctx context.Context, identifier string) (*interfaces.LIDEntry, error) {
	user := entities.UserPart(identifier)
	var lid, pn types.JID
	var err error
	if entities.IsLID(identifier) {
		lid = types.NewJID(user, types.HiddenUserServer)
		pn, err = w.Client.Store.LIDs.GetPNForLID(ctx, lid)
	} else {
		pn = types.NewJID(user, types.DefaultUserServer)
		lid, err = w.Client.Store.LIDs.GetLIDForPN(ctx, pn)
	}
	if err != nil {
		return nil, fmt.Errorf("lid mapping: %w", err)
	}
	if lid.IsEmpty() {
		return nil, nil
	}

	entry := &interfaces.LIDEntry{LID: contactID(lid)}
	lookup := lid
	if !pn.IsEmpty() {
		entry.Phone = pn.User
		lookup = pn
	}
	if info, err := w.Client.Store.Contacts.GetContact(ctx, lookup); err == nil && info.Found {
		model := contactModel(lookup, info)
		model.LID = entry.LID
		entry.Contact = &model
	}
	return entry, nil
}

func (w *WhatsAppClient) ListChats(ctx context.Context) ([]interfaces.Chat, error) {
	return w.Tracker.Chats(), nil
}

func (w *WhatsAppClient) RecentMessages(ctx context.Context, chatID string, limit int) ([]interfaces.MessageSnapshot, error) {
	return w.Tracker.Messages(chatID, limit), nil
}

func (w *WhatsAppClient) ListLabels(ctx context.Context) ([]entities.Label, error) {
	return w.Tracker.Labels(), nil
}

// ContactModels enumerates the device's contact store, ordered by id.
func (w *WhatsAppClient) ContactModels(ctx context.Context) ([]interfaces.ContactModel, error) {
	all, err := w.Client.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	chatLabels := make(map[string][]string)
	for _, c := range w.Tracker.Chats() {
		chatLabels[c.ID] = c.LabelIDs
	}

	models := make([]interfaces.ContactModel, 0, len(all))
	for jid, info := range all {
		if jid.Server != types.DefaultUserServer && jid.Server != types.HiddenUserServer {
			continue
		}
		m := contactModel(jid, info)
		m.LabelIDs = chatLabels[m.ID]
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

func contactModel(jid types.JID, info types.ContactInfo) interfaces.ContactModel {
	m := interfaces.ContactModel{
		ID:                     contactID(jid),
		Name:                   displayName(info),
		PushName:               info.PushName,
		ShortName:              info.FirstName,
		VerifiedName:           info.BusinessName,
		Type:                   "out",
		IsBusiness:             entities.Some(info.BusinessName != ""),
		IsContactSyncCompleted: info.Found,
		SyncToAddressbook:      entities.Some(info.FullName != ""),
	}
	if info.FullName != "" {
		m.Type = "in"
	}
	if jid.Server == types.HiddenUserServer {
		m.LID = m.ID
	}
	return m
}

func displayName(info types.ContactInfo) string {
	for _, n := range []string{info.FullName, info.FirstName, info.PushName, info.BusinessName} {
		if n != "" {
			return n
		}
	}
	return ""
}
