package repository

import (
	"encoding/json"
	"errors"
	"fmt"

	"wacontacts/internal/entities"
	"wacontacts/internal/infrastructure"
)

var ErrNotFound = errors.New("record not found")

// JSON columns are serialized here and nowhere else.

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func encodeLink(l entities.Link) (string, error) {
	if l == nil {
		l = entities.Link{}
	}
	return encodeJSON(l)
}

func encodeLabels(l entities.Labels) (string, error) {
	if l == nil {
		l = entities.Labels{}
	}
	return encodeJSON(l)
}

func encodePhones(l entities.PhoneList) (string, error) {
	if l == nil {
		l = entities.PhoneList{}
	}
	return encodeJSON(l)
}

// linkPattern matches one serialized element of a JSON string array.
func linkPattern(identifier string) string {
	b, _ := json.Marshal(identifier)
	return "%" + string(b) + "%"
}

func scanContact(row infrastructure.Row, idColumn string) (entities.Contact, error) {
	c := entities.Contact{
		ID:        row.Int64(idColumn),
		WID:       row.OptString("wid"),
		Name:      row.String("name"),
		Phone:     row.String("phone"),
		PhoneBR:   row.String("phoneBR"),
		ThereIs:   row.Bool("there_is"),
		CreatedAt: row.Time("created_at"),
		UpdatedAt: row.Time("updated_at"),
	}
	if err := row.JSON("link", &c.Link); err != nil {
		return c, fmt.Errorf("scan contact: %w", err)
	}
	return c, nil
}

func scanOverlay(row infrastructure.Row, nameColumn string) (entities.ContactUser, error) {
	ov := entities.ContactUser{
		ContactID:              row.Int64("contact_id"),
		UserID:                 row.Int64("user_id"),
		LID:                    row.OptString("lid"),
		IsBusiness:             row.OptBool("is_business"),
		IsContactSyncCompleted: row.OptBool("is_contact_sync_completed"),
		IsEnterprise:           row.OptBool("is_enterprise"),
		IsGroup:                row.Bool("is_group"),
		Name:                   row.OptString(nameColumn),
		PushName:               row.OptString("pushname"),
		ShortName:              row.OptString("short_name"),
		SyncToAddressbook:      row.OptBool("sync_to_addressbook"),
		Type:                   row.OptString("type"),
		VerifiedName:           row.OptString("verified_name"),
		AssignedAt:             row.OptTime("assigned_at"),
		DeletedAt:              row.OptTime("deleted_at"),
	}
	if err := row.JSON("wa_labels", &ov.Labels); err != nil {
		return ov, fmt.Errorf("scan overlay: %w", err)
	}
	return ov, nil
}

func scanMessage(row infrastructure.Row, typeColumn string) entities.ContactMessage {
	return entities.ContactMessage{
		ContactID:   row.Int64("contact_id"),
		UserID:      row.Int64("user_id"),
		MessageID:   row.String("message_id"),
		ChatID:      row.String("chat_id"),
		Body:        row.OptString("body"),
		Type:        row.String(typeColumn),
		TimestampMs: row.Int64("timestamp_ms"),
		Ack:         row.Int("ack"),
		IsForwarded: row.Bool("is_forwarded"),
		UnreadCount: row.Int("unread_count"),
		HasUnread:   row.Bool("has_unread"),
		Exists:      row.Bool("exists_flag"),
	}
}

// scanContactView reads one row projected with contactViewColumns.
func scanContactView(row infrastructure.Row) (*entities.ContactView, error) {
	c, err := scanContact(row, "contact_id")
	if err != nil {
		return nil, err
	}
	ov, err := scanOverlay(row, "user_name")
	if err != nil {
		return nil, err
	}
	view := &entities.ContactView{Contact: c, Overlay: ov}
	if !row.IsNull("message_row_id") {
		m := scanMessage(row, "message_type")
		view.Message = &m
	}
	return view, nil
}
