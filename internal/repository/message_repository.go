package repository

import (
	"context"
	"fmt"

	"wacontacts/internal/entities"
	"wacontacts/internal/infrastructure"
)

// Last write wins; there is no guard against older timestamps.
const upsertMessageSQL = `INSERT INTO contact_messages (contact_id, user_id, message_id, chat_id, body,
		type, timestamp_ms, ack, is_forwarded, unread_count, has_unread, exists_flag, created_at, updated_at)
	VALUES (%s, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	ON CONFLICT (contact_id, user_id) DO UPDATE SET
		message_id = excluded.message_id,
		chat_id = excluded.chat_id,
		body = excluded.body,
		type = excluded.type,
		timestamp_ms = excluded.timestamp_ms,
		ack = excluded.ack,
		is_forwarded = excluded.is_forwarded,
		unread_count = excluded.unread_count,
		has_unread = excluded.has_unread,
		exists_flag = excluded.exists_flag,
		updated_at = CURRENT_TIMESTAMP`

type MessageRepository struct {
	db infrastructure.Database
}

func NewMessageRepository(db infrastructure.Database) *MessageRepository {
	return &MessageRepository{db: db}
}

func messageArgs(m entities.ContactMessage) []any {
	body := m.Body
	if !entities.IsTextType(m.Type) {
		body = entities.None[string]()
	}
	return []any{
		m.UserID, m.MessageID, m.ChatID, body.Arg(), m.Type, m.TimestampMs,
		m.Ack, m.IsForwarded, m.UnreadCount, m.HasUnread, m.Exists,
	}
}

func (r *MessageRepository) UpsertStatement(m entities.ContactMessage) infrastructure.Statement {
	return infrastructure.NewStatement(fmt.Sprintf(upsertMessageSQL, "?"),
		append([]any{m.ContactID}, messageArgs(m)...)...)
}

func (r *MessageRepository) UpsertByWIDStatement(wid string, m entities.ContactMessage) infrastructure.Statement {
	return infrastructure.NewStatement(fmt.Sprintf(upsertMessageSQL, contactIDByWID),
		append([]any{wid}, messageArgs(m)...)...)
}

func (r *MessageRepository) Upsert(ctx context.Context, m entities.ContactMessage) error {
	st := r.UpsertStatement(m)
	if _, err := r.db.Execute(ctx, st.SQL, st.Args...); err != nil {
		return fmt.Errorf("upsert message %d/%d: %w", m.ContactID, m.UserID, err)
	}
	return nil
}

// Get returns nil when no snapshot is stored.
func (r *MessageRepository) Get(ctx context.Context, contactID, userID int64) (*entities.ContactMessage, error) {
	rs, err := r.db.Execute(ctx,
		`SELECT contact_id, user_id, message_id, chat_id, body, type, timestamp_ms, ack,
			is_forwarded, unread_count, has_unread, exists_flag
		FROM contact_messages WHERE contact_id = ? AND user_id = ?`,
		contactID, userID)
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	row, ok := rs.First()
	if !ok {
		return nil, nil
	}
	m := scanMessage(row, "type")
	return &m, nil
}
