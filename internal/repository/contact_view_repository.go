package repository

import (
	"context"
	"fmt"

	"wacontacts/internal/entities"
	"wacontacts/internal/infrastructure"
)

// ContactViewRepository reads the contact views.
type ContactViewRepository struct {
	db infrastructure.Database
}

func NewContactViewRepository(db infrastructure.Database) *ContactViewRepository {
	return &ContactViewRepository{db: db}
}

func (r *ContactViewRepository) ListActive(ctx context.Context, userID int64) ([]entities.ContactView, error) {
	return r.list(ctx, "view_contacts_active", userID)
}

func (r *ContactViewRepository) ListDeleted(ctx context.Context, userID int64) ([]entities.ContactView, error) {
	return r.list(ctx, "view_contacts_deleted", userID)
}

func (r *ContactViewRepository) list(ctx context.Context, view string, userID int64) ([]entities.ContactView, error) {
	rs, err := r.db.Execute(ctx,
		"SELECT * FROM "+view+" WHERE user_id = ? ORDER BY name, contact_id", userID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", view, err)
	}
	return scanViews(rs)
}

// FindByLink returns the user's view of the contact whose link contains
// identifier, or nil. Soft-deleted overlays are included.
func (r *ContactViewRepository) FindByLink(ctx context.Context, userID int64, identifier string) (*entities.ContactView, error) {
	rs, err := r.db.Execute(ctx,
		"SELECT "+contactViewColumns+contactViewFrom+`
		WHERE cu.user_id = ? AND c.link LIKE ?
		ORDER BY c.wid IS NULL, cu.updated_at DESC
		LIMIT 1`,
		userID, linkPattern(identifier))
	if err != nil {
		return nil, fmt.Errorf("find by link: %w", err)
	}
	row, ok := rs.First()
	if !ok {
		return nil, nil
	}
	return scanContactView(row)
}

// Get returns nil when the user has no overlay for the contact.
func (r *ContactViewRepository) Get(ctx context.Context, userID, contactID int64) (*entities.ContactView, error) {
	rs, err := r.db.Execute(ctx,
		"SELECT "+contactViewColumns+contactViewFrom+" WHERE cu.user_id = ? AND c.id = ?",
		userID, contactID)
	if err != nil {
		return nil, fmt.Errorf("get contact view: %w", err)
	}
	row, ok := rs.First()
	if !ok {
		return nil, nil
	}
	return scanContactView(row)
}

// Stats returns zero counts for a user without overlays.
func (r *ContactViewRepository) Stats(ctx context.Context, userID int64) (entities.ContactStats, error) {
	stats := entities.ContactStats{UserID: userID}
	rs, err := r.db.Execute(ctx,
		`SELECT user_id, contact_count, deleted_count, unread_chats, unread_messages
		FROM view_user_contact_stats WHERE user_id = ?`, userID)
	if err != nil {
		return stats, fmt.Errorf("contact stats: %w", err)
	}
	if row, ok := rs.First(); ok {
		stats.ContactCount = row.Int64("contact_count")
		stats.DeletedCount = row.Int64("deleted_count")
		stats.UnreadChats = row.Int64("unread_chats")
		stats.UnreadMessages = row.Int64("unread_messages")
	}
	return stats, nil
}

func scanViews(rs *infrastructure.ResultSet) ([]entities.ContactView, error) {
	out := make([]entities.ContactView, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		v, err := scanContactView(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}
