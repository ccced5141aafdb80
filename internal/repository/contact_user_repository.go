package repository

import (
	"context"
	"fmt"

	"wacontacts/internal/entities"
	"wacontacts/internal/infrastructure"
)

// Absent optional fields keep the stored value; deleted_at is never
// touched by an upsert, so a re-observed contact stays soft-deleted.
const upsertOverlaySQL = `INSERT INTO contacts_users (contact_id, user_id, lid, is_business,
		is_contact_sync_completed, is_enterprise, is_group, name, pushname, short_name,
		sync_to_addressbook, type, verified_name, wa_labels, assigned_at, created_at, updated_at)
	VALUES (%s, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	ON CONFLICT (contact_id, user_id) DO UPDATE SET
		lid = COALESCE(excluded.lid, contacts_users.lid),
		is_business = COALESCE(excluded.is_business, contacts_users.is_business),
		is_contact_sync_completed = COALESCE(excluded.is_contact_sync_completed, contacts_users.is_contact_sync_completed),
		is_enterprise = COALESCE(excluded.is_enterprise, contacts_users.is_enterprise),
		is_group = excluded.is_group,
		name = COALESCE(excluded.name, contacts_users.name),
		pushname = COALESCE(excluded.pushname, contacts_users.pushname),
		short_name = COALESCE(excluded.short_name, contacts_users.short_name),
		sync_to_addressbook = COALESCE(excluded.sync_to_addressbook, contacts_users.sync_to_addressbook),
		type = COALESCE(excluded.type, contacts_users.type),
		verified_name = COALESCE(excluded.verified_name, contacts_users.verified_name),
		wa_labels = excluded.wa_labels,
		updated_at = CURRENT_TIMESTAMP`

const contactIDByWID = "(SELECT id FROM contacts WHERE wid = ?)"

const overlayColumns = `contact_id, user_id, lid, is_business, is_contact_sync_completed, is_enterprise,
	is_group, name, pushname, short_name, sync_to_addressbook, type, verified_name, wa_labels,
	assigned_at, deleted_at`

type ContactUserRepository struct {
	db infrastructure.Database
}

func NewContactUserRepository(db infrastructure.Database) *ContactUserRepository {
	return &ContactUserRepository{db: db}
}

// UpsertStatement writes ov against ov.ContactID.
func (r *ContactUserRepository) UpsertStatement(ov entities.ContactUser) (infrastructure.Statement, error) {
	args, err := overlayArgs(ov)
	if err != nil {
		return infrastructure.Statement{}, err
	}
	return infrastructure.NewStatement(fmt.Sprintf(upsertOverlaySQL, "?"), append([]any{ov.ContactID}, args...)...), nil
}

// UpsertByWIDStatement resolves contact_id from wid inside the statement,
// for batches where the contact row is written earlier in the same batch.
func (r *ContactUserRepository) UpsertByWIDStatement(wid string, ov entities.ContactUser) (infrastructure.Statement, error) {
	args, err := overlayArgs(ov)
	if err != nil {
		return infrastructure.Statement{}, err
	}
	return infrastructure.NewStatement(fmt.Sprintf(upsertOverlaySQL, contactIDByWID), append([]any{wid}, args...)...), nil
}

func overlayArgs(ov entities.ContactUser) ([]any, error) {
	labels, err := encodeLabels(ov.Labels)
	if err != nil {
		return nil, fmt.Errorf("upsert overlay: %w", err)
	}
	return []any{
		ov.UserID,
		ov.LID.Arg(),
		ov.IsBusiness.Arg(),
		ov.IsContactSyncCompleted.Arg(),
		ov.IsEnterprise.Arg(),
		ov.IsGroup,
		ov.Name.Arg(),
		ov.PushName.Arg(),
		ov.ShortName.Arg(),
		ov.SyncToAddressbook.Arg(),
		ov.Type.Arg(),
		ov.VerifiedName.Arg(),
		labels,
	}, nil
}

func (r *ContactUserRepository) Upsert(ctx context.Context, ov entities.ContactUser) error {
	st, err := r.UpsertStatement(ov)
	if err != nil {
		return err
	}
	if _, err := r.db.Execute(ctx, st.SQL, st.Args...); err != nil {
		return fmt.Errorf("upsert overlay %d/%d: %w", ov.ContactID, ov.UserID, err)
	}
	return nil
}

// Get returns nil when the user has no overlay for the contact.
func (r *ContactUserRepository) Get(ctx context.Context, contactID, userID int64) (*entities.ContactUser, error) {
	rs, err := r.db.Execute(ctx,
		"SELECT "+overlayColumns+" FROM contacts_users WHERE contact_id = ? AND user_id = ?",
		contactID, userID)
	if err != nil {
		return nil, fmt.Errorf("get overlay: %w", err)
	}
	row, ok := rs.First()
	if !ok {
		return nil, nil
	}
	ov, err := scanOverlay(row, "name")
	if err != nil {
		return nil, err
	}
	return &ov, nil
}

// SetDeleted soft-deletes or restores the user's overlay. It returns
// ErrNotFound when no overlay exists.
func (r *ContactUserRepository) SetDeleted(ctx context.Context, contactID, userID int64, deleted bool) error {
	query := "UPDATE contacts_users SET deleted_at = NULL, updated_at = CURRENT_TIMESTAMP WHERE contact_id = ? AND user_id = ?"
	if deleted {
		query = "UPDATE contacts_users SET deleted_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP WHERE contact_id = ? AND user_id = ?"
	}
	rs, err := r.db.Execute(ctx, query, contactID, userID)
	if err != nil {
		return fmt.Errorf("set deleted: %w", err)
	}
	if rs.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
