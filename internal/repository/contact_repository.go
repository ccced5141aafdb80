package repository

import (
	"context"
	"fmt"
	"strings"

	"wacontacts/internal/entities"
	"wacontacts/internal/infrastructure"
)

const contactColumns = "id, wid, name, phone, phoneBR, there_is, link, created_at, updated_at"

const upsertContactSQL = `INSERT INTO contacts (wid, name, phone, phoneBR, there_is, link, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	ON CONFLICT (wid) DO UPDATE SET
		name = COALESCE(NULLIF(excluded.name, ''), contacts.name),
		phone = excluded.phone,
		phoneBR = excluded.phoneBR,
		there_is = excluded.there_is,
		link = excluded.link,
		updated_at = CURRENT_TIMESTAMP
	RETURNING id`

// ContactRepository writes the tenant-global contacts table.
type ContactRepository struct {
	db infrastructure.Database
}

func NewContactRepository(db infrastructure.Database) *ContactRepository {
	return &ContactRepository{db: db}
}

// UpsertStatement keys the write on wid. c.Link must already hold the
// union of the stored and observed identifiers.
func (r *ContactRepository) UpsertStatement(c entities.Contact) (infrastructure.Statement, error) {
	if !c.WID.Valid {
		return infrastructure.Statement{}, fmt.Errorf("upsert contact: wid required")
	}
	link, err := encodeLink(c.Link)
	if err != nil {
		return infrastructure.Statement{}, fmt.Errorf("upsert contact: %w", err)
	}
	return infrastructure.NewStatement(upsertContactSQL,
		c.WID.Value, c.Name, c.Phone, c.PhoneBR, c.ThereIs, link), nil
}

// Upsert inserts or refreshes the contact with c.WID and returns its id.
func (r *ContactRepository) Upsert(ctx context.Context, c entities.Contact) (int64, error) {
	st, err := r.UpsertStatement(c)
	if err != nil {
		return 0, err
	}
	rs, err := r.db.Execute(ctx, st.SQL, st.Args...)
	if err != nil {
		return 0, fmt.Errorf("upsert contact %s: %w", c.WID.Value, err)
	}
	return returnedID(rs, "upsert contact")
}

// InsertOrphan stores a contact known only through a linked identifier.
func (r *ContactRepository) InsertOrphan(ctx context.Context, c entities.Contact) (int64, error) {
	link, err := encodeLink(c.Link)
	if err != nil {
		return 0, fmt.Errorf("insert orphan: %w", err)
	}
	rs, err := r.db.Execute(ctx,
		`INSERT INTO contacts (wid, name, phone, phoneBR, there_is, link, created_at, updated_at)
		VALUES (NULL, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP) RETURNING id`,
		c.Name, c.Phone, c.PhoneBR, c.ThereIs, link)
	if err != nil {
		return 0, fmt.Errorf("insert orphan: %w", err)
	}
	return returnedID(rs, "insert orphan")
}

// Refresh updates the mutable fields of contact id in place. The wid is
// never touched; name keeps the stored value when c.Name is empty.
func (r *ContactRepository) Refresh(ctx context.Context, id int64, c entities.Contact) error {
	link, err := encodeLink(c.Link)
	if err != nil {
		return fmt.Errorf("refresh contact: %w", err)
	}
	_, err = r.db.Execute(ctx,
		`UPDATE contacts SET
			name = COALESCE(NULLIF(?, ''), name),
			phone = COALESCE(NULLIF(?, ''), phone),
			phoneBR = COALESCE(NULLIF(?, ''), phoneBR),
			there_is = ?,
			link = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		c.Name, c.Phone, c.PhoneBR, c.ThereIs, link, id)
	if err != nil {
		return fmt.Errorf("refresh contact %d: %w", id, err)
	}
	return nil
}

// PromoteOrphan gives an orphan its wid. It reports false when the row
// is gone or already has a wid.
func (r *ContactRepository) PromoteOrphan(ctx context.Context, id int64, c entities.Contact) (bool, error) {
	link, err := encodeLink(c.Link)
	if err != nil {
		return false, fmt.Errorf("promote orphan: %w", err)
	}
	rs, err := r.db.Execute(ctx,
		`UPDATE contacts SET
			wid = ?,
			name = COALESCE(NULLIF(?, ''), name),
			phone = ?,
			phoneBR = ?,
			there_is = ?,
			link = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND wid IS NULL`,
		c.WID.Value, c.Name, c.Phone, c.PhoneBR, c.ThereIs, link, id)
	if err != nil {
		return false, fmt.Errorf("promote orphan %d: %w", id, err)
	}
	return rs.RowsAffected > 0, nil
}

// GetByWID returns nil when no contact has the wid.
func (r *ContactRepository) GetByWID(ctx context.Context, wid string) (*entities.Contact, error) {
	return r.getOne(ctx, "SELECT "+contactColumns+" FROM contacts WHERE wid = ?", wid)
}

func (r *ContactRepository) GetByID(ctx context.Context, id int64) (*entities.Contact, error) {
	return r.getOne(ctx, "SELECT "+contactColumns+" FROM contacts WHERE id = ?", id)
}

// FindByPhone returns a contact with a wid whose phone or phoneBR matches.
func (r *ContactRepository) FindByPhone(ctx context.Context, phone, phoneBR string) (*entities.Contact, error) {
	return r.getOne(ctx,
		"SELECT "+contactColumns+" FROM contacts WHERE wid IS NOT NULL AND (phone = ? OR phoneBR = ?) ORDER BY id LIMIT 1",
		phone, phoneBR)
}

// FindByUserLID follows the user's overlay with that lid to its contact.
// With several matches the most recently updated overlay wins.
func (r *ContactRepository) FindByUserLID(ctx context.Context, userID int64, lid string) (*entities.Contact, error) {
	return r.getOne(ctx,
		`SELECT c.id, c.wid, c.name, c.phone, c.phoneBR, c.there_is, c.link, c.created_at, c.updated_at
		FROM contacts_users cu
		JOIN contacts c ON c.id = cu.contact_id
		WHERE cu.user_id = ? AND cu.lid = ?
		ORDER BY cu.updated_at DESC, cu.contact_id DESC
		LIMIT 1`,
		userID, lid)
}

// PrefetchByWIDs loads the contacts for wids in one read, keyed by wid.
func (r *ContactRepository) PrefetchByWIDs(ctx context.Context, wids []string) (map[string]entities.Contact, error) {
	out := make(map[string]entities.Contact, len(wids))
	if len(wids) == 0 {
		return out, nil
	}
	args := make([]any, len(wids))
	for i, w := range wids {
		args[i] = w
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(wids)), ", ")
	rs, err := r.db.Execute(ctx,
		"SELECT "+contactColumns+" FROM contacts WHERE wid IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("prefetch contacts: %w", err)
	}
	for _, row := range rs.Rows {
		c, err := scanContact(row, "id")
		if err != nil {
			return nil, err
		}
		out[c.WID.Value] = c
	}
	return out, nil
}

func (r *ContactRepository) getOne(ctx context.Context, query string, args ...any) (*entities.Contact, error) {
	rs, err := r.db.Execute(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	row, ok := rs.First()
	if !ok {
		return nil, nil
	}
	c, err := scanContact(row, "id")
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func returnedID(rs *infrastructure.ResultSet, op string) (int64, error) {
	row, ok := rs.First()
	if !ok {
		return 0, fmt.Errorf("%s: no id returned", op)
	}
	return row.Int64("id"), nil
}
