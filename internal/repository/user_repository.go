package repository

import (
	"context"
	"fmt"

	"wacontacts/internal/entities"
	"wacontacts/internal/infrastructure"
)

type UserRepository struct {
	db infrastructure.Database
}

func NewUserRepository(db infrastructure.Database) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	rs, err := r.db.Execute(ctx,
		"INSERT INTO users (email, password_hash, role, is_active) VALUES (?, ?, ?, ?) RETURNING id",
		user.Email, user.PasswordHash, user.Role, user.IsActive)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	row, ok := rs.First()
	if !ok {
		return fmt.Errorf("create user: no id returned")
	}
	user.ID = row.Int64("id")
	return nil
}

// GetByEmail returns nil when no user has the email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	return r.getOne(ctx, "SELECT id, email, password_hash, role, is_active, created_at, updated_at FROM users WHERE email = ?", email)
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entities.User, error) {
	return r.getOne(ctx, "SELECT id, email, password_hash, role, is_active, created_at, updated_at FROM users WHERE id = ?", id)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (*entities.User, error) {
	rs, err := r.db.Execute(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	row, ok := rs.First()
	if !ok {
		return nil, nil
	}
	return &entities.User{
		ID:           row.Int64("id"),
		Email:        row.String("email"),
		PasswordHash: row.String("password_hash"),
		Role:         row.String("role"),
		IsActive:     row.Bool("is_active"),
		CreatedAt:    row.Time("created_at"),
		UpdatedAt:    row.Time("updated_at"),
	}, nil
}

func (r *UserRepository) SetActive(ctx context.Context, id int64, active bool) error {
	_, err := r.db.Execute(ctx,
		"UPDATE users SET is_active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", active, id)
	if err != nil {
		return fmt.Errorf("set user active: %w", err)
	}
	return nil
}

// Phones are stored as digits so the wa_phones pre-filter in
// FindActiveProfilesByPhone matches formatted input.
func (r *UserRepository) CreateProfile(ctx context.Context, p *entities.Profile) error {
	p.Phone = entities.Digits(p.Phone)
	p.WAPhones = p.WAPhones.Normalized()
	phones, err := encodePhones(p.WAPhones)
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	rs, err := r.db.Execute(ctx,
		`INSERT INTO profiles (user_id, token, name, phone, document, wa_phones)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		p.UserID, entities.OptString(p.Token).Arg(), p.Name, p.Phone, p.Document, phones)
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	if row, ok := rs.First(); ok {
		p.ID = row.Int64("id")
	}
	return nil
}

// UpdateWAPhones replaces the extra session phones of a user's profile.
func (r *UserRepository) UpdateWAPhones(ctx context.Context, userID int64, phones entities.PhoneList) error {
	encoded, err := encodePhones(phones.Normalized())
	if err != nil {
		return fmt.Errorf("update wa_phones: %w", err)
	}
	rs, err := r.db.Execute(ctx,
		"UPDATE profiles SET wa_phones = ?, updated_at = CURRENT_TIMESTAMP WHERE user_id = ?", encoded, userID)
	if err != nil {
		return fmt.Errorf("update wa_phones: %w", err)
	}
	if rs.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetProfile returns nil when the user has no profile.
func (r *UserRepository) GetProfile(ctx context.Context, userID int64) (*entities.Profile, error) {
	rs, err := r.db.Execute(ctx,
		"SELECT id, user_id, token, name, phone, document, wa_phones FROM profiles WHERE user_id = ?", userID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	row, ok := rs.First()
	if !ok {
		return nil, nil
	}
	return scanProfile(row)
}

// FindActiveProfilesByPhone returns candidate profiles of active users
// whose phone equals digits or whose wa_phones text mentions it. Callers
// check the exact element match.
func (r *UserRepository) FindActiveProfilesByPhone(ctx context.Context, digits string) ([]entities.Profile, error) {
	rs, err := r.db.Execute(ctx,
		`SELECT p.id, p.user_id, p.token, p.name, p.phone, p.document, p.wa_phones
		FROM profiles p
		JOIN users u ON u.id = p.user_id
		WHERE u.is_active = ? AND (p.phone = ? OR p.wa_phones LIKE ?)
		ORDER BY p.user_id`,
		true, digits, "%"+digits+"%")
	if err != nil {
		return nil, fmt.Errorf("find profiles by phone: %w", err)
	}
	out := make([]entities.Profile, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		p, err := scanProfile(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

func scanProfile(row infrastructure.Row) (*entities.Profile, error) {
	p := &entities.Profile{
		ID:       row.Int64("id"),
		UserID:   row.Int64("user_id"),
		Token:    row.String("token"),
		Name:     row.String("name"),
		Phone:    row.String("phone"),
		Document: row.String("document"),
	}
	if err := row.JSON("wa_phones", &p.WAPhones); err != nil {
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	return p, nil
}
