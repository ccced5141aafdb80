package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"wacontacts/internal/entities"
	"wacontacts/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("email already registered")
)

type AuthUsecase struct {
	userRepo  *repository.UserRepository
	jwtSecret []byte
	expiry    time.Duration
}

func NewAuthUsecase(repo *repository.UserRepository, secret string, expiry time.Duration) *AuthUsecase {
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &AuthUsecase{
		userRepo:  repo,
		jwtSecret: []byte(secret),
		expiry:    expiry,
	}
}

// Register creates a user with its profile. phone is the WhatsApp number
// that authorizes sessions for this user.
func (uc *AuthUsecase) Register(ctx context.Context, email, password, role, phone string) (*entities.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	existing, err := uc.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &entities.User{
		Email:        email,
		PasswordHash: string(hashed),
		Role:         role,
		IsActive:     true,
	}
	if err := uc.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	profile := &entities.Profile{
		UserID: user.ID,
		Token:  uuid.NewString(),
		Name:   strings.SplitN(email, "@", 2)[0],
		Phone:  entities.Digits(phone),
	}
	if err := uc.userRepo.CreateProfile(ctx, profile); err != nil {
		return nil, err
	}
	return user, nil
}

func (uc *AuthUsecase) Login(ctx context.Context, email, password string) (string, error) {
	user, err := uc.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", err
	}
	if user == nil || !user.IsActive {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"role":    user.Role,
		"exp":     time.Now().Add(uc.expiry).Unix(),
	})
	tokenString, err := token.SignedString(uc.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// EnsureAdmin creates the admin user on first run. An existing user is
// left as is.
func (uc *AuthUsecase) EnsureAdmin(ctx context.Context, email, password, phone string) (bool, error) {
	user, err := uc.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return false, err
	}
	if user != nil {
		return false, nil
	}
	if _, err := uc.Register(ctx, email, password, entities.RoleAdmin, phone); err != nil {
		return false, err
	}
	return true, nil
}

// AddSessionPhone lets another WhatsApp number act for the user.
func (uc *AuthUsecase) AddSessionPhone(ctx context.Context, userID int64, phone string) error {
	profile, err := uc.userRepo.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if profile == nil {
		return repository.ErrNotFound
	}
	digits := entities.Digits(phone)
	if digits == "" || profile.WAPhones.Contains(digits) {
		return nil
	}
	return uc.userRepo.UpdateWAPhones(ctx, userID, append(profile.WAPhones, digits))
}
