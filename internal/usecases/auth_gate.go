package usecases

import (
	"context"

	"go.uber.org/zap"

	"wacontacts/internal/entities"
	"wacontacts/internal/repository"
)

// AuthGate maps a session identity to the user it authorizes.
type AuthGate struct {
	users *repository.UserRepository
	log   *zap.Logger
}

func NewAuthGate(users *repository.UserRepository, logger *zap.Logger) *AuthGate {
	return &AuthGate{users: users, log: logger}
}

// Authorize accepts the session when an active user's profile phone, or
// one of its wa_phones, equals the session phone. Store errors deny.
func (g *AuthGate) Authorize(ctx context.Context, sessionIdentity string) (int64, bool) {
	phone := SessionPhone(sessionIdentity)
	if phone == "" {
		g.log.Warn("session denied: no phone in identity", zap.String("session", sessionIdentity))
		return 0, false
	}

	profiles, err := g.users.FindActiveProfilesByPhone(ctx, phone)
	if err != nil {
		g.log.Error("session denied: profile lookup failed", zap.String("session_phone", phone), zap.Error(err))
		return 0, false
	}
	for _, p := range profiles {
		if entities.Digits(p.Phone) == phone || p.WAPhones.Contains(phone) {
			return p.UserID, true
		}
	}

	g.log.Warn("session denied: no active user for phone", zap.String("session_phone", phone))
	return 0, false
}
