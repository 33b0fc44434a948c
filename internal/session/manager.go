// Package session issues and revokes server-tracked sessions bound to
// bearer tokens. A token is good only while its session row is active
// and inside its time limit, regardless of the token's own expiry.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tonerolima/kobopay/internal/domain"
)

// Repository persists sessions. The token column is unique; Insert
// reports domain.ErrTokenReused on a second registration.
type Repository interface {
	Insert(ctx context.Context, s *domain.Session) error
	GetByToken(ctx context.Context, token string) (*domain.Session, error)
	SetInactive(ctx context.Context, token string) error
}

type Manager struct {
	repo   Repository
	secret []byte
	ttl    time.Duration
	logger *slog.Logger

	// now is swapped in tests to move the clock.
	now func() time.Time
}

func NewManager(repo Repository, secret []byte, ttl time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		repo:   repo,
		secret: secret,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Issue signs a fresh token for the user, valid for the configured TTL.
func (m *Manager) Issue(userID uuid.UUID) (string, error) {
	return IssueToken(m.secret, userID, m.ttl)
}

// Create verifies the token, checks it names the given user, and
// registers an active session for it. A token that already has a
// session is rejected; the expiry claim (or the configured TTL) sets
// the session's absolute time limit.
func (m *Manager) Create(ctx context.Context, userID uuid.UUID, token string) (*domain.Session, error) {
	claims, err := parseToken(m.secret, token)
	if err != nil {
		return nil, err
	}
	subject, err := subjectID(claims)
	if err != nil {
		return nil, err
	}
	if subject != userID {
		return nil, domain.ErrTokenMismatch
	}

	timeLimit := m.now().Add(m.ttl)
	if claims.ExpiresAt != nil {
		timeLimit = claims.ExpiresAt.Time
	}

	s := &domain.Session{
		ID:        uuid.New(),
		UserID:    userID,
		Token:     token,
		TimeLimit: timeLimit,
		Active:    true,
	}
	if err := m.repo.Insert(ctx, s); err != nil {
		return nil, err
	}
	m.logger.Info("session created", "user_id", userID, "time_limit", timeLimit)
	return s, nil
}

// Validate checks the token's signature and its session. An expired
// session is flipped inactive as a side effect before the rejection is
// returned. On success the authenticated user id comes back.
func (m *Manager) Validate(ctx context.Context, token string) (uuid.UUID, error) {
	if _, err := parseToken(m.secret, token); err != nil {
		return uuid.Nil, err
	}

	s, err := m.repo.GetByToken(ctx, token)
	if err != nil {
		return uuid.Nil, err
	}
	if !s.Active {
		return uuid.Nil, domain.ErrSessionInactive
	}
	if !m.now().Before(s.TimeLimit) {
		if err := m.repo.SetInactive(ctx, token); err != nil {
			m.logger.Error("expiring session failed", "user_id", s.UserID, "error", err)
		}
		return uuid.Nil, domain.ErrSessionExpired
	}
	return s.UserID, nil
}

// Logout revokes the token's session. Revoking twice is an error.
func (m *Manager) Logout(ctx context.Context, token string) error {
	if _, err := parseToken(m.secret, token); err != nil {
		return err
	}

	s, err := m.repo.GetByToken(ctx, token)
	if err != nil {
		return err
	}
	if !s.Active {
		return domain.ErrSessionInactive
	}
	if err := m.repo.SetInactive(ctx, token); err != nil {
		return err
	}
	m.logger.Info("session revoked", "user_id", s.UserID)
	return nil
}
