package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tonerolima/kobopay/internal/domain"
)

// SessionStore implements session.Repository on the shared pool.
type SessionStore struct {
	store *Store
}

func NewSessionStore(s *Store) *SessionStore {
	return &SessionStore{store: s}
}

func (s *SessionStore) Insert(ctx context.Context, sess *domain.Session) error {
	err := s.store.pool.QueryRow(ctx,
		`INSERT INTO sessions (id, user_id, token, time_limit, active)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		sess.ID, sess.UserID, sess.Token, sess.TimeLimit, sess.Active,
	).Scan(&sess.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrTokenReused
		}
		return fmt.Errorf("session insert failed: %w", err)
	}
	return nil
}

func (s *SessionStore) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	var sess domain.Session
	err := s.store.pool.QueryRow(ctx,
		`SELECT id, user_id, token, time_limit, active, created_at
		 FROM sessions WHERE token = $1`, token,
	).Scan(&sess.ID, &sess.UserID, &sess.Token, &sess.TimeLimit, &sess.Active, &sess.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("session lookup failed: %w", err)
	}
	return &sess, nil
}

func (s *SessionStore) SetInactive(ctx context.Context, token string) error {
	tag, err := s.store.pool.Exec(ctx,
		`UPDATE sessions SET active = false WHERE token = $1`, token)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}
