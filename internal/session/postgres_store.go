package session

import (
	"context"
	"errors"
	"time"

	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/content"
)

// sqlSessions is the subset of the Postgres store used for sessions.
type sqlSessions interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (string, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	RevokeAccessToken(ctx context.Context, jti, userID string, exp time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// PostgresStore keeps sessions in the refresh_sessions and
// revoked_access_tokens tables. Used when Redis is not configured.
type PostgresStore struct {
	db sqlSessions
}

func NewPostgresStore(db sqlSessions) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	return s.db.SaveRefreshSession(ctx, tokenHash, userID, expiresAt)
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (string, error) {
	userID, err := s.db.LookupRefreshSession(ctx, tokenHash)
	if errors.Is(err, content.ErrNotFound) {
		return "", ErrNotFound
	}
	return userID, err
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	return s.db.RevokeRefreshSession(ctx, tokenHash)
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti, userID string, expiresAt time.Time) error {
	return s.db.RevokeAccessToken(ctx, jti, userID, expiresAt)
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	return s.db.IsAccessTokenRevoked(ctx, jti)
}
