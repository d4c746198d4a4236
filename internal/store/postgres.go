package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/content"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// notFound turns sql.ErrNoRows into content.ErrNotFound so callers above the
// store only match one sentinel.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return content.ErrNotFound
	}
	return err
}

// classify maps unique violations to content.ErrConflict.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "SQLSTATE 23505") || strings.Contains(err.Error(), "duplicate key") {
		return fmt.Errorf("%w: %v", content.ErrConflict, err)
	}
	return err
}

func expectOne(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return content.ErrNotFound
	}
	return nil
}

func jsonText(raw json.RawMessage, fallback string) string {
	if len(raw) == 0 || !json.Valid(raw) {
		return fallback
	}
	return string(raw)
}

func encodeStrings(values []string) string {
	if values == nil {
		values = []string{}
	}
	raw, _ := json.Marshal(values)
	return string(raw)
}

func decodeStrings(raw []byte) []string {
	out := make([]string, 0)
	if len(raw) == 0 {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}

func copyRaw(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("{}")
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]UserProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, display_name, role, password_hash, deactivated_at, created_at, updated_at
		FROM user_profiles
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	items := make([]UserProfile, 0)
	for rows.Next() {
		var user UserProfile
		if err := rows.Scan(&user.ID, &user.Email, &user.DisplayName, &user.Role, &user.PasswordHash, &user.DeactivatedAt, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, user)
	}
	return items, rows.Err()
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (UserProfile, error) {
	return s.getUser(ctx, `id=$1`, userID)
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (UserProfile, error) {
	return s.getUser(ctx, `LOWER(email)=LOWER($1)`, strings.TrimSpace(email))
}

func (s *PostgresStore) getUser(ctx context.Context, where string, arg string) (UserProfile, error) {
	var user UserProfile
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, role, password_hash, deactivated_at, created_at, updated_at
		FROM user_profiles
		WHERE `+where, arg).Scan(&user.ID, &user.Email, &user.DisplayName, &user.Role, &user.PasswordHash, &user.DeactivatedAt, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return UserProfile{}, notFound(err)
	}
	return user, nil
}

func (s *PostgresStore) InsertUser(ctx context.Context, user UserProfile) (UserProfile, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO user_profiles (id, email, display_name, role, password_hash)
		VALUES ($1, LOWER($2), $3, $4, $5)
		RETURNING email, created_at, updated_at
	`, user.ID, strings.TrimSpace(user.Email), user.DisplayName, user.Role, user.PasswordHash).Scan(&user.Email, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return UserProfile{}, fmt.Errorf("insert user: %w", classify(err))
	}
	return user, nil
}

func (s *PostgresStore) UpdateUser(ctx context.Context, user UserProfile) (UserProfile, error) {
	err := s.db.QueryRowContext(ctx, `
		UPDATE user_profiles
		SET display_name=$2, role=$3, deactivated_at=$4, updated_at=NOW()
		WHERE id=$1
		RETURNING updated_at
	`, user.ID, user.DisplayName, user.Role, user.DeactivatedAt).Scan(&user.UpdatedAt)
	if err != nil {
		return UserProfile{}, fmt.Errorf("update user: %w", notFound(err))
	}
	return user, nil
}

func (s *PostgresStore) SetUserPassword(ctx context.Context, userID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE user_profiles SET password_hash=$2, updated_at=NOW() WHERE id=$1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return expectOne(res)
}

func (s *PostgresStore) DeleteUser(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM user_profiles WHERE id=$1`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return expectOne(res)
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id
		FROM refresh_sessions
		WHERE token_hash=$1 AND revoked_at IS NULL AND expires_at > NOW()
	`, tokenHash).Scan(&userID)
	if err != nil {
		return "", notFound(err)
	}
	return userID, nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti, userID string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (jti) DO NOTHING
	`, jti, userID, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) SavePasswordReset(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save password reset: %w", err)
	}
	return nil
}

// ConsumePasswordReset marks a reset token used and returns its user. Each
// token works once.
func (s *PostgresStore) ConsumePasswordReset(ctx context.Context, tokenHash string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		UPDATE password_resets
		SET used_at=NOW()
		WHERE token_hash=$1 AND used_at IS NULL AND expires_at > NOW()
		RETURNING user_id
	`, tokenHash).Scan(&userID)
	if err != nil {
		return "", notFound(err)
	}
	return userID, nil
}

func (s *PostgresStore) DashboardCounts(ctx context.Context) (DashboardCounts, error) {
	var counts DashboardCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM plans),
			(SELECT COUNT(*) FROM services),
			(SELECT COUNT(*) FROM portfolio_items),
			(SELECT COUNT(*) FROM pages),
			(SELECT COUNT(*) FROM messages),
			(SELECT COUNT(*) FROM messages WHERE status='new'),
			(SELECT COUNT(*) FROM user_profiles)
	`).Scan(&counts.Plans, &counts.Services, &counts.Portfolio, &counts.Pages, &counts.Messages, &counts.NewMessages, &counts.Users)
	if err != nil {
		return DashboardCounts{}, fmt.Errorf("dashboard counts: %w", err)
	}
	return counts, nil
}

func (s *PostgresStore) GetSettings(ctx context.Context) (SiteSettings, error) {
	var settings SiteSettings
	var social []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT site_name, tagline, contact_email, contact_phone, address, social, updated_at
		FROM site_settings
		WHERE id=1
	`).Scan(&settings.SiteName, &settings.Tagline, &settings.ContactEmail, &settings.ContactPhone, &settings.Address, &social, &settings.UpdatedAt)
	if err != nil {
		return SiteSettings{}, fmt.Errorf("get settings: %w", notFound(err))
	}
	settings.Social = map[string]string{}
	if len(social) > 0 {
		if err := json.Unmarshal(social, &settings.Social); err != nil {
			return SiteSettings{}, fmt.Errorf("decode social links: %w", err)
		}
	}
	return settings, nil
}

func (s *PostgresStore) UpdateSettings(ctx context.Context, settings SiteSettings) (SiteSettings, error) {
	if settings.Social == nil {
		settings.Social = map[string]string{}
	}
	social, err := json.Marshal(settings.Social)
	if err != nil {
		return SiteSettings{}, fmt.Errorf("encode social links: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO site_settings (id, site_name, tagline, contact_email, contact_phone, address, social, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO UPDATE SET
			site_name=EXCLUDED.site_name,
			tagline=EXCLUDED.tagline,
			contact_email=EXCLUDED.contact_email,
			contact_phone=EXCLUDED.contact_phone,
			address=EXCLUDED.address,
			social=EXCLUDED.social,
			updated_at=NOW()
		RETURNING updated_at
	`, settings.SiteName, settings.Tagline, settings.ContactEmail, settings.ContactPhone, settings.Address, string(social)).Scan(&settings.UpdatedAt)
	if err != nil {
		return SiteSettings{}, fmt.Errorf("update settings: %w", err)
	}
	return settings, nil
}
