// Package authpw provides email/password authentication for admin users.
package authpw

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/auth"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/content"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/rbac"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/store"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/util"
)

const (
	MinPasswordLength = 8
	resetTTL          = time.Hour
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrDeactivated        = errors.New("account is deactivated")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrInvalidEmail       = errors.New("email is invalid")
	ErrInvalidRole        = errors.New("role is invalid")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidResetToken  = errors.New("reset link is invalid or expired")
)

type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.UserProfile, error)
	GetUserByID(ctx context.Context, id string) (store.UserProfile, error)
	InsertUser(ctx context.Context, user store.UserProfile) (store.UserProfile, error)
	SetUserPassword(ctx context.Context, userID, passwordHash string) error
	SavePasswordReset(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	ConsumePasswordReset(ctx context.Context, tokenHash string) (string, error)
}

type Service struct {
	store UserStore
	cost  int
}

func NewService(store UserStore) *Service {
	return &Service{store: store, cost: bcrypt.DefaultCost}
}

// WithCost overrides the bcrypt cost, used by tests to keep hashing fast.
func (s *Service) WithCost(cost int) *Service {
	s.cost = cost
	return s
}

func (s *Service) HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

type CreateUserRequest struct {
	Email       string
	Password    string
	DisplayName string
	Role        string
}

// CreateUser registers an account on behalf of an admin. There is no public
// sign-up.
func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (store.UserProfile, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return store.UserProfile{}, ErrInvalidEmail
	}
	role, ok := rbac.Parse(req.Role)
	if !ok {
		return store.UserProfile{}, ErrInvalidRole
	}
	hash, err := s.HashPassword(req.Password)
	if err != nil {
		return store.UserProfile{}, err
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return store.UserProfile{}, ErrEmailTaken
	} else if !errors.Is(err, content.ErrNotFound) {
		return store.UserProfile{}, fmt.Errorf("lookup user: %w", err)
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}
	user, err := s.store.InsertUser(ctx, store.UserProfile{
		ID:           util.NewID("usr"),
		Email:        email,
		DisplayName:  displayName,
		Role:         string(role),
		PasswordHash: hash,
	})
	if errors.Is(err, content.ErrConflict) {
		return store.UserProfile{}, ErrEmailTaken
	}
	return user, err
}

func (s *Service) SignIn(ctx context.Context, email, password string) (store.UserProfile, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return store.UserProfile{}, ErrInvalidCredentials
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, content.ErrNotFound) {
		return store.UserProfile{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.UserProfile{}, fmt.Errorf("lookup user: %w", err)
	}
	if user.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return store.UserProfile{}, ErrInvalidCredentials
	}
	if !user.Active() {
		return store.UserProfile{}, ErrDeactivated
	}
	return user, nil
}

// RequestPasswordReset issues a one-time reset token. Unknown or deactivated
// accounts get an empty token and no error, so the endpoint does not reveal
// which emails exist.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, store.UserProfile, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, content.ErrNotFound) {
		return "", store.UserProfile{}, nil
	}
	if err != nil {
		return "", store.UserProfile{}, fmt.Errorf("lookup user: %w", err)
	}
	if !user.Active() {
		return "", store.UserProfile{}, nil
	}

	token, err := auth.RandomToken()
	if err != nil {
		return "", store.UserProfile{}, err
	}
	if err := s.store.SavePasswordReset(ctx, auth.HashToken(token), user.ID, time.Now().Add(resetTTL)); err != nil {
		return "", store.UserProfile{}, err
	}
	return token, user, nil
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	hash, err := s.HashPassword(newPassword)
	if err != nil {
		return err
	}
	userID, err := s.store.ConsumePasswordReset(ctx, auth.HashToken(token))
	if errors.Is(err, content.ErrNotFound) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	return s.store.SetUserPassword(ctx, userID, hash)
}
