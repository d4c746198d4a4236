package authpw

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/auth"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/content"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/store"
)

type mockUserStore struct {
	users  map[string]store.UserProfile
	resets map[string]string
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: map[string]store.UserProfile{}, resets: map[string]string{}}
}

func (m *mockUserStore) GetUserByEmail(_ context.Context, email string) (store.UserProfile, error) {
	for _, user := range m.users {
		if strings.EqualFold(user.Email, strings.TrimSpace(email)) {
			return user, nil
		}
	}
	return store.UserProfile{}, content.ErrNotFound
}

func (m *mockUserStore) GetUserByID(_ context.Context, id string) (store.UserProfile, error) {
	user, ok := m.users[id]
	if !ok {
		return store.UserProfile{}, content.ErrNotFound
	}
	return user, nil
}

func (m *mockUserStore) InsertUser(_ context.Context, user store.UserProfile) (store.UserProfile, error) {
	m.users[user.ID] = user
	return user, nil
}

func (m *mockUserStore) SetUserPassword(_ context.Context, userID, passwordHash string) error {
	user, ok := m.users[userID]
	if !ok {
		return content.ErrNotFound
	}
	user.PasswordHash = passwordHash
	m.users[userID] = user
	return nil
}

func (m *mockUserStore) SavePasswordReset(_ context.Context, tokenHash, userID string, _ time.Time) error {
	m.resets[tokenHash] = userID
	return nil
}

func (m *mockUserStore) ConsumePasswordReset(_ context.Context, tokenHash string) (string, error) {
	userID, ok := m.resets[tokenHash]
	if !ok {
		return "", content.ErrNotFound
	}
	delete(m.resets, tokenHash)
	return userID, nil
}

func newTestService() (*Service, *mockUserStore) {
	users := newMockUserStore()
	return NewService(users).WithCost(bcrypt.MinCost), users
}

func TestCreateUser(t *testing.T) {
	svc, users := newTestService()
	ctx := context.Background()

	tests := []struct {
		name    string
		req     CreateUserRequest
		wantErr error
	}{
		{name: "valid editor", req: CreateUserRequest{Email: "Ana@VSA.com.br", Password: "senha-forte", Role: "editor"}},
		{name: "duplicate email", req: CreateUserRequest{Email: "ana@vsa.com.br", Password: "senha-forte", Role: "viewer"}, wantErr: ErrEmailTaken},
		{name: "bad email", req: CreateUserRequest{Email: "not-an-email", Password: "senha-forte", Role: "viewer"}, wantErr: ErrInvalidEmail},
		{name: "short password", req: CreateUserRequest{Email: "bia@vsa.com.br", Password: "curta", Role: "viewer"}, wantErr: ErrWeakPassword},
		{name: "unknown role", req: CreateUserRequest{Email: "caio@vsa.com.br", Password: "senha-forte", Role: "owner"}, wantErr: ErrInvalidRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.CreateUser(ctx, tt.req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateUser failed: %v", err)
			}
			if user.Email != "ana@vsa.com.br" || user.DisplayName != "ana" || user.Role != "editor" {
				t.Fatalf("unexpected user: %+v", user)
			}
			if user.PasswordHash == "senha-forte" {
				t.Fatal("password must be hashed")
			}
		})
	}
	if len(users.users) != 1 {
		t.Fatalf("expected exactly one stored user, got %d", len(users.users))
	}
}

func TestSignIn(t *testing.T) {
	svc, users := newTestService()
	ctx := context.Background()
	created, err := svc.CreateUser(ctx, CreateUserRequest{Email: "ana@vsa.com.br", Password: "senha-forte", Role: "admin"})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	if _, err := svc.SignIn(ctx, "ANA@vsa.com.br", "senha-forte"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if _, err := svc.SignIn(ctx, "ana@vsa.com.br", "errada123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.SignIn(ctx, "ninguem@vsa.com.br", "senha-forte"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}

	now := time.Now()
	created.DeactivatedAt = &now
	users.users[created.ID] = created
	if _, err := svc.SignIn(ctx, "ana@vsa.com.br", "senha-forte"); !errors.Is(err, ErrDeactivated) {
		t.Fatalf("expected ErrDeactivated, got %v", err)
	}
}

func TestPasswordReset(t *testing.T) {
	svc, users := newTestService()
	ctx := context.Background()
	if _, err := svc.CreateUser(ctx, CreateUserRequest{Email: "ana@vsa.com.br", Password: "senha-antiga", Role: "editor"}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	token, user, err := svc.RequestPasswordReset(ctx, "ana@vsa.com.br")
	if err != nil || token == "" || user.Email != "ana@vsa.com.br" {
		t.Fatalf("RequestPasswordReset = %q %+v %v", token, user, err)
	}
	if _, ok := users.resets[auth.HashToken(token)]; !ok {
		t.Fatal("expected only the token hash to be stored")
	}

	if err := svc.ResetPassword(ctx, token, "senha-nova-123"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
	if _, err := svc.SignIn(ctx, "ana@vsa.com.br", "senha-nova-123"); err != nil {
		t.Fatalf("SignIn with new password failed: %v", err)
	}
	if err := svc.ResetPassword(ctx, token, "outra-senha-123"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("expected reused token to fail, got %v", err)
	}

	token, _, err = svc.RequestPasswordReset(ctx, "desconhecido@vsa.com.br")
	if err != nil || token != "" {
		t.Fatalf("unknown email should yield no token and no error, got %q %v", token, err)
	}
}
