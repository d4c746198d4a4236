package app

import (
	"context"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/authpw"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/rbac"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/store"
)

type CreateUserInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
}

func lastAdmin() *DomainError {
	return domainError(http.StatusConflict, "LAST_ADMIN", "O sistema precisa de pelo menos um administrador ativo", nil)
}

func selfChange() *DomainError {
	return domainError(http.StatusConflict, "SELF_CHANGE", "Não é possível alterar a própria conta por aqui", nil)
}

func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (store.UserProfile, error) {
	user, err := s.accounts.CreateUser(ctx, authpw.CreateUserRequest{
		Email:       in.Email,
		Password:    in.Password,
		DisplayName: in.DisplayName,
		Role:        in.Role,
	})
	if err != nil {
		return store.UserProfile{}, err
	}
	if err := s.stores.Users.Fetch(ctx); err != nil {
		log.WithError(err).Warn("refresh users after create")
	}
	return user, nil
}

// otherActiveAdmins counts active admins other than userID in the freshly
// fetched user list.
func (s *Service) otherActiveAdmins(ctx context.Context, userID string) (int, error) {
	if err := s.stores.Users.Fetch(ctx); err != nil {
		return 0, err
	}
	count := 0
	for _, user := range s.stores.Users.Items() {
		if user.ID != userID && user.Active() && user.Role == string(rbac.RoleAdmin) {
			count++
		}
	}
	return count, nil
}

// guardAdmin rejects changes that would leave no active admin.
func (s *Service) guardAdmin(ctx context.Context, target store.UserProfile) error {
	if target.Role != string(rbac.RoleAdmin) || !target.Active() {
		return nil
	}
	others, err := s.otherActiveAdmins(ctx, target.ID)
	if err != nil {
		return err
	}
	if others == 0 {
		return lastAdmin()
	}
	return nil
}

func (s *Service) SetUserRole(ctx context.Context, actor Session, id, role string) (store.UserProfile, error) {
	parsed, ok := rbac.Parse(role)
	if !ok {
		return store.UserProfile{}, invalidField("role", authpw.ErrInvalidRole.Error())
	}
	if id == actor.UserID {
		return store.UserProfile{}, selfChange()
	}
	if parsed != rbac.RoleAdmin {
		target, err := s.stores.Users.Get(ctx, id)
		if err != nil {
			return store.UserProfile{}, err
		}
		if err := s.guardAdmin(ctx, target); err != nil {
			return store.UserProfile{}, err
		}
	}
	return s.stores.Users.Mutate(ctx, id, func(current store.UserProfile) (store.UserProfile, error) {
		current.Role = string(parsed)
		return current, nil
	})
}

// SetUserActive deactivates or reactivates an account. Deactivated users
// cannot sign in and their sessions stop validating.
func (s *Service) SetUserActive(ctx context.Context, actor Session, id string, active bool) (store.UserProfile, error) {
	if id == actor.UserID {
		return store.UserProfile{}, selfChange()
	}
	if !active {
		target, err := s.stores.Users.Get(ctx, id)
		if err != nil {
			return store.UserProfile{}, err
		}
		if err := s.guardAdmin(ctx, target); err != nil {
			return store.UserProfile{}, err
		}
	}
	return s.stores.Users.Mutate(ctx, id, func(current store.UserProfile) (store.UserProfile, error) {
		switch {
		case active:
			current.DeactivatedAt = nil
		case current.Active():
			now := s.now().UTC()
			current.DeactivatedAt = &now
		}
		return current, nil
	})
}

func (s *Service) DeleteUser(ctx context.Context, actor Session, id string) error {
	if id == actor.UserID {
		return selfChange()
	}
	target, err := s.stores.Users.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.guardAdmin(ctx, target); err != nil {
		return err
	}
	return s.stores.Users.Delete(ctx, id)
}
