package store

import "context"

// UserRepository exposes user_profiles through the collection interface used
// by the admin users screen.
type UserRepository struct {
	s *PostgresStore
}

func (s *PostgresStore) Users() UserRepository {
	return UserRepository{s: s}
}

func (r UserRepository) List(ctx context.Context) ([]UserProfile, error) {
	return r.s.ListUsers(ctx)
}

func (r UserRepository) Get(ctx context.Context, id string) (UserProfile, error) {
	return r.s.GetUserByID(ctx, id)
}

func (r UserRepository) Create(ctx context.Context, user UserProfile) (UserProfile, error) {
	return r.s.InsertUser(ctx, user)
}

func (r UserRepository) Update(ctx context.Context, id string, user UserProfile) (UserProfile, error) {
	user.ID = id
	return r.s.UpdateUser(ctx, user)
}

func (r UserRepository) Delete(ctx context.Context, id string) error {
	return r.s.DeleteUser(ctx, id)
}
