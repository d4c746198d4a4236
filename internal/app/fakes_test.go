package app

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/auth"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/authpw"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/config"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/content"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/ratelimit"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/session"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/store"
)

const testSecret = "test-secret"

// memRepo is an in-memory repository that counts calls per operation.
// Ordered repositories assign the next position on create and keep the
// stored position on update, like the Postgres ones.
type memRepo[T content.Entity] struct {
	mu      sync.Mutex
	rows    map[string]T
	calls   map[string]int
	listErr error

	position func(T) int
	place    func(T, int) T
}

func newRepo[T content.Entity](rows ...T) *memRepo[T] {
	repo := &memRepo[T]{rows: map[string]T{}, calls: map[string]int{}}
	for _, row := range rows {
		repo.rows[row.GetID()] = row
	}
	return repo
}

func newOrderedRepo[T content.Ordered](place func(T, int) T, rows ...T) *memRepo[T] {
	repo := newRepo(rows...)
	repo.position = func(item T) int { return item.Position() }
	repo.place = place
	return repo
}

func (m *memRepo[T]) count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *memRepo[T]) List(context.Context) ([]T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["list"]++
	if m.listErr != nil {
		return nil, m.listErr
	}
	items := make([]T, 0, len(m.rows))
	for _, row := range m.rows {
		items = append(items, row)
	}
	sort.Slice(items, func(i, j int) bool {
		if m.position != nil && m.position(items[i]) != m.position(items[j]) {
			return m.position(items[i]) < m.position(items[j])
		}
		return items[i].GetID() < items[j].GetID()
	})
	return items, nil
}

func (m *memRepo[T]) Get(_ context.Context, id string) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["get"]++
	row, ok := m.rows[id]
	if !ok {
		return row, content.ErrNotFound
	}
	return row, nil
}

func (m *memRepo[T]) Create(_ context.Context, item T) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["create"]++
	if m.place != nil && m.position(item) == 0 {
		next := 0
		for _, row := range m.rows {
			next = max(next, m.position(row))
		}
		item = m.place(item, next+1)
	}
	m.rows[item.GetID()] = item
	return item, nil
}

func (m *memRepo[T]) Update(_ context.Context, id string, item T) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["update"]++
	existing, ok := m.rows[id]
	if !ok {
		return item, content.ErrNotFound
	}
	if m.place != nil {
		item = m.place(item, m.position(existing))
	}
	m.rows[id] = item
	return item, nil
}

func (m *memRepo[T]) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["delete"]++
	if _, ok := m.rows[id]; !ok {
		return content.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memRepo[T]) options() content.Options {
	return content.Options{
		Swap: func(_ context.Context, swap content.Swap) error {
			m.mu.Lock()
			defer m.mu.Unlock()
			first, ok := m.rows[swap.FirstID]
			second, ok2 := m.rows[swap.SecondID]
			if !ok || !ok2 {
				return content.ErrNotFound
			}
			m.rows[swap.FirstID] = m.place(first, swap.FirstPos)
			m.rows[swap.SecondID] = m.place(second, swap.SecondPos)
			return nil
		},
		Renumber: func(_ context.Context, ids []string) error {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, id := range ids {
				m.rows[id] = m.place(m.rows[id], i+1)
			}
			return nil
		},
	}
}

type memSessions struct {
	mu      sync.Mutex
	refresh map[string]string
	revoked map[string]bool
}

func newMemSessions() *memSessions {
	return &memSessions{refresh: map[string]string{}, revoked: map[string]bool{}}
}

func (m *memSessions) SaveRefreshSession(_ context.Context, tokenHash, userID string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh[tokenHash] = userID
	return nil
}

func (m *memSessions) LookupRefreshSession(_ context.Context, tokenHash string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID, ok := m.refresh[tokenHash]
	if !ok {
		return "", session.ErrNotFound
	}
	return userID, nil
}

func (m *memSessions) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.refresh, tokenHash)
	return nil
}

func (m *memSessions) RevokeAccessToken(_ context.Context, jti, _ string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[jti] = true
	return nil
}

func (m *memSessions) IsAccessTokenRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revoked[jti], nil
}

type fakeSite struct {
	settings store.SiteSettings
	pingErr  error
}

func (f *fakeSite) GetSettings(context.Context) (store.SiteSettings, error) {
	return f.settings, nil
}

func (f *fakeSite) UpdateSettings(_ context.Context, settings store.SiteSettings) (store.SiteSettings, error) {
	f.settings = settings
	return settings, nil
}

func (f *fakeSite) DashboardCounts(context.Context) (store.DashboardCounts, error) {
	return store.DashboardCounts{}, nil
}

func (f *fakeSite) Ping(context.Context) error { return f.pingErr }

// fakeAccounts signs in against the users repository with a shared password.
type fakeAccounts struct {
	users    *memRepo[store.UserProfile]
	password string
}

func (f *fakeAccounts) SignIn(ctx context.Context, email, password string) (store.UserProfile, error) {
	users, _ := f.users.List(ctx)
	for _, user := range users {
		if user.Email == email && password == f.password {
			if !user.Active() {
				return store.UserProfile{}, authpw.ErrDeactivated
			}
			return user, nil
		}
	}
	return store.UserProfile{}, authpw.ErrInvalidCredentials
}

func (f *fakeAccounts) CreateUser(ctx context.Context, req authpw.CreateUserRequest) (store.UserProfile, error) {
	return f.users.Create(ctx, store.UserProfile{ID: "user-" + req.Email, Email: req.Email, DisplayName: req.DisplayName, Role: req.Role})
}

func (f *fakeAccounts) RequestPasswordReset(context.Context, string) (string, store.UserProfile, error) {
	return "", store.UserProfile{}, nil
}

func (f *fakeAccounts) ResetPassword(context.Context, string, string) error { return nil }

type harness struct {
	service  *Service
	server   *HTTPServer
	site     *fakeSite
	sessions *memSessions

	plans     *memRepo[store.Plan]
	services  *memRepo[store.Service]
	portfolio *memRepo[store.PortfolioItem]
	sections  *memRepo[store.SiteSection]
	pages     *memRepo[store.Page]
	messages  *memRepo[store.Message]
	users     *memRepo[store.UserProfile]
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		site:     &fakeSite{settings: store.SiteSettings{SiteName: "VSA Tecnologia"}},
		sessions: newMemSessions(),
		plans: newOrderedRepo(func(p store.Plan, pos int) store.Plan {
			p.OrderPosition = pos
			return p
		}),
		services: newOrderedRepo(func(s store.Service, pos int) store.Service {
			s.OrderPosition = pos
			return s
		}),
		portfolio: newOrderedRepo(func(p store.PortfolioItem, pos int) store.PortfolioItem {
			p.OrderPosition = pos
			return p
		}),
		sections: newOrderedRepo(func(s store.SiteSection, pos int) store.SiteSection {
			s.OrderPosition = pos
			return s
		}),
		pages:    newRepo[store.Page](),
		messages: newRepo[store.Message](),
		users: newRepo(
			store.UserProfile{ID: "u-admin", Email: "admin@vsa.com.br", DisplayName: "Admin", Role: "admin"},
			store.UserProfile{ID: "u-editor", Email: "editor@vsa.com.br", DisplayName: "Editor", Role: "editor"},
			store.UserProfile{ID: "u-viewer", Email: "viewer@vsa.com.br", DisplayName: "Viewer", Role: "viewer"},
		),
	}

	repos := Repositories{
		Plans:             h.plans,
		Services:          h.services,
		Portfolio:         h.portfolio,
		Sections:          h.sections,
		Pages:             h.pages,
		ServiceCategories: newRepo[store.Category](),
		PageCategories:    newRepo[store.Category](),
		Messages:          h.messages,
		Users:             h.users,
	}
	ordering := func(table string) content.Options {
		switch table {
		case "plans":
			return h.plans.options()
		case "services":
			return h.services.options()
		case "portfolio_items":
			return h.portfolio.options()
		case "site_sections":
			return h.sections.options()
		}
		return content.Options{}
	}

	cfg := config.Defaults()
	cfg.JWTSecret = testSecret
	h.service = New(Deps{
		Config:   cfg,
		Stores:   NewStores(repos, ordering, nil),
		Accounts: &fakeAccounts{users: h.users, password: "correct-horse"},
		Sessions: h.sessions,
		Site:     h.site,
		Limiter:  ratelimit.New(60, 2),
	})
	h.server = NewHTTPServer(h.service, "*")
	return h
}

// token signs an access token for one of the seeded users.
func (h *harness) token(t *testing.T, userID string) string {
	t.Helper()
	user, ok := h.users.rows[userID]
	require.True(t, ok, "unknown user %s", userID)
	claims := auth.NewClaims(user.ID, user.DisplayName, user.Role, "jti-"+userID, time.Hour)
	token, err := auth.IssueToken([]byte(testSecret), claims)
	require.NoError(t, err)
	return token
}
