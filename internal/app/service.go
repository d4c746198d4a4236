package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/auth"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/authpw"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/config"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/content"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/email"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/export"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/gitrepo"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/media"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/ratelimit"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/rbac"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/search"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/session"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/store"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/util"
)

type Session struct {
	Token        string    `json:"accessToken,omitempty"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	UserID       string    `json:"userId"`
	UserName     string    `json:"userName"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	JTI          string    `json:"-"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type accounts interface {
	SignIn(ctx context.Context, email, password string) (store.UserProfile, error)
	CreateUser(ctx context.Context, req authpw.CreateUserRequest) (store.UserProfile, error)
	RequestPasswordReset(ctx context.Context, email string) (string, store.UserProfile, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type siteData interface {
	GetSettings(ctx context.Context) (store.SiteSettings, error)
	UpdateSettings(ctx context.Context, settings store.SiteSettings) (store.SiteSettings, error)
	DashboardCounts(ctx context.Context) (store.DashboardCounts, error)
	Ping(ctx context.Context) error
}

type searcher interface {
	Search(q search.Query) search.Response
	Sync(t search.ResultType, records []search.Record)
	ReindexAll(records map[search.ResultType][]search.Record) error
	Enabled() bool
}

type uploader interface {
	Upload(ctx context.Context, folder, filename string, r io.Reader) (media.Asset, error)
}

type exporter interface {
	PagePDF(ctx context.Context, p store.Page, settings store.SiteSettings) (*export.Result, error)
	PlansPDF(ctx context.Context, plans []store.Plan, settings store.SiteSettings) (*export.Result, error)
}

type revisions interface {
	Commit(pageID string, c gitrepo.Content, author, message string) (gitrepo.Revision, bool, error)
	History(pageID string, limit int) ([]gitrepo.Revision, error)
	Get(pageID, hash string) (gitrepo.Content, gitrepo.Revision, error)
	Remove(pageID string) error
}

type mailer interface {
	IsConfigured() bool
	SendContactNotification(to string, data email.ContactData) error
	SendPasswordResetEmail(to string, data email.PasswordResetData) error
}

// Deps are the collaborators of a Service. Search, Media, Export, Revisions,
// Mailer and Limiter are optional; leave them unset when not configured.
type Deps struct {
	Config    config.Config
	Stores    *Stores
	Accounts  accounts
	Sessions  session.Store
	Site      siteData
	Search    searcher
	Media     uploader
	Export    exporter
	Revisions revisions
	Mailer    mailer
	Limiter   *ratelimit.Limiter
}

type Service struct {
	cfg       config.Config
	stores    *Stores
	accounts  accounts
	sessions  session.Store
	site      siteData
	search    searcher
	media     uploader
	export    exporter
	revisions revisions
	mailer    mailer
	limiter   *ratelimit.Limiter
	now       func() time.Time
}

func New(deps Deps) *Service {
	return &Service{
		cfg:       deps.Config,
		stores:    deps.Stores,
		accounts:  deps.Accounts,
		sessions:  deps.Sessions,
		site:      deps.Site,
		search:    deps.Search,
		media:     deps.Media,
		export:    deps.Export,
		revisions: deps.Revisions,
		mailer:    deps.Mailer,
		limiter:   deps.Limiter,
		now:       time.Now,
	}
}

func (s *Service) Stores() *Stores {
	return s.stores
}

// Bootstrap registers the search hooks and loads every store. Fetch failures
// are returned but leave the service usable: stores retry on the next read.
func (s *Service) Bootstrap(ctx context.Context) error {
	if s.search != nil {
		s.stores.Services.OnChange(func(items []store.Service) {
			s.search.Sync(search.ResultService, search.ServiceRecords(items))
		})
		s.stores.Portfolio.OnChange(func(items []store.PortfolioItem) {
			s.search.Sync(search.ResultPortfolio, search.PortfolioRecords(items))
		})
		s.stores.Pages.OnChange(func(items []store.Page) {
			s.search.Sync(search.ResultPage, search.PageRecords(items))
		})
	}
	return s.stores.Load(ctx)
}

func (s *Service) Login(ctx context.Context, emailAddr, password string) (Session, error) {
	user, err := s.accounts.SignIn(ctx, emailAddr, password)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

// Refresh rotates a refresh token: the old one is revoked and a new pair is
// issued. The user is re-read so role changes and deactivation apply.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return Session{}, auth.ErrInvalidToken
	}
	tokenHash := auth.HashToken(refreshToken)
	userID, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if errors.Is(err, session.ErrNotFound) {
		return Session{}, auth.ErrInvalidToken
	}
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.UserProfile) (Session, error) {
	jti := util.NewID("jti")
	claims := auth.NewClaims(user.ID, user.DisplayName, user.Role, jti, s.cfg.AccessTTL)
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), claims)
	if err != nil {
		return Session{}, err
	}

	refresh, err := auth.RandomToken()
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, s.now().Add(s.cfg.RefreshTTL)); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Email:        user.Email,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    claims.Expiry(),
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.sessions.IsAccessTokenRevoked(ctx, claims.ID)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}
	user, err := s.activeUser(ctx, claims.Subject)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Email:     user.Email,
		Role:      user.Role,
		JTI:       claims.ID,
		ExpiresAt: claims.Expiry(),
	}, nil
}

func (s *Service) activeUser(ctx context.Context, userID string) (store.UserProfile, error) {
	user, err := s.stores.Users.Get(ctx, userID)
	if errors.Is(err, content.ErrNotFound) {
		return store.UserProfile{}, auth.ErrInvalidToken
	}
	if err != nil {
		return store.UserProfile{}, err
	}
	if !user.Active() {
		return store.UserProfile{}, auth.ErrInvalidToken
	}
	return user, nil
}

func (s *Service) Logout(ctx context.Context, sess Session, refreshToken string) error {
	if sess.JTI != "" {
		if err := s.sessions.RevokeAccessToken(ctx, sess.JTI, sess.UserID, sess.ExpiresAt); err != nil {
			log.WithError(err).Warn("revoke access token")
		}
	}
	if refreshToken != "" {
		if err := s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken)); err != nil {
			log.WithError(err).Warn("revoke refresh session")
		}
	}
	return nil
}

// Authorize decides whether the caller may open a client route. sess is nil
// for signed-out callers.
func (s *Service) Authorize(sess *Session, path string) rbac.Decision {
	if sess == nil {
		return rbac.Authorize(false, "", path)
	}
	return rbac.Authorize(true, rbac.Role(sess.Role), path)
}

// RequestPasswordReset always succeeds from the caller's point of view. The
// token is only returned in development when no mailer is configured.
func (s *Service) RequestPasswordReset(ctx context.Context, emailAddr string) (string, error) {
	token, user, err := s.accounts.RequestPasswordReset(ctx, emailAddr)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", nil
	}
	if s.mailer == nil || !s.mailer.IsConfigured() {
		if s.cfg.Env == "development" {
			return token, nil
		}
		log.WithField("user_id", user.ID).Warn("password reset requested but no mailer is configured")
		return "", nil
	}
	settings := s.settingsOrDefault(ctx)
	err = s.mailer.SendPasswordResetEmail(user.Email, email.PasswordResetData{
		SiteName: settings.SiteName,
		UserName: user.DisplayName,
		ResetURL: strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/admin/reset-password?token=" + token,
	})
	if err != nil {
		log.WithError(err).WithField("user_id", user.ID).Error("send password reset email")
	}
	return "", nil
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	return s.accounts.ResetPassword(ctx, token, newPassword)
}

func (s *Service) Dashboard(ctx context.Context) (store.DashboardCounts, error) {
	return s.site.DashboardCounts(ctx)
}

func (s *Service) Settings(ctx context.Context) (store.SiteSettings, error) {
	return s.site.GetSettings(ctx)
}

// settingsOrDefault is used where settings only decorate output.
func (s *Service) settingsOrDefault(ctx context.Context) store.SiteSettings {
	settings, err := s.site.GetSettings(ctx)
	if err != nil {
		log.WithError(err).Warn("load site settings")
		return store.SiteSettings{SiteName: "VSA Tecnologia", Social: map[string]string{}}
	}
	return settings
}

func (s *Service) UpdateSettings(ctx context.Context, in store.SiteSettings) (store.SiteSettings, error) {
	in.SiteName = strings.TrimSpace(in.SiteName)
	in.ContactEmail = strings.TrimSpace(in.ContactEmail)
	fields := fieldErrors{}
	if in.SiteName == "" {
		fields.add("siteName", "obrigatório")
	}
	if in.ContactEmail != "" {
		if _, err := mail.ParseAddress(in.ContactEmail); err != nil {
			fields.add("contactEmail", "e-mail inválido")
		}
	}
	for network, url := range in.Social {
		if strings.TrimSpace(url) == "" {
			delete(in.Social, network)
		}
	}
	if err := fields.err(); err != nil {
		return store.SiteSettings{}, err
	}
	return s.site.UpdateSettings(ctx, in)
}

type ReadinessCheck struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Readiness pings the database and reports which optional integrations are
// available. Only the database decides readiness.
func (s *Service) Readiness(ctx context.Context) (bool, map[string]ReadinessCheck) {
	checks := map[string]ReadinessCheck{}
	ready := true
	if err := s.site.Ping(ctx); err != nil {
		ready = false
		checks["database"] = ReadinessCheck{Status: "error", Error: err.Error()}
	} else {
		checks["database"] = ReadinessCheck{Status: "ok"}
	}

	checks["search"] = ReadinessCheck{Status: "disabled"}
	if s.search != nil && s.search.Enabled() {
		checks["search"] = ReadinessCheck{Status: "ok"}
	}
	checks["media"] = optionalCheck(s.media != nil)
	checks["email"] = optionalCheck(s.mailer != nil && s.mailer.IsConfigured())
	checks["pdf"] = optionalCheck(s.export != nil)
	return ready, checks
}

func optionalCheck(enabled bool) ReadinessCheck {
	if enabled {
		return ReadinessCheck{Status: "ok"}
	}
	return ReadinessCheck{Status: "disabled"}
}

// Reindex pushes the public content of every searchable store to the index.
func (s *Service) Reindex(ctx context.Context) (map[search.ResultType]int, error) {
	if s.search == nil || !s.search.Enabled() {
		return nil, unavailable("SEARCH_UNAVAILABLE", "Índice de busca indisponível")
	}
	if err := s.stores.Services.Fetch(ctx); err != nil {
		return nil, err
	}
	if err := s.stores.Portfolio.Fetch(ctx); err != nil {
		return nil, err
	}
	if err := s.stores.Pages.Fetch(ctx); err != nil {
		return nil, err
	}
	records := map[search.ResultType][]search.Record{
		search.ResultService:   search.ServiceRecords(s.stores.Services.Items()),
		search.ResultPortfolio: search.PortfolioRecords(s.stores.Portfolio.Items()),
		search.ResultPage:      search.PageRecords(s.stores.Pages.Items()),
	}
	if err := s.search.ReindexAll(records); err != nil {
		return nil, fmt.Errorf("reindex: %w", err)
	}
	counts := make(map[search.ResultType]int, len(records))
	for t, list := range records {
		counts[t] = len(list)
	}
	return counts, nil
}

func (s *Service) Search(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}
