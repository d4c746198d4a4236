package app

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/content"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/metrics"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/store"
)

// Repositories are the durable backends of every content store.
type Repositories struct {
	Plans             content.Repository[store.Plan]
	Services          content.Repository[store.Service]
	Portfolio         content.Repository[store.PortfolioItem]
	Sections          content.Repository[store.SiteSection]
	Pages             content.Repository[store.Page]
	ServiceCategories content.Repository[store.Category]
	PageCategories    content.Repository[store.Category]
	Messages          content.Repository[store.Message]
	Users             content.Repository[store.UserProfile]
}

func PostgresRepositories(pg *store.PostgresStore) Repositories {
	return Repositories{
		Plans:             pg.Plans(),
		Services:          pg.Services(),
		Portfolio:         pg.Portfolio(),
		Sections:          pg.Sections(),
		Pages:             pg.Pages(),
		ServiceCategories: pg.ServiceCategories(),
		PageCategories:    pg.PageCategories(),
		Messages:          pg.Messages(),
		Users:             pg.Users(),
	}
}

// Stores holds one synchronized store per collection.
type Stores struct {
	Plans             *content.Store[store.Plan]
	Services          *content.Store[store.Service]
	Portfolio         *content.Store[store.PortfolioItem]
	Sections          *content.Store[store.SiteSection]
	Pages             *content.Store[store.Page]
	ServiceCategories *content.Store[store.Category]
	PageCategories    *content.Store[store.Category]
	Messages          *content.Store[store.Message]
	Users             *content.Store[store.UserProfile]
}

// NewStores wires repositories into stores. ordering supplies the swap and
// renumber hooks of a table; snapshots may be nil. Messages and users are
// never snapshotted.
func NewStores(repos Repositories, ordering func(table string) content.Options, snapshots content.Snapshots) *Stores {
	ordered := func(table string) content.Options {
		opts := content.Options{}
		if ordering != nil {
			opts = ordering(table)
		}
		opts.Snapshots = snapshots
		opts.Observe = metrics.ObserveStore
		return opts
	}
	plain := content.Options{Snapshots: snapshots, Observe: metrics.ObserveStore}
	private := content.Options{Observe: metrics.ObserveStore}

	return &Stores{
		Plans:             content.NewStore("plans", repos.Plans, ordered("plans")),
		Services:          content.NewStore("services", repos.Services, ordered("services")),
		Portfolio:         content.NewStore("portfolio", repos.Portfolio, ordered("portfolio_items")),
		Sections:          content.NewStore("sections", repos.Sections, ordered("site_sections")),
		Pages:             content.NewStore("pages", repos.Pages, plain),
		ServiceCategories: content.NewStore("service_categories", repos.ServiceCategories, plain),
		PageCategories:    content.NewStore("page_categories", repos.PageCategories, plain),
		Messages:          content.NewStore("messages", repos.Messages, private),
		Users:             content.NewStore("users", repos.Users, private),
	}
}

type loader interface {
	Name() string
	Hydrate(ctx context.Context) (bool, error)
	Fetch(ctx context.Context) error
}

func (s *Stores) all() []loader {
	return []loader{
		s.ServiceCategories, s.PageCategories,
		s.Plans, s.Services, s.Portfolio, s.Sections, s.Pages,
		s.Messages, s.Users,
	}
}

// Load hydrates every store from its snapshot and then fetches it. A store
// that fails to fetch keeps its placeholder; the errors are joined.
func (s *Stores) Load(ctx context.Context) error {
	var errs []error
	for _, st := range s.all() {
		logger := log.WithField("store", st.Name())
		if hydrated, err := st.Hydrate(ctx); err != nil {
			logger.WithError(err).Warn("snapshot hydrate failed")
		} else if hydrated {
			logger.Debug("hydrated from snapshot")
		}
		if err := st.Fetch(ctx); err != nil {
			logger.WithError(err).Warn("initial fetch failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
