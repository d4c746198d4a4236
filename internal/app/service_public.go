package app

import (
	"context"
	"strings"

	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/content"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/store"
)

// publicItems returns the public rows of a store. An unloaded store is
// fetched first; if that fails the cached placeholder is served and stale is
// true. Drafts and disabled rows are dropped either way.
func publicItems[T content.Entity](ctx context.Context, st *content.Store[T]) (items []T, stale bool, err error) {
	if err := st.Ensure(ctx); err != nil {
		view := st.View()
		if len(view.Items) == 0 {
			return nil, false, err
		}
		return content.PublicOnly(view.Items), true, nil
	}
	view := st.View()
	return content.PublicOnly(view.Items), !view.Loaded, nil
}

func publicOrdered[T content.Ordered](ctx context.Context, st *content.Store[T]) ([]T, bool, error) {
	items, stale, err := publicItems(ctx, st)
	if err != nil {
		return nil, false, err
	}
	content.SortByPosition(items)
	return items, stale, nil
}

func (s *Service) PublicPlans(ctx context.Context) ([]store.Plan, bool, error) {
	return publicOrdered(ctx, s.stores.Plans)
}

func (s *Service) PublicPortfolio(ctx context.Context) ([]store.PortfolioItem, bool, error) {
	return publicOrdered(ctx, s.stores.Portfolio)
}

func (s *Service) PublicSections(ctx context.Context) ([]store.SiteSection, bool, error) {
	return publicOrdered(ctx, s.stores.Sections)
}

type ServiceFilter struct {
	// Category is a service category slug.
	Category string
	Featured bool
}

func (s *Service) PublicServices(ctx context.Context, filter ServiceFilter) ([]store.Service, bool, error) {
	items, stale, err := publicOrdered(ctx, s.stores.Services)
	if err != nil {
		return nil, false, err
	}

	if category := strings.TrimSpace(filter.Category); category != "" {
		if err := s.stores.ServiceCategories.Ensure(ctx); err != nil {
			return nil, false, err
		}
		categoryID := ""
		for _, c := range s.stores.ServiceCategories.Items() {
			if c.Slug == category {
				categoryID = c.ID
				break
			}
		}
		items = content.Filter(items, func(item store.Service) bool {
			return categoryID != "" && item.CategoryID != nil && *item.CategoryID == categoryID
		})
	}
	if filter.Featured {
		items = content.Filter(items, func(item store.Service) bool { return item.Featured })
	}
	return items, stale, nil
}

func (s *Service) PublicService(ctx context.Context, serviceSlug string) (store.Service, bool, error) {
	items, stale, err := publicItems(ctx, s.stores.Services)
	if err != nil {
		return store.Service{}, false, err
	}
	for _, item := range items {
		if item.Slug == serviceSlug {
			return item, stale, nil
		}
	}
	return store.Service{}, stale, content.ErrNotFound
}

// PublicCategories lists the service categories that have at least one
// published service.
func (s *Service) PublicCategories(ctx context.Context) ([]store.Category, error) {
	services, _, err := publicItems(ctx, s.stores.Services)
	if err != nil {
		return nil, err
	}
	if err := s.stores.ServiceCategories.Ensure(ctx); err != nil {
		return nil, err
	}
	used := make(map[string]struct{}, len(services))
	for _, item := range services {
		if item.CategoryID != nil {
			used[*item.CategoryID] = struct{}{}
		}
	}
	return content.Filter(s.stores.ServiceCategories.Items(), func(c store.Category) bool {
		_, ok := used[c.ID]
		return ok
	}), nil
}
