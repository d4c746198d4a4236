package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/content"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/slug"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/store"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/util"
)

const (
	maxNameLength            = 160
	maxMetaTitleLength       = 70
	maxMetaDescriptionLength = 160
)

var statuses = []string{store.StatusDraft, store.StatusPublished}

type toggler[T any] interface {
	content.Entity
	Toggle(field string) (T, error)
}

// toggleItem flips one field of a stored row. Unknown fields are rejected
// before anything is written.
func toggleItem[T toggler[T]](ctx context.Context, st *content.Store[T], id, field string) (T, error) {
	return st.Mutate(ctx, id, func(current T) (T, error) {
		next, err := current.Toggle(strings.TrimSpace(field))
		if err != nil {
			return current, invalidField("field", err.Error())
		}
		return next, nil
	})
}

func requireText(fields fieldErrors, name, value string, max int) string {
	value = strings.TrimSpace(value)
	if value == "" {
		fields.add(name, "obrigatório")
	} else if utf8.RuneCountInString(value) > max {
		fields.add(name, fmt.Sprintf("máximo de %d caracteres", max))
	}
	return value
}

func oneOf(fields fieldErrors, name, value, fallback string, allowed []string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	if !slices.Contains(allowed, value) {
		fields.add(name, "valor inválido: "+value)
	}
	return value
}

func checkRichText(fields fieldErrors, name string, raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if !json.Valid(raw) {
		fields.add(name, "JSON inválido")
	}
	return raw
}

// checkLink accepts site-relative paths and absolute http(s), mailto and tel
// links.
func checkLink(fields fieldErrors, name, value string) string {
	value = strings.TrimSpace(value)
	if value == "" || strings.HasPrefix(value, "/") || strings.HasPrefix(value, "#") {
		return value
	}
	parsed, err := url.Parse(value)
	if err != nil {
		fields.add(name, "link inválido")
		return value
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		if parsed.Host == "" {
			fields.add(name, "link inválido")
		}
	case "mailto", "tel":
	default:
		fields.add(name, "link inválido")
	}
	return value
}

func cleanTags(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" || slices.Contains(out, value) {
			continue
		}
		out = append(out, value)
	}
	return out
}

// categoryRef normalizes an optional category id and checks it exists.
func categoryRef(ctx context.Context, fields fieldErrors, categories *content.Store[store.Category], id *string) *string {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil
	}
	value := strings.TrimSpace(*id)
	if err := categories.Ensure(ctx); err != nil {
		log.WithError(err).Warn("load categories for validation")
	}
	if _, ok := categories.Find(value); !ok {
		fields.add("categoryId", "categoria inexistente")
	}
	return &value
}

// slugTaken reports whether another item of the collection already uses value.
func slugTaken[T content.Entity](items []T, slugOf func(T) string, id, value string) bool {
	for _, item := range items {
		if item.GetID() != id && slugOf(item) == value {
			return true
		}
	}
	return false
}

func resolveSlug(fields fieldErrors, explicit, name, storedSlug, storedName string) string {
	value := slug.Resolve(explicit, name, storedSlug, storedName)
	if value == "" {
		fields.add("slug", "não foi possível gerar o slug")
	}
	return value
}

// Plans

func (s *Service) CreatePlan(ctx context.Context, in store.Plan) (store.Plan, error) {
	if err := preparePlan(&in); err != nil {
		return store.Plan{}, err
	}
	in.ID = util.NewID("plan")
	in.OrderPosition = 0
	return s.stores.Plans.Create(ctx, in)
}

func (s *Service) UpdatePlan(ctx context.Context, id string, in store.Plan) (store.Plan, error) {
	if err := preparePlan(&in); err != nil {
		return store.Plan{}, err
	}
	return s.stores.Plans.Update(ctx, id, in)
}

func preparePlan(in *store.Plan) error {
	fields := fieldErrors{}
	in.Name = requireText(fields, "name", in.Name, maxNameLength)
	in.Description = strings.TrimSpace(in.Description)
	if in.Price < 0 {
		fields.add("price", "não pode ser negativo")
	}
	in.BillingPeriod = oneOf(fields, "billingPeriod", in.BillingPeriod, "monthly", store.BillingPeriods)
	in.Status = oneOf(fields, "status", in.Status, store.StatusDraft, statuses)
	in.CTALabel = strings.TrimSpace(in.CTALabel)
	in.CTAURL = checkLink(fields, "ctaUrl", in.CTAURL)

	features := make([]store.PlanFeature, 0, len(in.Features))
	for i, feature := range in.Features {
		feature.Label = strings.TrimSpace(feature.Label)
		if feature.Label == "" {
			fields.add(fmt.Sprintf("features[%d].label", i), "obrigatório")
		}
		feature.OrderPosition = i + 1
		features = append(features, feature)
	}
	in.Features = features
	return fields.err()
}

// Services

func (s *Service) CreateService(ctx context.Context, in store.Service) (store.Service, error) {
	if err := s.prepareService(ctx, "", &in, store.Service{}); err != nil {
		return store.Service{}, err
	}
	in.ID = util.NewID("svc")
	in.OrderPosition = 0
	return s.stores.Services.Create(ctx, in)
}

func (s *Service) UpdateService(ctx context.Context, id string, in store.Service) (store.Service, error) {
	existing, err := s.stores.Services.Get(ctx, id)
	if err != nil {
		return store.Service{}, err
	}
	if err := s.prepareService(ctx, id, &in, existing); err != nil {
		return store.Service{}, err
	}
	return s.stores.Services.Update(ctx, id, in)
}

func (s *Service) prepareService(ctx context.Context, id string, in *store.Service, existing store.Service) error {
	fields := fieldErrors{}
	in.Title = requireText(fields, "title", in.Title, maxNameLength)
	in.Slug = resolveSlug(fields, in.Slug, in.Title, existing.Slug, existing.Title)
	in.Summary = strings.TrimSpace(in.Summary)
	in.Description = checkRichText(fields, "description", in.Description)
	in.Type = oneOf(fields, "type", in.Type, "project", store.ServiceTypes)
	in.Complexity = oneOf(fields, "complexity", in.Complexity, "medium", store.Complexities)
	in.Status = oneOf(fields, "status", in.Status, store.StatusDraft, statuses)
	in.ImageURL = checkLink(fields, "imageUrl", in.ImageURL)
	if in.PriceFrom != nil && *in.PriceFrom < 0 {
		fields.add("priceFrom", "não pode ser negativo")
	}
	in.DeliveryTime = strings.TrimSpace(in.DeliveryTime)
	in.Technologies = cleanTags(in.Technologies)
	in.CategoryID = categoryRef(ctx, fields, s.stores.ServiceCategories, in.CategoryID)
	if err := fields.err(); err != nil {
		return err
	}
	if err := s.stores.Services.Ensure(ctx); err != nil {
		return err
	}
	if slugTaken(s.stores.Services.Items(), func(item store.Service) string { return item.Slug }, id, in.Slug) {
		return fmt.Errorf("service slug %q: %w", in.Slug, content.ErrConflict)
	}
	return nil
}

// Portfolio

func (s *Service) CreatePortfolioItem(ctx context.Context, in store.PortfolioItem) (store.PortfolioItem, error) {
	if err := preparePortfolioItem(&in); err != nil {
		return store.PortfolioItem{}, err
	}
	in.ID = util.NewID("pf")
	in.OrderPosition = 0
	return s.stores.Portfolio.Create(ctx, in)
}

func (s *Service) UpdatePortfolioItem(ctx context.Context, id string, in store.PortfolioItem) (store.PortfolioItem, error) {
	if err := preparePortfolioItem(&in); err != nil {
		return store.PortfolioItem{}, err
	}
	return s.stores.Portfolio.Update(ctx, id, in)
}

func preparePortfolioItem(in *store.PortfolioItem) error {
	fields := fieldErrors{}
	in.Title = requireText(fields, "title", in.Title, maxNameLength)
	in.Client = strings.TrimSpace(in.Client)
	in.Summary = strings.TrimSpace(in.Summary)
	in.ImageURL = checkLink(fields, "imageUrl", in.ImageURL)
	in.ProjectURL = checkLink(fields, "projectUrl", in.ProjectURL)
	in.Technologies = cleanTags(in.Technologies)
	return fields.err()
}

// Site sections

func (s *Service) CreateSection(ctx context.Context, in store.SiteSection) (store.SiteSection, error) {
	if err := prepareSection(&in); err != nil {
		return store.SiteSection{}, err
	}
	in.ID = util.NewID("sec")
	in.OrderPosition = 0
	return s.stores.Sections.Create(ctx, in)
}

func (s *Service) UpdateSection(ctx context.Context, id string, in store.SiteSection) (store.SiteSection, error) {
	if err := prepareSection(&in); err != nil {
		return store.SiteSection{}, err
	}
	return s.stores.Sections.Update(ctx, id, in)
}

func prepareSection(in *store.SiteSection) error {
	fields := fieldErrors{}
	in.Key = strings.TrimSpace(in.Key)
	if !slug.Valid(in.Key) {
		fields.add("key", "use letras minúsculas, números e hífens")
	}
	in.Title = requireText(fields, "title", in.Title, maxNameLength)
	in.Subtitle = strings.TrimSpace(in.Subtitle)
	in.Content = checkRichText(fields, "content", in.Content)
	return fields.err()
}

// Categories

type categoryKind struct {
	store      *content.Store[store.Category]
	prefix     string
	dependents func(ctx context.Context) error
}

func (s *Service) serviceCategories() categoryKind {
	return categoryKind{store: s.stores.ServiceCategories, prefix: "scat", dependents: s.stores.Services.Fetch}
}

func (s *Service) pageCategories() categoryKind {
	return categoryKind{store: s.stores.PageCategories, prefix: "pcat", dependents: s.stores.Pages.Fetch}
}

func (s *Service) CreateServiceCategory(ctx context.Context, in store.Category) (store.Category, error) {
	return s.createCategory(ctx, s.serviceCategories(), in)
}

func (s *Service) UpdateServiceCategory(ctx context.Context, id string, in store.Category) (store.Category, error) {
	return s.updateCategory(ctx, s.serviceCategories(), id, in)
}

func (s *Service) DeleteServiceCategory(ctx context.Context, id string) error {
	return s.deleteCategory(ctx, s.serviceCategories(), id)
}

func (s *Service) CreatePageCategory(ctx context.Context, in store.Category) (store.Category, error) {
	return s.createCategory(ctx, s.pageCategories(), in)
}

func (s *Service) UpdatePageCategory(ctx context.Context, id string, in store.Category) (store.Category, error) {
	return s.updateCategory(ctx, s.pageCategories(), id, in)
}

func (s *Service) DeletePageCategory(ctx context.Context, id string) error {
	return s.deleteCategory(ctx, s.pageCategories(), id)
}

func (s *Service) createCategory(ctx context.Context, kind categoryKind, in store.Category) (store.Category, error) {
	if err := prepareCategory(&in, store.Category{}); err != nil {
		return store.Category{}, err
	}
	in.ID = util.NewID(kind.prefix)
	return kind.store.Create(ctx, in)
}

func (s *Service) updateCategory(ctx context.Context, kind categoryKind, id string, in store.Category) (store.Category, error) {
	existing, err := kind.store.Get(ctx, id)
	if err != nil {
		return store.Category{}, err
	}
	if err := prepareCategory(&in, existing); err != nil {
		return store.Category{}, err
	}
	updated, err := kind.store.Update(ctx, id, in)
	if err != nil {
		return store.Category{}, err
	}
	s.refreshDependents(ctx, kind)
	return updated, nil
}

// deleteCategory leaves referencing rows in place; their label falls back to
// the uncategorized one on the next fetch.
func (s *Service) deleteCategory(ctx context.Context, kind categoryKind, id string) error {
	if err := kind.store.Delete(ctx, id); err != nil {
		return err
	}
	s.refreshDependents(ctx, kind)
	return nil
}

func (s *Service) refreshDependents(ctx context.Context, kind categoryKind) {
	if err := kind.dependents(ctx); err != nil {
		log.WithError(err).WithField("store", kind.store.Name()).Warn("refresh items after category change")
	}
}

func prepareCategory(in *store.Category, existing store.Category) error {
	fields := fieldErrors{}
	in.Name = requireText(fields, "name", in.Name, maxNameLength)
	in.Slug = resolveSlug(fields, in.Slug, in.Name, existing.Slug, existing.Name)
	in.Description = strings.TrimSpace(in.Description)
	return fields.err()
}

// Ordering

// Reorder moves an item of an orderable collection one step up or down.
func (s *Service) Reorder(ctx context.Context, collection, id string, dir content.Direction) (bool, error) {
	switch collection {
	case "plans":
		return content.Reorder(ctx, s.stores.Plans, id, dir)
	case "services":
		return content.Reorder(ctx, s.stores.Services, id, dir)
	case "portfolio":
		return content.Reorder(ctx, s.stores.Portfolio, id, dir)
	case "sections":
		return content.Reorder(ctx, s.stores.Sections, id, dir)
	}
	return false, invalidField("collection", "coleção sem ordenação: "+collection)
}

// Normalize renumbers an orderable collection to 1..n.
func (s *Service) Normalize(ctx context.Context, collection string) error {
	switch collection {
	case "plans":
		return content.Normalize(ctx, s.stores.Plans)
	case "services":
		return content.Normalize(ctx, s.stores.Services)
	case "portfolio":
		return content.Normalize(ctx, s.stores.Portfolio)
	case "sections":
		return content.Normalize(ctx, s.stores.Sections)
	}
	return invalidField("collection", "coleção sem ordenação: "+collection)
}

// Toggle flips enabled, featured or status on a collection item.
func (s *Service) Toggle(ctx context.Context, collection, id, field string) (any, error) {
	switch collection {
	case "plans":
		return toggleItem(ctx, s.stores.Plans, id, field)
	case "services":
		return toggleItem(ctx, s.stores.Services, id, field)
	case "portfolio":
		return toggleItem(ctx, s.stores.Portfolio, id, field)
	case "sections":
		return toggleItem(ctx, s.stores.Sections, id, field)
	case "pages":
		page, err := toggleItem(ctx, s.stores.Pages, id, field)
		if err == nil {
			s.recordRevision(page, "", "Alterar "+strings.TrimSpace(field))
		}
		return page, err
	}
	return nil, invalidField("collection", "coleção sem alternância: "+collection)
}
