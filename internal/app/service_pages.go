package app

import (
	"context"
	"fmt"
	"html/template"
	"strings"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/content"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/export"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/gitrepo"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/store"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/util"
)

const historyLimit = 50

func (s *Service) CreatePage(ctx context.Context, actor Session, in store.Page) (store.Page, error) {
	if err := s.preparePage(ctx, "", &in, store.Page{}); err != nil {
		return store.Page{}, err
	}
	in.ID = util.NewID("page")
	if actor.UserID != "" {
		authorID := actor.UserID
		in.AuthorID = &authorID
	}
	page, err := s.stores.Pages.Create(ctx, in)
	if err != nil {
		return store.Page{}, err
	}
	s.recordRevision(page, actor.UserName, "Criar página")
	return page, nil
}

func (s *Service) UpdatePage(ctx context.Context, actor Session, id string, in store.Page) (store.Page, error) {
	existing, err := s.stores.Pages.Get(ctx, id)
	if err != nil {
		return store.Page{}, err
	}
	if err := s.preparePage(ctx, id, &in, existing); err != nil {
		return store.Page{}, err
	}
	page, err := s.stores.Pages.Update(ctx, id, in)
	if err != nil {
		return store.Page{}, err
	}
	s.recordRevision(page, actor.UserName, "Atualizar página")
	return page, nil
}

func (s *Service) DeletePage(ctx context.Context, id string) error {
	if err := s.stores.Pages.Delete(ctx, id); err != nil {
		return err
	}
	if s.revisions != nil {
		if err := s.revisions.Remove(id); err != nil {
			log.WithError(err).WithField("page_id", id).Warn("remove page history")
		}
	}
	return nil
}

func (s *Service) preparePage(ctx context.Context, id string, in *store.Page, existing store.Page) error {
	fields := fieldErrors{}
	in.Title = requireText(fields, "title", in.Title, maxNameLength)
	in.Slug = resolveSlug(fields, in.Slug, in.Title, existing.Slug, existing.Title)
	in.Excerpt = strings.TrimSpace(in.Excerpt)
	in.Content = checkRichText(fields, "content", in.Content)
	in.Status = oneOf(fields, "status", in.Status, store.StatusDraft, statuses)
	in.MetaTitle = strings.TrimSpace(in.MetaTitle)
	if utf8.RuneCountInString(in.MetaTitle) > maxMetaTitleLength {
		fields.add("metaTitle", fmt.Sprintf("máximo de %d caracteres", maxMetaTitleLength))
	}
	in.MetaDescription = strings.TrimSpace(in.MetaDescription)
	if utf8.RuneCountInString(in.MetaDescription) > maxMetaDescriptionLength {
		fields.add("metaDescription", fmt.Sprintf("máximo de %d caracteres", maxMetaDescriptionLength))
	}
	in.CategoryID = categoryRef(ctx, fields, s.stores.PageCategories, in.CategoryID)
	if err := fields.err(); err != nil {
		return err
	}
	if err := s.stores.Pages.Ensure(ctx); err != nil {
		return err
	}
	if slugTaken(s.stores.Pages.Items(), func(item store.Page) string { return item.Slug }, id, in.Slug) {
		return fmt.Errorf("page slug %q: %w", in.Slug, content.ErrConflict)
	}
	return nil
}

func pageContent(p store.Page) gitrepo.Content {
	return gitrepo.Content{
		Title:           p.Title,
		Slug:            p.Slug,
		Excerpt:         p.Excerpt,
		Status:          p.Status,
		CategoryID:      p.CategoryID,
		MetaTitle:       p.MetaTitle,
		MetaDescription: p.MetaDescription,
		Doc:             p.Content,
	}
}

// recordRevision commits the page to its history. The page row is already
// saved, so a failed commit is logged and not returned.
func (s *Service) recordRevision(p store.Page, author, message string) {
	if s.revisions == nil {
		return
	}
	if strings.TrimSpace(author) == "" {
		author = "Sistema"
	}
	if _, _, err := s.revisions.Commit(p.ID, pageContent(p), author, message); err != nil {
		log.WithError(err).WithField("page_id", p.ID).Warn("record page revision")
	}
}

func (s *Service) PageHistory(ctx context.Context, id string) ([]gitrepo.Revision, error) {
	if _, err := s.stores.Pages.Get(ctx, id); err != nil {
		return nil, err
	}
	if s.revisions == nil {
		return []gitrepo.Revision{}, nil
	}
	return s.revisions.History(id, historyLimit)
}

type RevisionDetail struct {
	Revision gitrepo.Revision `json:"revision"`
	Content  gitrepo.Content  `json:"content"`
	// Changes lists what restoring this revision would change on the page.
	Changes []gitrepo.Change `json:"changes"`
}

func (s *Service) PageRevision(ctx context.Context, id, hash string) (RevisionDetail, error) {
	current, err := s.stores.Pages.Get(ctx, id)
	if err != nil {
		return RevisionDetail{}, err
	}
	if s.revisions == nil {
		return RevisionDetail{}, gitrepo.ErrNoHistory
	}
	snapshot, rev, err := s.revisions.Get(id, hash)
	if err != nil {
		return RevisionDetail{}, err
	}
	changes := gitrepo.DiffFields(pageContent(current), snapshot)
	if changes == nil {
		changes = []gitrepo.Change{}
	}
	return RevisionDetail{Revision: rev, Content: snapshot, Changes: changes}, nil
}

// RestorePage writes an old revision back to the page and records the
// restore as a new revision. Featured and authorship are kept as they are.
func (s *Service) RestorePage(ctx context.Context, actor Session, id, hash string) (store.Page, error) {
	if strings.TrimSpace(hash) == "" {
		return store.Page{}, invalidField("revision", "obrigatório")
	}
	if s.revisions == nil {
		return store.Page{}, gitrepo.ErrNoHistory
	}
	snapshot, rev, err := s.revisions.Get(id, strings.TrimSpace(hash))
	if err != nil {
		return store.Page{}, err
	}
	current, err := s.stores.Pages.Get(ctx, id)
	if err != nil {
		return store.Page{}, err
	}

	restored := current
	restored.Title = snapshot.Title
	restored.Slug = snapshot.Slug
	restored.Excerpt = snapshot.Excerpt
	restored.Status = snapshot.Status
	restored.CategoryID = snapshot.CategoryID
	restored.MetaTitle = snapshot.MetaTitle
	restored.MetaDescription = snapshot.MetaDescription
	restored.Content = snapshot.Doc
	if err := s.preparePage(ctx, id, &restored, current); err != nil {
		return store.Page{}, err
	}

	page, err := s.stores.Pages.Update(ctx, id, restored)
	if err != nil {
		return store.Page{}, err
	}
	s.recordRevision(page, actor.UserName, "Restaurar revisão "+rev.Hash)
	return page, nil
}

type PublicPage struct {
	store.Page
	HTML template.HTML `json:"html"`
}

// PublishedPage finds a published page by slug and renders its content.
func (s *Service) PublishedPage(ctx context.Context, pageSlug string) (PublicPage, bool, error) {
	pages, stale, err := publicItems(ctx, s.stores.Pages)
	if err != nil {
		return PublicPage{}, false, err
	}
	for _, page := range pages {
		if page.Slug == pageSlug {
			return PublicPage{Page: page, HTML: export.RenderContent(page.Content)}, stale, nil
		}
	}
	return PublicPage{}, stale, content.ErrNotFound
}

func (s *Service) PagePDF(ctx context.Context, id string) (*export.Result, error) {
	if s.export == nil {
		return nil, export.ErrPDFDependencyMissing
	}
	page, err := s.stores.Pages.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.export.PagePDF(ctx, page, s.settingsOrDefault(ctx))
}

func (s *Service) PlansPDF(ctx context.Context) (*export.Result, error) {
	if s.export == nil {
		return nil, export.ErrPDFDependencyMissing
	}
	if err := s.stores.Plans.Ensure(ctx); err != nil {
		return nil, err
	}
	return s.export.PlansPDF(ctx, s.stores.Plans.Items(), s.settingsOrDefault(ctx))
}
