package export

import (
	"context"
	"fmt"
	"time"

	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/content"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/slug"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/store"
)

// Service builds PDF exports for pages and the plan sheet.
type Service struct {
	renderer PDFRenderer
	now      func() time.Time
}

func NewService(renderer PDFRenderer) *Service {
	return &Service{renderer: renderer, now: time.Now}
}

// PageHTML renders a page as a standalone HTML document.
func (s *Service) PageHTML(p store.Page, settings store.SiteSettings) (string, error) {
	return RenderPageHTML(PageData{
		SiteName:    settings.SiteName,
		Title:       p.Title,
		Excerpt:     p.Excerpt,
		Category:    p.CategoryName,
		ContentHTML: RenderContent(p.Content),
		PublishedAt: p.PublishedAt,
		GeneratedAt: s.now(),
	})
}

func (s *Service) PagePDF(ctx context.Context, p store.Page, settings store.SiteSettings) (*Result, error) {
	html, err := s.PageHTML(p, settings)
	if err != nil {
		return nil, fmt.Errorf("render page template: %w", err)
	}
	data, err := s.renderer.RenderPDF(ctx, html, false)
	if err != nil {
		return nil, err
	}
	name := p.Slug
	if name == "" {
		name = slug.Derive(p.Title)
	}
	return &Result{Data: data, Filename: sanitizeFilename(name) + ".pdf", MimeType: "application/pdf"}, nil
}

// PlansPDF prints the published plans in display order.
func (s *Service) PlansPDF(ctx context.Context, plans []store.Plan, settings store.SiteSettings) (*Result, error) {
	visible := content.PublicOnly(plans)
	if len(visible) == 0 {
		return nil, ErrNothingToExport
	}
	content.SortByPosition(visible)
	html, err := RenderPlansHTML(PlansData{
		SiteName:     settings.SiteName,
		ContactEmail: settings.ContactEmail,
		ContactPhone: settings.ContactPhone,
		Plans:        visible,
		GeneratedAt:  s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("render plans template: %w", err)
	}
	data, err := s.renderer.RenderPDF(ctx, html, true)
	if err != nil {
		return nil, err
	}
	return &Result{Data: data, Filename: "planos-" + s.now().Format("2006-01-02") + ".pdf", MimeType: "application/pdf"}, nil
}
