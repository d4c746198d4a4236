package store

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

const (
	MessageNew      = "new"
	MessageRead     = "read"
	MessageArchived = "archived"
)

// UncategorizedLabel is shown for rows whose category is unset or gone.
const UncategorizedLabel = "Sem categoria"

var (
	BillingPeriods = []string{"monthly", "yearly", "one_time"}
	ServiceTypes   = []string{"project", "recurring", "consulting"}
	Complexities   = []string{"low", "medium", "high"}
)

type UserProfile struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	DisplayName   string     `json:"displayName"`
	Role          string     `json:"role"`
	PasswordHash  string     `json:"-"`
	DeactivatedAt *time.Time `json:"deactivatedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func (u UserProfile) GetID() string { return u.ID }

func (u UserProfile) Active() bool { return u.DeactivatedAt == nil }

type PlanFeature struct {
	ID            string `json:"id"`
	PlanID        string `json:"planId"`
	Label         string `json:"label"`
	Included      bool   `json:"included"`
	OrderPosition int    `json:"orderPosition"`
}

func (f PlanFeature) GetID() string { return f.ID }
func (f PlanFeature) Position() int { return f.OrderPosition }

type Plan struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Price         float64       `json:"price"`
	BillingPeriod string        `json:"billingPeriod"`
	Status        string        `json:"status"`
	Featured      bool          `json:"featured"`
	OrderPosition int           `json:"orderPosition"`
	CTALabel      string        `json:"ctaLabel"`
	CTAURL        string        `json:"ctaUrl"`
	Features      []PlanFeature `json:"features"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

func (p Plan) GetID() string  { return p.ID }
func (p Plan) Position() int  { return p.OrderPosition }
func (p Plan) IsPublic() bool { return p.Status == StatusPublished }

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (c Category) GetID() string { return c.ID }

type Service struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Slug          string          `json:"slug"`
	Summary       string          `json:"summary"`
	Description   json.RawMessage `json:"description"`
	Icon          string          `json:"icon"`
	ImageURL      string          `json:"imageUrl"`
	CategoryID    *string         `json:"categoryId"`
	CategoryName  string          `json:"categoryName"`
	Type          string          `json:"type"`
	Complexity    string          `json:"complexity"`
	Status        string          `json:"status"`
	Featured      bool            `json:"featured"`
	OrderPosition int             `json:"orderPosition"`
	PriceFrom     *float64        `json:"priceFrom"`
	DeliveryTime  string          `json:"deliveryTime"`
	Technologies  []string        `json:"technologies"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func (s Service) GetID() string  { return s.ID }
func (s Service) Position() int  { return s.OrderPosition }
func (s Service) IsPublic() bool { return s.Status == StatusPublished }

type PortfolioItem struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Client        string     `json:"client"`
	Summary       string     `json:"summary"`
	ImageURL      string     `json:"imageUrl"`
	ProjectURL    string     `json:"projectUrl"`
	Technologies  []string   `json:"technologies"`
	Enabled       bool       `json:"enabled"`
	Featured      bool       `json:"featured"`
	OrderPosition int        `json:"orderPosition"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func (p PortfolioItem) GetID() string  { return p.ID }
func (p PortfolioItem) Position() int  { return p.OrderPosition }
func (p PortfolioItem) IsPublic() bool { return p.Enabled }

type Page struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Slug            string          `json:"slug"`
	Excerpt         string          `json:"excerpt"`
	Content         json.RawMessage `json:"content"`
	CategoryID      *string         `json:"categoryId"`
	CategoryName    string          `json:"categoryName"`
	Status          string          `json:"status"`
	Featured        bool            `json:"featured"`
	MetaTitle       string          `json:"metaTitle"`
	MetaDescription string          `json:"metaDescription"`
	AuthorID        *string         `json:"authorId"`
	PublishedAt     *time.Time      `json:"publishedAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func (p Page) GetID() string  { return p.ID }
func (p Page) IsPublic() bool { return p.Status == StatusPublished }

type SiteSection struct {
	ID            string          `json:"id"`
	Key           string          `json:"key"`
	Title         string          `json:"title"`
	Subtitle      string          `json:"subtitle"`
	Content       json.RawMessage `json:"content"`
	Enabled       bool            `json:"enabled"`
	OrderPosition int             `json:"orderPosition"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func (s SiteSection) GetID() string  { return s.ID }
func (s SiteSection) Position() int  { return s.OrderPosition }
func (s SiteSection) IsPublic() bool { return s.Enabled }

type Message struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Company   string    `json:"company"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	ServiceID *string   `json:"serviceId"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

func (m Message) GetID() string { return m.ID }

type SiteSettings struct {
	SiteName     string            `json:"siteName"`
	Tagline      string            `json:"tagline"`
	ContactEmail string            `json:"contactEmail"`
	ContactPhone string            `json:"contactPhone"`
	Address      string            `json:"address"`
	Social       map[string]string `json:"social"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

type DashboardCounts struct {
	Plans       int `json:"plans"`
	Services    int `json:"services"`
	Portfolio   int `json:"portfolio"`
	Pages       int `json:"pages"`
	Messages    int `json:"messages"`
	NewMessages int `json:"newMessages"`
	Users       int `json:"users"`
}

func flipStatus(status string) string {
	if status == StatusPublished {
		return StatusDraft
	}
	return StatusPublished
}

// Toggle flips one boolean-like field. Applying the same toggle twice gives
// back the original value.
func (p Plan) Toggle(field string) (Plan, error) {
	switch field {
	case "featured":
		p.Featured = !p.Featured
	case "status":
		p.Status = flipStatus(p.Status)
	default:
		return p, fmt.Errorf("plan has no toggle %q", field)
	}
	return p, nil
}

func (s Service) Toggle(field string) (Service, error) {
	switch field {
	case "featured":
		s.Featured = !s.Featured
	case "status":
		s.Status = flipStatus(s.Status)
	default:
		return s, fmt.Errorf("service has no toggle %q", field)
	}
	return s, nil
}

func (p PortfolioItem) Toggle(field string) (PortfolioItem, error) {
	switch field {
	case "featured":
		p.Featured = !p.Featured
	case "enabled":
		p.Enabled = !p.Enabled
	default:
		return p, fmt.Errorf("portfolio item has no toggle %q", field)
	}
	return p, nil
}

func (p Page) Toggle(field string) (Page, error) {
	switch field {
	case "featured":
		p.Featured = !p.Featured
	case "status":
		p.Status = flipStatus(p.Status)
	default:
		return p, fmt.Errorf("page has no toggle %q", field)
	}
	return p, nil
}

func (s SiteSection) Toggle(field string) (SiteSection, error) {
	switch field {
	case "enabled":
		s.Enabled = !s.Enabled
	default:
		return s, fmt.Errorf("section has no toggle %q", field)
	}
	return s, nil
}

func categoryLabel(name *string) string {
	if name == nil || *name == "" {
		return UncategorizedLabel
	}
	return *name
}
