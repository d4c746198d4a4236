package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"math"
	"strings"
	"time"

	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("export").Funcs(template.FuncMap{
	"formatDate":   formatDate,
	"formatPrice":  FormatPrice,
	"billingLabel": billingLabel,
}).ParseFS(templateFS, "templates/*.html"))

// PageData feeds templates/page.html.
type PageData struct {
	SiteName    string
	Title       string
	Excerpt     string
	Category    string
	ContentHTML template.HTML
	PublishedAt *time.Time
	GeneratedAt time.Time
}

// PlansData feeds templates/plans.html.
type PlansData struct {
	SiteName     string
	ContactEmail string
	ContactPhone string
	Plans        []store.Plan
	GeneratedAt  time.Time
}

func RenderPageHTML(data PageData) (string, error) {
	return execute("page.html", data)
}

func RenderPlansHTML(data PlansData) (string, error) {
	return execute("plans.html", data)
}

func execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatDate(value any) string {
	switch t := value.(type) {
	case time.Time:
		return t.Format("02/01/2006")
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.Format("02/01/2006")
	default:
		return ""
	}
}

// FormatPrice renders an amount as Brazilian reais, e.g. "R$ 1.299,90".
func FormatPrice(amount float64) string {
	cents := int64(math.Round(amount * 100))
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := fmt.Sprintf("%d", cents/100)
	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}
	return fmt.Sprintf("%sR$ %s,%02d", sign, grouped.String(), cents%100)
}

func billingLabel(period string) string {
	switch period {
	case "monthly":
		return "/mês"
	case "yearly":
		return "/ano"
	case "one_time":
		return "pagamento único"
	default:
		return period
	}
}
