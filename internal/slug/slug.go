// Package slug derives URL slugs from display names.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Derive lowercases name, folds accents and joins the remaining
// alphanumeric runs with single hyphens: "Blog Posts" -> "blog-posts".
func Derive(name string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}

func Valid(value string) bool {
	return value != "" && Derive(value) == value
}

// Resolve picks the slug to store for a record. An explicit slug always wins.
// Without one, the slug follows the name as long as the stored slug was never
// edited by hand, which is the case when it still equals the old name's slug.
func Resolve(explicit, name, storedSlug, storedName string) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return Derive(explicit)
	}
	if storedSlug == "" || storedSlug == Derive(storedName) {
		return Derive(name)
	}
	return storedSlug
}

// Tracker follows a form with a name field and a slug field. Until the slug
// is edited directly, every name change re-derives it.
type Tracker struct {
	name    string
	slug    string
	touched bool
}

func NewTracker(name, slug string) *Tracker {
	t := &Tracker{name: name, slug: slug}
	if slug != "" && slug != Derive(name) {
		t.touched = true
	}
	if slug == "" {
		t.slug = Derive(name)
	}
	return t
}

func (t *Tracker) SetName(name string) {
	t.name = name
	if !t.touched {
		t.slug = Derive(name)
	}
}

func (t *Tracker) SetSlug(value string) {
	t.touched = true
	t.slug = Derive(value)
}

func (t *Tracker) Slug() string {
	return t.slug
}

func (t *Tracker) Manual() bool {
	return t.touched
}
