package slug

import "testing"

func TestDerive(t *testing.T) {
	cases := map[string]string{
		"Blog Posts":            "blog-posts",
		"  Serviços de TI  ":    "servicos-de-ti",
		"Consultoria & Gestão!": "consultoria-gestao",
		"Plano 2024 -- Pro":     "plano-2024-pro",
		"":                      "",
		"---":                   "",
	}
	for in, want := range cases {
		if got := Derive(in); got != want {
			t.Fatalf("Derive(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTrackerFollowsNameUntilSlugEdited(t *testing.T) {
	tr := NewTracker("", "")
	tr.SetName("Blog Posts")
	if tr.Slug() != "blog-posts" {
		t.Fatalf("expected derived slug, got %q", tr.Slug())
	}

	tr.SetSlug("news")
	tr.SetName("Company Blog")
	if tr.Slug() != "news" {
		t.Fatalf("expected manual slug to stick, got %q", tr.Slug())
	}
	if !tr.Manual() {
		t.Fatal("expected tracker to report manual slug")
	}
}

func TestTrackerDetectsCustomSlugOnEdit(t *testing.T) {
	tr := NewTracker("Cloud", "nuvem")
	tr.SetName("Cloud Hosting")
	if tr.Slug() != "nuvem" {
		t.Fatalf("expected existing custom slug to stick, got %q", tr.Slug())
	}
}

func TestResolve(t *testing.T) {
	cases := []struct {
		name                         string
		explicit, newName, old, oldN string
		want                         string
	}{
		{name: "create derives", newName: "Blog Posts", want: "blog-posts"},
		{name: "explicit wins", explicit: "Meu Blog", newName: "Blog Posts", want: "meu-blog"},
		{name: "untouched follows rename", newName: "Company Blog", old: "blog-posts", oldN: "Blog Posts", want: "company-blog"},
		{name: "manual survives rename", newName: "Company Blog", old: "news", oldN: "Blog Posts", want: "news"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Resolve(tc.explicit, tc.newName, tc.old, tc.oldN); got != tc.want {
				t.Fatalf("Resolve = %q, want %q", got, tc.want)
			}
		})
	}
}
