package app

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/search"
)

const maxSearchLimit = 50

func (s *HTTPServer) mountPublic(r *mux.Router) {
	r.HandleFunc("/plans", s.handlePublicPlans).Methods(http.MethodGet)
	r.HandleFunc("/services", s.handlePublicServices).Methods(http.MethodGet)
	r.HandleFunc("/services/{slug}", s.handlePublicService).Methods(http.MethodGet)
	r.HandleFunc("/service-categories", s.handlePublicCategories).Methods(http.MethodGet)
	r.HandleFunc("/portfolio", s.handlePublicPortfolio).Methods(http.MethodGet)
	r.HandleFunc("/sections", s.handlePublicSections).Methods(http.MethodGet)
	r.HandleFunc("/pages/{slug}", s.handlePublicPage).Methods(http.MethodGet)
	r.HandleFunc("/settings", s.handlePublicSettings).Methods(http.MethodGet)
	r.HandleFunc("/search", s.handlePublicSearch).Methods(http.MethodGet)
	r.HandleFunc("/messages", s.handleContact).Methods(http.MethodPost)
}

// writeList answers a public listing. stale marks a cached placeholder
// served while the backend is unreachable.
func writeList(w http.ResponseWriter, items any, stale bool) {
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "stale": stale})
}

func (s *HTTPServer) handlePublicPlans(w http.ResponseWriter, r *http.Request) {
	items, stale, err := s.service.PublicPlans(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeList(w, items, stale)
}

func (s *HTTPServer) handlePublicServices(w http.ResponseWriter, r *http.Request) {
	featured, _ := strconv.ParseBool(r.URL.Query().Get("featured"))
	items, stale, err := s.service.PublicServices(r.Context(), ServiceFilter{
		Category: r.URL.Query().Get("category"),
		Featured: featured,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeList(w, items, stale)
}

func (s *HTTPServer) handlePublicService(w http.ResponseWriter, r *http.Request) {
	item, stale, err := s.service.PublicService(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item, "stale": stale})
}

func (s *HTTPServer) handlePublicCategories(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.PublicCategories(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeList(w, items, false)
}

func (s *HTTPServer) handlePublicPortfolio(w http.ResponseWriter, r *http.Request) {
	items, stale, err := s.service.PublicPortfolio(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeList(w, items, stale)
}

func (s *HTTPServer) handlePublicSections(w http.ResponseWriter, r *http.Request) {
	items, stale, err := s.service.PublicSections(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeList(w, items, stale)
}

func (s *HTTPServer) handlePublicPage(w http.ResponseWriter, r *http.Request) {
	page, stale, err := s.service.PublishedPage(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": page, "stale": stale})
}

func (s *HTTPServer) handlePublicSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.service.Settings(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *HTTPServer) handlePublicSearch(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	q := search.Query{Text: strings.TrimSpace(values.Get("q")), Limit: 20}
	if raw := values.Get("type"); raw != "" {
		t, ok := search.ParseType(raw)
		if !ok {
			s.fail(w, r, invalidField("type", "tipo inválido: "+raw))
			return
		}
		q.FilterType = t
	}
	if limit, err := strconv.Atoi(values.Get("limit")); err == nil && limit > 0 {
		q.Limit = min(limit, maxSearchLimit)
	}
	if offset, err := strconv.Atoi(values.Get("offset")); err == nil && offset > 0 {
		q.Offset = offset
	}
	if q.Text == "" {
		writeJSON(w, http.StatusOK, search.Response{Results: []search.Result{}, Query: ""})
		return
	}
	writeJSON(w, http.StatusOK, s.service.Search(q))
}

func (s *HTTPServer) handleContact(w http.ResponseWriter, r *http.Request) {
	var body ContactInput
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	msg, err := s.service.SubmitContact(r.Context(), s.proxies.ClientKey(r), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": msg.ID, "createdAt": msg.CreatedAt})
}
