package app

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/content"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/rbac"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/store"
)

const uploadOverhead = 1 << 20

// collection describes the admin routes of one content store. Nil hooks
// leave the matching routes out.
type collection[T content.Entity] struct {
	name      string
	store     *content.Store[T]
	create    func(ctx context.Context, sess Session, item T) (T, error)
	update    func(ctx context.Context, sess Session, id string, item T) (T, error)
	remove    func(ctx context.Context, id string) error
	orderable bool
	toggles   bool
}

func (s *HTTPServer) mountAdmin(r *mux.Router) {
	svc := s.service
	stores := svc.Stores()

	r.HandleFunc("/dashboard", s.requireAction(rbac.ActionRead, s.handleDashboard)).Methods(http.MethodGet)
	r.HandleFunc("/plans/export.pdf", s.requireAction(rbac.ActionRead, s.handlePlansPDF)).Methods(http.MethodGet)
	r.HandleFunc("/pages/{id}/history", s.requireAction(rbac.ActionRead, s.handlePageHistory)).Methods(http.MethodGet)
	r.HandleFunc("/pages/{id}/history/{rev}", s.requireAction(rbac.ActionRead, s.handlePageRevision)).Methods(http.MethodGet)
	r.HandleFunc("/pages/{id}/restore", s.requireAction(rbac.ActionWrite, s.handlePageRestore)).Methods(http.MethodPost)
	r.HandleFunc("/pages/{id}/export.pdf", s.requireAction(rbac.ActionRead, s.handlePagePDF)).Methods(http.MethodGet)

	mountCollection(s, r, collection[store.Plan]{
		name:  "plans",
		store: stores.Plans,
		create: func(ctx context.Context, _ Session, item store.Plan) (store.Plan, error) {
			return svc.CreatePlan(ctx, item)
		},
		update: func(ctx context.Context, _ Session, id string, item store.Plan) (store.Plan, error) {
			return svc.UpdatePlan(ctx, id, item)
		},
		remove:    stores.Plans.Delete,
		orderable: true,
		toggles:   true,
	})
	mountCollection(s, r, collection[store.Service]{
		name:  "services",
		store: stores.Services,
		create: func(ctx context.Context, _ Session, item store.Service) (store.Service, error) {
			return svc.CreateService(ctx, item)
		},
		update: func(ctx context.Context, _ Session, id string, item store.Service) (store.Service, error) {
			return svc.UpdateService(ctx, id, item)
		},
		remove:    stores.Services.Delete,
		orderable: true,
		toggles:   true,
	})
	mountCollection(s, r, collection[store.PortfolioItem]{
		name:  "portfolio",
		store: stores.Portfolio,
		create: func(ctx context.Context, _ Session, item store.PortfolioItem) (store.PortfolioItem, error) {
			return svc.CreatePortfolioItem(ctx, item)
		},
		update: func(ctx context.Context, _ Session, id string, item store.PortfolioItem) (store.PortfolioItem, error) {
			return svc.UpdatePortfolioItem(ctx, id, item)
		},
		remove:    stores.Portfolio.Delete,
		orderable: true,
		toggles:   true,
	})
	mountCollection(s, r, collection[store.SiteSection]{
		name:  "sections",
		store: stores.Sections,
		create: func(ctx context.Context, _ Session, item store.SiteSection) (store.SiteSection, error) {
			return svc.CreateSection(ctx, item)
		},
		update: func(ctx context.Context, _ Session, id string, item store.SiteSection) (store.SiteSection, error) {
			return svc.UpdateSection(ctx, id, item)
		},
		remove:    stores.Sections.Delete,
		orderable: true,
		toggles:   true,
	})
	mountCollection(s, r, collection[store.Page]{
		name:    "pages",
		store:   stores.Pages,
		create:  svc.CreatePage,
		update:  svc.UpdatePage,
		remove:  svc.DeletePage,
		toggles: true,
	})
	mountCollection(s, r, collection[store.Category]{
		name:  "service-categories",
		store: stores.ServiceCategories,
		create: func(ctx context.Context, _ Session, item store.Category) (store.Category, error) {
			return svc.CreateServiceCategory(ctx, item)
		},
		update: func(ctx context.Context, _ Session, id string, item store.Category) (store.Category, error) {
			return svc.UpdateServiceCategory(ctx, id, item)
		},
		remove: svc.DeleteServiceCategory,
	})
	mountCollection(s, r, collection[store.Category]{
		name:  "page-categories",
		store: stores.PageCategories,
		create: func(ctx context.Context, _ Session, item store.Category) (store.Category, error) {
			return svc.CreatePageCategory(ctx, item)
		},
		update: func(ctx context.Context, _ Session, id string, item store.Category) (store.Category, error) {
			return svc.UpdatePageCategory(ctx, id, item)
		},
		remove: svc.DeletePageCategory,
	})

	r.HandleFunc("/ordering/{collection}/normalize", s.requireAction(rbac.ActionAdmin, s.handleNormalize)).Methods(http.MethodPost)

	mountCollection(s, r, collection[store.Message]{
		name:   "messages",
		store:  stores.Messages,
		remove: stores.Messages.Delete,
	})
	r.HandleFunc("/messages/{id}/status", s.requireAction(rbac.ActionWrite, s.handleMessageStatus)).Methods(http.MethodPut)

	r.HandleFunc("/media", s.requireAction(rbac.ActionWrite, s.handleUpload)).Methods(http.MethodPost)

	r.HandleFunc("/users", s.requireAction(rbac.ActionAdmin, s.handleListUsers)).Methods(http.MethodGet)
	r.HandleFunc("/users", s.requireAction(rbac.ActionAdmin, s.handleCreateUser)).Methods(http.MethodPost)
	r.HandleFunc("/users/{id}/role", s.requireAction(rbac.ActionAdmin, s.handleUserRole)).Methods(http.MethodPut)
	r.HandleFunc("/users/{id}/status", s.requireAction(rbac.ActionAdmin, s.handleUserStatus)).Methods(http.MethodPut)
	r.HandleFunc("/users/{id}", s.requireAction(rbac.ActionAdmin, s.handleDeleteUser)).Methods(http.MethodDelete)

	r.HandleFunc("/settings", s.requireAction(rbac.ActionAdmin, s.handleGetSettings)).Methods(http.MethodGet)
	r.HandleFunc("/settings", s.requireAction(rbac.ActionAdmin, s.handleUpdateSettings)).Methods(http.MethodPut)
	r.HandleFunc("/search/reindex", s.requireAction(rbac.ActionAdmin, s.handleReindex)).Methods(http.MethodPost)
}

// mountCollection registers list and get for viewers and the write routes
// for editors.
func mountCollection[T content.Entity](s *HTTPServer, r *mux.Router, c collection[T]) {
	base := "/" + c.name
	r.HandleFunc(base, s.requireAction(rbac.ActionRead, func(w http.ResponseWriter, r *http.Request, _ Session) {
		if err := c.store.Ensure(r.Context()); err != nil && len(c.store.Items()) == 0 {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, c.store.View())
	})).Methods(http.MethodGet)

	r.HandleFunc(base+"/{id}", s.requireAction(rbac.ActionRead, func(w http.ResponseWriter, r *http.Request, _ Session) {
		item, err := c.store.Get(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	})).Methods(http.MethodGet)

	if c.create != nil {
		r.HandleFunc(base, s.requireAction(rbac.ActionWrite, func(w http.ResponseWriter, r *http.Request, sess Session) {
			var item T
			if err := decodeBody(r, &item); err != nil {
				s.fail(w, r, err)
				return
			}
			created, err := c.create(r.Context(), sess, item)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, created)
		})).Methods(http.MethodPost)
	}

	if c.update != nil {
		r.HandleFunc(base+"/{id}", s.requireAction(rbac.ActionWrite, func(w http.ResponseWriter, r *http.Request, sess Session) {
			var item T
			if err := decodeBody(r, &item); err != nil {
				s.fail(w, r, err)
				return
			}
			updated, err := c.update(r.Context(), sess, mux.Vars(r)["id"], item)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, updated)
		})).Methods(http.MethodPut)
	}

	if c.remove != nil {
		r.HandleFunc(base+"/{id}", s.requireAction(rbac.ActionWrite, func(w http.ResponseWriter, r *http.Request, _ Session) {
			if err := c.remove(r.Context(), mux.Vars(r)["id"]); err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		})).Methods(http.MethodDelete)
	}

	if c.orderable {
		r.HandleFunc(base+"/{id}/reorder", s.requireAction(rbac.ActionWrite, func(w http.ResponseWriter, r *http.Request, _ Session) {
			var body struct {
				Direction string `json:"direction"`
			}
			if err := decodeBody(r, &body); err != nil {
				s.fail(w, r, err)
				return
			}
			dir, err := content.ParseDirection(body.Direction)
			if err != nil {
				s.fail(w, r, invalidField("direction", "use up ou down"))
				return
			}
			moved, err := s.service.Reorder(r.Context(), c.name, mux.Vars(r)["id"], dir)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"moved": moved, "items": c.store.Items()})
		})).Methods(http.MethodPost)
	}

	if c.toggles {
		r.HandleFunc(base+"/{id}/toggle", s.requireAction(rbac.ActionWrite, func(w http.ResponseWriter, r *http.Request, _ Session) {
			var body struct {
				Field string `json:"field"`
			}
			if err := decodeBody(r, &body); err != nil {
				s.fail(w, r, err)
				return
			}
			item, err := s.service.Toggle(r.Context(), c.name, mux.Vars(r)["id"], body.Field)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, item)
		})).Methods(http.MethodPost)
	}
}

func (s *HTTPServer) handleDashboard(w http.ResponseWriter, r *http.Request, _ Session) {
	counts, err := s.service.Dashboard(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (s *HTTPServer) handleNormalize(w http.ResponseWriter, r *http.Request, _ Session) {
	if err := s.service.Normalize(r.Context(), mux.Vars(r)["collection"]); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handlePageHistory(w http.ResponseWriter, r *http.Request, _ Session) {
	revisions, err := s.service.PageHistory(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": revisions})
}

func (s *HTTPServer) handlePageRevision(w http.ResponseWriter, r *http.Request, _ Session) {
	vars := mux.Vars(r)
	detail, err := s.service.PageRevision(r.Context(), vars["id"], vars["rev"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *HTTPServer) handlePageRestore(w http.ResponseWriter, r *http.Request, sess Session) {
	var body struct {
		Revision string `json:"revision"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	page, err := s.service.RestorePage(r.Context(), sess, mux.Vars(r)["id"], body.Revision)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *HTTPServer) handlePagePDF(w http.ResponseWriter, r *http.Request, _ Session) {
	result, err := s.service.PagePDF(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeFile(w, result.Filename, result.MimeType, result.Data)
}

func (s *HTTPServer) handlePlansPDF(w http.ResponseWriter, r *http.Request, _ Session) {
	result, err := s.service.PlansPDF(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeFile(w, result.Filename, result.MimeType, result.Data)
}

func (s *HTTPServer) handleMessageStatus(w http.ResponseWriter, r *http.Request, _ Session) {
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	msg, err := s.service.SetMessageStatus(r.Context(), mux.Vars(r)["id"], body.Status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request, _ Session) {
	r.Body = http.MaxBytesReader(w, r.Body, s.service.cfg.MaxUploadBytes+uploadOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.fail(w, r, invalidField("file", "arquivo ausente ou grande demais"))
		return
	}
	defer file.Close()

	asset, err := s.service.Upload(r.Context(), strings.TrimSpace(r.FormValue("folder")), header.Filename, file)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

func (s *HTTPServer) handleListUsers(w http.ResponseWriter, r *http.Request, _ Session) {
	users := s.service.Stores().Users
	if err := users.Ensure(r.Context()); err != nil && len(users.Items()) == 0 {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users.View())
}

func (s *HTTPServer) handleCreateUser(w http.ResponseWriter, r *http.Request, _ Session) {
	var body CreateUserInput
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	user, err := s.service.CreateUser(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *HTTPServer) handleUserRole(w http.ResponseWriter, r *http.Request, sess Session) {
	var body struct {
		Role string `json:"role"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	user, err := s.service.SetUserRole(r.Context(), sess, mux.Vars(r)["id"], body.Role)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *HTTPServer) handleUserStatus(w http.ResponseWriter, r *http.Request, sess Session) {
	var body struct {
		Active *bool `json:"active"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	if body.Active == nil {
		s.fail(w, r, invalidField("active", "obrigatório"))
		return
	}
	user, err := s.service.SetUserActive(r.Context(), sess, mux.Vars(r)["id"], *body.Active)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *HTTPServer) handleDeleteUser(w http.ResponseWriter, r *http.Request, sess Session) {
	if err := s.service.DeleteUser(r.Context(), sess, mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleGetSettings(w http.ResponseWriter, r *http.Request, _ Session) {
	settings, err := s.service.Settings(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *HTTPServer) handleUpdateSettings(w http.ResponseWriter, r *http.Request, _ Session) {
	var body store.SiteSettings
	if err := decodeBody(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	settings, err := s.service.UpdateSettings(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *HTTPServer) handleReindex(w http.ResponseWriter, r *http.Request, _ Session) {
	counts, err := s.service.Reindex(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"indexed": counts})
}
