package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/metrics"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/ratelimit"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/rbac"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	proxies    ratelimit.TrustedProxies
	router     *mux.Router
}

// NewHTTPServer builds the router. Trusted proxies come from the service
// configuration, which has already been validated.
func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	proxies, err := ratelimit.ParseTrustedProxies(service.cfg.TrustedProxies)
	if err != nil {
		log.WithError(err).Warn("ignoring trusted proxies")
	}
	s := &HTTPServer{service: service, corsOrigin: corsOrigin, proxies: proxies}
	s.router = s.routes()
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(s.router)
}

func (s *HTTPServer) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(metrics.Middleware)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Não encontrado", nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Método não permitido", nil)
	})

	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/api/ready", s.handleReady).Methods(http.MethodGet, http.MethodHead)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	s.mountPublic(r.PathPrefix("/api/public").Subrouter())
	s.mountSession(r.PathPrefix("/api/session").Subrouter())
	s.mountAdmin(r.PathPrefix("/api/admin").Subrouter())
	return r
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ready, checks := s.service.Readiness(ctx)
	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"ok": ready, "status": status, "checks": checks})
}

type handlerWithSession func(w http.ResponseWriter, r *http.Request, sess Session)

// requireAction resolves the bearer session and checks its role against the
// action. Signed-out callers are sent to the login route, under-privileged
// ones to the admin home.
func (s *HTTPServer) requireAction(action rbac.Action, next handlerWithSession) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		if !rbac.Can(rbac.Role(sess.Role), action) {
			log.WithFields(log.Fields{
				"request_id": requestID(r.Context()),
				"user_id":    sess.UserID,
				"role":       sess.Role,
				"action":     action,
				"path":       r.URL.Path,
			}).Info("access denied")
			s.fail(w, r, forbidden(rbac.Required(action)))
			return
		}
		next(w, r, sess)
	}
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		s.fail(w, r, unauthorized())
		return Session{}, false
	}
	sess, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		s.fail(w, r, err)
		return Session{}, false
	}
	return sess, true
}

// optionalSession returns the bearer session when one is present and valid.
func (s *HTTPServer) optionalSession(r *http.Request) *Session {
	token := bearerToken(r)
	if token == "" {
		return nil
	}
	sess, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		return nil
	}
	return &sess
}

// fail writes err as a JSON error. Server errors are logged with the request
// id; everything else is an expected client outcome.
func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).WithFields(log.Fields{
			"request_id": requestID(r.Context()),
			"path":       r.URL.Path,
		}).Error("request failed")
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", reqID)

		if r.Method == http.MethodOptions {
			writer.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(writer, r)

		log.WithFields(log.Fields{
			"request_id":  reqID,
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      writer.status,
			"duration_ms": time.Since(started).Milliseconds(),
		}).Info("request")
	})
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

// writeFile sends a generated document as an attachment.
func writeFile(w http.ResponseWriter, filename, mimeType string, data []byte) {
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return domainError(http.StatusBadRequest, "INVALID_BODY", "invalid JSON body", nil)
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
