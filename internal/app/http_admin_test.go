package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/store"
)

func (h *harness) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeMap(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload), "body=%s", rr.Body.String())
	return payload
}

func TestAdminRoutesRequireSession(t *testing.T) {
	h := newHarness(t)

	rr := h.do(t, http.MethodGet, "/api/admin/plans", "", "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	payload := decodeMap(t, rr)
	require.Equal(t, "UNAUTHORIZED", payload["code"])
	details := payload["details"].(map[string]any)
	require.Equal(t, "/admin/login", details["redirect"])

	rr = h.do(t, http.MethodGet, "/api/admin/plans", "not-a-token", "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestViewerWriteRoutesAreForbidden(t *testing.T) {
	h := newHarness(t)
	h.plans.rows["plan-1"] = store.Plan{ID: "plan-1", Name: "Básico", Status: store.StatusPublished, OrderPosition: 1}
	token := h.token(t, "u-viewer")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{name: "create plan", method: http.MethodPost, path: "/api/admin/plans", body: `{"name":"Pro"}`},
		{name: "update plan", method: http.MethodPut, path: "/api/admin/plans/plan-1", body: `{"name":"Pro"}`},
		{name: "delete plan", method: http.MethodDelete, path: "/api/admin/plans/plan-1"},
		{name: "reorder plan", method: http.MethodPost, path: "/api/admin/plans/plan-1/reorder", body: `{"direction":"up"}`},
		{name: "toggle plan", method: http.MethodPost, path: "/api/admin/plans/plan-1/toggle", body: `{"field":"featured"}`},
		{name: "create page", method: http.MethodPost, path: "/api/admin/pages", body: `{"title":"Sobre"}`},
		{name: "list users", method: http.MethodGet, path: "/api/admin/users"},
		{name: "update settings", method: http.MethodPut, path: "/api/admin/settings", body: `{"siteName":"X"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := h.do(t, tc.method, tc.path, token, tc.body)
			require.Equal(t, http.StatusForbidden, rr.Code, "body=%s", rr.Body.String())
			payload := decodeMap(t, rr)
			require.Equal(t, "FORBIDDEN", payload["code"])
			details := payload["details"].(map[string]any)
			require.Equal(t, "/admin", details["redirect"])
		})
	}

	require.Zero(t, h.plans.count("create"))
	require.Zero(t, h.plans.count("update"))
	require.Zero(t, h.plans.count("delete"))
	require.Zero(t, h.pages.count("create"))
}

func TestViewerCanReadCollections(t *testing.T) {
	h := newHarness(t)
	h.plans.rows["plan-1"] = store.Plan{ID: "plan-1", Name: "Básico", Status: store.StatusDraft, OrderPosition: 1}
	token := h.token(t, "u-viewer")

	rr := h.do(t, http.MethodGet, "/api/admin/plans", token, "")
	require.Equal(t, http.StatusOK, rr.Code)
	payload := decodeMap(t, rr)
	require.Equal(t, true, payload["loaded"])
	require.Len(t, payload["items"], 1, "admin lists include drafts")

	rr = h.do(t, http.MethodGet, "/api/admin/plans/missing", token, "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestEditorCannotManageUsers(t *testing.T) {
	h := newHarness(t)
	token := h.token(t, "u-editor")

	rr := h.do(t, http.MethodPut, "/api/admin/users/u-viewer/role", token, `{"role":"admin"}`)
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "viewer", h.users.rows["u-viewer"].Role)
}

func TestCreateServiceDerivesSlug(t *testing.T) {
	h := newHarness(t)
	token := h.token(t, "u-editor")

	rr := h.do(t, http.MethodPost, "/api/admin/services", token, `{"title":"Automação de Processos"}`)
	require.Equal(t, http.StatusCreated, rr.Code, "body=%s", rr.Body.String())
	created := decodeMap(t, rr)
	require.Equal(t, "automacao-de-processos", created["slug"])
	require.Equal(t, store.StatusDraft, created["status"])
	require.EqualValues(t, 1, created["orderPosition"])

	rr = h.do(t, http.MethodPost, "/api/admin/services", token, `{"title":"Automação  de processos!"}`)
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = h.do(t, http.MethodPost, "/api/admin/services", token, `{"title":"Consultoria","type":"bogus"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	fields := decodeMap(t, rr)["details"].(map[string]any)["fields"].(map[string]any)
	require.Contains(t, fields, "type")
}

func TestUpdateKeepsOrderPosition(t *testing.T) {
	h := newHarness(t)
	h.plans.rows["plan-1"] = store.Plan{ID: "plan-1", Name: "Básico", OrderPosition: 4}
	token := h.token(t, "u-editor")

	rr := h.do(t, http.MethodPut, "/api/admin/plans/plan-1", token, `{"name":"Essencial","orderPosition":1}`)
	require.Equal(t, http.StatusOK, rr.Code, "body=%s", rr.Body.String())
	require.Equal(t, 4, h.plans.rows["plan-1"].OrderPosition)
	require.Equal(t, "Essencial", h.plans.rows["plan-1"].Name)
}

func TestReorderSwapsWithNeighbour(t *testing.T) {
	h := newHarness(t)
	h.plans.rows["a"] = store.Plan{ID: "a", Name: "A", OrderPosition: 1}
	h.plans.rows["b"] = store.Plan{ID: "b", Name: "B", OrderPosition: 2}
	h.plans.rows["c"] = store.Plan{ID: "c", Name: "C", OrderPosition: 3}
	token := h.token(t, "u-editor")

	order := func(payload map[string]any) []string {
		var ids []string
		for _, item := range payload["items"].([]any) {
			row := item.(map[string]any)
			ids = append(ids, row["id"].(string))
		}
		return ids
	}

	rr := h.do(t, http.MethodPost, "/api/admin/plans/b/reorder", token, `{"direction":"up"}`)
	require.Equal(t, http.StatusOK, rr.Code, "body=%s", rr.Body.String())
	payload := decodeMap(t, rr)
	require.Equal(t, true, payload["moved"])
	require.Equal(t, []string{"b", "a", "c"}, order(payload))
	require.Equal(t, 1, h.plans.rows["b"].OrderPosition)
	require.Equal(t, 2, h.plans.rows["a"].OrderPosition)
	require.Equal(t, 3, h.plans.rows["c"].OrderPosition)

	rr = h.do(t, http.MethodPost, "/api/admin/plans/b/reorder", token, `{"direction":"up"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	payload = decodeMap(t, rr)
	require.Equal(t, false, payload["moved"])
	require.Equal(t, []string{"b", "a", "c"}, order(payload))

	rr = h.do(t, http.MethodPost, "/api/admin/plans/b/reorder", token, `{"direction":"sideways"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = h.do(t, http.MethodPost, "/api/admin/plans/zzz/reorder", token, `{"direction":"down"}`)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestNormalizeRenumbersPositions(t *testing.T) {
	h := newHarness(t)
	h.sections.rows["hero"] = store.SiteSection{ID: "hero", Key: "hero", OrderPosition: 5}
	h.sections.rows["about"] = store.SiteSection{ID: "about", Key: "about", OrderPosition: 9}

	rr := h.do(t, http.MethodPost, "/api/admin/ordering/sections/normalize", h.token(t, "u-editor"), "")
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = h.do(t, http.MethodPost, "/api/admin/ordering/sections/normalize", h.token(t, "u-admin"), "")
	require.Equal(t, http.StatusOK, rr.Code, "body=%s", rr.Body.String())
	require.Equal(t, 1, h.sections.rows["hero"].OrderPosition)
	require.Equal(t, 2, h.sections.rows["about"].OrderPosition)

	rr = h.do(t, http.MethodPost, "/api/admin/ordering/pages/normalize", h.token(t, "u-admin"), "")
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestToggleTwiceRestoresValue(t *testing.T) {
	h := newHarness(t)
	h.portfolio.rows["pf-1"] = store.PortfolioItem{ID: "pf-1", Title: "Portal", Enabled: true, OrderPosition: 1}
	token := h.token(t, "u-editor")

	rr := h.do(t, http.MethodPost, "/api/admin/portfolio/pf-1/toggle", token, `{"field":"enabled"}`)
	require.Equal(t, http.StatusOK, rr.Code, "body=%s", rr.Body.String())
	require.False(t, h.portfolio.rows["pf-1"].Enabled)

	rr = h.do(t, http.MethodPost, "/api/admin/portfolio/pf-1/toggle", token, `{"field":"enabled"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, h.portfolio.rows["pf-1"].Enabled)

	updates := h.portfolio.count("update")
	rr = h.do(t, http.MethodPost, "/api/admin/portfolio/pf-1/toggle", token, `{"field":"status"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Equal(t, updates, h.portfolio.count("update"))
}

func TestMessageStatusAndDelete(t *testing.T) {
	h := newHarness(t)
	h.messages.rows["msg-1"] = store.Message{ID: "msg-1", Name: "Ana", Email: "ana@example.com", Body: "Olá", Status: store.MessageNew}
	token := h.token(t, "u-editor")

	rr := h.do(t, http.MethodPut, "/api/admin/messages/msg-1/status", token, `{"status":"read"}`)
	require.Equal(t, http.StatusOK, rr.Code, "body=%s", rr.Body.String())
	require.Equal(t, store.MessageRead, h.messages.rows["msg-1"].Status)

	rr = h.do(t, http.MethodPut, "/api/admin/messages/msg-1/status", token, `{"status":"spam"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = h.do(t, http.MethodDelete, "/api/admin/messages/msg-1", token, "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Empty(t, h.messages.rows)
}

func TestUploadWithoutMediaIsUnavailable(t *testing.T) {
	h := newHarness(t)

	var body bytes.Buffer
	body.WriteString("--xyz\r\nContent-Disposition: form-data; name=\"file\"; filename=\"logo.png\"\r\nContent-Type: image/png\r\n\r\npng\r\n--xyz--\r\n")
	req := httptest.NewRequest(http.MethodPost, "/api/admin/media", &body)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")
	req.Header.Set("Authorization", "Bearer "+h.token(t, "u-editor"))
	rr := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rr, req)

	require.Equal(t, http.StatusServiceUnavailable, rr.Code, "body=%s", rr.Body.String())
	require.Equal(t, "MEDIA_UNAVAILABLE", decodeMap(t, rr)["code"])
}

func TestReindexWithoutSearchIsUnavailable(t *testing.T) {
	h := newHarness(t)
	rr := h.do(t, http.MethodPost, "/api/admin/search/reindex", h.token(t, "u-admin"), "")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Equal(t, "SEARCH_UNAVAILABLE", decodeMap(t, rr)["code"])
}

func TestAdminUpdatesSettings(t *testing.T) {
	h := newHarness(t)
	token := h.token(t, "u-admin")

	rr := h.do(t, http.MethodPut, "/api/admin/settings", token, `{"siteName":"VSA","contactEmail":"not-an-email"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = h.do(t, http.MethodPut, "/api/admin/settings", token, `{"siteName":"VSA","contactEmail":"contato@vsa.com.br","social":{"linkedin":"https://linkedin.com/company/vsa","x":""}}`)
	require.Equal(t, http.StatusOK, rr.Code, "body=%s", rr.Body.String())
	require.Equal(t, "contato@vsa.com.br", h.site.settings.ContactEmail)
	require.NotContains(t, h.site.settings.Social, "x")
}
