package app

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoginSessionLogout(t *testing.T) {
	h := newHarness(t)

	rr := h.do(t, http.MethodPost, "/api/session/login", "", `{"email":"editor@vsa.com.br","password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "INVALID_CREDENTIALS", decodeMap(t, rr)["code"])

	rr = h.do(t, http.MethodPost, "/api/session/login", "", `{"email":"editor@vsa.com.br","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, rr.Code, "body=%s", rr.Body.String())
	login := decodeMap(t, rr)
	token := login["accessToken"].(string)
	require.NotEmpty(t, token)
	require.NotEmpty(t, login["refreshToken"])
	require.Equal(t, "editor", login["role"])

	rr = h.do(t, http.MethodGet, "/api/session", token, "")
	require.Equal(t, http.StatusOK, rr.Code)
	current := decodeMap(t, rr)
	require.Equal(t, "u-editor", current["userId"])
	require.NotContains(t, current, "accessToken")

	rr = h.do(t, http.MethodPost, "/api/session/logout", token, `{"refreshToken":"`+login["refreshToken"].(string)+`"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = h.do(t, http.MethodGet, "/api/session", token, "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = h.do(t, http.MethodPost, "/api/session/refresh", "", `{"refreshToken":"`+login["refreshToken"].(string)+`"}`)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRefreshRotatesToken(t *testing.T) {
	h := newHarness(t)

	rr := h.do(t, http.MethodPost, "/api/session/login", "", `{"email":"admin@vsa.com.br","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	first := decodeMap(t, rr)["refreshToken"].(string)

	rr = h.do(t, http.MethodPost, "/api/session/refresh", "", `{"refreshToken":"`+first+`"}`)
	require.Equal(t, http.StatusOK, rr.Code, "body=%s", rr.Body.String())
	second := decodeMap(t, rr)["refreshToken"].(string)
	require.NotEqual(t, first, second)

	rr = h.do(t, http.MethodPost, "/api/session/refresh", "", `{"refreshToken":"`+first+`"}`)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestDeactivatedUserLosesSession(t *testing.T) {
	h := newHarness(t)
	token := h.token(t, "u-viewer")

	rr := h.do(t, http.MethodGet, "/api/session", token, "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = h.do(t, http.MethodPut, "/api/admin/users/u-viewer/status", h.token(t, "u-admin"), `{"active":false}`)
	require.Equal(t, http.StatusOK, rr.Code, "body=%s", rr.Body.String())
	require.NotNil(t, h.users.rows["u-viewer"].DeactivatedAt)

	rr = h.do(t, http.MethodGet, "/api/session", token, "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuthorizeDecisions(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name     string
		token    string
		path     string
		allowed  bool
		redirect string
	}{
		{name: "signed out", path: "/admin/plans", allowed: false, redirect: "/admin/login"},
		{name: "login page is open", path: "/admin/login", allowed: true},
		{name: "viewer reads plans", token: h.token(t, "u-viewer"), path: "/admin/plans", allowed: true},
		{name: "editor on users", token: h.token(t, "u-editor"), path: "/admin/users", allowed: false, redirect: "/admin"},
		{name: "admin on settings", token: h.token(t, "u-admin"), path: "/admin/settings", allowed: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := h.do(t, http.MethodPost, "/api/session/authorize", tc.token, `{"path":"`+tc.path+`"}`)
			require.Equal(t, http.StatusOK, rr.Code)
			decision := decodeMap(t, rr)
			require.Equal(t, tc.allowed, decision["allowed"])
			if tc.redirect == "" {
				require.NotContains(t, decision, "redirect")
			} else {
				require.Equal(t, tc.redirect, decision["redirect"])
			}
		})
	}
}

func TestPasswordResetRequestWithoutMailer(t *testing.T) {
	h := newHarness(t)
	rr := h.do(t, http.MethodPost, "/api/session/password-reset/request", "", `{"email":"nobody@vsa.com.br"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotContains(t, decodeMap(t, rr), "devResetToken")
}
