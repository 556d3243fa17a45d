package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*echo.Echo, *Issuer) {
	t.Helper()
	i, err := NewIssuer("test-secret", "scholarsite")
	require.NoError(t, err)

	e := echo.New()
	NewHandlers(StaticVerifier{Email: "admin@example.edu", Password: "pw"}, i).Register(e.Group("/api/auth"))
	e.GET("/admin-only", func(c echo.Context) error {
		u, _ := UserFrom(c)
		return c.String(http.StatusOK, u.Email)
	}, RequireAdmin(i))
	return e, i
}

func do(e *echo.Echo, method, path, body, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if authz != "" {
		req.Header.Set(echo.HeaderAuthorization, authz)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestLoginThenVerify(t *testing.T) {
	e, _ := newTestServer(t)

	rec := do(e, http.MethodPost, "/api/auth/login", `{"email":"admin@example.edu","password":"pw"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var login struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
		User    User   `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	assert.True(t, login.Success)
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, User{Email: "admin@example.edu", Role: RoleAdmin}, login.User)

	rec = do(e, http.MethodGet, "/api/auth/verify", "", "Bearer "+login.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"valid":true,"user":{"email":"admin@example.edu","role":"admin"}}`, rec.Body.String())

	rec = do(e, http.MethodGet, "/admin-only", "", "Bearer "+login.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin@example.edu", rec.Body.String())
}

func TestLogin_BadCredentials(t *testing.T) {
	e, _ := newTestServer(t)

	rec := do(e, http.MethodPost, "/api/auth/login", `{"email":"admin@example.edu","password":"nope"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"`+msgBadCredentials+`"}`, rec.Body.String())
}

func TestLogin_MissingFields(t *testing.T) {
	e, _ := newTestServer(t)

	for _, body := range []string{`{"email":"admin@example.edu"}`, `{}`, `{bad json`} {
		rec := do(e, http.MethodPost, "/api/auth/login", body, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestVerify_Rejects(t *testing.T) {
	e, _ := newTestServer(t)

	for _, authz := range []string{"", "Bearer garbage", "Basic dXNlcjpwdw=="} {
		rec := do(e, http.MethodGet, "/api/auth/verify", "", authz)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, authz)

		var resp verifyResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Valid)
		assert.NotEmpty(t, resp.Error)
	}
}

func TestRequireAdmin_RejectsNonAdmin(t *testing.T) {
	e, i := newTestServer(t)

	tok, err := i.Issue(User{Email: "viewer@example.edu", Role: "viewer"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, do(e, http.MethodGet, "/admin-only", "", "Bearer "+tok).Code)
	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/admin-only", "", "").Code)
}
