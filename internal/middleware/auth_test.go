package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/pixelden/session-booking/internal/middleware"
	"github.com/pixelden/session-booking/internal/utils"
)

const secret = "test-secret"

func protectedEcho(roles ...string) *echo.Echo {
	e := echo.New()
	g := e.Group("/staff")
	g.Use(middleware.JWTAuth(secret))
	g.Use(middleware.RequireRole(roles...))
	g.GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "pong")
	})
	return e
}

func request(e *echo.Echo, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/staff/ping", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthAndRole(t *testing.T) {
	e := protectedEcho("STAFF")

	tok, err := utils.NewAccessToken(secret, "staff@example.com", "STAFF", 5)
	assert.NoError(t, err)

	rec := request(e, "Bearer "+tok.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}

func TestJWTAuthMissingToken(t *testing.T) {
	e := protectedEcho("STAFF")
	rec := request(e, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthBadToken(t *testing.T) {
	e := protectedEcho("STAFF")

	rec := request(e, "Bearer not.a.jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// signed with a different secret
	tok, err := utils.NewAccessToken("other-secret", "staff@example.com", "STAFF", 5)
	assert.NoError(t, err)
	rec = request(e, "Bearer "+tok.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthExpiredToken(t *testing.T) {
	e := protectedEcho("STAFF")

	tok, err := utils.NewAccessToken(secret, "staff@example.com", "STAFF", -5)
	assert.NoError(t, err)
	rec := request(e, "Bearer "+tok.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoleRejectsWrongRole(t *testing.T) {
	e := protectedEcho("STAFF")

	tok, err := utils.NewAccessToken(secret, "someone@example.com", "CUSTOMER", 5)
	assert.NoError(t, err)
	rec := request(e, "Bearer "+tok.Token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
