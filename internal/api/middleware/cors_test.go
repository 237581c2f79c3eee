package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func corsTestServer(origins []string, appEnv string) *echo.Echo {
	e := echo.New()
	e.Use(SecureCORS(origins, appEnv))
	e.GET("/test", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return e
}

func TestSecureCORS_AllowedOrigin(t *testing.T) {
	e := corsTestServer([]string{"http://app.example"}, "development")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(echo.HeaderOrigin, "http://app.example")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, "http://app.example", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestSecureCORS_DisallowedOriginGetsNoHeaders(t *testing.T) {
	e := corsTestServer([]string{"http://app.example"}, "development")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(echo.HeaderOrigin, "http://malicious.example")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestSecureCORS_WildcardStrippedInProduction(t *testing.T) {
	e := corsTestServer([]string{"*"}, "production")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(echo.HeaderOrigin, "http://anywhere.example")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.NotEqual(t, "http://anywhere.example", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.NotEqual(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestSecureCORS_EmptyConfigDefaultsToLocalhost(t *testing.T) {
	e := corsTestServer(nil, "development")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(echo.HeaderOrigin, "http://localhost:3000")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestSecureCORS_PreflightAllowsAdminHeader(t *testing.T) {
	e := corsTestServer([]string{"http://app.example"}, "development")

	req := httptest.NewRequest(http.MethodOptions, "/test", nil)
	req.Header.Set(echo.HeaderOrigin, "http://app.example")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodGet)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Contains(t, rec.Header().Get(echo.HeaderAccessControlAllowHeaders), "x-admin-secret")
}
