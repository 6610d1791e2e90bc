package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"eventhub/api/logger"
	"eventhub/api/metrics"
	"eventhub/api/utils"
)

func newRouter(t *testing.T, m *metrics.Metrics) (*gin.Engine, *utils.JWTManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	jwt, err := utils.NewJWTManager("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	r := gin.New()
	r.Use(RequestLogger(logger.Nop(), m))
	auth := r.Group("/", AuthRequired(jwt, "svc-key", logger.Nop()))
	auth.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.GetString(CtxUserID), "role": c.GetString(CtxUserRole)})
	})
	auth.GET("/admin", RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r, jwt
}

func TestAuthRequired(t *testing.T) {
	r, jwt := newRouter(t, nil)
	userToken, _ := jwt.Generate("u1", "u1@example.com", "user")
	adminToken, _ := jwt.Generate("a1", "a1@example.com", "admin")

	cases := []struct {
		name   string
		path   string
		setup  func(*http.Request)
		status int
	}{
		{"no credentials", "/me", func(*http.Request) {}, http.StatusUnauthorized},
		{"bad token", "/me", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"bearer token", "/me", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+userToken) }, http.StatusOK},
		{"cookie token", "/me", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: AuthCookie, Value: userToken}) }, http.StatusOK},
		{"wrong api key", "/me", func(r *http.Request) { r.Header.Set("X-API-KEY", "other") }, http.StatusUnauthorized},
		{"api key is admin", "/admin", func(r *http.Request) { r.Header.Set("X-API-KEY", "svc-key") }, http.StatusNoContent},
		{"user is not admin", "/admin", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+userToken) }, http.StatusForbidden},
		{"admin token", "/admin", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+adminToken) }, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			tc.setup(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tc.status, w.Body.String())
			}
		})
	}
}

func TestRequestLoggerRecordsMetrics(t *testing.T) {
	m := metrics.New()
	r, _ := newRouter(t, m)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/me", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/me", "401")); got != 1 {
		t.Fatalf("401 count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Fatalf("unmatched count = %v, want 1", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS("http://app.example.com, http://localhost:3000"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://app.example.com" {
		t.Fatalf("allow origin = %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("allow credentials = %q", got)
	}
}
