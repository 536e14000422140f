package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-backoffice/internal/models"
	appErrors "github.com/noah-isme/sma-backoffice/pkg/errors"
	"github.com/noah-isme/sma-backoffice/pkg/middleware/requestid"
)

type tokenStub struct{}

func (tokenStub) ValidateToken(token string) (*models.StaffClaims, error) {
	switch token {
	case "registrar":
		return &models.StaffClaims{StaffID: "staff-1"}, nil
	case "root":
		return &models.StaffClaims{StaffID: "root", IsSuperAdmin: true}, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type gateStub struct{}

func (gateStub) RequirePermission(ctx context.Context, actor *models.Actor, key string) error {
	if actor.StaffID == "root" || key == "documents.view" {
		return nil
	}
	return appErrors.ErrForbidden
}

func (gateStub) RequireSuperAdmin(ctx context.Context, actor *models.Actor) error {
	if actor.StaffID == "root" {
		return nil
	}
	return appErrors.ErrForbidden
}

type observerStub struct {
	paths    []string
	statuses []int
}

func (o *observerStub) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	o.paths = append(o.paths, path)
	o.statuses = append(o.statuses, status)
}

func newRouter(observer *observerStub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestid.Middleware(), WithResponseMeta(), Metrics(observer))
	secured := r.Group("/api", JWT(tokenStub{}))
	secured.GET("/whoami", func(c *gin.Context) {
		actor := Actor(c)
		c.JSON(http.StatusOK, gin.H{"staff": actor.StaffID, "request": actor.RequestID, "meta": ResponseMeta(c)})
	})
	secured.GET("/docs", RequirePermission(gateStub{}, "documents.view"), func(c *gin.Context) { c.Status(http.StatusOK) })
	secured.DELETE("/docs", RequirePermission(gateStub{}, "documents.delete"), func(c *gin.Context) { c.Status(http.StatusOK) })
	secured.POST("/purge", RequireSuperAdmin(gateStub{}), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func serve(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestJWTRejectsMissingAndInvalidTokens(t *testing.T) {
	r := newRouter(&observerStub{})

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/whoami", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/whoami", "forged").Code)

	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTBuildsActor(t *testing.T) {
	r := newRouter(&observerStub{})

	rec := serve(r, http.MethodGet, "/api/whoami", "registrar")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Staff   string                 `json:"staff"`
		Request string                 `json:"request"`
		Meta    map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "staff-1", body.Staff)
	assert.Equal(t, "req-42", body.Request)
	assert.Equal(t, "req-42", body.Meta["request_id"])
	assert.Contains(t, body.Meta, "processing_time_ms")
}

func TestPermissionMiddleware(t *testing.T) {
	r := newRouter(&observerStub{})

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/docs", "registrar").Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodDelete, "/api/docs", "registrar").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodDelete, "/api/docs", "root").Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodPost, "/api/purge", "registrar").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/api/purge", "root").Code)
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	observer := &observerStub{}
	r := newRouter(observer)

	serve(r, http.MethodGet, "/api/docs", "registrar")
	serve(r, http.MethodGet, "/nowhere", "")

	assert.Equal(t, []string{"/api/docs", "unmatched"}, observer.paths)
	assert.Equal(t, []int{http.StatusOK, http.StatusNotFound}, observer.statuses)
}
