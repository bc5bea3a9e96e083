package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "unitlens/pkg/api/middleware"
	"unitlens/pkg/auth"
)

type authFixture struct {
	jwt    *auth.JWTService
	keys   *auth.RedisAPIKeyStore
	router *gin.Engine
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	jwtCfg := auth.DefaultJWTConfig()
	jwtCfg.SecretKey = "test-secret"
	jwtSvc, err := auth.NewJWTService(jwtCfg)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &authFixture{jwt: jwtSvc, keys: auth.NewRedisAPIKeyStore(client)}

	router := gin.New()
	router.Use(AuthMiddleware(AuthConfig{
		JWTService:  jwtSvc,
		APIKeyStore: f.keys,
		SkipPaths:   []string{"/health", "/public/*"},
	}))
	ok := func(c *gin.Context) {
		claims, _ := GetUserFromContext(c)
		name := ""
		if claims != nil {
			name = claims.Username
		}
		c.String(http.StatusOK, name)
	}
	router.GET("/health", ok)
	router.GET("/public/info", ok)
	router.GET("/status/:unit", RequireRole(auth.RoleViewer, true), ok)
	router.GET("/logs/:unit", RequireRole(auth.RoleOperator, true), ok)
	f.router = router
	return f
}

func (f *authFixture) do(t *testing.T, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[http.CanonicalHeaderKey(k)] = v
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func bearer(token string) http.Header {
	return http.Header{AuthHeaderKey: {"Bearer " + token}}
}

func TestAuthMiddleware_SkipPaths(t *testing.T) {
	f := newAuthFixture(t)
	assert.Equal(t, http.StatusOK, f.do(t, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, "/public/info", nil).Code)
}

func TestAuthMiddleware_RequiresCredentials(t *testing.T) {
	f := newAuthFixture(t)

	w := f.do(t, "/status/sshd.service", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "authentication required")

	w = f.do(t, "/status/sshd.service", bearer("garbage"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, "/status/sshd.service", http.Header{APIKeyHeaderKey: {"ul_nope"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_JWTRoles(t *testing.T) {
	f := newAuthFixture(t)

	viewer, err := f.jwt.GenerateToken("vera", auth.RoleViewer, time.Hour)
	require.NoError(t, err)
	operator, err := f.jwt.GenerateToken("otto", auth.RoleOperator, time.Hour)
	require.NoError(t, err)

	w := f.do(t, "/status/sshd.service", bearer(viewer))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "vera", w.Body.String())

	w = f.do(t, "/logs/sshd.service", bearer(viewer))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "insufficient permissions")

	w = f.do(t, "/logs/sshd.service", bearer(operator))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware_APIKey(t *testing.T) {
	f := newAuthFixture(t)

	key, err := f.keys.CreateKey(context.Background(), auth.APIKeyInfo{
		Name:    "ci",
		OwnerID: "ops",
		Role:    auth.RoleOperator,
	})
	require.NoError(t, err)

	w := f.do(t, "/logs/sshd.service", http.Header{APIKeyHeaderKey: {key}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ci", w.Body.String())
}

func TestRequireRole_NotEnforced(t *testing.T) {
	router := gin.New()
	router.GET("/logs/:unit", RequireRole(auth.RoleAdmin, false), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/logs/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
