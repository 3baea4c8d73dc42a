package httpkit

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meteo_backend/platform/apperr"
	"meteo_backend/platform/logger"
)

type jwtConfig string

func (s jwtConfig) GetJWTAccessSecret() string { return string(s) }

const secret = jwtConfig("test-secret")

func signToken(t *testing.T, claims jwt.MapClaims, key string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return token
}

func whoAmI(c *gin.Context) {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.String(http.StatusOK, "anonymous")
		return
	}
	c.String(http.StatusOK, id.UserID().String())
}

func serve(engine *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestOptionalAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/", OptionalAuth(secret), whoAmI)

	user := uuid.New()
	valid := signToken(t, jwt.MapClaims{"sub": user.String(), "type": "access", "exp": time.Now().Add(time.Hour).Unix()}, string(secret))
	refresh := signToken(t, jwt.MapClaims{"sub": user.String(), "type": "refresh", "exp": time.Now().Add(time.Hour).Unix()}, string(secret))
	expired := signToken(t, jwt.MapClaims{"sub": user.String(), "type": "access", "exp": time.Now().Add(-time.Hour).Unix()}, string(secret))
	foreign := signToken(t, jwt.MapClaims{"sub": user.String(), "type": "access"}, "other-secret")

	w := serve(engine, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anonymous", w.Body.String())

	w = serve(engine, valid)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, user.String(), w.Body.String())

	for name, token := range map[string]string{"refresh": refresh, "expired": expired, "foreign": foreign, "garbage": "abc"} {
		w = serve(engine, token)
		assert.Equal(t, http.StatusUnauthorized, w.Code, name)
	}
}

func TestOptionalAuthDisabledWithoutSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/", OptionalAuth(jwtConfig("")), whoAmI)

	w := serve(engine, "whatever")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anonymous", w.Body.String())
}

func TestAuthRequired(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/", AuthRequired(secret), whoAmI)

	assert.Equal(t, http.StatusUnauthorized, serve(engine, "").Code)

	user := uuid.New()
	token := signToken(t, jwt.MapClaims{"sub": user.String(), "type": "access"}, string(secret))
	w := serve(engine, token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, user.String(), w.Body.String())
}

func TestRequestIDReusesValidHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextRequestIDKey))
	})

	inbound := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, inbound)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, inbound, w.Header().Get(HeaderRequestID))
	assert.Equal(t, inbound, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "not-a-uuid")
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	_, err := uuid.Parse(w.Header().Get(HeaderRequestID))
	assert.NoError(t, err)
}

func TestRateLimitRejectsBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewIPRateLimiter(1, 2, logger.Discard())
	engine := gin.New()
	engine.GET("/", limiter.RateLimit(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, serve(engine, "").Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

func TestHandleError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/:kind", func(c *gin.Context) {
		switch c.Param("kind") {
		case "notfound":
			HandleError(c, apperr.NotFound("Город не найден"))
		case "upstream":
			HandleError(c, apperr.Upstream("geocoding service unavailable", assert.AnError))
		case "wrapped":
			HandleError(c, fmt.Errorf("weather history: %w", apperr.NotFound("Город не найден")))
		default:
			HandleError(c, assert.AnError)
		}
	})

	cases := map[string]struct {
		status int
		body   string
	}{
		"notfound": {http.StatusNotFound, `{"error":"Город не найден"}`},
		"upstream": {http.StatusBadGateway, `{"error":"geocoding service unavailable"}`},
		"wrapped":  {http.StatusNotFound, `{"error":"Город не найден"}`},
		"plain":    {http.StatusInternalServerError, `{"error":"internal error"}`},
	}
	for kind, want := range cases {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/"+kind, nil))
		assert.Equal(t, want.status, w.Code, kind)
		assert.JSONEq(t, want.body, w.Body.String(), kind)
	}
}
