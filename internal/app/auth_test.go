package app

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

func authRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware(testSecret, []string{serviceTok}))
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"subject": c.GetString(ctxSubject), "service": c.GetBool(ctxService)})
	})
	return r
}

func callWhoami(r *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_JWTSubject(t *testing.T) {
	w := callWhoami(authRouter(), "Bearer "+userToken(t, "user_42"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"subject":"user_42"`)
	assert.Contains(t, w.Body.String(), `"service":false`)
}

func TestAuthMiddleware_StaticToken(t *testing.T) {
	w := callWhoami(authRouter(), "bearer "+serviceTok)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"service":true`)
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	r := authRouter()

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user_42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	expiredStr, _ := expired.SignedString([]byte(testSecret))

	wrongKey := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "user_42"})
	wrongKeyStr, _ := wrongKey.SignedString([]byte("other-secret"))

	noSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{})
	noSubjectStr, _ := noSubject.SignedString([]byte(testSecret))

	for name, header := range map[string]string{
		"missing":    "",
		"not bearer": "Basic " + serviceTok,
		"expired":    "Bearer " + expiredStr,
		"wrong key":  "Bearer " + wrongKeyStr,
		"no subject": "Bearer " + noSubjectStr,
		"garbage":    "Bearer nope",
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, callWhoami(r, header).Code)
		})
	}
}
