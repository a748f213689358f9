package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sergiovlezh/documents-manager/internal/config"
	"github.com/sergiovlezh/documents-manager/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func protectedEngine(cfg *config.Config, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{AuthRequired(cfg)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		id, ok := CurrentUserID(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.String(http.StatusOK, id.String())
	})
	r.GET("/", handlers...)
	return r
}

func TestAuthRequired(t *testing.T) {
	cfg := &config.Config{JWTSecret: "secret"}
	userID := uuid.New()
	valid := signToken(t, "secret", jwt.MapClaims{
		"user_id": userID.String(),
		"role":    string(models.RoleUser),
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Token " + valid, http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signToken(t, "other", jwt.MapClaims{"user_id": userID.String()}), http.StatusUnauthorized},
		{"expired", "Bearer " + signToken(t, "secret", jwt.MapClaims{"user_id": userID.String(), "exp": time.Now().Add(-time.Minute).Unix()}), http.StatusUnauthorized},
		{"bad subject", "Bearer " + signToken(t, "secret", jwt.MapClaims{"user_id": "nobody"}), http.StatusUnauthorized},
		{"valid", "Bearer " + valid, http.StatusOK},
	}

	r := protectedEngine(cfg)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, userID.String(), w.Body.String())
			}
		})
	}
}

func TestAdminRequired(t *testing.T) {
	cfg := &config.Config{JWTSecret: "secret"}
	r := protectedEngine(cfg, AdminRequired())

	for role, want := range map[models.UserRole]int{
		models.RoleUser:  http.StatusForbidden,
		models.RoleAdmin: http.StatusOK,
	} {
		token := signToken(t, "secret", jwt.MapClaims{"user_id": uuid.NewString(), "role": string(role)})
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, role)
	}
}

func TestRateLimiterFailsOpen(t *testing.T) {
	var nilLimiter *RateLimiter
	unreachable := NewRateLimiterWithClient(redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	}))
	t.Cleanup(func() { _ = unreachable.Close() })

	for name, rl := range map[string]*RateLimiter{"nil": nilLimiter, "unreachable": unreachable} {
		t.Run(name, func(t *testing.T) {
			r := gin.New()
			r.GET("/", rl.RateLimitByIP(1, 60), func(c *gin.Context) { c.Status(http.StatusNoContent) })

			for i := 0; i < 3; i++ {
				w := httptest.NewRecorder()
				r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
				assert.Equal(t, http.StatusNoContent, w.Code)
			}
		})
	}
}
