package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basit/rushupload-backend/auth"
	"github.com/basit/rushupload-backend/models"
	"github.com/basit/rushupload-backend/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAuthRequired(t *testing.T) {
	db := testutil.NewTestDB(t)
	issuer := auth.NewTokenIssuer("secret")
	user := testutil.CreateUser(t, db, "me@example.com", models.TierPro, 100, 42)

	r := gin.New()
	r.GET("/me", AuthRequired(db, issuer), func(c *gin.Context) {
		id, ok := CurrentIdentity(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"email": id.Email, "tier": id.Tier, "used": id.UsedStorage})
	})

	access, _, err := issuer.GenerateTokens(user.ID)
	require.NoError(t, err)
	ghost, _, err := issuer.GenerateTokens(uuid.New())
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + access, http.StatusOK},
		{"lowercase scheme", "bearer " + access, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"unknown account", "Bearer " + ghost, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"email":"me@example.com","tier":"PRO","used":42}`, w.Body.String())
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)

	rl.evict(time.Now().Add(time.Hour))
	assert.Empty(t, rl.clients)
}
