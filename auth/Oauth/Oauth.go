package Oauth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/basit/rushupload-backend/auth"
	"github.com/basit/rushupload-backend/models"
	"github.com/basit/rushupload-backend/quota"
)

type Config struct {
	SessionSecret string
	ClientID      string
	ClientSecret  string
	RedirectURL   string
	ClientBaseURL string
	Secure        bool
}

// Handler runs the provider login and issues our own tokens on success.
type Handler struct {
	db       *gorm.DB
	issuer   *auth.TokenIssuer
	enforcer *quota.Enforcer
	cfg      Config
}

// SessionName is the cookie session mounted in front of the auth routes.
const SessionName = "rushupload_session"

// InitStore builds the cookie session store, shares it with goth, and
// registers the Google provider.
func InitStore(cfg Config) (cookie.Store, error) {
	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is not set")
	}

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	gothic.Store = store

	if cfg.ClientID == "" {
		log.Warn().Msg("GOOGLE_CLIENT_ID not set, Google login disabled")
		return store, nil
	}
	provider := google.New(cfg.ClientID, cfg.ClientSecret, cfg.RedirectURL, "email", "profile")
	provider.SetAccessType("offline")
	goth.UseProviders(provider)
	return store, nil
}

func NewHandler(db *gorm.DB, issuer *auth.TokenIssuer, enforcer *quota.Enforcer, cfg Config) *Handler {
	return &Handler{db: db, issuer: issuer, enforcer: enforcer, cfg: cfg}
}

// Begin redirects to the provider's consent page.
func (h *Handler) Begin(c *gin.Context) {
	q := c.Request.URL.Query()
	q.Set("provider", c.Param("provider"))
	c.Request.URL.RawQuery = q.Encode()

	gothic.BeginAuthHandler(c.Writer, c.Request)
}

// Complete finishes the provider login and redirects to the client with an
// access token; the refresh token is set as an HTTP-only cookie.
func (h *Handler) Complete(c *gin.Context) {
	q := c.Request.URL.Query()
	q.Set("provider", c.Param("provider"))
	c.Request.URL.RawQuery = q.Encode()

	gothUser, err := gothic.CompleteUserAuth(c.Writer, c.Request)
	if err != nil {
		log.Warn().Err(err).Str("provider", c.Param("provider")).Msg("oauth completion failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return
	}

	user, err := h.FindOrCreateUser(gothUser)
	if err != nil {
		log.Error().Err(err).Str("provider", gothUser.Provider).Msg("oauth user lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process user data"})
		return
	}

	accessToken, refreshToken, err := h.issuer.GenerateTokens(user.ID)
	if err != nil {
		log.Error().Err(err).Msg("token generation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate tokens"})
		return
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		HttpOnly: true,
		Secure:   h.cfg.Secure,
		Path:     "/auth",
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Now().Add(30 * 24 * time.Hour),
	})

	session := sessions.Default(c)
	session.Set("user_id", user.ID.String())
	if err := session.Save(); err != nil {
		log.Warn().Err(err).Msg("session save failed")
	}

	log.Info().Str("account_id", user.ID.String()).Msg("oauth login")
	redirect := fmt.Sprintf("%s/auth/success?token=%s", strings.TrimRight(h.cfg.ClientBaseURL, "/"), accessToken)
	c.Redirect(http.StatusTemporaryRedirect, redirect)
}

// FindOrCreateUser matches by provider id, then by email. A placeholder
// account created for a mail recipient is claimed by the first login with its
// address.
func (h *Handler) FindOrCreateUser(gothUser goth.User) (*models.User, error) {
	if gothUser.Provider != "google" {
		return nil, fmt.Errorf("unsupported provider: %s", gothUser.Provider)
	}
	email := strings.ToLower(strings.TrimSpace(gothUser.Email))
	if email == "" {
		return nil, fmt.Errorf("provider returned no email")
	}

	var user models.User
	err := h.db.Where("google_id = ?", gothUser.UserID).First(&user).Error
	if err == nil {
		return h.updateTokens(&user, gothUser, nil)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database query error: %w", err)
	}

	err = h.db.Where("email = ?", email).First(&user).Error
	if err == nil {
		return h.updateTokens(&user, gothUser, map[string]interface{}{
			"google_id":      gothUser.UserID,
			"provider":       gothUser.Provider,
			"is_placeholder": false,
		})
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database query error: %w", err)
	}

	return h.createUser(email, gothUser)
}

func (h *Handler) updateTokens(user *models.User, gothUser goth.User, extra map[string]interface{}) (*models.User, error) {
	updates := map[string]interface{}{
		"google_access_token": gothUser.AccessToken,
	}
	if gothUser.RefreshToken != "" {
		updates["google_refresh_token"] = gothUser.RefreshToken
	}
	if !gothUser.ExpiresAt.IsZero() {
		updates["google_token_expires_at"] = gothUser.ExpiresAt
	}
	for k, v := range extra {
		updates[k] = v
	}

	if err := h.db.Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

func (h *Handler) createUser(email string, gothUser goth.User) (*models.User, error) {
	limits, err := h.enforcer.Limits(models.TierFree)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:             email,
		Tier:              models.TierFree,
		TotalStorage:      limits.MaxStorageBytes,
		Provider:          &gothUser.Provider,
		GoogleID:          &gothUser.UserID,
		GoogleAccessToken: &gothUser.AccessToken,
	}
	if gothUser.RefreshToken != "" {
		user.GoogleRefreshToken = &gothUser.RefreshToken
	}
	if !gothUser.ExpiresAt.IsZero() {
		user.GoogleTokenExpiresAt = &gothUser.ExpiresAt
	}

	if err := h.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}
