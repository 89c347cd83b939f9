package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/basit/rushupload-backend/models"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Identity is the authenticated caller as the core services see it.
type Identity struct {
	AccountID   uuid.UUID
	Email       string
	Tier        models.Tier
	UsedStorage int64
}

func IdentityOf(u *models.User) *Identity {
	return &Identity{AccountID: u.ID, Email: u.Email, Tier: u.Tier, UsedStorage: u.UsedStorage}
}

// TokenIssuer signs and verifies HS256 access and refresh tokens.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(secret),
		accessTTL:  15 * time.Minute,
		refreshTTL: 30 * 24 * time.Hour,
		now:        time.Now,
	}
}

func (i *TokenIssuer) GenerateTokens(userID uuid.UUID) (accessToken string, refreshToken string, err error) {
	accessToken, err = i.sign(userID, tokenTypeAccess, i.accessTTL)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign access token: %w", err)
	}
	refreshToken, err = i.sign(userID, tokenTypeRefresh, i.refreshTTL)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return accessToken, refreshToken, nil
}

func (i *TokenIssuer) sign(userID uuid.UUID, typ string, ttl time.Duration) (string, error) {
	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID.String(),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"typ": typ,
	})
	return token.SignedString(i.secret)
}

// ValidateAccessToken returns the account id of a valid, unexpired access token.
func (i *TokenIssuer) ValidateAccessToken(tokenStr string) (uuid.UUID, error) {
	return i.validate(tokenStr, tokenTypeAccess)
}

func (i *TokenIssuer) ValidateRefreshToken(tokenStr string) (uuid.UUID, error) {
	return i.validate(tokenStr, tokenTypeRefresh)
}

func (i *TokenIssuer) validate(tokenStr, typ string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return uuid.Nil, fmt.Errorf("invalid token")
	}
	if claims["typ"] != typ {
		return uuid.Nil, fmt.Errorf("expected %s token", typ)
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("invalid sub claim")
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid sub claim: %w", err)
	}
	return id, nil
}
