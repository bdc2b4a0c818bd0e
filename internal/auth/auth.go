package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"insights/internal/config"
	"insights/internal/database"
	"insights/internal/models"
)

// ErrInvalidCredentials is returned by Authenticate for a wrong or unconfigured login
var ErrInvalidCredentials = errors.New("invalid credentials")

// Context keys set by the middlewares
const (
	ContextUserID  = "user_id"
	ContextSiteID  = "site_id"
	ContextProfile = "profile"
)

type session struct {
	userID    string
	expiresAt time.Time
}

// Manager issues and validates dashboard bearer tokens
type Manager struct {
	config      *config.Config
	tokens      map[string]session
	mu          sync.RWMutex
	tokenExpiry time.Duration
	now         func() time.Time
}

// NewManager creates a new authentication manager
func NewManager(cfg *config.Config) *Manager {
	expiry := cfg.TokenTTL
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}

	return &Manager{
		config:      cfg,
		tokens:      make(map[string]session),
		tokenExpiry: expiry,
		now:         time.Now,
	}
}

// Authenticate validates username and password and returns a token bound to the admin profile
func (am *Manager) Authenticate(username, password string) (string, error) {
	// No configured account means login is disabled
	if am.config.AdminUsername == "" || am.config.AdminPassword == "" {
		return "", ErrInvalidCredentials
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(am.config.AdminUsername)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(am.config.AdminPassword)) == 1
	if !userOK || !passOK {
		return "", ErrInvalidCredentials
	}

	// Generate a secure random token
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	token := base64.URLEncoding.EncodeToString(tokenBytes)

	am.mu.Lock()
	am.tokens[token] = session{
		userID:    am.config.AdminUserID,
		expiresAt: am.now().Add(am.tokenExpiry),
	}
	am.mu.Unlock()

	// Clean up expired tokens in background
	go am.cleanupExpiredTokens()

	return token, nil
}

// ValidateToken returns the user a token belongs to, if it is known and not expired
func (am *Manager) ValidateToken(token string) (string, bool) {
	am.mu.RLock()
	s, exists := am.tokens[token]
	am.mu.RUnlock()

	if !exists {
		return "", false
	}

	if am.now().After(s.expiresAt) {
		am.Revoke(token)
		return "", false
	}

	return s.userID, true
}

// Revoke forgets a token
func (am *Manager) Revoke(token string) {
	am.mu.Lock()
	defer am.mu.Unlock()
	delete(am.tokens, token)
}

// cleanupExpiredTokens removes expired tokens
func (am *Manager) cleanupExpiredTokens() {
	am.mu.Lock()
	defer am.mu.Unlock()

	now := am.now()
	for token, s := range am.tokens {
		if now.After(s.expiresAt) {
			delete(am.tokens, token)
		}
	}
}

// bearerToken reads the Authorization header. Tokens in the query string are
// not accepted since request URIs end up in the access log.
func bearerToken(c echo.Context) string {
	return strings.TrimPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
}

// Middleware rejects requests without a valid token and records the caller's user id
func Middleware(authManager *Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c)

			userID, ok := authManager.ValidateToken(token)
			if token == "" || !ok {
				return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
					Error: "Unauthorized. Please login first.",
				})
			}

			c.Set(ContextUserID, userID)

			return next(c)
		}
	}
}

// ProfileFinder looks up the profile behind an authenticated user
type ProfileFinder interface {
	Profile(ctx context.Context, userID string) (*models.Profile, error)
}

// TenantMiddleware resolves the caller's site from their profile. It must run after Middleware.
func TenantMiddleware(profiles ProfileFinder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID := UserID(c)
			if userID == "" {
				return c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "No profile is linked to this login"})
			}

			profile, err := profiles.Profile(c.Request().Context(), userID)
			if errors.Is(err, database.ErrNotFound) {
				return c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "No profile is linked to this login"})
			}
			if err != nil {
				log.Error().Err(err).Str("user_id", userID).Msg("Failed to load profile")
				return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to load profile"})
			}
			if profile.SiteID == "" {
				return c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "Profile has no site"})
			}

			c.Set(ContextProfile, profile)
			c.Set(ContextSiteID, profile.SiteID)

			return next(c)
		}
	}
}

// UserID returns the authenticated user id, or ""
func UserID(c echo.Context) string {
	id, _ := c.Get(ContextUserID).(string)
	return id
}

// SiteID returns the tenant resolved by TenantMiddleware, or ""
func SiteID(c echo.Context) string {
	id, _ := c.Get(ContextSiteID).(string)
	return id
}

// ProfileFrom returns the profile resolved by TenantMiddleware
func ProfileFrom(c echo.Context) (*models.Profile, bool) {
	p, ok := c.Get(ContextProfile).(*models.Profile)
	return p, ok && p != nil
}
