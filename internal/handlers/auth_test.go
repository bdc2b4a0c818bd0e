package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insights/internal/auth"
	"insights/internal/config"
	"insights/internal/models"
)

func TestLoginHandler(t *testing.T) {
	am := auth.NewManager(&config.Config{
		AdminUsername: "owner",
		AdminPassword: "secret",
		AdminUserID:   "user-1",
		TokenTTL:      time.Hour,
	})

	tests := []struct {
		name           string
		body           string
		expectedStatus int
		wantToken      bool
	}{
		{name: "valid credentials", body: `{"username":"owner","password":"secret"}`, expectedStatus: http.StatusOK, wantToken: true},
		{name: "wrong password", body: `{"username":"owner","password":"guess"}`, expectedStatus: http.StatusUnauthorized},
		{name: "malformed body", body: `{"username":`, expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			require.NoError(t, LoginHandler(am)(c))
			assert.Equal(t, tt.expectedStatus, rec.Code)

			var resp models.LoginResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantToken, resp.Success)
			if tt.wantToken {
				userID, ok := am.ValidateToken(resp.Token)
				assert.True(t, ok)
				assert.Equal(t, "user-1", userID)
			} else {
				assert.Empty(t, resp.Token)
				assert.NotEmpty(t, resp.Error)
			}
		})
	}
}

func TestProfileHandler(t *testing.T) {
	t.Run("profile in context", func(t *testing.T) {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.Set(auth.ContextProfile, &models.Profile{ID: "user-1", SiteID: "site-1"})

		require.NoError(t, ProfileHandler()(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var profile models.Profile
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
		assert.Equal(t, "site-1", profile.SiteID)
	})

	t.Run("no profile", func(t *testing.T) {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		require.NoError(t, ProfileHandler()(c))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
