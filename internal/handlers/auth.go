package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"insights/internal/auth"
	"insights/internal/models"
)

// LoginHandler exchanges dashboard credentials for a bearer token
// @Summary Dashboard login
// @Description Authenticate the dashboard owner and receive an auth token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Login credentials"
// @Success 200 {object} models.LoginResponse
// @Failure 400 {object} models.LoginResponse
// @Failure 401 {object} models.LoginResponse
// @Router /api/auth/login [post]
func LoginHandler(authManager *auth.Manager) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.LoginRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, models.LoginResponse{
				Success: false,
				Error:   fmt.Sprintf("Invalid request body: %v", err),
			})
		}

		token, err := authManager.Authenticate(req.Username, req.Password)
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return c.JSON(http.StatusUnauthorized, models.LoginResponse{
				Success: false,
				Error:   "Invalid username or password",
			})
		}
		if err != nil {
			log.Error().Err(err).Msg("Failed to issue token")
			return c.JSON(http.StatusInternalServerError, models.LoginResponse{
				Success: false,
				Error:   "Failed to issue token",
			})
		}

		return c.JSON(http.StatusOK, models.LoginResponse{
			Success: true,
			Token:   token,
		})
	}
}

// ProfileHandler returns the profile behind the current login
// @Summary Current profile
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Profile
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /api/profile [get]
func ProfileHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		profile, ok := auth.ProfileFrom(c)
		if !ok {
			return c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "No profile is linked to this login"})
		}
		return c.JSON(http.StatusOK, profile)
	}
}
