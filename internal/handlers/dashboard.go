package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"insights/internal/auth"
	"insights/internal/metrics"
)

// RefreshDashboardHandler starts recomputing the caller's dashboard for a range.
// A refresh still running for the same site is superseded.
// @Summary Refresh dashboard
// @Tags dashboard
// @Produce json
// @Security BearerAuth
// @Param range query string false "Date range" default(all)
// @Success 202 {object} metrics.Summary
// @Router /api/dashboard/refresh [post]
func RefreshDashboardHandler(views *metrics.Views) echo.HandlerFunc {
	return func(c echo.Context) error {
		v := views.Get(auth.SiteID(c))

		// The refresh outlives this request
		v.Refresh(context.WithoutCancel(c.Request().Context()), rangeKey(c))

		return c.JSON(http.StatusAccepted, v.Snapshot())
	}
}

// DashboardHandler returns the current state of the caller's dashboard.
// The first call for a site starts a refresh for ?range= (default all).
// @Summary Dashboard snapshot
// @Tags dashboard
// @Produce json
// @Security BearerAuth
// @Param range query string false "Date range used when no refresh has run yet" default(all)
// @Success 200 {object} metrics.Summary
// @Router /api/dashboard [get]
func DashboardHandler(views *metrics.Views) echo.HandlerFunc {
	return func(c echo.Context) error {
		site := auth.SiteID(c)

		v, ok := views.Lookup(site)
		if !ok {
			v = views.Get(site)
			v.Refresh(context.WithoutCancel(c.Request().Context()), rangeKey(c))
		}

		return c.JSON(http.StatusOK, v.Snapshot())
	}
}
