package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/collabflow/collabflow/internal/auth"
)

// CheckNotifications returns the caller's pending notification set without
// consuming it
// (GET /api/v1/notifications)
func (h *Handler) CheckNotifications(c echo.Context) error {
	ctx := c.Request().Context()
	result, err := h.notifier.Check(ctx, auth.UserID(ctx))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

// ClearNotifications empties the caller's pending notification set
// (DELETE /api/v1/notifications)
func (h *Handler) ClearNotifications(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.notifier.Clear(ctx, auth.UserID(ctx)); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
