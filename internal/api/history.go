package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/collabflow/collabflow/internal/auth"
	"github.com/collabflow/collabflow/internal/repository"
	"github.com/collabflow/collabflow/pkg/models"
)

// QueryHistory returns audit events matching the query parameters. History
// is scoped to the caller's tenant and includes events for workflows that
// have since been purged.
// (GET /api/v1/history)
func (h *Handler) QueryHistory(c echo.Context) error {
	ctx := c.Request().Context()

	filter := repository.HistoryFilter{
		TenantID:    auth.TenantID(ctx),
		WorkflowID:  c.QueryParam("workflow_id"),
		EventType:   models.HistoryEventType(c.QueryParam("event_type")),
		InitiatorID: c.QueryParam("initiator_id"),
	}

	var err error
	if filter.From, err = parseTimeParam(c.QueryParam("from")); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid from: "+err.Error())
	}
	if filter.To, err = parseTimeParam(c.QueryParam("to")); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid to: "+err.Error())
	}
	if filter.Limit, err = parseIntParam(c.QueryParam("limit")); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid limit: "+err.Error())
	}
	if filter.Offset, err = parseIntParam(c.QueryParam("offset")); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid offset: "+err.Error())
	}

	events, err := h.svc.History(ctx, filter)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, events)
}

func parseTimeParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}

func parseIntParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
