// Package api contains the HTTP handlers for the workflow engine
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/collabflow/collabflow/internal/auth"
	"github.com/collabflow/collabflow/internal/logging"
	"github.com/collabflow/collabflow/internal/notify"
	"github.com/collabflow/collabflow/internal/repository"
	"github.com/collabflow/collabflow/internal/services"
	"github.com/collabflow/collabflow/pkg/models"
)

// Handler holds the dependencies for the REST API.
type Handler struct {
	svc       *services.WorkflowService
	notifier  *notify.Registry
	handshake time.Duration
	logger    *logging.Logger
}

// NewHandler creates a new Handler with required dependencies. handshake
// bounds how long a stream subscriber may take to attach.
func NewHandler(svc *services.WorkflowService, notifier *notify.Registry, handshake time.Duration, logger *logging.Logger) *Handler {
	return &Handler{svc: svc, notifier: notifier, handshake: handshake, logger: logger}
}

// Register mounts every API route on the group.
func (h *Handler) Register(g *echo.Group) {
	g.POST("/workflows", h.CreateWorkflow)
	g.GET("/workflows", h.ListWorkflows)
	g.GET("/workflows/:id", h.GetWorkflow)
	g.POST("/workflows/:id/complete", h.CompleteWorkflow)
	g.POST("/workflows/:id/terminate", h.TerminateWorkflow)
	g.POST("/workflows/:id/force-close", h.ForceCloseWorkflow)
	g.DELETE("/workflows/:id", h.DeleteWorkflow)
	g.POST("/workflows/:id/purge", h.PurgeWorkflow)
	g.POST("/workflows/purge", h.BulkPurgeWorkflows)

	g.GET("/workflows/:id/participants", h.ListParticipants)
	g.POST("/workflows/:id/participants", h.JoinWorkflow)
	g.DELETE("/workflows/:id/participants/:user_id", h.LeaveWorkflow)

	g.POST("/workflows/:id/messages", h.SendMessage)
	g.GET("/workflows/:id/messages", h.ListMessages)
	g.GET("/workflows/:id/stream", h.StreamWorkflow)

	g.GET("/notifications", h.CheckNotifications)
	g.DELETE("/notifications", h.ClearNotifications)
	g.GET("/notifications/stream", h.StreamNotifications)

	g.GET("/history", h.QueryHistory)
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
}

// HandleHealth returns basic health status (always returns 200 OK)
func (h *Handler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Service:   "collabflow",
		Version:   "1.0.0",
	})
}

// httpError maps the service error taxonomy onto HTTP status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrWorkflowClosed):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrNotParticipant):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, repository.ErrTransient):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// workflow fetches a workflow and verifies it belongs to the caller's
// tenant. Cross-tenant identities read as not found.
func (h *Handler) workflow(c echo.Context, id string) (*models.Workflow, error) {
	ctx := c.Request().Context()
	wf, err := h.svc.GetWorkflow(ctx, id)
	if err != nil {
		return nil, httpError(err)
	}
	if wf.TenantID != auth.TenantID(ctx) {
		return nil, echo.NewHTTPError(http.StatusNotFound, repository.ErrNotFound.Error())
	}
	return wf, nil
}

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

// ErrorHandler renders every handler error as an RFC 7807 Problem
// Details JSON response.
func ErrorHandler(logger *logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		detail := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			status = he.Code
			if msg, ok := he.Message.(string); ok {
				detail = msg
			}
		}
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", "path", c.Path(), "error", err)
		}

		problem := ProblemDetails{
			Type:     "about:blank",
			Title:    http.StatusText(status),
			Status:   status,
			Detail:   detail,
			Instance: c.Request().URL.Path,
		}
		c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
		c.Response().WriteHeader(status)
		if encErr := json.NewEncoder(c.Response()).Encode(problem); encErr != nil {
			logger.Error("failed to encode error response", "error", encErr)
		}
	}
}
