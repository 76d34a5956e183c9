package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/collabflow/collabflow/internal/auth"
	"github.com/collabflow/collabflow/pkg/models"
)

// CreateWorkflowRequest is the body of POST /workflows.
type CreateWorkflowRequest struct {
	Title string `json:"title"`
}

// CreateWorkflow starts a new active workflow with the caller as initiator
// (POST /api/v1/workflows)
func (h *Handler) CreateWorkflow(c echo.Context) error {
	ctx := c.Request().Context()

	var req CreateWorkflowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}

	wf, err := h.svc.CreateWorkflow(ctx, auth.TenantID(ctx), auth.UserID(ctx), req.Title)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, wf)
}

// ListWorkflows returns the caller's tenant's workflows
// (GET /api/v1/workflows)
func (h *Handler) ListWorkflows(c echo.Context) error {
	ctx := c.Request().Context()

	workflows, err := h.svc.ListWorkflows(ctx, auth.TenantID(ctx))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, workflows)
}

// GetWorkflow returns a single workflow
// (GET /api/v1/workflows/:id)
func (h *Handler) GetWorkflow(c echo.Context) error {
	wf, err := h.workflow(c, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, wf)
}

// CompleteWorkflow marks an active workflow as successfully finished
// (POST /api/v1/workflows/:id/complete)
func (h *Handler) CompleteWorkflow(c echo.Context) error {
	ctx := c.Request().Context()
	wf, err := h.workflow(c, c.Param("id"))
	if err != nil {
		return err
	}
	if err := h.svc.CompleteWorkflow(ctx, wf.ID, auth.UserID(ctx)); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// TerminateWorkflow cancels an active workflow
// (POST /api/v1/workflows/:id/terminate)
func (h *Handler) TerminateWorkflow(c echo.Context) error {
	ctx := c.Request().Context()
	wf, err := h.workflow(c, c.Param("id"))
	if err != nil {
		return err
	}
	if err := h.svc.TerminateWorkflow(ctx, wf.ID, auth.UserID(ctx)); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ForceCloseWorkflow terminates and then soft-deletes an active workflow
// (POST /api/v1/workflows/:id/force-close)
func (h *Handler) ForceCloseWorkflow(c echo.Context) error {
	ctx := c.Request().Context()
	wf, err := h.workflow(c, c.Param("id"))
	if err != nil {
		return err
	}
	if err := h.svc.ForceCloseWorkflow(ctx, wf.ID, auth.UserID(ctx)); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteWorkflow soft-deletes a closed workflow
// (DELETE /api/v1/workflows/:id)
func (h *Handler) DeleteWorkflow(c echo.Context) error {
	ctx := c.Request().Context()
	wf, err := h.workflow(c, c.Param("id"))
	if err != nil {
		return err
	}
	if err := h.svc.DeleteWorkflow(ctx, wf.ID, auth.UserID(ctx)); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// PurgeWorkflow irreversibly removes a soft-deleted workflow
// (POST /api/v1/workflows/:id/purge)
func (h *Handler) PurgeWorkflow(c echo.Context) error {
	ctx := c.Request().Context()
	wf, err := h.workflow(c, c.Param("id"))
	if err != nil {
		return err
	}
	if err := h.svc.PurgeWorkflow(ctx, wf.ID, auth.UserID(ctx)); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// BulkPurgeRequest is the body of POST /workflows/purge.
type BulkPurgeRequest struct {
	WorkflowIDs []string `json:"workflow_ids"`
}

// BulkPurgeWorkflows purges a batch of workflows, each independently
// (POST /api/v1/workflows/purge)
func (h *Handler) BulkPurgeWorkflows(c echo.Context) error {
	ctx := c.Request().Context()

	var req BulkPurgeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if len(req.WorkflowIDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "workflow_ids is required")
	}

	result := h.svc.BulkPurgeWorkflows(ctx, auth.TenantID(ctx), req.WorkflowIDs, auth.UserID(ctx))
	return c.JSON(http.StatusOK, result)
}

// ListParticipants returns a workflow's participants
// (GET /api/v1/workflows/:id/participants)
func (h *Handler) ListParticipants(c echo.Context) error {
	ctx := c.Request().Context()
	wf, err := h.workflow(c, c.Param("id"))
	if err != nil {
		return err
	}
	participants, err := h.svc.ListParticipants(ctx, wf.ID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, participants)
}

// JoinWorkflowRequest is the body of POST /workflows/:id/participants.
// UserID defaults to the caller.
type JoinWorkflowRequest struct {
	UserID string                 `json:"user_id"`
	Role   models.ParticipantRole `json:"role"`
}

// JoinWorkflow adds a participant to an active workflow
// (POST /api/v1/workflows/:id/participants)
func (h *Handler) JoinWorkflow(c echo.Context) error {
	ctx := c.Request().Context()
	wf, err := h.workflow(c, c.Param("id"))
	if err != nil {
		return err
	}

	var req JoinWorkflowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if req.UserID == "" {
		req.UserID = auth.UserID(ctx)
	}

	if err := h.svc.JoinWorkflow(ctx, wf.ID, req.UserID, req.Role); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// LeaveWorkflow removes a participant from a workflow
// (DELETE /api/v1/workflows/:id/participants/:user_id)
func (h *Handler) LeaveWorkflow(c echo.Context) error {
	ctx := c.Request().Context()
	wf, err := h.workflow(c, c.Param("id"))
	if err != nil {
		return err
	}
	if err := h.svc.LeaveWorkflow(ctx, wf.ID, c.Param("user_id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
