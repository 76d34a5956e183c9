package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/collabflow/collabflow/internal/auth"
	"github.com/collabflow/collabflow/pkg/models"
)

// SendMessageRequest is the body of POST /workflows/:id/messages.
type SendMessageRequest struct {
	Type        models.MessageType     `json:"type"`
	Content     string                 `json:"content"`
	Attachments []models.AttachmentRef `json:"attachments,omitempty"`
}

// SendMessage appends a message to an active workflow
// (POST /api/v1/workflows/:id/messages)
func (h *Handler) SendMessage(c echo.Context) error {
	ctx := c.Request().Context()
	wf, err := h.workflow(c, c.Param("id"))
	if err != nil {
		return err
	}

	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if req.Content == "" && len(req.Attachments) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "content or attachments is required")
	}

	msg, err := h.svc.SendMessage(ctx, wf.ID, auth.UserID(ctx), req.Type, req.Content, req.Attachments)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, msg)
}

// ListMessages returns a workflow's messages in send order
// (GET /api/v1/workflows/:id/messages)
func (h *Handler) ListMessages(c echo.Context) error {
	ctx := c.Request().Context()
	wf, err := h.workflow(c, c.Param("id"))
	if err != nil {
		return err
	}
	messages, err := h.svc.ListMessages(ctx, wf.ID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, messages)
}
