package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/collabflow/collabflow/internal/auth"
	"github.com/collabflow/collabflow/internal/stream"
)

// StreamWorkflow attaches the caller to a workflow's live stream over
// Server-Sent Events. The stream ends with a "closed" event when the
// workflow leaves the active status; a drop without one means the client
// fell behind and should resubscribe.
// (GET /api/v1/workflows/:id/stream)
func (h *Handler) StreamWorkflow(c echo.Context) error {
	ctx := c.Request().Context()
	wf, err := h.workflow(c, c.Param("id"))
	if err != nil {
		return err
	}

	handshakeCtx, cancel := context.WithTimeout(ctx, h.handshake)
	sub, err := h.svc.SubscribeStream(handshakeCtx, wf.ID, auth.UserID(ctx))
	cancel()
	if err != nil {
		return httpError(err)
	}
	defer sub.Close()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if err := writeSSE(w, string(ev.Type), ev.Data); err != nil {
				h.logger.Debug("stream write failed", "workflow_id", wf.ID, "error", err)
				return nil
			}
			if ev.Type == stream.EventClosed {
				return nil
			}
		}
	}
}

// StreamNotifications pushes the caller's notifications over Server-Sent
// Events as they arrive. Pending history is not replayed; clients issue a
// check first.
// (GET /api/v1/notifications/stream)
func (h *Handler) StreamNotifications(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.UserID(ctx)

	handshakeCtx, cancel := context.WithTimeout(ctx, h.handshake)
	conn, err := h.notifier.Subscribe(handshakeCtx, userID)
	cancel()
	if err != nil {
		return httpError(err)
	}
	defer conn.Close()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-conn.Notifications():
			if !ok {
				return nil
			}
			if err := writeSSE(w, "notification", n); err != nil {
				h.logger.Debug("notification stream write failed", "user_id", userID, "error", err)
				return nil
			}
		}
	}
}

func writeSSE(w *echo.Response, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	w.Flush()
	return nil
}
