package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/collabflow/collabflow/internal/auth"
	"github.com/collabflow/collabflow/internal/notify"
	"github.com/collabflow/collabflow/internal/services"
	"github.com/collabflow/collabflow/pkg/models"
)

type Server struct {
	mcpServer *server.MCPServer
	svc       *services.WorkflowService
	notifier  *notify.Registry
}

func NewServer(svc *services.WorkflowService, notifier *notify.Registry) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Collabflow",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		svc:      svc,
		notifier: notifier,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_workflows",
			mcp.WithDescription("List the workflows of the caller's tenant"),
		),
		s.handleListWorkflows,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"send_message",
			mcp.WithDescription("Send a message to an active workflow"),
			mcp.WithString("workflow_id", mcp.Required(), mcp.Description("The ID of the workflow")),
			mcp.WithString("content", mcp.Required(), mcp.Description("The message content")),
			mcp.WithString("type", mcp.Description("Message type: request, response, share_link or status")),
		),
		s.handleSendMessage,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"check_notifications",
			mcp.WithDescription("Check the caller's pending notifications"),
		),
		s.handleCheckNotifications,
	)
}

func (s *Server) handleListWorkflows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflows, err := s.svc.ListWorkflows(ctx, auth.TenantID(ctx))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list workflows: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(workflows)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleSendMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	workflowID, ok := args["workflow_id"].(string)
	if !ok || workflowID == "" {
		return mcp.NewToolResultError("Missing required parameter: workflow_id"), nil
	}

	content, ok := args["content"].(string)
	if !ok || content == "" {
		return mcp.NewToolResultError("Missing required parameter: content"), nil
	}

	msgType, _ := args["type"].(string)

	msg, err := s.svc.SendMessage(ctx, workflowID, auth.UserID(ctx),
		models.MessageType(msgType), content, nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to send message: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(msg)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleCheckNotifications(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.notifier.Check(ctx, auth.UserID(ctx))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to check notifications: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(result)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	// Use SSE server for /mcp/sse and /mcp/message endpoints
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		// Direct POST for tool calls
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	// SSE endpoints
	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
