// Package mcp exposes the form pipeline over the Model Context Protocol so
// agents can discover forms and file submissions.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"formpipe/backend/internal/repository"
	"formpipe/backend/internal/services"
	"formpipe/backend/pkg/models"
)

type Server struct {
	mcpServer   *server.MCPServer
	repo        repository.Repository
	submissions *services.SubmissionService
}

func NewServer(repo repository.Repository, submissions *services.SubmissionService) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Form Pipeline",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		repo:        repo,
		submissions: submissions,
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
			"list_forms",
			mcp.WithDescription("List forms currently accepting submissions"),
		),
		s.handleListForms,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_form",
			mcp.WithDescription("Fetch a form definition by its public id"),
			mcp.WithString("public_id", mcp.Required(), mcp.Description("The form's public id")),
		),
		s.handleGetForm,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"submit_form",
			mcp.WithDescription("Submit values to a form; the form's pipeline runs on the submission"),
			mcp.WithString("public_id", mcp.Required(), mcp.Description("The form's public id")),
			mcp.WithString("data", mcp.Required(), mcp.Description("JSON object mapping field ids to values")),
		),
		s.handleSubmitForm,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_submission",
			mcp.WithDescription("Fetch a submission's status and step outputs"),
			mcp.WithString("id", mcp.Required(), mcp.Description("The submission id")),
		),
		s.handleGetSubmission,
	)
}

func (s *Server) handleListForms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	forms, err := s.repo.ListActiveForms(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list forms: %v", err)), nil
	}

	views := make([]map[string]interface{}, 0, len(forms))
	for _, form := range forms {
		views = append(views, map[string]interface{}{
			"public_id":   form.PublicID,
			"name":        form.Name,
			"description": form.Description,
		})
	}
	jsonBytes, _ := json.Marshal(views)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleGetForm(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	publicID, ok := args["public_id"].(string)
	if !ok || publicID == "" {
		return mcp.NewToolResultError("Missing required parameter: public_id"), nil
	}

	form, err := s.repo.GetFormByPublicID(ctx, publicID)
	if err != nil || !form.IsActive {
		return mcp.NewToolResultError("Form not found"), nil
	}

	view := map[string]interface{}{
		"public_id":   form.PublicID,
		"name":        form.Name,
		"description": form.Description,
		"fields":      form.Fields,
	}
	jsonBytes, _ := json.Marshal(view)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleSubmitForm(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	publicID, ok := args["public_id"].(string)
	if !ok || publicID == "" {
		return mcp.NewToolResultError("Missing required parameter: public_id"), nil
	}
	rawData, ok := args["data"].(string)
	if !ok || rawData == "" {
		return mcp.NewToolResultError("Missing required parameter: data"), nil
	}

	var data map[string]models.FieldValue
	if err := json.Unmarshal([]byte(rawData), &data); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid data: %v", err)), nil
	}

	sub, err := s.submissions.Submit(ctx, publicID, data, nil, nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to submit: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(map[string]string{
		"id":     sub.ID,
		"status": string(sub.Status),
	})
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleGetSubmission(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	id, ok := args["id"].(string)
	if !ok || id == "" {
		return mcp.NewToolResultError("Missing required parameter: id"), nil
	}

	sub, err := s.repo.GetSubmission(ctx, id)
	if err != nil {
		return mcp.NewToolResultError("Submission not found"), nil
	}
	outputs, err := s.repo.ListStepOutputs(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load step outputs: %v", err)), nil
	}

	view := map[string]interface{}{
		"id":            sub.ID,
		"status":        sub.Status,
		"error_message": sub.ErrorMessage,
		"submitted_at":  sub.SubmittedAt,
		"processed_at":  sub.ProcessedAt,
		"step_outputs":  outputs,
	}
	jsonBytes, _ := json.Marshal(view)
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
