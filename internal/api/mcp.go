package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/tutord/internal/mentor"
)

// DefaultMCPUser is the user key MCP calls run under when none is given.
const DefaultMCPUser = "mcp"

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Tutor   Tutor
	Meta    Meta
	UserKey string // default user key for tool calls
}

// NewMCPServer creates an MCP server with the tutor tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	if deps.UserKey == "" {
		deps.UserKey = DefaultMCPUser
	}

	s := server.NewMCPServer(
		"tutord",
		deps.Meta.Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("tutord: a beginner-friendly C and Python DSA tutor that adapts to the learner's style."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask_tutor",
			mcp.WithDescription("Ask the tutor a C or Python question and get a plain-text answer adapted to the learner."),
			mcp.WithString("message", mcp.Description("The learner's question"), mcp.Required()),
			mcp.WithString("user", mcp.Description("Learner key whose profile is used (default: mcp)")),
		),
		mcpAskTutor(deps),
	)

	s.AddTool(
		mcp.NewTool("preview_prompt",
			mcp.WithDescription("Show the system prompt, user prompt, language and temperature a question would be sent with, without asking the model."),
			mcp.WithString("message", mcp.Description("The learner's question"), mcp.Required()),
			mcp.WithString("user", mcp.Description("Learner key whose profile is used (default: mcp)")),
		),
		mcpPreviewPrompt(deps),
	)

	s.AddTool(
		mcp.NewTool("reload_notes",
			mcp.WithDescription("Re-read the C and Python style notes from disk."),
		),
		mcpReloadNotes(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"tutor://meta",
			"Tutor Configuration",
			mcp.WithResourceDescription("Service name, model, supported languages and version"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceMeta(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"tutor://profile",
			"Learner Profile",
			mcp.WithResourceDescription("Learning profile and mentor instructions of the default MCP learner"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProfile(deps),
	)

	return s
}

func mcpUser(deps MCPDeps, req mcp.CallToolRequest) string {
	if u := strings.TrimSpace(req.GetString("user", "")); u != "" {
		return u
	}
	return deps.UserKey
}

func mcpAskTutor(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}
		if blank(message) {
			return mcpError("message must not be empty"), nil
		}

		reply, err := deps.Tutor.HandleTurn(ctx, mcpUser(deps, req), message)
		if err != nil {
			return mcpError(fmt.Sprintf("tutor failed: %v", err)), nil
		}
		return mcpText(reply.Text), nil
	}
}

func mcpPreviewPrompt(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil || blank(message) {
			return mcpError("message is required"), nil
		}

		b, err := json.MarshalIndent(deps.Tutor.Prepare(mcpUser(deps, req), message), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		return mcpText(string(b)), nil
	}
}

func mcpReloadNotes(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		status, err := deps.Tutor.ReloadCorpus(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("reload failed: %v", err)), nil
		}
		msg := status.Status
		if len(status.Missing) > 0 {
			msg += " (missing: " + strings.Join(status.Missing, ", ") + ")"
		}
		return mcpText(msg), nil
	}
}

func mcpResourceMeta(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(deps.Meta)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal meta: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourceProfile(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		p, _ := deps.Tutor.Profile(deps.UserKey)
		b, err := json.Marshal(profileResponse{
			Profile:      p,
			Instructions: mentor.Instructions(p),
			LastLanguage: deps.Tutor.LastLanguage(deps.UserKey),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profile: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
