package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/hpungsan/codyarch/internal/config"
	"github.com/hpungsan/codyarch/internal/errors"
	"github.com/hpungsan/codyarch/internal/logging"
	"github.com/hpungsan/codyarch/internal/ops"
	"github.com/hpungsan/codyarch/internal/result"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	env       *ops.Env
	workspace string
	logger    *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(env *ops.Env, workspace string, logger *zap.Logger) *Handlers {
	if env == nil {
		env = &ops.Env{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{env: env, workspace: workspace, logger: logger.Named("mcp")}
}

func (h *Handlers) cfg() *config.Config {
	if h.env.Config == nil {
		return config.DefaultConfig()
	}
	return h.env.Config
}

// Request types for each tool

// WebSearchRequest represents the arguments for web_search.
type WebSearchRequest struct {
	Query     string `json:"query"`
	Site      string `json:"site,omitempty"`
	Workspace string `json:"workspace,omitempty"`
	LimitArgs
}

// ReadPDFRequest represents the arguments for pdf_read.
type ReadPDFRequest struct {
	URL       string `json:"url"`
	Workspace string `json:"workspace,omitempty"`
	LimitArgs
}

// PersistRequest represents the arguments for result_persist.
type PersistRequest struct {
	Kind      string `json:"kind"`
	Query     string `json:"query"`
	RawResult string `json:"raw_result"`
	Workspace string `json:"workspace,omitempty"`
	LimitArgs
}

// ListRequest represents the arguments for result_list.
type ListRequest struct {
	Workspace string `json:"workspace,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// FetchRequest represents the arguments for result_fetch.
type FetchRequest struct {
	ID          string `json:"id"`
	IncludeText *bool  `json:"include_text,omitempty"`
}

// DeleteRequest represents the arguments for result_delete.
type DeleteRequest struct {
	ID string `json:"id"`
}

// MentionFileRequest represents the arguments for file_mention.
type MentionFileRequest struct {
	Path      string `json:"path"`
	Workspace string `json:"workspace,omitempty"`
}

// Handler implementations

// HandleWebSearch handles the web_search tool call.
func (h *Handlers) HandleWebSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[WebSearchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	limit, err := input.override(h.cfg().Limit())
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	ws, err := h.resolveWorkspace(input.Workspace)
	if err != nil {
		return h.failure("web_search", err), nil
	}

	out, err := ops.WebSearch(h.context(ctx), h.env, ops.WebSearchInput{
		Query:     input.Query,
		Site:      input.Site,
		Workspace: ws,
		Limit:     limit,
	})
	if err != nil {
		return h.failure("web_search", err), nil
	}

	return successResult(out)
}

// HandleReadPDF handles the pdf_read tool call.
func (h *Handlers) HandleReadPDF(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ReadPDFRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	limit, err := input.override(h.cfg().Limit())
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	ws, err := h.resolveWorkspace(input.Workspace)
	if err != nil {
		return h.failure("pdf_read", err), nil
	}

	out, err := ops.ReadPDF(h.context(ctx), h.env, ops.ReadPDFInput{
		URL:       input.URL,
		Workspace: ws,
		Limit:     limit,
	})
	if err != nil {
		return h.failure("pdf_read", err), nil
	}

	return successResult(out)
}

// HandlePersist handles the result_persist tool call.
func (h *Handlers) HandlePersist(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PersistRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	limit, err := input.override(h.cfg().Limit())
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if strings.TrimSpace(input.Query) == "" {
		return errorResult(errors.NewInvalidRequest("query is required")), nil
	}
	ws, err := h.resolveWorkspace(input.Workspace)
	if err != nil {
		return h.failure("result_persist", err), nil
	}

	out, err := ops.Persist(h.context(ctx), h.env, ops.PersistInput{
		Kind:      result.Kind(input.Kind),
		Query:     input.Query,
		RawResult: input.RawResult,
		Workspace: ws,
		Limit:     limit,
	})
	if err != nil {
		return h.failure("result_persist", err), nil
	}

	return successResult(out)
}

// HandleList handles the result_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	out, err := ops.List(h.context(ctx), h.env, ops.ListInput{
		Workspace: input.Workspace,
		Kind:      input.Kind,
		Limit:     input.Limit,
		Offset:    input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(out)
}

// HandleFetch handles the result_fetch tool call.
func (h *Handlers) HandleFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FetchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	out, err := ops.Fetch(h.context(ctx), h.env, ops.FetchInput{
		ID:          input.ID,
		IncludeText: input.IncludeText,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(out)
}

// HandleDelete handles the result_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	out, err := ops.Delete(h.context(ctx), h.env, ops.DeleteInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(out)
}

// HandleMentionFile handles the file_mention tool call.
func (h *Handlers) HandleMentionFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MentionFileRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	ws, err := h.resolveWorkspace(input.Workspace)
	if err != nil {
		return h.failure("file_mention", err), nil
	}

	out, err := ops.MentionFile(h.context(ctx), h.env, ops.MentionFileInput{
		Path:      input.Path,
		Workspace: ws,
	})
	if err != nil {
		return h.failure("file_mention", err), nil
	}

	return successResult(out)
}

// resolveWorkspace prefers the request's workspace over the server default.
func (h *Handlers) resolveWorkspace(requested string) (string, error) {
	if strings.TrimSpace(requested) != "" {
		return ops.ResolveWorkspace(requested, "")
	}
	if h.workspace == "" {
		return "", errors.NewNoWorkspace("server working directory")
	}
	return h.workspace, nil
}

func (h *Handlers) context(ctx context.Context) context.Context {
	return logging.WithLogger(ctx, h.logger)
}

// failure logs a failed tool call and converts it to an error result.
func (h *Handlers) failure(tool string, err error) *mcp.CallToolResult {
	h.logger.Warn("tool failed", zap.String("tool", tool), zap.Error(err))
	return errorResult(err)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if aErr, ok := errors.As(err); ok {
		message := aErr.Message
		// Keep any wrapping context ("items[2]: ...") in front of the message.
		if full := err.Error(); full != aErr.Error() && strings.HasSuffix(full, aErr.Error()) {
			message = strings.TrimSuffix(full, aErr.Error()) + aErr.Message
		}
		errorObj := map[string]any{
			"code":    aErr.Code,
			"message": message,
			"status":  aErr.Status,
		}
		if aErr.Code == errors.ErrInternal {
			errorObj["message"] = "an internal error occurred"
		} else if aErr.Details != nil {
			errorObj["details"] = aErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
