package mcp

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/hpungsan/codyarch/internal/ops"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"web", "pdf", "result", "file"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"web_search": {
		def:     webSearchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleWebSearch },
	},
	"pdf_read": {
		def:     pdfReadToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleReadPDF },
	},
	"result_persist": {
		def:     persistToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePersist },
	},
	"result_list": {
		def:     listToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleList },
	},
	"result_fetch": {
		def:     fetchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFetch },
	},
	"result_delete": {
		def:     deleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDelete },
	},
	"file_mention": {
		def:     mentionToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMentionFile },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "result_list" → "result").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	tools := make([]string, 0)
	for name := range toolRegistry {
		if typeSet[GetTypeForTool(name)] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates a new MCP server with the codyarch tools registered.
// Tools listed in the config's DisabledTools or belonging to DisabledTypes
// are excluded from registration. workspace is the default for tools called
// without one and may be empty.
func NewServer(env *ops.Env, workspace string, logger *zap.Logger, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"codyarch",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	h := NewHandlers(env, workspace, logger)
	cfg := h.cfg()

	for _, name := range ValidateDisabledTools(cfg.DisabledTools) {
		h.logger.Warn("unknown tool in disabled_tools", zap.String("tool", name))
	}
	for _, name := range ValidateDisabledTypes(cfg.DisabledTypes) {
		h.logger.Warn("unknown type in disabled_types", zap.String("type", name))
	}

	// Build set of disabled tools: first expand types, then add individual tools
	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(env *ops.Env, workspace string, logger *zap.Logger, version string) error {
	s := NewServer(env, workspace, logger, version)
	return server.ServeStdio(s)
}
