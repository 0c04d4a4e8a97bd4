package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/codyarch/internal/result"
)

func limitOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("limit_kind",
			mcp.Description("Budget metric for the written document. Defaults to the configured metric."),
			mcp.Enum("chars", "tokens"),
		),
		mcp.WithNumber("limit_value",
			mcp.Description("Maximum size of the written document in limit_kind units. Defaults to the configured limit."),
		),
	}
}

func workspaceOption() mcp.ToolOption {
	return mcp.WithString("workspace",
		mcp.Description("Workspace root. Defaults to the workspace the server was started in."),
	)
}

var webSearchToolDef = mcp.NewTool("web_search",
	append([]mcp.ToolOption{
		mcp.WithDescription("Search the web and save the results as a budgeted markdown file under .codyarchitect/webresults/. Returns the file path and an @-mention for it."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
		mcp.WithString("site", mcp.Description("Restrict results to this site, e.g. go.dev")),
		workspaceOption(),
		mcp.WithOpenWorldHintAnnotation(true),
	}, limitOptions()...)...,
)

var pdfReadToolDef = mcp.NewTool("pdf_read",
	append([]mcp.ToolOption{
		mcp.WithDescription("Extract the text of a PDF (or web page) by URL and save it as a budgeted markdown file under .codyarchitect/pdfresults/."),
		mcp.WithString("url", mcp.Required(), mcp.Description("URL of the PDF")),
		workspaceOption(),
		mcp.WithOpenWorldHintAnnotation(true),
	}, limitOptions()...)...,
)

var persistToolDef = mcp.NewTool("result_persist",
	append([]mcp.ToolOption{
		mcp.WithDescription("Save already-fetched text as a result document: prefix it with the instruction template, shrink it to the budget and write it."),
		mcp.WithString("kind", mcp.Required(), mcp.Enum(kindNames()...), mcp.Description("Result kind; selects the template and directory")),
		mcp.WithString("query", mcp.Required(), mcp.Description("Query or URL the text was fetched for; also names the file")),
		mcp.WithString("raw_result", mcp.Description("Raw result text")),
		workspaceOption(),
		mcp.WithIdempotentHintAnnotation(true),
	}, limitOptions()...)...,
)

var listToolDef = mcp.NewTool("result_list",
	mcp.WithDescription("List saved result documents, most recent first."),
	mcp.WithString("workspace", mcp.Description("Only results from this workspace")),
	mcp.WithString("kind", mcp.Enum(kindNames()...), mcp.Description("Only results of this kind")),
	mcp.WithNumber("limit", mcp.Description("Page size (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Page offset")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var fetchToolDef = mcp.NewTool("result_fetch",
	mcp.WithDescription("Fetch a saved result by ID, including its current file content."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Result ID")),
	mcp.WithBoolean("include_text", mcp.Description("Include file content (default true)")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var deleteToolDef = mcp.NewTool("result_delete",
	mcp.WithDescription("Delete a saved result's file and index entry."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Result ID")),
	mcp.WithDestructiveHintAnnotation(true),
)

var mentionToolDef = mcp.NewTool("file_mention",
	mcp.WithDescription("Make a file mentionable. Files outside the workspace are copied into .codyarchitect/temp/ first."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Path of the file")),
	workspaceOption(),
)

func kindNames() []string {
	names := make([]string, len(result.Kinds))
	for i, k := range result.Kinds {
		names[i] = string(k)
	}
	return names
}
