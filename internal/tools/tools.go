// Package tools advertises and dispatches the daemon's MCP-style tool
// surface (search_repo, get_file, list_files) described in spec.md §6.
// Schemas are built with mark3labs/mcp-go's descriptor helpers so the
// shape matches the broader MCP tool-calling convention, then re-served
// as plain JSON rather than over a full MCP transport.
package tools

import (
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/superinstance/prism/internal/index"
	"github.com/superinstance/prism/internal/prismerr"
)

const (
	SearchRepo = "search_repo"
	GetFile    = "get_file"
	ListFiles  = "list_files"
)

// Descriptors returns the advertised tool schemas for GET /tools/list.
func Descriptors() []mcp.Tool {
	return []mcp.Tool{
		mcp.NewTool(
			SearchRepo,
			mcp.WithDescription("Search the indexed project for lines matching a query, ranked by relevance."),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("Search text; matched as a case-insensitive substring against indexed file content.")),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of hits to return (1-100, default 10).")),
		),
		mcp.NewTool(
			GetFile,
			mcp.WithDescription("Return the full content of one indexed file."),
			mcp.WithString("path",
				mcp.Required(),
				mcp.Description("Project-root-relative path, e.g. src/main.go.")),
		),
		mcp.NewTool(
			ListFiles,
			mcp.WithDescription("List indexed files, optionally filtered by language."),
			mcp.WithString("language",
				mcp.Description("Restrict to files tagged with this language, e.g. \"go\".")),
		),
	}
}

// ContentItem is one element of a CallToolResult's content array.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallResult is the body shape returned from POST /tools/call.
type CallResult struct {
	Content []ContentItem `json:"content"`
}

func textResult(text string) *CallResult {
	return &CallResult{Content: []ContentItem{{Type: "text", Text: text}}}
}

// Dispatch executes the named tool against ix with the given arguments,
// returning a text-serialized CallResult. An unknown tool name or
// malformed arguments yields a *prismerr.Error.
func Dispatch(ix index.Indexer, name string, args map[string]any) (*CallResult, error) {
	switch name {
	case SearchRepo:
		return dispatchSearch(ix, args)
	case GetFile:
		return dispatchGetFile(ix, args)
	case ListFiles:
		return dispatchListFiles(ix, args)
	default:
		return nil, prismerr.Newf(prismerr.NotFound, "unknown tool: %s", name)
	}
}

func dispatchSearch(ix index.Indexer, args map[string]any) (*CallResult, error) {
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return nil, prismerr.New(prismerr.ParseInvalid, "query parameter is required")
	}

	limit := index.DefaultSearchLimit
	if raw, ok := args["limit"].(float64); ok && raw > 0 {
		limit = int(raw)
	}

	hits := ix.Search(query, limit)
	data, err := json.Marshal(hits)
	if err != nil {
		return nil, prismerr.Newf(prismerr.IOFailure, "marshal search results: %v", err)
	}
	return textResult(string(data)), nil
}

func dispatchGetFile(ix index.Indexer, args map[string]any) (*CallResult, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return nil, prismerr.New(prismerr.ParseInvalid, "path parameter is required")
	}

	fr, err := ix.GetFile(path)
	if err != nil {
		if prismerr.KindOf(err) == prismerr.NotFound {
			return textResult("File not found"), nil
		}
		return nil, err
	}
	return textResult(fr.Content), nil
}

func dispatchListFiles(ix index.Indexer, args map[string]any) (*CallResult, error) {
	language, _ := args["language"].(string)

	summaries := ix.ListFiles(language)
	type entry struct {
		Path     string `json:"path"`
		Language string `json:"language"`
		Lines    int    `json:"lines"`
	}
	entries := make([]entry, 0, len(summaries))
	for _, s := range summaries {
		entries = append(entries, entry{Path: s.Path, Language: s.Language, Lines: s.Lines})
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return nil, prismerr.Newf(prismerr.IOFailure, "marshal file list: %v", err)
	}
	return textResult(string(data)), nil
}
