package mcp

import (
	"github.com/kuitang/notes-api/internal/notes"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	toolNoteList   = "note_list"
	toolNoteView   = "note_view"
	toolNoteCreate = "note_create"
	toolNoteUpdate = "note_update"
	toolNoteDelete = "note_delete"
)

// ToolDefinitions returns the notes MCP tool definitions.
func ToolDefinitions() []*mcp.Tool {
	return []*mcp.Tool{
		{
			Name:        toolNoteList,
			Description: "List notes one page at a time. Each item has the id, title, a one-line preview of the body, the line count and timestamps. The response carries total, page, limit and pages so you can walk every page. Use note_view with an id to read a full body.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"page": map[string]any{
						"type":        "integer",
						"description": "1-based page number (default 1)",
						"minimum":     1,
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Notes per page (default 50, max 200)",
						"minimum":     1,
						"maximum":     notes.MaxLimit,
					},
					"sort": map[string]any{
						"type":        "string",
						"description": "Sort field, prefix with - for descending: title, body, id, createdAt or updatedAt (default -updatedAt; unknown fields use the default)",
					},
				},
			},
		},
		{
			Name:        toolNoteView,
			Description: "Read a note's body with line numbers (tab-separated, 1-indexed). Optionally pass line_range as [start, end] (1-indexed, inclusive; end=0 means last line) to view part of a long note. The response includes total_lines.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{
						"type":        "string",
						"description": "The id of the note to read",
					},
					"line_range": map[string]any{
						"type":        "array",
						"description": "Optional [start, end] line range (1-indexed, inclusive). end=0 means last line.",
						"items":       map[string]any{"type": "integer"},
						"minItems":    2,
						"maxItems":    2,
					},
				},
				"required": []string{"id"},
			},
		},
		{
			Name:        toolNoteCreate,
			Description: "Create a note. Titles are unique ignoring case and accents, so 'Cafe' and 'café' collide; a collision fails with error DuplicateError and the conflicting title in fields. Returns the new note's id, title, line count and timestamps.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title": map[string]any{
						"type":        "string",
						"description": "Note title, 1-100 characters after trimming",
						"maxLength":   notes.TitleMaxLen,
					},
					"body": map[string]any{
						"type":        "string",
						"description": "Note body, up to 10000 characters (optional)",
						"maxLength":   notes.BodyMaxLen,
					},
				},
				"required": []string{"title"},
			},
		},
		{
			Name:        toolNoteUpdate,
			Description: "Change a note's title and/or body. Omitted fields keep their current value; the body is replaced whole. The same uniqueness rule as note_create applies to a new title. Returns the id, title, line count and updatedAt.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{
						"type":        "string",
						"description": "The id of the note to update",
					},
					"title": map[string]any{
						"type":        "string",
						"description": "New title (optional)",
						"maxLength":   notes.TitleMaxLen,
					},
					"body": map[string]any{
						"type":        "string",
						"description": "New body (optional)",
						"maxLength":   notes.BodyMaxLen,
					},
				},
				"required": []string{"id"},
			},
		},
		{
			Name:        toolNoteDelete,
			Description: "Permanently delete a note by id. Returns the deleted note's id and title.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{
						"type":        "string",
						"description": "The id of the note to delete",
					},
				},
				"required": []string{"id"},
			},
		},
	}
}
