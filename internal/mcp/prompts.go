package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const notesWorkflowPromptName = "notes_workflow"

const notesWorkflowText = "The user keeps titled text notes. Titles are unique ignoring case and accents. " +
	"Call note_list to find a note before creating one with a similar title, and prefer note_update on the " +
	"existing note over creating a near-duplicate. Read a note with note_view before rewriting its body, " +
	"since note_update replaces the body whole. Only call note_delete when the user asks to remove a note."

func registerPrompts(mcpServer *mcp.Server) {
	for _, prompt := range PromptDefinitions() {
		mcpServer.AddPrompt(prompt, notesWorkflowHandler)
	}
}

// PromptDefinitions returns the MCP prompt definitions.
func PromptDefinitions() []*mcp.Prompt {
	return []*mcp.Prompt{
		{
			Name:        notesWorkflowPromptName,
			Title:       "Notes workflow",
			Description: "Brief guidance for reading and editing notes without creating duplicates.",
		},
	}
}

func notesWorkflowHandler(_ context.Context, _ *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Brief guidance for reading and editing notes without creating duplicates.",
		Messages: []*mcp.PromptMessage{
			{
				Role:    mcp.Role("user"),
				Content: &mcp.TextContent{Text: notesWorkflowText},
			},
		},
	}, nil
}
