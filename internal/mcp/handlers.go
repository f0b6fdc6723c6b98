package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kuitang/notes-api/internal/errs"
	"github.com/kuitang/notes-api/internal/notes"
	"github.com/kuitang/notes-api/internal/obs"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const listPreviewRunes = 120

// Handler implements MCP tool call handling.
type Handler struct {
	notesSvc *notes.Service
}

// NewHandler creates a new MCP handler over the notes service.
func NewHandler(notesSvc *notes.Service) *Handler {
	return &Handler{notesSvc: notesSvc}
}

// toolErrorPayload is the JSON body of every failed tool result.
type toolErrorPayload struct {
	Code    string                `json:"code"`
	Error   string                `json:"error"`
	Message string                `json:"message"`
	Details []errs.FieldViolation `json:"details,omitempty"`
	Fields  map[string]any        `json:"fields,omitempty"`
}

type noteListItem struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Preview    string    `json:"preview"`
	TotalLines int       `json:"total_lines"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type noteListResult struct {
	Items []noteListItem `json:"items"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
	Pages int            `json:"pages"`
	Sort  string         `json:"sort"`
}

type noteViewResult struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	TotalLines int       `json:"total_lines"`
	LineRange  *[2]int   `json:"line_range,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type noteSummary struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	TotalLines int       `json:"total_lines"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func summarize(n *notes.Note) noteSummary {
	return noteSummary{
		ID:         n.ID,
		Title:      n.Title,
		TotalLines: notes.CountLines(n.Body),
		CreatedAt:  n.CreatedAt,
		UpdatedAt:  n.UpdatedAt,
	}
}

// createToolHandler returns a tool handler function for the given tool name.
// Failures become IsError results; the transport error is always nil.
func (h *Handler) createToolHandler(name string) func(ctx context.Context, req *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, args map[string]any) (result *mcp.CallToolResult, _ any, _ error) {
		logger := obs.From(ctx).With("pkg", "mcp", "tool", name)
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("mcp_tool_panic", "panic", rec)
				result = newToolResultError(errs.New(errs.Internal, "internal error"))
			}
		}()

		result, err := h.HandleToolCall(ctx, name, args)
		if err != nil {
			if errs.CodeOf(err) == errs.Internal {
				logger.Error("mcp_tool_failed", "err", err)
			} else {
				logger.Debug("mcp_tool_rejected", "code", errs.CodeOf(err), "err", err)
			}
			return newToolResultError(err), nil, nil
		}
		return result, nil, nil
	}
}

// HandleToolCall routes tool calls to the matching handler. Errors are coded.
func (h *Handler) HandleToolCall(ctx context.Context, name string, arguments map[string]any) (*mcp.CallToolResult, error) {
	switch name {
	case toolNoteList, toolNoteView, toolNoteCreate, toolNoteUpdate, toolNoteDelete:
		if err := h.requireNotes(); err != nil {
			return nil, err
		}
	default:
		return nil, errs.New(errs.NotFound, fmt.Sprintf("unknown tool: %s", name))
	}

	switch name {
	case toolNoteList:
		return h.handleNoteList(ctx, arguments)
	case toolNoteView:
		return h.handleNoteView(ctx, arguments)
	case toolNoteCreate:
		return h.handleNoteCreate(ctx, arguments)
	case toolNoteUpdate:
		return h.handleNoteUpdate(ctx, arguments)
	default:
		return h.handleNoteDelete(ctx, arguments)
	}
}

func (h *Handler) requireNotes() error {
	if h.notesSvc == nil {
		return errs.New(errs.Unavailable, "notes tools are unavailable on this MCP endpoint")
	}
	return nil
}

// decodeToolArgs decodes tool arguments into dst, rejecting unknown fields.
func decodeToolArgs(args map[string]any, dst any) error {
	if args == nil {
		args = map[string]any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return errs.Wrap(errs.InvalidArgument, "invalid tool arguments", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errs.Wrap(errs.InvalidArgument, fmt.Sprintf("invalid tool arguments: %v", err), err)
	}
	return nil
}

// classifyNotesError keeps coded errors and hides everything else behind
// an internal error naming the operation.
func classifyNotesError(err error, op string) error {
	if err == nil {
		return nil
	}
	var coded *errs.Error
	if errors.As(err, &coded) {
		return err
	}
	return errs.Wrap(errs.Internal, fmt.Sprintf("failed to %s", op), err)
}

// newToolResultText creates a successful tool result with text content.
func newToolResultText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// newToolResultError creates a tool result carrying the error as JSON.
func newToolResultError(err error) *mcp.CallToolResult {
	code := errs.CodeOf(err)
	payload := toolErrorPayload{
		Code:    string(code),
		Error:   errs.Kind(code),
		Message: errs.MessageOf(err),
		Details: errs.DetailsOf(err),
		Fields:  errs.FieldsOf(err),
	}
	text := marshalAny(payload)
	if text == nil {
		text = []byte(`{"code":"internal","error":"InternalError","message":"internal error"}`)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(text)},
		},
		IsError: true,
	}
}

// marshalAny returns the indented JSON for value, or nil if it cannot be encoded.
func marshalAny(value any) []byte {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil
	}
	return data
}

func toolResultJSON(value any) (*mcp.CallToolResult, error) {
	data := marshalAny(value)
	if data == nil {
		return nil, errs.New(errs.Internal, "failed to encode tool result")
	}
	return newToolResultText(string(data)), nil
}

func (h *Handler) handleNoteList(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	var in struct {
		Page  int    `json:"page"`
		Limit int    `json:"limit"`
		Sort  string `json:"sort"`
	}
	if err := decodeToolArgs(args, &in); err != nil {
		return nil, err
	}
	params := notes.NewListParams(in.Page, in.Limit, in.Sort)

	res, err := h.notesSvc.List(ctx, params)
	if err != nil {
		return nil, classifyNotesError(err, "list notes")
	}

	items := make([]noteListItem, 0, len(res.Items))
	for _, n := range res.Items {
		items = append(items, noteListItem{
			ID:         n.ID,
			Title:      n.Title,
			Preview:    notes.Excerpt(n.Body, listPreviewRunes),
			TotalLines: notes.CountLines(n.Body),
			CreatedAt:  n.CreatedAt,
			UpdatedAt:  n.UpdatedAt,
		})
	}
	return toolResultJSON(noteListResult{
		Items: items,
		Total: res.Total,
		Page:  res.Page,
		Limit: res.Limit,
		Pages: res.Pages,
		Sort:  params.Sort.String(),
	})
}

func (h *Handler) handleNoteView(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	var in struct {
		ID        string `json:"id"`
		LineRange []int  `json:"line_range"`
	}
	if err := decodeToolArgs(args, &in); err != nil {
		return nil, err
	}
	if len(in.LineRange) != 0 && len(in.LineRange) != 2 {
		return nil, errs.Invalid(errs.FieldViolation{Path: "line_range", Message: "line_range must be [start, end]"})
	}

	note, err := h.notesSvc.Get(ctx, in.ID)
	if err != nil {
		return nil, classifyNotesError(err, "read note")
	}

	result := noteViewResult{
		ID:        note.ID,
		Title:     note.Title,
		CreatedAt: note.CreatedAt,
		UpdatedAt: note.UpdatedAt,
	}
	start, end := 0, 0
	if len(in.LineRange) == 2 {
		start, end = in.LineRange[0], in.LineRange[1]
		result.LineRange = &[2]int{start, end}
	}
	result.Body, result.TotalLines = notes.FormatWithLineNumbers(note.Body, start, end)
	return toolResultJSON(result)
}

func (h *Handler) handleNoteCreate(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	var in notes.CreateInput
	if err := decodeToolArgs(args, &in); err != nil {
		return nil, err
	}
	note, err := h.notesSvc.Create(ctx, in)
	if err != nil {
		return nil, classifyNotesError(err, "create note")
	}
	return toolResultJSON(summarize(note))
}

func (h *Handler) handleNoteUpdate(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	var in struct {
		ID string `json:"id"`
		notes.PatchInput
	}
	if err := decodeToolArgs(args, &in); err != nil {
		return nil, err
	}
	note, err := h.notesSvc.Update(ctx, in.ID, in.PatchInput)
	if err != nil {
		return nil, classifyNotesError(err, "update note")
	}
	return toolResultJSON(summarize(note))
}

func (h *Handler) handleNoteDelete(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	var in struct {
		ID string `json:"id"`
	}
	if err := decodeToolArgs(args, &in); err != nil {
		return nil, err
	}
	note, err := h.notesSvc.Delete(ctx, in.ID)
	if err != nil {
		return nil, classifyNotesError(err, "delete note")
	}
	return toolResultJSON(struct {
		ID      string `json:"id"`
		Title   string `json:"title"`
		Deleted bool   `json:"deleted"`
	}{ID: note.ID, Title: note.Title, Deleted: true})
}
