// Package ui formats notes for the terminal.
package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/kuitang/notes-api/internal/client"
	"github.com/kuitang/notes-api/internal/notes"
)

const (
	timeLayout   = "2006-01-02 15:04"
	excerptRunes = 72
)

var (
	faint = color.New(color.Faint).SprintFunc()
	bold  = color.New(color.Bold).SprintFunc()
	cyan  = color.New(color.FgCyan).SprintFunc()
)

// ShortID returns the first 8 characters of id.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// FormatNoteListItem renders one row of `notes list`.
func FormatNoteListItem(n notes.Note) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "  %s  %s\n", faint(ShortID(n.ID)), bold(n.Title))
	if excerpt := notes.Excerpt(n.Body, excerptRunes); excerpt != "" {
		fmt.Fprintf(&sb, "            %s\n", excerpt)
	}
	fmt.Fprintf(&sb, "            %s %s\n", faint("Updated:"), faint(n.UpdatedAt.Local().Format(timeLayout)))
	return sb.String()
}

// FormatPageFooter summarizes the pagination state of a list result.
func FormatPageFooter(res *notes.ListResult) string {
	return faint(fmt.Sprintf("Page %d of %d (%d notes, %d per page)", res.Page, res.Pages, res.Total, res.Limit)) + "\n"
}

// FormatNoteHeader renders the title block shown above a note body.
func FormatNoteHeader(n notes.Note) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", bold(n.Title))
	fmt.Fprintf(&sb, "%s %s\n", faint("ID:"), faint(n.ID))
	fmt.Fprintf(&sb, "%s %s\n", faint("Created:"), faint(n.CreatedAt.Local().Format(timeLayout)))
	fmt.Fprintf(&sb, "%s %s\n", faint("Updated:"), faint(n.UpdatedAt.Local().Format(timeLayout)))
	fmt.Fprintf(&sb, "%s %s\n", faint("Lines:"), cyan(notes.CountLines(n.Body)))
	sb.WriteString(Separator())
	return sb.String()
}

// FormatNoteBody renders body, numbered when numbered is set, or cut to the
// first head lines when head is positive.
func FormatNoteBody(body string, numbered bool, head int) string {
	if body == "" {
		return faint("(empty)") + "\n"
	}
	if head > 0 {
		body = notes.ContentPreview(body, head)
	}
	if numbered {
		body, _ = notes.FormatWithLineNumbers(body, 0, 0)
	}
	return body + "\n"
}

// FormatError renders err, listing each field violation of an API error on
// its own line.
func FormatError(err error) string {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return Error(err.Error())
	}
	var sb strings.Builder
	sb.WriteString(Error(fmt.Sprintf("%s: %s", apiErr.Kind, apiErr.Message)))
	for _, d := range apiErr.Details {
		fmt.Fprintf(&sb, "\n    %s %s", cyan(d.Path), d.Message)
	}
	for field, value := range apiErr.Fields {
		fmt.Fprintf(&sb, "\n    %s %v", cyan(field), value)
	}
	return sb.String()
}

// Separator returns a faint horizontal rule.
func Separator() string {
	return faint(strings.Repeat("─", 50)) + "\n"
}

// Success prefixes msg with a green check mark.
func Success(msg string) string {
	return color.New(color.FgGreen).Sprint("✓ ") + msg
}

// Error prefixes msg with a red cross.
func Error(msg string) string {
	return color.New(color.FgRed).Sprint("✗ ") + msg
}
