package notes

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Excerpt collapses body onto one line and cuts it to at most maxRunes
// runes, ending in "…" when cut. List views use it for the body column.
func Excerpt(body string, maxRunes int) string {
	flat := strings.Join(strings.Fields(body), " ")
	if maxRunes <= 0 || utf8.RuneCountInString(flat) <= maxRunes {
		return flat
	}
	if maxRunes == 1 {
		return "…"
	}
	runes := []rune(flat)
	return strings.TrimRight(string(runes[:maxRunes-1]), " ") + "…"
}

// ContentPreview returns the first maxLines lines of body, appending "..."
// on a new line if truncated.
func ContentPreview(body string, maxLines int) string {
	if body == "" || maxLines <= 0 {
		return body
	}

	found := 0
	for i := 0; i < len(body); i++ {
		if body[i] != '\n' {
			continue
		}
		found++
		if found == maxLines {
			return body[:i] + "\n..."
		}
	}
	return body
}

// CountLines returns the number of lines in body. An empty body has 0 lines.
func CountLines(body string) int {
	if body == "" {
		return 0
	}
	return strings.Count(body, "\n") + 1
}

// FormatWithLineNumbers formats body with cat -n style line numbers: a
// 6-char right-justified number followed by a TAB. start and end select a
// 1-indexed inclusive range; zero means the first or last line. It returns
// the formatted text and the total line count.
func FormatWithLineNumbers(body string, start, end int) (string, int) {
	if body == "" {
		return "", 0
	}

	lines := strings.Split(body, "\n")
	total := len(lines)

	if start < 1 {
		start = 1
	}
	if end <= 0 || end > total {
		end = total
	}
	if start > end {
		return "", total
	}

	var b strings.Builder
	for i := start; i <= end; i++ {
		if i > start {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%6d\t%s", i, lines[i-1])
	}
	return b.String(), total
}
