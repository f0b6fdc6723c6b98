package logutil

import (
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"pgregory.net/rapid"
)

func testPreview_BoundsRunes(t *rapid.T) {
	value := rapid.StringMatching(`[a-zA-Zé日本 \n]{1,60}`).Draw(t, "value")
	max := rapid.IntRange(1, 30).Draw(t, "max")

	got := Preview(value, max)
	if !utf8.ValidString(got) {
		t.Fatalf("preview is not valid UTF-8: %q", got)
	}
	if n := utf8.RuneCountInString(strings.TrimSuffix(got, "...")); n > max {
		t.Fatalf("preview has %d runes, max %d: %q", n, max, got)
	}
	if strings.Contains(got, "\n") {
		t.Fatalf("preview must be single-line: %q", got)
	}
}

func TestPreview_BoundsRunes(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testPreview_BoundsRunes)
}

func TestHeadersForLog(t *testing.T) {
	t.Parallel()
	headers := http.Header{}
	headers.Set("Authorization", "Bearer abc")
	headers.Set("Cookie", "session=1")
	headers.Set("X-Request-Id", "req-7")
	headers.Set("Content-Type", "application/json")

	got := HeadersForLog(headers)
	if strings.Contains(got, "abc") || strings.Contains(got, "session=1") {
		t.Fatalf("credential leaked: %s", got)
	}
	want := `authorization="[REDACTED]"; content-type="application/json"; cookie="[REDACTED]"; x-request-id="req-7"`
	if got != want {
		t.Fatalf("HeadersForLog = %s, want %s", got, want)
	}
	if HeadersForLog(nil) != "{}" {
		t.Fatalf("empty headers = %q", HeadersForLog(nil))
	}
}

func TestPayloadForLog_ElidesNoteText(t *testing.T) {
	t.Parallel()
	in := `{"params":{"arguments":{"title":"Groceries","body":"milk and eggs"}},"result":{"content":[{"type":"text","text":"secret diary"}]}}`
	got := PayloadForLog("application/json", []byte(in), 0, false)
	for _, leak := range []string{"milk and eggs", "secret diary"} {
		if strings.Contains(got, leak) {
			t.Fatalf("note text %q leaked: %s", leak, got)
		}
	}
	for _, keep := range []string{`"title":"Groceries"`, `"body":"[13 chars]"`, `"text":"[12 chars]"`} {
		if !strings.Contains(got, keep) {
			t.Fatalf("want %s in %s", keep, got)
		}
	}
}

func TestPayloadForLog_PartialJSONIsSizedOnly(t *testing.T) {
	t.Parallel()
	got := PayloadForLog("application/json", []byte(`{"body":"my private`), 19, true)
	if got != "<19 bytes of JSON, not shown>" {
		t.Fatalf("PayloadForLog = %q", got)
	}
	if PayloadForLog("application/json", nil, 10, false) != "" {
		t.Fatal("empty body should render empty")
	}
}

func TestPayloadForLog_CutsPlainText(t *testing.T) {
	t.Parallel()
	got := PayloadForLog("text/plain", []byte("abcdefgh"), 4, false)
	if got != "abcd [truncated]" {
		t.Fatalf("PayloadForLog = %q", got)
	}
}

func TestRedactURI(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"mongodb://app:hunter2@db:27017/notes": "mongodb://app:xxxxx@db:27017/notes",
		"mongodb://db:27017":                   "mongodb://db:27017",
		"./data/notes.db":                      "./data/notes.db",
		"badger:///var/lib/notes":              "badger:///var/lib/notes",
	}
	for in, want := range cases {
		if got := RedactURI(in); got != want {
			t.Fatalf("RedactURI(%q) = %q, want %q", in, got, want)
		}
	}
}
