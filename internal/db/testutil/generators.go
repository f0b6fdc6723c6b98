// Package testutil provides shared test utilities and generators for property-based testing.
// All string generators are intentionally aggressive to catch edge cases.
package testutil

import (
	"strings"

	"github.com/google/uuid"
	"pgregory.net/rapid"
)

// ArbitraryString generates truly arbitrary strings including:
// - Empty strings
// - Null bytes
// - Unicode (CJK, Arabic, emoji, combining marks)
// - Control characters
// - SQL and Mongo operator injection attempts
// - Strings at and past the length limits
func ArbitraryString() *rapid.Generator[string] {
	return rapid.OneOf(
		rapid.String(),
		rapid.Just(""),
		rapid.Just("\x00"),
		rapid.Just("test\x00test"),
		rapid.StringMatching(`[a-zA-Z0-9 ]{0,100}`),
		rapid.StringMatching(`[\x00-\x1F]{1,10}`),
		arbitraryInjection(),
		arbitraryUnicode(),
		arbitraryWhitespace(),
		arbitraryLongString(),
	)
}

// ArbitraryTitle generates candidate titles. Some are rejected by
// validation (blank or too long); callers filter with notes.NewDraft.
func ArbitraryTitle() *rapid.Generator[string] {
	return rapid.OneOf(
		rapid.StringN(1, 100, -1),
		rapid.StringMatching(`[a-zA-Z0-9 ]{1,100}`),
		rapid.Just("\x00"),
		rapid.Just("\x00abc"),
		rapid.Just("test\x00test"),
		arbitraryInjection(),
		arbitraryUnicode(),
		arbitraryWhitespace(),
		rapid.Just(strings.Repeat("t", 100)),
		rapid.Just("\x00" + strings.Repeat("t", 99)),
		rapid.Just(strings.Repeat("é", 100)),
		rapid.Just(strings.Repeat("t", 101)),
	)
}

// ArbitraryBody generates note bodies. Can be empty or contain any characters.
func ArbitraryBody() *rapid.Generator[string] {
	return ArbitraryString()
}

// ArbitraryID generates ids, valid UUIDs mixed with junk.
func ArbitraryID() *rapid.Generator[string] {
	return rapid.OneOf(
		rapid.Custom(func(t *rapid.T) string {
			b := rapid.SliceOfN(rapid.Byte(), 16, 16).Draw(t, "uuid_bytes")
			id, _ := uuid.FromBytes(b)
			return id.String()
		}),
		rapid.Just(""),
		rapid.Just("123"),
		rapid.Just("not-a-uuid"),
		rapid.Just("../escape"),
		rapid.Just("64b7f0c2e4b0a1a2b3c4d5e6"),
		arbitraryInjection(),
		rapid.String(),
	)
}

// arbitraryInjection generates SQL injection patterns and Mongo operator keys.
func arbitraryInjection() *rapid.Generator[string] {
	return rapid.SampledFrom([]string{
		`' OR 1=1 --`,
		`'; DROP TABLE notes; --`,
		`" OR "1"="1`,
		`1; SELECT * FROM notes`,
		`admin'--`,
		`' UNION SELECT * FROM notes --`,
		`' OR ''='`,
		`%27%20OR%20%271%27%3D%271`,
		`<script>alert('xss')</script>`,
		`$where`,
		`$ne`,
		`{"$gt": ""}`,
		`$title`,
		`$$ROOT`,
		`title_key('x')`,
	})
}

// arbitraryUnicode generates various Unicode edge cases
func arbitraryUnicode() *rapid.Generator[string] {
	return rapid.SampledFrom([]string{
		"日本語",                            // Japanese
		"中文测试",                           // Chinese
		"العربية",                        // Arabic (RTL)
		"עברית",                          // Hebrew (RTL)
		"🔥🎉💻🚀",                           // Emoji
		"emoji🔥in🎉middle",                // Mixed emoji
		"Ñoño",                           // Spanish
		"Zürich",                         // German umlaut
		"Москва",                         // Cyrillic
		"Ελληνικά",                       // Greek
		"한국어",                            // Korean
		"\u200B",                         // Zero-width space
		"\uFEFF",                         // BOM
		"a\u0300",                        // Combining diacritical
		"\u202E" + "reversed" + "\u202C", // RTL override
		"🧑‍💻",                            // ZWJ sequence
		"\U0001F1FA\U0001F1F8",           // Flag emoji (regional indicators)
		"é" + "\u0301",                   // Double combining
		"Straße",                         // Sharp s folds to ss
		"ǅemal",                          // Titlecase digraph
		"İstanbul",                       // Dotted capital I
		"test\u00A0space",                // Non-breaking space
		"line\u2028separator",            // Line separator
	})
}

// arbitraryWhitespace generates various whitespace patterns
func arbitraryWhitespace() *rapid.Generator[string] {
	return rapid.SampledFrom([]string{
		" ",
		"   ",
		"\t",
		"\n",
		"\r\n",
		" \t \n ",
		"  test  ",
		"\ttest\t",
		"line1\nline2",
		"\u00A0", // Non-breaking space
		"\u2003", // Em space
		"\u3000", // Ideographic space
		"\v",     // Vertical tab
		"\f",     // Form feed
	})
}

// arbitraryLongString generates strings around the body limit.
func arbitraryLongString() *rapid.Generator[string] {
	return rapid.Custom(func(t *rapid.T) string {
		length := rapid.SampledFrom([]int{
			100,
			101,
			9999,
			10000,
			10001,
		}).Draw(t, "length")
		return strings.Repeat("abcdefghij", length/10+1)[:length]
	})
}
