package notes

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// TitleKey folds a title so that titles differing only in letter case or
// accents map to the same key. Stores without a collation-aware unique index
// enforce title uniqueness and title ordering on this key.
func TitleKey(title string) string {
	folded := cases.Fold().String(strings.TrimSpace(title))
	// Transformers carry state; build the chain per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	key, _, err := transform.String(t, folded)
	if err != nil {
		return folded
	}
	// A leading or trailing mark can shield whitespace from the first trim.
	return strings.TrimSpace(key)
}
