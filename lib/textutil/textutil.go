package textutil

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeName lowercases and strips all whitespace, it is meant for
// substring matching against a list of matchers.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

func MatchName(name string, matchers []string) bool {
	name = NormalizeName(name)
	for _, m := range matchers {
		if strings.Contains(name, NormalizeName(m)) {
			return true
		}
	}
	return false
}

// CleanText collapses runs of whitespace into a single space and trims.
func CleanText(text string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(text, " "))
}

var trailingPunct = regexp.MustCompile(`[.,;:]+$`)

// FoldAccents removes diacritics ("INTRODUÇÃO" -> "INTRODUCAO").
func FoldAccents(s string) string {
	// a transformer chain keeps state, it cannot be shared between goroutines
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

// SubjectKey is the identity of a subject name across pages. Portal pages
// are inconsistent about accents, so they are not part of it.
func SubjectKey(name string) string {
	key := strings.ToUpper(FoldAccents(CleanText(name)))
	return trailingPunct.ReplaceAllString(key, "")
}

// SameSubject reports whether two subject names refer to the same subject,
// tolerating small differences in spelling between portal pages.
func SameSubject(a, b string, threshold float64) bool {
	ka := SubjectKey(a)
	kb := SubjectKey(b)
	if ka == kb {
		return true
	}
	if ka == "" || kb == "" {
		return false
	}
	return matchr.JaroWinkler(ka, kb, false) >= threshold
}

// Lines splits text into trimmed, non-empty lines.
func Lines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

// CollapseBlankLines joins the non-empty trimmed lines of text.
func CollapseBlankLines(text string) string {
	return strings.Join(Lines(text), "\n")
}

// Truncate cuts text down to at most max runes.
func Truncate(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max])
}
