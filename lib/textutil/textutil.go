package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Normalize lowercases and collapses runs of whitespace to a single space.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.Trim(s, " \n\t")
	s = whitespaceRegex.ReplaceAllString(s, " ")
	return s
}

// NormalizeName lowercases and strips all whitespace, the form used for
// exact name comparison across sources.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

// SplitName splits a display name into (last, first), both normalized.
// "Smith, John" splits at the comma. "John Smith" takes the last token as
// the surname and the first token as the first name. Single tokens become
// the surname.
func SplitName(name string) (last, first string) {
	name = Normalize(name)
	if name == "" {
		return "", ""
	}

	if comma := strings.Index(name, ","); comma >= 0 {
		last = strings.TrimSpace(name[:comma])
		first = strings.TrimSpace(name[comma+1:])
		if space := strings.Index(first, " "); space >= 0 {
			first = first[:space]
		}
		return last, first
	}

	tokens := strings.Fields(name)
	if len(tokens) == 1 {
		return tokens[0], ""
	}
	return tokens[len(tokens)-1], tokens[0]
}

// MatchKeyword reports whether any matcher appears in the normalized text.
// Matchers are expected to already be normalized.
func MatchKeyword(text string, matchers []string) bool {
	text = Normalize(text)
	for _, m := range matchers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}
