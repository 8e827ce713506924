package store

import (
	"regexp"
	"strings"
	"unicode"
)

// tokenRegex matches identifier-like runs.
var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// minTermLen drops single-character terms.
const minTermLen = 2

// TokenizeCode returns the lowercased terms of text as indexed by the code
// analyzer (before stop-word removal).
func TokenizeCode(text string) []string {
	var terms []string
	for _, word := range tokenRegex.FindAllString(text, -1) {
		terms = append(terms, IdentifierTerms(word)...)
	}
	return terms
}

// IdentifierTerms returns word lowercased followed by its distinct
// camelCase/snake_case parts. Terms shorter than two characters are dropped.
func IdentifierTerms(word string) []string {
	whole := strings.ToLower(strings.Trim(word, "_"))
	var terms []string
	if len(whole) >= minTermLen {
		terms = append(terms, whole)
	}

	parts := SplitCodeToken(word)
	if len(parts) < 2 {
		return terms
	}

	seen := map[string]struct{}{whole: {}}
	for _, p := range parts {
		lower := strings.ToLower(p)
		if len(lower) < minTermLen {
			continue
		}
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		terms = append(terms, lower)
	}
	return terms
}

// SplitCodeToken splits camelCase and snake_case identifiers.
func SplitCodeToken(token string) []string {
	if !strings.Contains(token, "_") {
		return SplitCamelCase(token)
	}
	var result []string
	for _, part := range strings.Split(token, "_") {
		if part != "" {
			result = append(result, SplitCamelCase(part)...)
		}
	}
	return result
}

// SplitCamelCase splits camelCase and PascalCase identifiers.
//   - "getUserById" -> ["get", "User", "By", "Id"]
//   - "HTTPHandler" -> ["HTTP", "Handler"]
//   - "parseHTTPRequest" -> ["parse", "HTTP", "Request"]
func SplitCamelCase(s string) []string {
	if s == "" {
		return []string{}
	}

	var result []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevIsLower := unicode.IsLower(runes[i-1])
			nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if (prevIsLower || nextIsLower) && current.Len() > 0 {
				result = append(result, current.String())
				current.Reset()
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

// BuildStopWordMap converts stop words to a lowercase lookup set.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}
