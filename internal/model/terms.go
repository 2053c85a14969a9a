package model

import (
	"strings"
	"unicode"
)

// SplitIdentifier breaks an identifier into lower-case words at case changes,
// digits and non-alphanumeric separators: "parseHTTPRequest_v2" yields
// [parse http request v 2].
func SplitIdentifier(s string) []string {
	var (
		words []string
		cur   []rune
	)
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if len(cur) > 0 {
			prev := runes[i-1]
			switch {
			case unicode.IsDigit(r) != unicode.IsDigit(prev):
				flush()
			case unicode.IsUpper(r) && unicode.IsLower(prev):
				flush()
			// The last capital of an acronym starts the next word: HTTPRequest.
			case unicode.IsUpper(r) && unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]):
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return words
}

// Terms returns the words of every identifier in text, space separated.
func Terms(text string) string {
	var out []string
	for _, field := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	}) {
		out = append(out, SplitIdentifier(field)...)
	}
	return strings.Join(out, " ")
}
