package highlight

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Straight and typographic double quotes. Unbalanced quotes are ignored.
var quoteRegex = regexp.MustCompile(`"([^"\n]+)"|“([^”\n]+)”|„([^“”\n]+)[“”]`)

const quoteTrim = " \t\r\n.,;:!?…"

// Extract returns the distinct double-quoted spans of answer that are at least
// minChars runes long, in order of appearance, capped at maxQuotes.
func Extract(answer string, minChars, maxQuotes int) []string {
	matches := quoteRegex.FindAllStringSubmatch(answer, -1)
	out := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		var q string
		for _, group := range m[1:] {
			if group != "" {
				q = group
				break
			}
		}
		q = strings.Trim(q, quoteTrim)
		if utf8.RuneCountInString(q) < minChars {
			continue
		}
		key := strings.ToLower(q)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
		if maxQuotes > 0 && len(out) >= maxQuotes {
			break
		}
	}
	return out
}
