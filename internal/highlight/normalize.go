package highlight

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// normText is a case-folded, punctuation-insensitive view of a string that
// remembers where every rune came from.
type normText struct {
	text   string
	starts []int // byte offset in the source, per normalized rune
	ends   []int
}

type token struct {
	text       string
	start, end int // byte offsets in the source
}

func foldRune(r rune) []rune {
	switch r {
	case '’', '‘', '`', '´':
		return []rune{'\''}
	}
	var out []rune
	for _, c := range norm.NFKC.String(string(r)) {
		switch {
		case unicode.IsLetter(c), unicode.IsDigit(c), c == '\'':
			out = append(out, unicode.ToLower(c))
		default:
			out = append(out, ' ')
		}
	}
	return out
}

// normalize lowercases s, turns every run of spaces and punctuation into one
// space and trims both ends.
func normalize(s string) *normText {
	var sb strings.Builder
	nt := &normText{}
	pendingSpace := false
	for i, r := range s {
		size := utf8.RuneLen(r)
		if size < 0 {
			size = 1
		}
		for _, c := range foldRune(r) {
			if c == ' ' {
				pendingSpace = sb.Len() > 0
				continue
			}
			if pendingSpace {
				sb.WriteRune(' ')
				nt.starts = append(nt.starts, i)
				nt.ends = append(nt.ends, i)
				pendingSpace = false
			}
			sb.WriteRune(c)
			nt.starts = append(nt.starts, i)
			nt.ends = append(nt.ends, i+size)
		}
	}
	nt.text = sb.String()
	return nt
}

// find locates needle in the normalized text and maps it back to source byte
// offsets.
func (n *normText) find(needle string) (int, int, bool) {
	if needle == "" {
		return 0, 0, false
	}
	idx := strings.Index(n.text, needle)
	if idx < 0 {
		return 0, 0, false
	}
	first := utf8.RuneCountInString(n.text[:idx])
	last := first + utf8.RuneCountInString(needle) - 1
	return n.starts[first], n.ends[last], true
}

func (n *normText) tokens() []token {
	var out []token
	runeIdx := 0
	tokStart := -1
	var sb strings.Builder
	flush := func(lastRune int) {
		if tokStart < 0 {
			return
		}
		out = append(out, token{text: sb.String(), start: n.starts[tokStart], end: n.ends[lastRune]})
		sb.Reset()
		tokStart = -1
	}
	for _, r := range n.text {
		if r == ' ' {
			flush(runeIdx - 1)
		} else {
			if tokStart < 0 {
				tokStart = runeIdx
			}
			sb.WriteRune(r)
		}
		runeIdx++
	}
	flush(runeIdx - 1)
	return out
}

func tokenTexts(tokens []token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.text
	}
	return out
}
