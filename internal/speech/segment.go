package speech

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var paragraphBreak = regexp.MustCompile(`\n[ \t\r]*\n`)

// Segment splits text into pieces of at most maxChars runes for sinks with an
// input limit. It prefers paragraph breaks, then sentence ends, then word
// boundaries, and only cuts inside a word that alone exceeds the limit.
// Blank text yields no segments; maxChars <= 0 disables splitting.
func Segment(text string, maxChars int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return []string{text}
	}
	return pack(paragraphBreak.Split(text, -1), levelParagraph, maxChars)
}

const (
	levelParagraph = iota
	levelSentence
	levelWord
	levelRune
)

func separator(level int) string {
	if level == levelParagraph {
		return "\n\n"
	}
	if level == levelRune {
		return ""
	}
	return " "
}

func splitLevel(s string, level int, maxChars int) []string {
	switch level {
	case levelSentence:
		return splitSentences(s)
	case levelWord:
		return strings.Fields(s)
	default:
		return splitRunes(s, maxChars)
	}
}

// pack greedily joins parts into segments no longer than maxChars, descending
// one level for any part that is too long on its own.
func pack(parts []string, level int, maxChars int) []string {
	sep := separator(level)
	sepLen := utf8.RuneCountInString(sep)

	var out []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if curLen > 0 {
			out = append(out, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, p := range parts {
		if level != levelRune {
			p = strings.TrimSpace(p)
		}
		if p == "" {
			continue
		}
		n := utf8.RuneCountInString(p)
		if n > maxChars {
			flush()
			out = append(out, pack(splitLevel(p, level+1, maxChars), level+1, maxChars)...)
			continue
		}
		if curLen > 0 && curLen+sepLen+n > maxChars {
			flush()
		}
		if curLen > 0 {
			cur.WriteString(sep)
			curLen += sepLen
		}
		cur.WriteString(p)
		curLen += n
	}
	flush()
	return out
}

// splitSentences cuts after '.', '!' or '?' runs that are followed by
// whitespace.
func splitSentences(s string) []string {
	var out []string
	runes := []rune(s)
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		j := i
		for j+1 < len(runes) && isTerminal(runes[j+1]) {
			j++
		}
		if j+1 < len(runes) && unicode.IsSpace(runes[j+1]) {
			out = append(out, string(runes[start:j+1]))
			start = j + 1
		}
		i = j
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func splitRunes(s string, maxChars int) []string {
	runes := []rune(s)
	var out []string
	for len(runes) > 0 {
		n := maxChars
		if n > len(runes) {
			n = len(runes)
		}
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	return out
}
