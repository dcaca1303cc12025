// Package chunker splits conversation text into sentence spans for extraction.
package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultMinSize = 3
	DefaultMaxSize = 400
)

// Options configures splitting behavior.
type Options struct {
	MinSize int // spans with fewer runes are dropped
	MaxSize int // longer spans are hard-split on word boundaries
}

// DefaultOptions returns default splitting options.
func DefaultOptions() Options {
	return Options{
		MinSize: DefaultMinSize,
		MaxSize: DefaultMaxSize,
	}
}

// Span is one sentence with its byte offsets in the original text.
type Span struct {
	Text  string
	Start int
	End   int
}

var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "st": true, "sir": true, "lt": true, "capt": true,
}

// Sentences splits text into sentences. Every line is split separately, so
// tag lines such as "Location: Rivendell" become their own span. Terminators
// inside double quotes do not end a sentence.
func Sentences(text string, opts Options) []Span {
	if opts.MaxSize == 0 {
		opts = DefaultOptions()
	}

	var spans []Span
	offset := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		for _, s := range splitLine(line, offset) {
			spans = append(spans, limit(s, opts)...)
		}
		offset += len(line)
	}
	return spans
}

// splitLine finds sentence boundaries within a single line.
func splitLine(line string, offset int) []Span {
	var out []Span
	start := 0
	inQuote := false

	emit := func(end int) {
		if s, ok := trimmed(line[start:end], offset+start); ok {
			out = append(out, s)
		}
		start = end
	}

	for i := 0; i < len(line); {
		r, size := utf8.DecodeRuneInString(line[i:])
		switch r {
		case '"':
			inQuote = !inQuote
		case '“':
			inQuote = true
		case '”':
			inQuote = false
		case '.', '!', '?':
			if inQuote || isAbbreviation(line[start:i]) {
				break
			}
			end := i + size
			// Swallow runs like "?!" or "..." and a closing quote.
			for end < len(line) {
				next, n := utf8.DecodeRuneInString(line[end:])
				if next == '.' || next == '!' || next == '?' || next == '"' || next == '”' || next == '\'' {
					end += n
					continue
				}
				break
			}
			if end == len(line) || isSpace(line[end:]) {
				emit(end)
				i = end
				continue
			}
		}
		i += size
	}
	emit(len(line))
	return out
}

// limit drops spans shorter than MinSize and hard-splits those above MaxSize.
func limit(s Span, opts Options) []Span {
	n := utf8.RuneCountInString(s.Text)
	if n < opts.MinSize {
		return nil
	}
	if len(s.Text) <= opts.MaxSize {
		return []Span{s}
	}
	return hardSplit(s, opts)
}

// hardSplit breaks a span that exceeds MaxSize on word boundaries.
func hardSplit(s Span, opts Options) []Span {
	var results []Span
	start := 0
	lastSpace := -1
	for i, r := range s.Text {
		if unicode.IsSpace(r) {
			lastSpace = i
		}
		if i-start >= opts.MaxSize && lastSpace > start {
			if part, ok := trimmed(s.Text[start:lastSpace], s.Start+start); ok {
				results = append(results, part)
			}
			start = lastSpace
		}
	}
	if part, ok := trimmed(s.Text[start:], s.Start+start); ok {
		results = append(results, part)
	}
	return results
}

func trimmed(text string, offset int) (Span, bool) {
	left := len(text) - len(strings.TrimLeftFunc(text, unicode.IsSpace))
	t := strings.TrimSpace(text)
	if t == "" {
		return Span{}, false
	}
	return Span{Text: t, Start: offset + left, End: offset + left + len(t)}, true
}

func isAbbreviation(before string) bool {
	fields := strings.Fields(before)
	if len(fields) == 0 {
		return false
	}
	return abbreviations[strings.ToLower(fields[len(fields)-1])]
}

func isSpace(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsSpace(r)
}
