// Package segment splits a document into size-bounded chunks for synthesis.
//
// Chunks are cut at sentence boundaries where possible, then at word
// boundaries, and as a last resort at byte boundaries. Offsets are byte
// offsets into the UTF-8 document text and partition it exactly: the
// whitespace between two chunks belongs to the range of the earlier chunk
// even though it is trimmed from that chunk's text.
package segment

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxBytes keeps requests safely under the 5000 byte limit of the
// Google Cloud Text-to-Speech API.
const DefaultMaxBytes = 4500

// Chunk is a contiguous, size-bounded slice of the source document.
type Chunk struct {
	Index int    // Position in the chunk list
	Text  string // Trimmed text sent to the synthesis gateway
	Start int    // First byte of the chunk's range in the document
	End   int    // One past the last byte of the chunk's range
}

// Len returns the size of the chunk's range in bytes.
func (c Chunk) Len() int {
	return c.End - c.Start
}

// Contains reports whether the character index falls inside the chunk's range.
func (c Chunk) Contains(char int) bool {
	return char >= c.Start && char < c.End
}

type span struct {
	start, end int
}

type level int

const (
	levelSentence level = iota
	levelWord
	levelByte
)

// Segment splits text into chunks whose trimmed text is at most maxBytes
// long. A maxBytes of zero or less selects DefaultMaxBytes. Text that is
// empty or only whitespace yields no chunks.
func Segment(text string, maxBytes int) []Chunk {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	p := &packer{text: text, max: maxBytes}
	for _, s := range sentenceSpans(text) {
		p.add(s, levelSentence)
	}
	p.finish()

	return p.chunks
}

// packer greedily grows the open chunk [start, end) one span at a time.
// Spans arrive in order and contiguously, so end always equals the start
// of the next span.
type packer struct {
	text   string
	max    int
	start  int
	end    int
	chunks []Chunk
}

func (p *packer) size(start, end int) int {
	return len(strings.TrimSpace(p.text[start:end]))
}

func (p *packer) add(s span, lvl level) {
	if p.size(p.start, s.end) <= p.max {
		p.end = s.end
		return
	}

	if p.size(p.start, p.end) > 0 {
		p.flush()
		if p.size(p.start, s.end) <= p.max {
			p.end = s.end
			return
		}
	}

	var parts []span
	switch lvl {
	case levelSentence:
		parts = wordSpans(p.text, s)
	case levelWord:
		parts = byteSpans(p.text, s, p.max)
	default:
		// Byte spans never exceed max on their own, so they always fit
		// into an empty chunk.
		p.end = s.end
		return
	}
	for _, part := range parts {
		p.add(part, lvl+1)
	}
}

// flush closes the open chunk. The next chunk starts where it ended.
func (p *packer) flush() {
	p.chunks = append(p.chunks, Chunk{
		Index: len(p.chunks),
		Text:  strings.TrimSpace(p.text[p.start:p.end]),
		Start: p.start,
		End:   p.end,
	})
	p.start = p.end
}

func (p *packer) finish() {
	p.end = len(p.text)
	if p.size(p.start, p.end) > 0 {
		p.flush()
		return
	}
	// Trailing whitespace folds into the last chunk.
	if n := len(p.chunks); n > 0 {
		p.chunks[n-1].End = p.end
	}
}

// sentenceSpans splits text into sentence-like units. A unit ends after a
// run of terminal punctuation (plus closing quotes or brackets) that is
// followed by whitespace or the end of the text, or at a blank line. The
// whitespace after a unit belongs to that unit.
func sentenceSpans(text string) []span {
	var spans []span
	start := 0
	i := 0
	for i < len(text) {
		r, w := utf8.DecodeRuneInString(text[i:])

		switch {
		case isTerminal(r):
			j := i + w
			for j < len(text) {
				r2, w2 := utf8.DecodeRuneInString(text[j:])
				if !isTerminal(r2) && !isClosing(r2) {
					break
				}
				j += w2
			}
			if j == len(text) || startsWithSpace(text[j:]) {
				j = skipSpace(text, j)
				spans = append(spans, span{start, j})
				start, i = j, j
				continue
			}
			i = j
			continue

		case r == '\n':
			j := skipSpace(text, i)
			if strings.Count(text[i:j], "\n") >= 2 && i > start {
				spans = append(spans, span{start, j})
				start, i = j, j
				continue
			}
		}
		i += w
	}
	if start < len(text) {
		spans = append(spans, span{start, len(text)})
	}
	return spans
}

// wordSpans splits a span into words, each carrying its trailing whitespace.
// Leading whitespace is attached to the first word.
func wordSpans(text string, s span) []span {
	var spans []span
	start := s.start
	i := skipSpace(text, s.start)
	for i < s.end {
		r, w := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) {
			j := skipSpace(text, i)
			if j > s.end {
				j = s.end
			}
			spans = append(spans, span{start, j})
			start, i = j, j
			continue
		}
		i += w
	}
	if start < s.end {
		spans = append(spans, span{start, s.end})
	}
	return spans
}

// byteSpans cuts a span into pieces of at most limit bytes. Cuts land on rune
// boundaries unless a single rune is longer than limit.
func byteSpans(text string, s span, limit int) []span {
	var spans []span
	for start := s.start; start < s.end; {
		end := start + limit
		if end >= s.end {
			spans = append(spans, span{start, s.end})
			break
		}
		cut := end
		for cut > start && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == start {
			cut = end
		}
		spans = append(spans, span{start, cut})
		start = cut
	}
	return spans
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isClosing(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’':
		return true
	}
	return false
}

func startsWithSpace(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsSpace(r)
}

func skipSpace(text string, i int) int {
	for i < len(text) {
		r, w := utf8.DecodeRuneInString(text[i:])
		if !unicode.IsSpace(r) {
			break
		}
		i += w
	}
	return i
}
