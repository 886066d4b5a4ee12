package knowledge

import "strings"

// Chunking defaults, in runes. Overlap carries trailing context from one
// chunk into the next so passages do not cut facts in half.
const (
	ChunkSize    = 1000
	ChunkOverlap = 200
)

// Chunk splits text into passages of at most size runes with the given
// overlap. Paragraph boundaries are preferred; a paragraph longer than
// size is split on rune boundaries.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		size = ChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		s := strings.TrimSpace(current.String())
		if s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		for _, piece := range splitLong(para, size) {
			if current.Len() > 0 && runeLen(current.String())+runeLen(piece)+2 > size {
				tail := overlapTail(current.String(), overlap)
				flush()
				if tail != "" {
					current.WriteString(tail)
					current.WriteString("\n\n")
				}
			}
			if current.Len() > 0 {
				current.WriteString("\n\n")
			}
			current.WriteString(piece)
		}
	}
	flush()
	return chunks
}

// splitLong breaks a single paragraph that exceeds size into rune-bounded
// pieces.
func splitLong(para string, size int) []string {
	runes := []rune(para)
	if len(runes) <= size {
		return []string{para}
	}
	var pieces []string
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		pieces = append(pieces, string(runes[start:end]))
	}
	return pieces
}

// overlapTail returns the last overlap runes of s, snapped forward to the
// next word boundary so the carried text starts on a whole word.
func overlapTail(s string, overlap int) string {
	if overlap == 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= overlap {
		return s
	}
	tail := string(runes[len(runes)-overlap:])
	if idx := strings.IndexAny(tail, " \n\t"); idx >= 0 {
		tail = tail[idx+1:]
	}
	return strings.TrimSpace(tail)
}

func runeLen(s string) int {
	return len([]rune(s))
}
