package loader

import (
	"strings"
	"unicode/utf8"
)

const DefaultChunkSize = 1500

// Chunker splits extracted text into sentence-aligned segments of at most
// maxLength characters.
type Chunker struct {
	maxLength int
}

func NewChunker(maxLength int) *Chunker {
	if maxLength <= 0 {
		maxLength = DefaultChunkSize
	}
	return &Chunker{maxLength: maxLength}
}

func (c *Chunker) MaxLength() int {
	return c.maxLength
}

func (c *Chunker) Chunk(text string) []string {
	return Chunk(text, c.maxLength)
}

// Normalize unifies line endings and collapses every whitespace run into a
// single space. Paragraph structure is not preserved.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Join(strings.Fields(text), " ")
}

// SplitSentences cuts normalized text after '.', '!' or '?' when followed by
// whitespace.
func SplitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text)-1; i++ {
		switch text[i] {
		case '.', '!', '?':
			if text[i+1] == ' ' {
				if s := strings.TrimSpace(text[start : i+1]); s != "" {
					sentences = append(sentences, s)
				}
				start = i + 1
			}
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// Chunk greedily packs sentences into chunks no longer than maxLength.
// A chunk that is still too long (one sentence longer than maxLength) is
// hard split into maxLength slices. Output is deterministic and never
// contains blank chunks.
func Chunk(text string, maxLength int) []string {
	if maxLength <= 0 {
		maxLength = DefaultChunkSize
	}

	var packed []string
	var current strings.Builder
	currentLen := 0
	for _, sentence := range SplitSentences(Normalize(text)) {
		n := utf8.RuneCountInString(sentence)
		switch {
		case currentLen == 0:
			current.WriteString(sentence)
			currentLen = n
		case currentLen+1+n <= maxLength:
			current.WriteString(" ")
			current.WriteString(sentence)
			currentLen += 1 + n
		default:
			packed = append(packed, current.String())
			current.Reset()
			current.WriteString(sentence)
			currentLen = n
		}
	}
	if currentLen > 0 {
		packed = append(packed, current.String())
	}

	chunks := make([]string, 0, len(packed))
	for _, chunk := range packed {
		if utf8.RuneCountInString(chunk) <= maxLength {
			chunks = appendNonEmpty(chunks, chunk)
			continue
		}
		for _, slice := range hardSplit(chunk, maxLength) {
			chunks = appendNonEmpty(chunks, slice)
		}
	}
	return chunks
}

func hardSplit(text string, size int) []string {
	runes := []rune(text)
	slices := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		slices = append(slices, string(runes[start:end]))
	}
	return slices
}

func appendNonEmpty(chunks []string, chunk string) []string {
	if chunk = strings.TrimSpace(chunk); chunk != "" {
		return append(chunks, chunk)
	}
	return chunks
}
