package chunker

import (
	"strings"
	"unicode"
)

// Tokenizer splits text into tokens whose concatenation is the input.
type Tokenizer interface {
	Tokenize(text string) []string
}

// Counter is implemented by tokenizers that can count without splitting.
type Counter interface {
	Count(text string) int
}

// WordTokenizer treats each word plus the whitespace after it as one token.
// Leading whitespace belongs to the first word. It needs no vocabulary and
// keeps tests independent of one.
type WordTokenizer struct{}

func (WordTokenizer) Tokenize(text string) []string {
	var tokens []string
	start := 0
	inSpace, seenWord := false, false
	for i, r := range text {
		space := unicode.IsSpace(r)
		if !space && inSpace && seenWord {
			tokens = append(tokens, text[start:i])
			start = i
			seenWord = false
		}
		if !space {
			seenWord = true
		}
		inSpace = space
	}
	if start < len(text) {
		tokens = append(tokens, text[start:])
	}
	return tokens
}

// CountTokens returns the number of tokens tok finds in text.
func CountTokens(tok Tokenizer, text string) int {
	if text == "" {
		return 0
	}
	if c, ok := tok.(Counter); ok {
		return c.Count(text)
	}
	return len(tok.Tokenize(text))
}

// Split cuts text into windows of size tokens, each starting size-overlap
// tokens after the previous one. The last window ends at the end of the text.
func Split(text string, size, overlap int, tok Tokenizer) []string {
	tokens := tok.Tokenize(text)
	if len(tokens) == 0 || size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	step := size - overlap

	var windows []string
	for start := 0; ; start += step {
		end := min(start+size, len(tokens))
		windows = append(windows, strings.Join(tokens[start:end], ""))
		if end == len(tokens) {
			break
		}
	}
	return windows
}

// Reassemble inverts Split: it drops the leading overlap tokens of every
// window after the first and concatenates the rest. It is exact when tok
// splits a window the same way it split the full text, as WordTokenizer
// does; BPE merges can differ at a window's first token.
func Reassemble(windows []string, overlap int, tok Tokenizer) string {
	var sb strings.Builder
	for i, w := range windows {
		tokens := tok.Tokenize(w)
		if i > 0 {
			tokens = tokens[min(overlap, len(tokens)):]
		}
		for _, t := range tokens {
			sb.WriteString(t)
		}
	}
	return sb.String()
}
