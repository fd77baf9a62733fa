package chunker

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/tiktoken-go/tokenizer"
)

// DefaultEncoding is the BPE vocabulary used when none is configured.
const DefaultEncoding = "o200k_base"

// BPETokenizer counts and splits text on the byte-pair tokens an OpenAI
// embedding model sees.
type BPETokenizer struct {
	codec tokenizer.Codec
}

// NewBPETokenizer loads one of the embedded tiktoken vocabularies.
func NewBPETokenizer(encoding string) (*BPETokenizer, error) {
	codec, err := tokenizer.Get(tokenizer.Encoding(encoding))
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", encoding, err)
	}
	return &BPETokenizer{codec: codec}, nil
}

var defaultBPE = sync.OnceValues(func() (*BPETokenizer, error) {
	return NewBPETokenizer(DefaultEncoding)
})

// DefaultTokenizer returns the shared o200k_base tokenizer. The vocabulary is
// parsed on first use.
func DefaultTokenizer() (Tokenizer, error) {
	tok, err := defaultBPE()
	if err != nil {
		return nil, err
	}
	return tok, nil
}

// NewTokenizer returns the tokenizer for a configured name: a tiktoken
// encoding, or "words" for whitespace-separated words.
func NewTokenizer(name string) (Tokenizer, error) {
	switch name {
	case "", DefaultEncoding:
		return DefaultTokenizer()
	case "words":
		return WordTokenizer{}, nil
	default:
		tok, err := NewBPETokenizer(name)
		if err != nil {
			return nil, err
		}
		return tok, nil
	}
}

// Tokenize returns one string per BPE token. A token that ends inside a
// multi-byte character is joined with the tokens that complete it, so every
// piece is valid UTF-8 and window boundaries never cut a character.
func (t *BPETokenizer) Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	ids, _, err := t.codec.Encode(text)
	if err != nil {
		return WordTokenizer{}.Tokenize(text)
	}

	pieces := make([]string, 0, len(ids))
	var pending strings.Builder
	for _, id := range ids {
		s, err := t.codec.Decode([]uint{id})
		if err != nil {
			return WordTokenizer{}.Tokenize(text)
		}
		pending.WriteString(s)
		if utf8.ValidString(pending.String()) {
			pieces = append(pieces, pending.String())
			pending.Reset()
		}
	}
	if pending.Len() > 0 {
		pieces = append(pieces, pending.String())
	}
	return pieces
}

// Count is the exact number of BPE tokens in text.
func (t *BPETokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	ids, _, err := t.codec.Encode(text)
	if err != nil {
		return len(t.Tokenize(text))
	}
	return len(ids)
}
