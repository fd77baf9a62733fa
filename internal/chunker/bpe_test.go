package chunker

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/hierarchy"
)

func bpe(t *testing.T) Tokenizer {
	t.Helper()
	tok, err := DefaultTokenizer()
	if err != nil {
		t.Fatalf("load tokenizer: %v", err)
	}
	return tok
}

func TestBPETokenizer_Reconstructs(t *testing.T) {
	tok := bpe(t)
	inputs := []string{
		"single",
		"§1. Tax imposed (a) Married individuals filing joint returns",
		"26 U.S.C. 7703(b)(1); see §1(a)(2)(B)(iii)",
		"  tabs\tand\nnewlines\n\n",
		"所得税法 第一条 — naïve café",
	}
	for _, in := range inputs {
		pieces := tok.Tokenize(in)
		if got := strings.Join(pieces, ""); got != in {
			t.Errorf("tokenize(%q) rebuilt as %q", in, got)
		}
		for _, p := range pieces {
			if !utf8.ValidString(p) {
				t.Errorf("tokenize(%q) produced invalid UTF-8 piece %q", in, p)
			}
		}
	}
	if tok.Tokenize("") != nil {
		t.Error("expected no tokens for empty text")
	}
}

func TestBPETokenizer_CountsMoreThanWords(t *testing.T) {
	tok := bpe(t)
	text := "§1(a)(2)(B)(iii),26U.S.C.7703(b)(1); "
	words := CountTokens(WordTokenizer{}, text)
	bpeCount := CountTokens(tok, text)
	if words != 1 {
		t.Fatalf("expected 1 word, got %d", words)
	}
	if bpeCount < 10 {
		t.Errorf("expected dense citation text to cost many tokens, got %d", bpeCount)
	}
}

func TestBPETokenizer_SplitFollowsTokenBoundaries(t *testing.T) {
	tok := bpe(t)
	text := strings.Repeat("There is hereby imposed on the taxable income of every individual a tax. ", 40)
	pieces := tok.Tokenize(text)

	const size, overlap = 50, 10
	windows := Split(text, size, overlap, tok)
	i := 0
	for start := 0; ; start += size - overlap {
		end := min(start+size, len(pieces))
		if i >= len(windows) {
			t.Fatalf("expected more than %d windows", len(windows))
		}
		if want := strings.Join(pieces[start:end], ""); windows[i] != want {
			t.Errorf("window %d does not match tokens %d..%d", i, start, end)
		}
		i++
		if end == len(pieces) {
			break
		}
	}
	if i != len(windows) {
		t.Errorf("expected %d windows, got %d", i, len(windows))
	}
}

func TestChunkTree_DefaultTokenizerSplitsDenseCitations(t *testing.T) {
	tree := doctree.NewTree("doc", 1)
	sec := doctree.NewNode(hierarchy.Section, "§7703. Determination of marital status", 12)
	if err := tree.Attach(tree.Root().ID, sec); err != nil {
		t.Fatal(err)
	}
	// A few thousand words but tens of thousands of BPE tokens.
	sec.Text = strings.Repeat("§1(a)(2)(B)(iii),26U.S.C.7703(b)(1); ", 4900)

	res, err := ChunkTree(context.Background(), tree, DefaultConfig(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.NodesSplit != 1 {
		t.Fatalf("expected the section to be split, got %+v", res)
	}
	if res.ChunksCreated < 10 {
		t.Errorf("expected at least 10 chunks, got %d", res.ChunksCreated)
	}
	tok := bpe(t)
	for _, c := range tree.Children(sec.ID) {
		if !utf8.ValidString(c.Text) {
			t.Fatal("chunk text is not valid UTF-8")
		}
		// A piece can hold several byte tokens of one character.
		if n := CountTokens(tok, c.Text); n > 2*DefaultConfig().ChunkSize {
			t.Errorf("chunk has %d tokens, window size is %d", n, DefaultConfig().ChunkSize)
		}
	}
}

func TestNewTokenizer(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
		words   bool
	}{
		{"", false, false},
		{"o200k_base", false, false},
		{"cl100k_base", false, false},
		{"words", false, true},
		{"no_such_encoding", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := NewTokenizer(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewTokenizer(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if _, ok := tok.(WordTokenizer); ok != tt.words {
				t.Errorf("NewTokenizer(%q) = %T", tt.name, tok)
			}
		})
	}
}
