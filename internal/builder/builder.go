package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/locate"
)

var (
	// ErrNoParent means a heading found no open node to attach to. The root
	// has rank 0, so this only happens when a locator yields a rank-0 heading.
	ErrNoParent = errors.New("no open parent on the construction stack")
	// ErrFinished is returned when Feed is called after Finish.
	ErrFinished = errors.New("builder already finished")
)

// Sink receives each node once it is final.
type Sink interface {
	FlushNode(ctx context.Context, n *doctree.Node) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, n *doctree.Node) error

func (f SinkFunc) FlushNode(ctx context.Context, n *doctree.Node) error {
	return f(ctx, n)
}

// Stats counts what a build has done so far.
type Stats struct {
	Pages    int `json:"pages"`
	Headings int `json:"headings"`
	Flushed  int `json:"flushed"`
}

type Option func(*Builder)

func WithLocator(l locate.Locator) Option {
	return func(b *Builder) { b.locator = l }
}

func WithLogger(log *slog.Logger) Option {
	return func(b *Builder) { b.log = log }
}

// Builder reconstructs the outline of a document from a stream of pages.
// Open nodes live on a stack whose bottom is the document root; a heading
// pops every open node of equal or deeper rank, flushing each, and is then
// attached under the new top.
type Builder struct {
	tree    *doctree.Tree
	sink    Sink
	locator locate.Locator
	log     *slog.Logger

	stack    []*doctree.Node
	stats    Stats
	finished bool
}

func New(tree *doctree.Tree, sink Sink, opts ...Option) *Builder {
	b := &Builder{
		tree:  tree,
		sink:  sink,
		log:   slog.New(slog.DiscardHandler),
		stack: []*doctree.Node{tree.Root()},
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.locator == nil {
		b.locator = locate.New(func(page int, title string) {
			b.log.Warn("heading candidate dropped", "page", page, "title", title)
		})
	}
	if b.sink == nil {
		b.sink = SinkFunc(func(context.Context, *doctree.Node) error { return nil })
	}
	return b
}

func (b *Builder) Tree() *doctree.Tree {
	return b.tree
}

func (b *Builder) Stats() Stats {
	return b.stats
}

// Feed processes one page. Pages must arrive in physical order.
func (b *Builder) Feed(ctx context.Context, page doctree.Page) error {
	if b.finished {
		return ErrFinished
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	res := b.locator.Locate(page)
	b.stats.Pages++

	if err := b.appendTop(res.Before); err != nil {
		return err
	}
	for _, m := range res.Matches {
		if err := b.open(ctx, m, page.Number); err != nil {
			return err
		}
		if err := b.appendTop(m.Text); err != nil {
			return err
		}
	}
	return nil
}

// Finish flushes every node still open, deepest first, ending with the root.
func (b *Builder) Finish(ctx context.Context) error {
	if b.finished {
		return ErrFinished
	}
	for len(b.stack) > 0 {
		if err := b.pop(ctx); err != nil {
			return err
		}
	}
	b.finished = true
	b.log.Info("outline built",
		"pages", b.stats.Pages,
		"headings", b.stats.Headings,
		"flushed", b.stats.Flushed,
	)
	return nil
}

func (b *Builder) open(ctx context.Context, m locate.Match, page int) error {
	node := doctree.NewNode(m.Rank, m.Title, page)

	for len(b.stack) > 0 && b.top().Rank.Ordinal >= node.Rank.Ordinal {
		if err := b.pop(ctx); err != nil {
			return err
		}
	}
	if len(b.stack) == 0 {
		return fmt.Errorf("open %q (%v) on page %d: %w", m.Title, m.Rank, page, ErrNoParent)
	}

	if err := b.tree.Attach(b.top().ID, node); err != nil {
		return err
	}
	b.stack = append(b.stack, node)
	b.stats.Headings++
	return nil
}

func (b *Builder) pop(ctx context.Context) error {
	n := b.top()
	b.stack = b.stack[:len(b.stack)-1]
	if err := b.sink.FlushNode(ctx, n); err != nil {
		return fmt.Errorf("flush %s %q: %w", n.Rank.Label, n.Title, err)
	}
	b.stats.Flushed++
	return nil
}

func (b *Builder) top() *doctree.Node {
	return b.stack[len(b.stack)-1]
}

func (b *Builder) appendTop(text string) error {
	if text == "" || len(b.stack) == 0 {
		return nil
	}
	return b.tree.AppendText(b.top().ID, text)
}

// Build runs a whole document through a fresh builder.
func Build(ctx context.Context, title string, pages []doctree.Page, sink Sink, opts ...Option) (*doctree.Tree, Stats, error) {
	first := 1
	if len(pages) > 0 && pages[0].Number > 0 {
		first = pages[0].Number
	}
	b := New(doctree.NewTree(title, first), sink, opts...)
	for _, p := range pages {
		if err := b.Feed(ctx, p); err != nil {
			return b.Tree(), b.Stats(), fmt.Errorf("page %d: %w", p.Number, err)
		}
	}
	if err := b.Finish(ctx); err != nil {
		return b.Tree(), b.Stats(), err
	}
	return b.Tree(), b.Stats(), nil
}
