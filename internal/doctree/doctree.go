package doctree

import (
	"errors"
	"fmt"

	"github.com/dgallion1/docgraph/internal/hierarchy"
	"github.com/google/uuid"
)

var (
	// ErrRankOrder is returned when a child would not sit strictly below its parent.
	ErrRankOrder = errors.New("child rank must be deeper than parent rank")
	// ErrUnknownNode is returned for ids that are not in the tree.
	ErrUnknownNode = errors.New("unknown node")
)

// Node is one section of a reconstructed outline. Parent and children are
// id references into the owning Tree.
type Node struct {
	ID       string         `json:"id"`
	Rank     hierarchy.Rank `json:"rank"`
	Title    string         `json:"title"`
	Text     string         `json:"text"`
	Page     int            `json:"page"`
	ParentID string         `json:"parent_id,omitempty"`
	Children []string       `json:"children,omitempty"`
}

// NewNode creates a detached node with a fresh id.
func NewNode(rank hierarchy.Rank, title string, page int) *Node {
	return &Node{
		ID:    uuid.NewString(),
		Rank:  rank,
		Title: title,
		Page:  page,
	}
}

// Tree is an arena of nodes with a single rank-0 root.
type Tree struct {
	rootID string
	nodes  map[string]*Node
	order  []string
}

// NewTree creates a tree whose root carries the document title.
func NewTree(title string, page int) *Tree {
	root := NewNode(hierarchy.Document, title, page)
	return &Tree{
		rootID: root.ID,
		nodes:  map[string]*Node{root.ID: root},
		order:  []string{root.ID},
	}
}

func (t *Tree) Root() *Node {
	return t.nodes[t.rootID]
}

// Get returns the node with the given id, or nil.
func (t *Tree) Get(id string) *Node {
	return t.nodes[id]
}

func (t *Tree) Len() int {
	return len(t.order)
}

// Attach links n under parentID, appending it to the parent's children.
func (t *Tree) Attach(parentID string, n *Node) error {
	parent, ok := t.nodes[parentID]
	if !ok {
		return fmt.Errorf("attach %s: parent %s: %w", n.ID, parentID, ErrUnknownNode)
	}
	if !n.Rank.Deeper(parent.Rank) {
		return fmt.Errorf("attach %s %v under %v: %w", n.Title, n.Rank, parent.Rank, ErrRankOrder)
	}
	if _, dup := t.nodes[n.ID]; dup {
		return fmt.Errorf("attach %s: node already in tree", n.ID)
	}
	n.ParentID = parent.ID
	parent.Children = append(parent.Children, n.ID)
	t.nodes[n.ID] = n
	t.order = append(t.order, n.ID)
	return nil
}

// AppendText adds s to the end of a node's body text.
func (t *Tree) AppendText(id, s string) error {
	n, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("append text %s: %w", id, ErrUnknownNode)
	}
	n.Text += s
	return nil
}

// Nodes returns every node in insertion order.
func (t *Tree) Nodes() []*Node {
	out := make([]*Node, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.nodes[id])
	}
	return out
}

func (t *Tree) Children(id string) []*Node {
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	out := make([]*Node, 0, len(n.Children))
	for _, cid := range n.Children {
		out = append(out, t.nodes[cid])
	}
	return out
}

// PathToRoot returns the ancestor chain ending at id, root first.
func (t *Tree) PathToRoot(id string) []*Node {
	var path []*Node
	for n := t.nodes[id]; n != nil; n = t.nodes[n.ParentID] {
		path = append(path, n)
		if n.ParentID == "" {
			break
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Breadcrumb returns the non-empty titles on the path to id, root first.
func (t *Tree) Breadcrumb(id string) []string {
	var bc []string
	for _, n := range t.PathToRoot(id) {
		if n.Title != "" {
			bc = append(bc, n.Title)
		}
	}
	return bc
}

// Descendants returns every node below id in pre-order.
func (t *Tree) Descendants(id string) []*Node {
	var out []*Node
	t.walk(id, 0, func(n *Node, depth int) {
		if depth > 0 {
			out = append(out, n)
		}
	})
	return out
}

// Walk visits the whole tree in pre-order with each node's depth.
func (t *Tree) Walk(fn func(n *Node, depth int)) {
	t.walk(t.rootID, 0, fn)
}

func (t *Tree) walk(id string, depth int, fn func(*Node, int)) {
	n, ok := t.nodes[id]
	if !ok {
		return
	}
	fn(n, depth)
	for _, cid := range n.Children {
		t.walk(cid, depth+1, fn)
	}
}
