package doctree

import (
	"errors"
	"testing"

	"github.com/dgallion1/docgraph/internal/hierarchy"
)

func TestNewTree_RootIsUnique(t *testing.T) {
	tree := NewTree("Title 26", 1)
	root := tree.Root()
	if root == nil {
		t.Fatal("expected root")
	}
	if root.Rank != hierarchy.Document {
		t.Errorf("expected Document rank, got %v", root.Rank)
	}
	if root.ParentID != "" {
		t.Errorf("root must have no parent, got %q", root.ParentID)
	}
	if tree.Len() != 1 {
		t.Errorf("expected 1 node, got %d", tree.Len())
	}
}

func TestAttach_RejectsSameOrShallowerRank(t *testing.T) {
	tree := NewTree("doc", 1)
	ch := NewNode(hierarchy.Chapter, "CHAPTER 1", 1)
	if err := tree.Attach(tree.Root().ID, ch); err != nil {
		t.Fatalf("attach chapter: %v", err)
	}

	sibling := NewNode(hierarchy.Chapter, "CHAPTER 2", 1)
	if err := tree.Attach(ch.ID, sibling); !errors.Is(err, ErrRankOrder) {
		t.Errorf("expected ErrRankOrder for equal rank, got %v", err)
	}
	up := NewNode(hierarchy.Subtitle, "Subtitle B", 1)
	if err := tree.Attach(ch.ID, up); !errors.Is(err, ErrRankOrder) {
		t.Errorf("expected ErrRankOrder for shallower rank, got %v", err)
	}
	if err := tree.Attach("missing", NewNode(hierarchy.Part, "PART I", 1)); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("expected ErrUnknownNode, got %v", err)
	}
}

func TestPathToRootAndDescendants(t *testing.T) {
	tree := NewTree("doc", 1)
	sub := NewNode(hierarchy.Subtitle, "Subtitle A", 1)
	sec := NewNode(hierarchy.Section, "§1. Tax imposed", 2)
	l1 := NewNode(hierarchy.SectionL1, "(a) Married", 2)
	other := NewNode(hierarchy.Section, "§2. Definitions", 3)

	mustAttach(t, tree, tree.Root().ID, sub)
	mustAttach(t, tree, sub.ID, sec)
	mustAttach(t, tree, sec.ID, l1)
	mustAttach(t, tree, sub.ID, other)

	path := tree.PathToRoot(l1.ID)
	want := []string{"doc", "Subtitle A", "§1. Tax imposed", "(a) Married"}
	if len(path) != len(want) {
		t.Fatalf("expected path length %d, got %d", len(want), len(path))
	}
	for i, n := range path {
		if n.Title != want[i] {
			t.Errorf("path[%d]: expected %q, got %q", i, want[i], n.Title)
		}
		if i > 0 && !n.Rank.Deeper(path[i-1].Rank) {
			t.Errorf("path[%d]: rank %v not deeper than %v", i, n.Rank, path[i-1].Rank)
		}
	}

	desc := tree.Descendants(sub.ID)
	if len(desc) != 3 {
		t.Fatalf("expected 3 descendants, got %d", len(desc))
	}
	if desc[0].ID != sec.ID || desc[1].ID != l1.ID || desc[2].ID != other.ID {
		t.Errorf("descendants not in pre-order: %q %q %q", desc[0].Title, desc[1].Title, desc[2].Title)
	}

	bc := tree.Breadcrumb(l1.ID)
	if len(bc) != 4 || bc[3] != "(a) Married" {
		t.Errorf("unexpected breadcrumb %v", bc)
	}
}

func TestChildren_DiscoveryOrder(t *testing.T) {
	tree := NewTree("doc", 1)
	titles := []string{"CHAPTER 3", "CHAPTER 1", "CHAPTER 2"}
	for _, title := range titles {
		mustAttach(t, tree, tree.Root().ID, NewNode(hierarchy.Chapter, title, 1))
	}
	kids := tree.Children(tree.Root().ID)
	for i, k := range kids {
		if k.Title != titles[i] {
			t.Errorf("child %d: expected %q, got %q", i, titles[i], k.Title)
		}
	}
}

func TestAppendText_PreservesOrder(t *testing.T) {
	tree := NewTree("doc", 1)
	id := tree.Root().ID
	for _, s := range []string{"alpha ", "beta ", "gamma"} {
		if err := tree.AppendText(id, s); err != nil {
			t.Fatal(err)
		}
	}
	if got := tree.Root().Text; got != "alpha beta gamma" {
		t.Errorf("unexpected text %q", got)
	}
	if err := tree.AppendText("nope", "x"); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("expected ErrUnknownNode, got %v", err)
	}
}

func mustAttach(t *testing.T, tree *Tree, parentID string, n *Node) {
	t.Helper()
	if err := tree.Attach(parentID, n); err != nil {
		t.Fatalf("attach %q: %v", n.Title, err)
	}
}
