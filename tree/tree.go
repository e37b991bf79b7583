// Package tree implements the rooted tree of directory records backing one
// image: path lookup, and the insertion/removal rules that keep it and the
// FAT consistent.
//
// Nodes live in a flat arena (a slice on Tree) and refer to their parent by
// index rather than by pointer: a parent back-reference that shared
// ownership with its child would form a cycle, so it must be non-owning.
// An arena keyed by stable index is the most portable way to express that
// in Go; detaching a node on remove is a splice out of its parent's
// children slice.
package tree

import (
	"strings"

	"github.com/123swk123/pyfat/dirent"
	"github.com/123swk123/pyfat/errs"
	"github.com/123swk123/pyfat/fat12"
	"github.com/123swk123/pyfat/filedata"
	"github.com/123swk123/pyfat/geometry"
)

// RootIndex is the arena index of the root directory, always present.
const RootIndex = 0

// noParent marks the root's Parent field: it has none.
const noParent = -1

// Node is one entry in the tree: a directory record plus the tree
// structure around it. Children is meaningful only for the root and for
// nodes whose Record.IsDir() is true. Data is nil for directories and set
// for regular files.
type Node struct {
	Record   *dirent.Record
	Parent   int
	Children []int
	Data     filedata.Ref
}

// AttrKind names one of the four mutable DOS attribute bits.
type AttrKind int

const (
	ReadOnly AttrKind = iota
	Hidden
	System
	Archive
)

// Tree is the rooted directory tree backing one open image.
type Tree struct {
	nodes []*Node
	fat   *fat12.Table
}

// New creates a tree holding just the root, backed by fat for allocation on
// Add* operations.
func New(fat *fat12.Table) *Tree {
	root := &Node{Record: dirent.NewRoot(), Parent: noParent}
	return &Tree{nodes: []*Node{root}, fat: fat}
}

// Node returns the node at the given arena index.
func (t *Tree) Node(idx int) *Node {
	return t.nodes[idx]
}

// NodeCount returns the number of live arena slots, including the root.
func (t *Tree) NodeCount() int {
	return len(t.nodes)
}

// AppendParsedChild adds a node built directly from an already-decoded
// record to parent's children, without touching the FAT. ImageCodec uses
// this while walking an existing image, where every cluster is already
// allocated on disk.
func (t *Tree) AppendParsedChild(parent int, record *dirent.Record, data filedata.Ref) int {
	return t.appendNode(parent, record, data)
}

func (t *Tree) appendNode(parent int, record *dirent.Record, data filedata.Ref) int {
	idx := len(t.nodes)
	t.nodes = append(t.nodes, &Node{Record: record, Parent: parent, Data: data})
	t.nodes[parent].Children = append(t.nodes[parent].Children, idx)
	return idx
}

func (t *Tree) detach(parent, child int) {
	children := t.nodes[parent].Children
	for i, c := range children {
		if c == child {
			t.nodes[parent].Children = append(children[:i], children[i+1:]...)
			return
		}
	}
}

// Lookup walks the tree from the root along path's components, comparing
// each one against the canonical NAME[.EXT] form of a child's record.
// Comparison is case-sensitive against that canonical (uppercase) form --
// callers must spell path components the way DOS stores them. The root's
// own path is the literal "/".
func (t *Tree) Lookup(path string) (int, error) {
	if path == "/" {
		return RootIndex, nil
	}
	if !strings.HasPrefix(path, "/") {
		return -1, errs.InvalidFormat.WithMessage("path must start with /: " + path)
	}

	components := strings.Split(strings.TrimPrefix(path, "/"), "/")
	current := RootIndex

	for i, component := range components {
		found := -1
		for _, childIdx := range t.nodes[current].Children {
			if t.nodes[childIdx].Record.DisplayName() == component {
				found = childIdx
				break
			}
		}
		if found == -1 {
			return -1, errs.NotFound.WithMessage(path)
		}
		if i != len(components)-1 && !t.nodes[found].Record.IsDir() {
			return -1, errs.NotADirectory.WithMessage(path)
		}
		current = found
	}

	return current, nil
}

func (t *Tree) resolveDir(path string) (int, error) {
	if path == "" {
		return RootIndex, nil
	}
	idx, err := t.Lookup(path)
	if err != nil {
		return -1, err
	}
	if !t.nodes[idx].Record.IsDir() {
		return -1, errs.NotADirectory.WithMessage(path)
	}
	return idx, nil
}

// splitParentLeaf splits "/a/b/c" into parent path "/a/b" and leaf "c". A
// leaf directly under root ("/c") gives parent path "".
func splitParentLeaf(path string) (parentPath, leaf string) {
	trimmed := strings.TrimPrefix(path, "/")
	idx := strings.LastIndexByte(trimmed, '/')
	if idx < 0 {
		return "", trimmed
	}
	return "/" + trimmed[:idx], trimmed[idx+1:]
}

// splitLeafName splits a leaf name into its 8-character base and its
// extension (without the leading dot), on the first dot encountered.
func splitLeafName(leaf string) (name, ext string) {
	idx := strings.IndexByte(leaf, '.')
	if idx < 0 {
		return leaf, ""
	}
	return leaf[:idx], leaf[idx+1:]
}

const maxRootEntries = 224

// isGrowthTrigger reports whether inserting a childCount-th child means
// the (16k+1)-th child was just inserted, k >= 1: one more cluster is
// needed for every 16 additional directory records, except the very first
// insertion doesn't need it (the directory's initial cluster already holds
// the first 16).
func isGrowthTrigger(childCount int) bool {
	return childCount > 1 && childCount%16 == 1
}

func (t *Tree) maybeGrowParent(parentIdx int) error {
	if parentIdx == RootIndex {
		return nil
	}
	count := len(t.nodes[parentIdx].Children)
	if isGrowthTrigger(count) {
		return t.fat.Extend(uint(t.nodes[parentIdx].Record.FirstCluster))
	}
	return nil
}

// AddFile inserts a new regular file at path, allocating a cluster chain
// for length bytes of data read from source.
func (t *Tree) AddFile(path string, source filedata.Source, length uint32) error {
	parentPath, leaf := splitParentLeaf(path)
	parentIdx, err := t.resolveDir(parentPath)
	if err != nil {
		return err
	}

	name, ext := splitLeafName(leaf)
	n, e, err := dirent.New8Dot3(name, ext)
	if err != nil {
		return err
	}

	if parentIdx == RootIndex && len(t.nodes[RootIndex].Children) >= maxRootEntries {
		return errs.RootCapacityExceeded.WithMessage(path)
	}

	firstCluster, err := t.fat.Allocate(uint(length))
	if err != nil {
		return err
	}

	record := dirent.NewFileWithParts(n, e, uint16(firstCluster), length)
	data := filedata.NewExternal(source, length)
	childIdx := t.appendNode(parentIdx, record, data)

	if err := t.maybeGrowParent(parentIdx); err != nil {
		t.detach(parentIdx, childIdx)
		if firstCluster != 0 {
			_ = t.fat.Free(firstCluster)
		}
		return err
	}
	return nil
}

// AddDir inserts a new subdirectory at path, with its mandatory `.` and
// `..` entries.
func (t *Tree) AddDir(path string) error {
	parentPath, leaf := splitParentLeaf(path)
	parentIdx, err := t.resolveDir(parentPath)
	if err != nil {
		return err
	}

	name, ext := splitLeafName(leaf)
	n, e, err := dirent.New8Dot3(name, ext)
	if err != nil {
		return err
	}

	if parentIdx == RootIndex && len(t.nodes[RootIndex].Children) >= maxRootEntries {
		return errs.RootCapacityExceeded.WithMessage(path)
	}

	profile := geometry.Lookup1440()
	firstCluster, err := t.fat.Allocate(profile.BytesPerCluster())
	if err != nil {
		return err
	}

	var parentCluster uint16
	if parentIdx != RootIndex {
		parentCluster = t.nodes[parentIdx].Record.FirstCluster
	}

	record := dirent.NewDirWithParts(n, e, uint16(firstCluster))
	childIdx := t.appendNode(parentIdx, record, nil)
	t.appendNode(childIdx, dirent.NewDot(uint16(firstCluster)), nil)
	t.appendNode(childIdx, dirent.NewDotdot(parentCluster), nil)

	if err := t.maybeGrowParent(parentIdx); err != nil {
		t.detach(parentIdx, childIdx)
		_ = t.fat.Free(firstCluster)
		return err
	}
	return nil
}

// RemoveFile deletes the regular file at path, freeing its cluster chain.
func (t *Tree) RemoveFile(path string) error {
	idx, err := t.Lookup(path)
	if err != nil {
		return err
	}
	node := t.nodes[idx]
	if node.Record.IsDir() {
		return errs.NotAFile.WithMessage(path)
	}

	if node.Record.FirstCluster != 0 {
		if err := t.fat.Free(uint(node.Record.FirstCluster)); err != nil {
			return err
		}
	}
	t.detach(node.Parent, idx)
	return nil
}

// RemoveDir deletes the empty subdirectory at path. Empty means its only
// children are `.` and `..`; the root can never be removed.
func (t *Tree) RemoveDir(path string) error {
	idx, err := t.Lookup(path)
	if err != nil {
		return err
	}
	if idx == RootIndex {
		return errs.InvalidFormat.WithMessage("cannot remove the root directory")
	}

	node := t.nodes[idx]
	if !node.Record.IsDir() {
		return errs.NotADirectory.WithMessage(path)
	}
	if len(node.Children) != 2 ||
		!t.nodes[node.Children[0]].Record.IsDot() ||
		!t.nodes[node.Children[1]].Record.IsDotdot() {
		return errs.DirectoryNotEmpty.WithMessage(path)
	}

	if err := t.fat.Free(uint(node.Record.FirstCluster)); err != nil {
		return err
	}
	t.detach(node.Parent, idx)
	return nil
}

// SetAttr sets the given attribute bit on the entry at path.
func (t *Tree) SetAttr(path string, kind AttrKind) error {
	idx, err := t.Lookup(path)
	if err != nil {
		return err
	}
	rec := t.nodes[idx].Record
	switch kind {
	case ReadOnly:
		rec.SetReadOnly()
	case Hidden:
		rec.SetHidden()
	case System:
		rec.SetSystem()
	case Archive:
		rec.SetArchive()
	}
	return nil
}

// ClearAttr clears the given attribute bit on the entry at path.
func (t *Tree) ClearAttr(path string, kind AttrKind) error {
	idx, err := t.Lookup(path)
	if err != nil {
		return err
	}
	rec := t.nodes[idx].Record
	switch kind {
	case ReadOnly:
		rec.ClearReadOnly()
	case Hidden:
		rec.ClearHidden()
	case System:
		rec.ClearSystem()
	case Archive:
		rec.ClearArchive()
	}
	return nil
}
