package merkle

import (
	"sort"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/insien-dev/sync-core/internal/hashutil"
)

// Clock is injected so BuildTree stays a pure function of its inputs under
// test; production code uses SystemClock.
type Clock interface {
	Now() time.Time
}

// SystemClock is the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// buildNode is the mutable intermediate representation used while nesting
// the flat file list into a tree, before hashes are computed bottom-up.
type buildNode struct {
	isFile       bool
	content      string
	size         *int64
	lastModified *int64
	children     map[string]*buildNode
}

func newDirBuildNode() *buildNode {
	return &buildNode{children: make(map[string]*buildNode)}
}

// BuildTree turns a flat file list into a hashed directory tree. The empty
// input yields a single directory node with path "root", hash SHA-256(""),
// and no children. Ordering of the input list does not affect the result,
// except for duplicate paths: later files at the same path silently
// overwrite earlier ones.
func BuildTree(files []FileInput, clock Clock) *MerkleNode {
	if clock == nil {
		clock = SystemClock{}
	}

	root := newDirBuildNode()
	for _, f := range files {
		insert(root, strings.Split(f.Path, "/"), f)
	}

	return hashNode(RootPath, root, clock)
}

// insert walks/creates intermediate directory entries and places the file
// at its terminal path component.
func insert(root *buildNode, parts []string, f FileInput) {
	current := root
	for i := 0; i < len(parts)-1; i++ {
		name := parts[i]
		child, ok := current.children[name]
		if !ok || child.isFile {
			child = newDirBuildNode()
			current.children[name] = child
		}
		current = child
	}

	last := parts[len(parts)-1]
	size := f.Size
	lastModified := f.LastModified
	current.children[last] = &buildNode{
		isFile:       true,
		content:      f.Content,
		size:         size,
		lastModified: lastModified,
	}
}

// hashNode performs the post-order traversal: children are hashed before
// their parent so the parent's hash can be computed from finalized values.
func hashNode(path string, n *buildNode, clock Clock) *MerkleNode {
	if n.isFile {
		hash := hashutil.HashBytes(n.content)
		size := int64(len(n.content))
		if n.size != nil {
			size = *n.size
		}
		ts := resolveTimestamp(n.lastModified, clock)
		return &MerkleNode{
			Hash:       hash,
			NodeType:   File,
			Path:       path,
			Size:       size,
			ModifiedAt: ts,
			CreatedAt:  ts,
			IsLeaf:     true,
		}
	}

	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)

	children := make([]*MerkleNode, 0, len(names))
	for _, name := range names {
		childPath := childPath(path, name)
		children = append(children, hashNode(childPath, n.children[name], clock))
	}

	sort.Slice(children, func(i, j int) bool {
		return lessUTF16(children[i].Path, children[j].Path)
	})

	refs := make([]hashutil.ChildRef, 0, len(children))
	for _, c := range children {
		refs = append(refs, hashutil.ChildRef{Hash: c.Hash, Path: c.Path})
	}

	ts := resolveTimestamp(nil, clock)
	return &MerkleNode{
		Hash:       hashutil.HashDirectory(refs),
		NodeType:   Directory,
		Path:       path,
		Size:       0,
		ModifiedAt: ts,
		CreatedAt:  ts,
		IsLeaf:     false,
		Children:   children,
	}
}

func childPath(parentPath, name string) string {
	if parentPath == RootPath {
		return name
	}
	return parentPath + "/" + name
}

// resolveTimestamp floors lastModified (ms since epoch) to whole seconds,
// falling back to the clock when lastModified is nil.
func resolveTimestamp(lastModified *int64, clock Clock) int64 {
	ms := clock.Now().UnixMilli()
	if lastModified != nil {
		ms = *lastModified
	}
	return ms / 1000
}

// lessUTF16 orders paths ascending by lexicographic comparison of UTF-16
// code units, matching the server's string ordering (the differ relies on
// this for correctness when walking both sides of a tree in lockstep).
func lessUTF16(a, b string) bool {
	au := utf16.Encode([]rune(a))
	bu := utf16.Encode([]rune(b))
	for i := 0; i < len(au) && i < len(bu); i++ {
		if au[i] != bu[i] {
			return au[i] < bu[i]
		}
	}
	return len(au) < len(bu)
}
