package workspace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFileService is an in-memory FileService keyed by URI, used to drive
// Collector without any real filesystem or host editor.
type fakeFileService struct {
	dirs  map[string][]Entry
	files map[string]string
	sizes map[string]int64
}

func newFakeFS() *fakeFileService {
	return &fakeFileService{
		dirs:  make(map[string][]Entry),
		files: make(map[string]string),
		sizes: make(map[string]int64),
	}
}

func (f *fakeFileService) addDir(uri string, children ...string) {
	entries := make([]Entry, len(children))
	for i, c := range children {
		entries[i] = Entry{Resource: c}
	}
	f.dirs[uri] = entries
}

func (f *fakeFileService) addFile(uri, content string) {
	f.files[uri] = content
}

func (f *fakeFileService) Resolve(_ context.Context, uri string) (ResolveInfo, error) {
	if children, ok := f.dirs[uri]; ok {
		return ResolveInfo{IsDirectory: true, Children: children}, nil
	}
	if content, ok := f.files[uri]; ok {
		size := int64(len(content))
		if s, ok := f.sizes[uri]; ok {
			size = s
		}
		return ResolveInfo{IsFile: true, Size: &size}, nil
	}
	return ResolveInfo{}, assert.AnError
}

func (f *fakeFileService) Read(_ context.Context, uri string) (ReadResult, error) {
	content, ok := f.files[uri]
	if !ok {
		return ReadResult{}, assert.AnError
	}
	return ReadResult{Value: content}, nil
}

func TestCollector_CollectsAllowedFiles(t *testing.T) {
	fs := newFakeFS()
	fs.addDir("root", "root/a.go", "root/b.png")
	fs.addFile("root/a.go", "package main")
	fs.addFile("root/b.png", "binary")

	c := NewCollector(fs, nil)
	files, err := c.Collect(context.Background(), "root")

	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.go", files[0].Path)
	assert.Equal(t, "package main", files[0].Content)
}

func TestCollector_SkipsBlockedDirectories(t *testing.T) {
	fs := newFakeFS()
	fs.addDir("root", "root/node_modules", "root/src")
	fs.addDir("root/node_modules", "root/node_modules/pkg.js")
	fs.addDir("root/src", "root/src/main.go")
	fs.addFile("root/node_modules/pkg.js", "should not appear")
	fs.addFile("root/src/main.go", "package src")

	c := NewCollector(fs, nil)
	files, err := c.Collect(context.Background(), "root")

	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "src/main.go", files[0].Path)
}

func TestCollector_RejectsOversizedFiles(t *testing.T) {
	fs := newFakeFS()
	fs.addDir("root", "root/big.go")
	fs.addFile("root/big.go", "x")
	fs.sizes["root/big.go"] = maxFileBytes + 1

	c := NewCollector(fs, nil)
	files, err := c.Collect(context.Background(), "root")

	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestCollector_UnreadableFileSkippedNotFatal(t *testing.T) {
	fs := newFakeFS()
	fs.addDir("root", "root/ok.go", "root/ghost.go")
	fs.addFile("root/ok.go", "package main")
	// ghost.go is listed as a child but never registered, simulating a node
	// that vanished between listing and resolve.
	fs.dirs["root"] = []Entry{{Resource: "root/ok.go"}, {Resource: "root/ghost.go"}}

	c := NewCollector(fs, nil)
	files, err := c.Collect(context.Background(), "root")

	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "ok.go", files[0].Path)
}

func TestIsPathSafe(t *testing.T) {
	assert.True(t, isPathSafe("src/a.go"))
	assert.False(t, isPathSafe(""))
	assert.False(t, isPathSafe("../escape.go"))
	assert.False(t, isPathSafe("src/../../escape.go"))
}

func TestIsAllowedFile(t *testing.T) {
	cases := map[string]bool{
		"main.go":        true,
		"README.md":      true,
		"bundle.min.js":  true, // last-dot extraction yields ".js", which is allowed
		"photo.png":      false,
		"archive.tar.gz": false,
		"noext":          false,
	}
	for path, want := range cases {
		assert.Equal(t, want, isAllowedFile(path), path)
	}
}
