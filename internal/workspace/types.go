// Package workspace collects files out of the host editor's workspace
// through a minimal file-service contract, producing the flat file list the
// merkle builder folds into a tree. It deliberately does not consult
// .gitignore or any other user-configurable filter: the block/allow sets
// here must match the server's independent collector exactly, or the two
// sides compute different trees for the same folder.
package workspace

import "context"

// Root is one workspace root URI, as reported by the host editor.
type Root struct {
	URI string
}

// ResolveInfo describes what a URI points at.
type ResolveInfo struct {
	IsFile      bool
	IsDirectory bool
	Size        *int64
	Children    []Entry
}

// Entry is one child reported by Resolve on a directory.
type Entry struct {
	Resource string
}

// ReadResult is the content read back for a file URI.
type ReadResult struct {
	Value string
}

// Workspace is the minimal surface this package consumes from the host
// editor. Roots returns the currently open workspace roots.
type Workspace interface {
	Roots(ctx context.Context) ([]Root, error)
}

// FileService resolves and reads URIs inside a workspace root. Paths are
// opaque host-editor URIs, not filesystem paths — resolution and reading are
// both host responsibilities.
type FileService interface {
	Resolve(ctx context.Context, uri string) (ResolveInfo, error)
	Read(ctx context.Context, uri string) (ReadResult, error)
}

// CollectedFile is one file surviving collection, named by its path relative
// to the collection root.
type CollectedFile struct {
	Path         string
	Content      string
	Size         int64
	LastModified *int64
}
