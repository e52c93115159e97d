// Package localfs is the local on-disk Workspace/FileService shim the CLI
// uses to exercise the sync flow outside a real editor host. A real editor
// integration supplies its own FileService backed by its own buffers and
// virtual file system; this one just reads straight off disk.
package localfs

import (
	"context"
	"os"
	"path/filepath"

	"github.com/insien-dev/sync-core/internal/workspace"
)

// SingleRootWorkspace reports exactly one fixed root, matching the single
// open-folder case the orchestrator's CheckAndIngestWorkspace assumes.
type SingleRootWorkspace struct {
	Root string
}

// Roots implements workspace.Workspace.
func (w SingleRootWorkspace) Roots(_ context.Context) ([]workspace.Root, error) {
	abs, err := filepath.Abs(w.Root)
	if err != nil {
		return nil, err
	}
	return []workspace.Root{{URI: abs}}, nil
}

// FileService implements workspace.FileService directly against the OS
// filesystem; URIs are absolute filesystem paths.
type FileService struct{}

// Resolve implements workspace.FileService.
func (FileService) Resolve(_ context.Context, uri string) (workspace.ResolveInfo, error) {
	info, err := os.Stat(uri)
	if err != nil {
		return workspace.ResolveInfo{}, err
	}

	if info.IsDir() {
		entries, err := os.ReadDir(uri)
		if err != nil {
			return workspace.ResolveInfo{}, err
		}
		children := make([]workspace.Entry, 0, len(entries))
		for _, e := range entries {
			children = append(children, workspace.Entry{Resource: filepath.Join(uri, e.Name())})
		}
		return workspace.ResolveInfo{IsDirectory: true, Children: children}, nil
	}

	size := info.Size()
	return workspace.ResolveInfo{IsFile: true, Size: &size}, nil
}

// Read implements workspace.FileService.
func (FileService) Read(_ context.Context, uri string) (workspace.ReadResult, error) {
	data, err := os.ReadFile(uri)
	if err != nil {
		return workspace.ReadResult{}, err
	}
	return workspace.ReadResult{Value: string(data)}, nil
}
