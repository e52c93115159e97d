package workspace

import (
	"context"
	"log/slog"
	"path"
	"strings"
)

const maxFileBytes = 1 << 20 // 1 MiB

// blockedDirs are base names never descended into during collection.
var blockedDirs = map[string]struct{}{
	"node_modules":  {},
	".git":          {},
	".next":         {},
	"dist":          {},
	"build":         {},
	"out":           {},
	"coverage":      {},
	".cache":        {},
	"vendor":        {},
	"target":        {},
	"__pycache__":   {},
	".pytest_cache": {},
	".venv":         {},
	"venv":          {},
}

// blockedExtensions are binary/noise extensions rejected outright, checked
// before the allow set. The extension is taken from the last "." only, so
// multi-dot entries such as ".min.js" never match: "bundle.min.js" is checked
// as ".js" and collected.
var blockedExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".svg": {}, ".ico": {}, ".webp": {},
	".mp4": {}, ".mov": {}, ".avi": {}, ".mkv": {},
	".mp3": {}, ".wav": {}, ".ogg": {},
	".zip": {}, ".tar": {}, ".gz": {}, ".rar": {}, ".7z": {},
	".pdf": {}, ".doc": {}, ".docx": {},
	".exe": {}, ".dll": {}, ".so": {}, ".dylib": {},
	".lock": {}, ".log": {},
	".min.js": {}, ".min.css": {}, ".map": {},
}

// allowedExtensions is the code-file allow set; a file is collected only if
// its lower-cased extension appears here.
var allowedExtensions = map[string]struct{}{
	".js": {}, ".jsx": {}, ".ts": {}, ".tsx": {},
	".py": {}, ".java": {}, ".cpp": {}, ".c": {}, ".h": {}, ".hpp": {},
	".cs": {}, ".go": {}, ".rs": {}, ".rb": {}, ".php": {}, ".swift": {}, ".kt": {}, ".scala": {},
	".sh": {}, ".sql": {},
	".html": {}, ".css": {}, ".scss": {},
	".json": {}, ".yaml": {}, ".yml": {}, ".xml": {},
	".md": {}, ".txt": {},
}

// Collector walks a workspace root through a FileService, producing the flat
// file list a sync pass folds into a merkle tree.
type Collector struct {
	fs     FileService
	logger *slog.Logger
}

// NewCollector builds a Collector. A nil logger falls back to slog.Default.
func NewCollector(fs FileService, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{fs: fs, logger: logger}
}

// Collect depth-first walks rootURI and returns every file that survives the
// directory and extension filters. File-system errors on individual nodes
// are logged and skipped; they never abort the walk.
func (c *Collector) Collect(ctx context.Context, rootURI string) ([]CollectedFile, error) {
	var files []CollectedFile
	c.walk(ctx, rootURI, "", &files)
	return files, nil
}

func (c *Collector) walk(ctx context.Context, uri, relPath string, out *[]CollectedFile) {
	select {
	case <-ctx.Done():
		return
	default:
	}

	info, err := c.fs.Resolve(ctx, uri)
	if err != nil {
		c.logger.Warn("workspace: failed to resolve entry", "uri", uri, "error", err)
		return
	}

	switch {
	case info.IsDirectory:
		if relPath != "" && isBlockedDir(path.Base(relPath)) {
			return
		}
		for _, child := range info.Children {
			name := path.Base(child.Resource)
			childRelPath := name
			if relPath != "" {
				childRelPath = relPath + "/" + name
			}
			c.walk(ctx, child.Resource, childRelPath, out)
		}

	case info.IsFile:
		if !isAllowedFile(relPath) {
			return
		}
		if !isPathSafe(relPath) {
			c.logger.Warn("workspace: rejecting unsafe path", "path", relPath)
			return
		}
		if info.Size != nil && *info.Size > maxFileBytes {
			return
		}

		read, err := c.fs.Read(ctx, uri)
		if err != nil {
			c.logger.Warn("workspace: failed to read file", "path", relPath, "error", err)
			return
		}

		size := int64(len(read.Value))
		if info.Size != nil {
			size = *info.Size
		}

		*out = append(*out, CollectedFile{
			Path:    relPath,
			Content: read.Value,
			Size:    size,
		})
	}
}

func isBlockedDir(name string) bool {
	_, blocked := blockedDirs[name]
	return blocked
}

// isPathSafe rejects an empty relative path, or one containing a null byte
// or the substring ".." anywhere (not only as a whole segment).
func isPathSafe(relPath string) bool {
	if relPath == "" || strings.ContainsRune(relPath, '\x00') {
		return false
	}
	return !strings.Contains(relPath, "..")
}

// isAllowedFile derives the dotted extension from the last "." in the file's
// base name and checks it against the block set, then the allow set.
func isAllowedFile(relPath string) bool {
	base := path.Base(relPath)
	idx := strings.LastIndex(base, ".")
	if idx < 0 {
		return false
	}
	ext := strings.ToLower(base[idx:])

	if _, blocked := blockedExtensions[ext]; blocked {
		return false
	}
	_, allowed := allowedExtensions[ext]
	return allowed
}
