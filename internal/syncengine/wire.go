package syncengine

import "github.com/insien-dev/sync-core/internal/merkle"

// checkRequest is the body of POST /api/local-projects/check. ProjectIdentity
// is the client-computed ProjectIdentity(userId, folderPath, folderName) —
// never stored client-side, recomputed on every call — that the server uses
// to match this folder to one of its project rows.
type checkRequest struct {
	FolderPath      string `json:"folderPath"`
	FolderName      string `json:"folderName"`
	ProjectIdentity string `json:"projectIdentity"`
}

type checkResponse struct {
	Exists  bool              `json:"exists"`
	Project *LocalProjectInfo `json:"project,omitempty"`
}

// createRequest is the body of POST /api/local-projects/create.
type createRequest struct {
	FolderPath      string `json:"folderPath"`
	FolderName      string `json:"folderName"`
	ProjectIdentity string `json:"projectIdentity"`
}

type createResponse struct {
	ProjectID string `json:"projectId"`
	LocalHash string `json:"localHash"`
}

type statusResponse struct {
	Project LocalProjectInfo `json:"project"`
}

// initRequest is the body of POST /api/local-ingest/:id/init.
type initRequest struct {
	TotalFiles int                `json:"totalFiles"`
	MerkleTree *merkle.MerkleNode `json:"merkleTree"`
}

type initResponse struct {
	OK bool `json:"ok"`
}

// wireFile is one file entry in a batch-upload body. Merkle-sync phase 2
// sends fileContent instead.
type wireFile struct {
	Path         string `json:"path"`
	Content      string `json:"content"`
	Size         int64  `json:"size"`
	LastModified int64  `json:"lastModified"`
}

// filesRequest is the body of POST /api/local-ingest/:id/files.
type filesRequest struct {
	Files        []wireFile `json:"files"`
	BatchIndex   int        `json:"batchIndex"`
	TotalBatches int        `json:"totalBatches"`
}

type filesResponse struct {
	TotalProcessed int  `json:"totalProcessed"`
	TotalChunks    int  `json:"totalChunks"`
	IsComplete     bool `json:"isComplete"`
}

type progressResponse struct {
	Status   IngestionStatus `json:"status"`
	Progress struct {
		Total     int     `json:"total"`
		Processed int     `json:"processed"`
		Chunks    int     `json:"chunks"`
		Percent   float64 `json:"percent"`
	} `json:"progress"`
	Error string `json:"error,omitempty"`
}

type retryResponse struct {
	OK bool `json:"ok"`
}

type merkleGetResponse struct {
	MerkleTree *merkle.MerkleNode `json:"merkleTree"`
}

type merklePutRequest struct {
	MerkleTree *merkle.MerkleNode `json:"merkleTree"`
}

type merklePutResponse struct {
	OK bool `json:"ok"`
}

// fileContent is the `{content}` envelope merkle-sync phase 2 sends per
// requested path.
type fileContent struct {
	Content string `json:"content"`
}

// merkleSyncRequest is the body of POST /api/projects/:id/merkle-sync.
// Files is nil on phase 1, populated (needed paths only) on phase 2.
type merkleSyncRequest struct {
	MerkleTree *merkle.MerkleNode     `json:"merkleTree"`
	Files      map[string]fileContent `json:"files,omitempty"`
}

type merkleSyncResponse struct {
	Changes        []merkle.Change    `json:"changes"`
	Summary        merkle.DiffSummary `json:"summary"`
	NeedsFiles     []string           `json:"needsFiles,omitempty"`
	FilesProcessed int                `json:"filesProcessed,omitempty"`
	FilesDeleted   int                `json:"filesDeleted,omitempty"`
}
