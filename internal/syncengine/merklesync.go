package syncengine

import (
	"context"

	"github.com/insien-dev/sync-core/internal/merkle"
	"github.com/insien-dev/sync-core/internal/observability"
)

// SyncWithMerkle performs a re-entrant two-phase diff-and-upload against an
// already-known project. Phase 1 sends the tree alone; phase 2, only when
// the server asks for specific paths, uploads their content. The orchestrator's
// current tree is updated only once phase 1 (no files needed) or phase 2
// (files needed) succeeds.
func (o *Orchestrator) SyncWithMerkle(ctx context.Context, projectID, uri string) error {
	client, _ := o.snapshot()

	collected, err := o.collector.Collect(ctx, uri)
	if err != nil {
		o.handleErr(ctx, "syncWithMerkle", projectID, observability.ErrorClassFileSystem, err)
		o.emitError(projectID, err)
		return err
	}

	contentByPath := make(map[string]string, len(collected))
	inputs := make([]merkle.FileInput, 0, len(collected))
	for _, f := range collected {
		contentByPath[f.Path] = f.Content
		inputs = append(inputs, merkle.FileInput{Path: f.Path, Content: f.Content, Size: &f.Size})
	}
	tree := merkle.BuildTree(inputs, o.clock)

	path := "/api/projects/" + projectID + "/merkle-sync"

	ctx, phase1Span := observability.InstrumentMerkleSync(ctx, o.tracer, "phase1", projectID)
	var phase1 merkleSyncResponse
	err = client.DoJSON(ctx, "POST", path, merkleSyncRequest{MerkleTree: tree}, &phase1)
	phase1Span.End()
	if err != nil {
		o.handleErr(ctx, "syncWithMerkle", projectID, observability.ErrorClassTransport, err)
		o.emitError(projectID, err)
		return err
	}
	if o.metrics != nil {
		o.metrics.RecordMerkleSync("phase1", 0, phase1.Summary.Added, phase1.Summary.Modified, phase1.Summary.Deleted)
	}

	if len(phase1.NeedsFiles) == 0 {
		o.setCurrentTree(uri, tree)
		o.emitComplete(projectID)
		return nil
	}

	files := make(map[string]fileContent, len(phase1.NeedsFiles))
	for _, p := range phase1.NeedsFiles {
		files[p] = fileContent{Content: contentByPath[p]}
	}

	ctx, phase2Span := observability.InstrumentMerkleSync(ctx, o.tracer, "phase2", projectID)
	var phase2 merkleSyncResponse
	err = client.DoJSON(ctx, "POST", path, merkleSyncRequest{MerkleTree: tree, Files: files}, &phase2)
	phase2Span.End()
	if err != nil {
		o.handleErr(ctx, "syncWithMerkle", projectID, observability.ErrorClassTransport, err)
		o.emitError(projectID, err)
		return err
	}
	if o.metrics != nil {
		o.metrics.RecordMerkleSync("phase2", 0, phase2.Summary.Added, phase2.Summary.Modified, phase2.Summary.Deleted)
	}

	o.setCurrentTree(uri, tree)
	o.emitComplete(projectID)
	return nil
}

// GetMerkleTree fetches the server's stored tree for a project.
func (o *Orchestrator) GetMerkleTree(ctx context.Context, projectID string) (*merkle.MerkleNode, error) {
	client, _ := o.snapshot()

	var resp merkleGetResponse
	if err := client.DoJSON(ctx, "GET", "/api/local-ingest/"+projectID+"/merkle", nil, &resp); err != nil {
		o.handleErr(ctx, "getMerkleTree", projectID, observability.ErrorClassTransport, err)
		return nil, err
	}
	return resp.MerkleTree, nil
}

// UpdateMerkleTree pushes a tree to the server as the project's stored tree.
func (o *Orchestrator) UpdateMerkleTree(ctx context.Context, projectID string, tree *merkle.MerkleNode) error {
	client, _ := o.snapshot()

	var resp merklePutResponse
	if err := client.DoJSON(ctx, "PUT", "/api/local-ingest/"+projectID+"/merkle", merklePutRequest{MerkleTree: tree}, &resp); err != nil {
		o.handleErr(ctx, "updateMerkleTree", projectID, observability.ErrorClassTransport, err)
		return err
	}
	return nil
}
