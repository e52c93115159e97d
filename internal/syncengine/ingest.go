package syncengine

import (
	"context"
	"fmt"

	"github.com/insien-dev/sync-core/internal/identity"
	"github.com/insien-dev/sync-core/internal/merkle"
	"github.com/insien-dev/sync-core/internal/observability"
	"go.opentelemetry.io/otel/attribute"
)

// IngestFolder is the main driver. It checks the remote for a project
// matching the folder's identity and walks the state machine:
//
//	exists=false                       → create, then full batched upload
//	exists=true, status=completed      → build a fresh tree, two-phase sync
//	exists=true, status=processing     → poll until terminal
//	exists=true, status=failed/pending → idle, await explicit retry
func (o *Orchestrator) IngestFolder(ctx context.Context, uri string) error {
	client, userID := o.snapshot()
	folderPath, folderName := folderIdentity(uri)
	projectIdentity := identity.ComputeProjectIdentity(userID, folderPath, folderName)

	ctx, span := observability.InstrumentIngestionOperation(ctx, o.tracer, "checkWorkspace", "")
	span.SetAttributes(attribute.String("ingestion.project_identity", projectIdentity))
	var resp checkResponse
	err := client.DoJSON(ctx, "POST", "/api/local-projects/check", checkRequest{
		FolderPath:      folderPath,
		FolderName:      folderName,
		ProjectIdentity: projectIdentity,
	}, &resp)
	span.End()
	if err != nil {
		o.handleErr(ctx, "checkAndIngestWorkspace", "", observability.ErrorClassTransport, err)
		return err
	}

	if !resp.Exists {
		return o.createAndUpload(ctx, uri, folderPath, folderName, projectIdentity)
	}

	project := resp.Project
	if project == nil {
		err := fmt.Errorf("check response reported exists=true with no project")
		o.handleErr(ctx, "checkAndIngestWorkspace", "", observability.ErrorClassContractViolation, err)
		return err
	}

	o.setActiveProject(project)
	o.emitProjectChanged(ctx, project)

	switch project.IngestionStatus {
	case StatusCompleted:
		return o.SyncWithMerkle(ctx, project.ProjectID, uri)
	case StatusProcessing:
		return o.poll(ctx, project.ProjectID)
	default:
		// failed or pending: idle, the caller drives recovery via
		// RetryIngestion.
		return nil
	}
}

// createAndUpload handles the exists=false branch: create the remote
// project, then perform a full batched ingestion.
func (o *Orchestrator) createAndUpload(ctx context.Context, uri, folderPath, folderName, projectIdentity string) error {
	client, _ := o.snapshot()

	ctx, span := observability.InstrumentIngestionOperation(ctx, o.tracer, "createProject", "")
	span.SetAttributes(attribute.String("ingestion.project_identity", projectIdentity))
	var created createResponse
	err := client.DoJSON(ctx, "POST", "/api/local-projects/create", createRequest{
		FolderPath:      folderPath,
		FolderName:      folderName,
		ProjectIdentity: projectIdentity,
	}, &created)
	span.End()
	if err != nil {
		o.handleErr(ctx, "createProject", "", observability.ErrorClassTransport, err)
		return err
	}

	project := &LocalProjectInfo{
		ProjectID:       created.ProjectID,
		LocalHash:       created.LocalHash,
		FolderName:      folderName,
		FolderPath:      folderPath,
		IngestionStatus: StatusPending,
	}
	o.setActiveProject(project)
	o.emitProjectChanged(ctx, project)

	return o.uploadFull(ctx, project, uri)
}

// uploadFull walks uri, builds a merkle tree, issues /init, then uploads
// files in batches of 20, firing onIngestionProgress per batch.
func (o *Orchestrator) uploadFull(ctx context.Context, project *LocalProjectInfo, uri string) error {
	client, _ := o.snapshot()

	collected, err := o.collector.Collect(ctx, uri)
	if err != nil {
		o.handleErr(ctx, "ingestFolder", project.ProjectID, observability.ErrorClassFileSystem, err)
		o.emitError(project.ProjectID, err)
		return err
	}

	inputs := make([]merkle.FileInput, 0, len(collected))
	for _, f := range collected {
		inputs = append(inputs, merkle.FileInput{Path: f.Path, Content: f.Content, Size: &f.Size})
	}
	tree := merkle.BuildTree(inputs, o.clock)
	o.setCurrentTree(uri, tree)

	project.TotalFiles = len(collected)

	ctx, initSpan := observability.InstrumentIngestionOperation(ctx, o.tracer, "init", project.ProjectID)
	var initResp initResponse
	err = client.DoJSON(ctx, "POST", "/api/local-ingest/"+project.ProjectID+"/init", initRequest{
		TotalFiles: project.TotalFiles,
		MerkleTree: tree,
	}, &initResp)
	initSpan.End()
	if err != nil {
		project.IngestionStatus = StatusFailed
		o.handleErr(ctx, "ingestFolder", project.ProjectID, observability.ErrorClassTransport, err)
		o.emitError(project.ProjectID, err)
		return err
	}

	totalBatches := (len(collected) + batchSize - 1) / batchSize
	if totalBatches == 0 {
		totalBatches = 1
	}

	for batchIndex := 0; batchIndex < totalBatches; batchIndex++ {
		start := batchIndex * batchSize
		end := start + batchSize
		if end > len(collected) {
			end = len(collected)
		}
		batch := collected[start:end]

		wireFiles := make([]wireFile, 0, len(batch))
		for _, f := range batch {
			lastModified := int64(0)
			if f.LastModified != nil {
				lastModified = *f.LastModified
			}
			wireFiles = append(wireFiles, wireFile{
				Path:         f.Path,
				Content:      f.Content,
				Size:         f.Size,
				LastModified: lastModified,
			})
		}

		ctx, batchSpan := observability.InstrumentIngestionOperation(ctx, o.tracer, "uploadBatch", project.ProjectID)
		var filesResp filesResponse
		err := client.DoJSON(ctx, "POST", "/api/local-ingest/"+project.ProjectID+"/files", filesRequest{
			Files:        wireFiles,
			BatchIndex:   batchIndex,
			TotalBatches: totalBatches,
		}, &filesResp)
		batchSpan.End()
		if err != nil {
			project.IngestionStatus = StatusFailed
			o.handleErr(ctx, "uploadBatch", project.ProjectID, observability.ErrorClassTransport, err)
			o.emitError(project.ProjectID, err)
			return err
		}

		// processedFiles is pinned to the server's reported totalProcessed,
		// never incremented client-side.
		project.ProcessedFiles = filesResp.TotalProcessed
		project.TotalChunks = filesResp.TotalChunks
		if o.metrics != nil {
			o.metrics.RecordIngestedFiles(len(batch))
		}

		o.emitProgress(ctx, IngestionProgress{
			ProjectID: project.ProjectID,
			Total:     project.TotalFiles,
			Processed: project.ProcessedFiles,
			Chunks:    project.TotalChunks,
			Percent:   percentOf(project.ProcessedFiles, project.TotalFiles),
		})

		if filesResp.IsComplete {
			project.IngestionStatus = StatusCompleted
			o.emitComplete(project.ProjectID)
			return nil
		}
	}

	return nil
}
