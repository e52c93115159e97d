package syncengine

import (
	"context"
	"time"

	"github.com/insien-dev/sync-core/internal/observability"
)

// poll hits GET /progress every PollInterval until the project's status
// leaves "processing", emitting each sample as onIngestionProgress.
// Transport failures terminate polling silently — the next workspace
// change or explicit retry resumes work.
func (o *Orchestrator) poll(ctx context.Context, projectID string) error {
	client, _ := o.snapshot()
	interval := pollInterval(o)

	for {
		ctx, span := observability.InstrumentIngestionOperation(ctx, o.tracer, "pollProgress", projectID)
		var resp progressResponse
		err := client.DoJSON(ctx, "GET", "/api/local-ingest/"+projectID+"/progress", nil, &resp)
		span.End()
		if err != nil {
			o.handleErr(ctx, "pollProgress", projectID, observability.ErrorClassTransport, err)
			return nil
		}

		o.emitProgress(ctx, IngestionProgress{
			ProjectID: projectID,
			Total:     resp.Progress.Total,
			Processed: resp.Progress.Processed,
			Chunks:    resp.Progress.Chunks,
			Percent:   resp.Progress.Percent,
		})

		if resp.Status != StatusProcessing {
			project := o.ActiveProject()
			if project != nil && project.ProjectID == projectID {
				project.IngestionStatus = resp.Status
				project.Error = resp.Error
				project.TotalFiles = resp.Progress.Total
				project.ProcessedFiles = resp.Progress.Processed
				project.TotalChunks = resp.Progress.Chunks
				o.setActiveProject(project)
				o.emitProjectChanged(ctx, project)
			}

			if resp.Status == StatusCompleted {
				o.emitComplete(projectID)
			} else if resp.Status == StatusFailed {
				o.emitError(projectID, errStatus(resp.Error))
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

type errStatus string

func (e errStatus) Error() string { return string(e) }
