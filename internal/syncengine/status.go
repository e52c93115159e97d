package syncengine

import (
	"context"

	"github.com/insien-dev/sync-core/internal/observability"
)

// GetProjectStatus fetches the server's current view of a project.
func (o *Orchestrator) GetProjectStatus(ctx context.Context, projectID string) (*LocalProjectInfo, error) {
	client, _ := o.snapshot()

	var resp statusResponse
	if err := client.DoJSON(ctx, "GET", "/api/local-projects/"+projectID+"/status", nil, &resp); err != nil {
		o.handleErr(ctx, "getProjectStatus", projectID, observability.ErrorClassTransport, err)
		return nil, err
	}
	return &resp.Project, nil
}

// RetryIngestion posts /retry (any 2xx is treated as success — the spec
// observes no response shape worth parsing) and re-enters the state machine
// from Checking via a fresh CheckAndIngestWorkspace.
func (o *Orchestrator) RetryIngestion(ctx context.Context, projectID string) error {
	client, _ := o.snapshot()

	if err := client.DoJSON(ctx, "POST", "/api/local-ingest/"+projectID+"/retry", nil, nil); err != nil {
		o.handleErr(ctx, "retryIngestion", projectID, observability.ErrorClassTransport, err)
		return err
	}

	return o.CheckAndIngestWorkspace(ctx)
}
