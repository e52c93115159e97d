package syncengine

import (
	"context"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/insien-dev/sync-core/internal/identity"
	"github.com/insien-dev/sync-core/internal/merkle"
	"github.com/insien-dev/sync-core/internal/observability"
	"github.com/insien-dev/sync-core/internal/progressbus"
	"github.com/insien-dev/sync-core/internal/transport"
	"github.com/insien-dev/sync-core/internal/workspace"
	"go.opentelemetry.io/otel/trace"
)

const (
	batchSize           = 20
	defaultPollInterval = 2 * time.Second
)

// Orchestrator owns the single active project and drives it through the
// check/create/upload or check/build/merkle-sync state machine. It is not
// re-entrant: a second IngestFolder call while one is running is permitted,
// but the later tree simply overwrites the current one; both invocations'
// events still fire.
type Orchestrator struct {
	ws        workspace.Workspace
	collector *workspace.Collector
	clock     merkle.Clock

	logger     *observability.Logger
	metrics    *observability.MetricsCollector
	tracer     trace.Tracer
	errHandler *observability.ErrorHandler

	// bus optionally fans onIngestionProgress/onProjectChanged out to other
	// editor windows sharing this project. A nil bus (the default) disables
	// fan-out entirely; SetProgressBus wires one in.
	bus *progressbus.Bus

	// PollInterval overrides the default 2-second poll cadence; tests set
	// this to something small.
	PollInterval time.Duration

	OnProjectChanged    func(*LocalProjectInfo)
	OnIngestionProgress func(IngestionProgress)
	OnIngestionComplete func(projectID string)
	OnIngestionError    func(IngestionError)

	mu            sync.RWMutex
	transport     *transport.Client
	userID        string
	activeProject *LocalProjectInfo
	currentTree   *merkle.MerkleNode
	currentURI    string
}

// New builds an Orchestrator against a host workspace and file service.
// Initialize must be called before any other method to configure the
// backend transport.
func New(ws workspace.Workspace, fs workspace.FileService, logger *observability.Logger, metrics *observability.MetricsCollector, tracer trace.Tracer) *Orchestrator {
	return &Orchestrator{
		ws:           ws,
		collector:    workspace.NewCollector(fs, nil),
		clock:        merkle.SystemClock{},
		logger:       logger,
		metrics:      metrics,
		tracer:       tracer,
		errHandler:   observability.NewErrorHandler(logger, metrics, false),
		PollInterval: defaultPollInterval,
	}
}

// SetProgressBus wires an optional Redis-backed fan-out for this
// orchestrator's progress and project-changed events, so other editor
// windows watching the same project observe them. A disabled bus (built
// from an empty Config) is safe to pass here unconditionally.
func (o *Orchestrator) SetProgressBus(bus *progressbus.Bus) {
	o.mu.Lock()
	o.bus = bus
	o.mu.Unlock()
}

// Initialize sets the backend transport config, derives the user id from
// authToken, and immediately runs CheckAndIngestWorkspace.
func (o *Orchestrator) Initialize(ctx context.Context, backendURL, authToken string) error {
	o.mu.Lock()
	o.transport = transport.New(backendURL, authToken)
	userID, err := identity.UserIDFromToken(authToken)
	if err != nil {
		userID = authToken
	}
	o.userID = userID
	o.mu.Unlock()

	return o.CheckAndIngestWorkspace(ctx)
}

// CheckAndIngestWorkspace reads the workspace's first root URI and either
// clears the active project (no roots open) or delegates to IngestFolder.
func (o *Orchestrator) CheckAndIngestWorkspace(ctx context.Context) error {
	roots, err := o.ws.Roots(ctx)
	if err != nil {
		o.handleErr(ctx, "checkAndIngestWorkspace", "", observability.ErrorClassTransport, err)
		return err
	}
	if len(roots) == 0 {
		o.setActiveProject(nil)
		o.emitProjectChanged(ctx, nil)
		return nil
	}
	return o.IngestFolder(ctx, roots[0].URI)
}

// ActiveProject returns a copy of the currently tracked project, or nil.
func (o *Orchestrator) ActiveProject() *LocalProjectInfo {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.activeProject == nil {
		return nil
	}
	cp := *o.activeProject
	return &cp
}

func (o *Orchestrator) setActiveProject(p *LocalProjectInfo) {
	o.mu.Lock()
	o.activeProject = p
	o.mu.Unlock()
}

func (o *Orchestrator) setCurrentTree(uri string, tree *merkle.MerkleNode) {
	o.mu.Lock()
	o.currentURI = uri
	o.currentTree = tree
	o.mu.Unlock()
}

func (o *Orchestrator) snapshot() (*transport.Client, string) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.transport, o.userID
}

func (o *Orchestrator) progressBus() *progressbus.Bus {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.bus
}

func (o *Orchestrator) emitProjectChanged(ctx context.Context, p *LocalProjectInfo) {
	if o.OnProjectChanged != nil {
		o.OnProjectChanged(p)
	}
	bus := o.progressBus()
	if bus == nil || p == nil {
		return
	}
	if err := bus.Publish(ctx, p.ProjectID, progressbus.Event{Kind: "projectChanged", Payload: p}); err != nil {
		o.logger.Warn("progressbus: failed to publish project change", "projectId", p.ProjectID, "error", err)
	}
}

func (o *Orchestrator) emitProgress(ctx context.Context, p IngestionProgress) {
	if o.OnIngestionProgress != nil {
		o.OnIngestionProgress(p)
	}
	bus := o.progressBus()
	if bus == nil {
		return
	}
	if err := bus.Publish(ctx, p.ProjectID, progressbus.Event{Kind: "ingestionProgress", Payload: p}); err != nil {
		o.logger.Warn("progressbus: failed to publish ingestion progress", "projectId", p.ProjectID, "error", err)
	}
}

func (o *Orchestrator) emitComplete(projectID string) {
	if o.OnIngestionComplete != nil {
		o.OnIngestionComplete(projectID)
	}
}

func (o *Orchestrator) emitError(projectID string, err error) {
	if o.metrics != nil {
		o.metrics.RecordIngestionError("ingestion_failed")
	}
	if o.OnIngestionError != nil {
		o.OnIngestionError(IngestionError{ProjectID: projectID, Error: err.Error()})
	}
}

// handleErr routes every failure through the shared ErrorHandler so it gets
// one structured log line, an optional Sentry capture, and a span status.
func (o *Orchestrator) handleErr(ctx context.Context, operation, projectID string, class observability.ErrorClass, err error) {
	o.errHandler.HandleError(ctx, err, observability.ErrorContext{
		Operation: operation,
		ProjectID: projectID,
		Class:     class,
		ErrorType: string(class),
	})
}

// folderIdentity derives (folderPath, folderName) from a host workspace URI.
// The URI is treated as the folder path verbatim; the folder name is its
// final path segment.
func folderIdentity(uri string) (folderPath, folderName string) {
	folderPath = uri
	trimmed := strings.TrimRight(uri, "/")
	folderName = path.Base(trimmed)
	if folderName == "." || folderName == "/" {
		folderName = trimmed
	}
	return folderPath, folderName
}

func pollInterval(o *Orchestrator) time.Duration {
	if o.PollInterval > 0 {
		return o.PollInterval
	}
	return defaultPollInterval
}
