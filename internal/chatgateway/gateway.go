package chatgateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/insien-dev/sync-core/internal/observability"
	"github.com/insien-dev/sync-core/internal/syncengine"
	"github.com/insien-dev/sync-core/internal/transport"
)

// SessionCache is the narrow write-through mirror this gateway populates
// after every successful server response. It is consulted only to paint a
// "last known" value while a request is in flight; a Gateway with a nil
// cache behaves identically, just without that pre-population.
type SessionCache interface {
	LastKnownSessions(projectID string) []ChatSession
	LastKnownHistory(sessionID string) []ChatMessage
	StoreSessions(projectID string, sessions []ChatSession)
	StoreHistory(sessionID string, messages []ChatMessage)
	ForgetSession(sessionID string)
}

// Gateway is the availability-gated chat interface. It subscribes to the
// orchestrator's project-change and ingestion-complete events to track
// whether the active project is ready for chat, refusing to contact the
// backend otherwise.
type Gateway struct {
	client     *transport.Client
	models     ModelService
	cache      SessionCache
	errHandler *observability.ErrorHandler

	OnAvailabilityChanged func(available bool, projectID string)

	// OnCachedSessions and OnCachedHistory fire synchronously with the
	// cache's last-known value, before the matching network request is
	// issued, so the UI can paint something immediately while the real
	// response is in flight. Neither fires when cache is nil or the
	// cache has nothing for the given id.
	OnCachedSessions func(projectID string, sessions []ChatSession)
	OnCachedHistory  func(sessionID string, messages []ChatMessage)

	mu               sync.RWMutex
	isAvailable      bool
	currentProjectID string
}

// New builds a Gateway and wires it to orchestrator events. client and
// models must be non-nil; cache may be nil to disable pre-population.
func New(client *transport.Client, models ModelService, cache SessionCache, errHandler *observability.ErrorHandler, orch *syncengine.Orchestrator) *Gateway {
	g := &Gateway{client: client, models: models, cache: cache, errHandler: errHandler}

	prevOnProjectChanged := orch.OnProjectChanged
	orch.OnProjectChanged = func(p *syncengine.LocalProjectInfo) {
		if prevOnProjectChanged != nil {
			prevOnProjectChanged(p)
		}
		g.onProjectChanged(p)
	}

	prevOnComplete := orch.OnIngestionComplete
	orch.OnIngestionComplete = func(projectID string) {
		if prevOnComplete != nil {
			prevOnComplete(projectID)
		}
		g.onIngestionComplete(projectID)
	}

	return g
}

func (g *Gateway) onProjectChanged(p *syncengine.LocalProjectInfo) {
	if p == nil {
		g.setAvailability(false, "")
		return
	}
	g.setAvailability(p.IngestionStatus == syncengine.StatusCompleted, p.ProjectID)
}

func (g *Gateway) onIngestionComplete(projectID string) {
	g.setAvailability(true, projectID)
}

func (g *Gateway) setAvailability(available bool, projectID string) {
	g.mu.Lock()
	changed := available != g.isAvailable
	g.isAvailable = available
	g.currentProjectID = projectID
	g.mu.Unlock()

	if changed && g.OnAvailabilityChanged != nil {
		g.OnAvailabilityChanged(available, projectID)
	}
}

// IsAvailable reports whether the active project is ready for chat.
func (g *Gateway) IsAvailable() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.isAvailable
}

// CurrentProjectID mirrors the orchestrator's active project id.
func (g *Gateway) CurrentProjectID() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.currentProjectID
}

// SendMessage posts one chat turn. When the gateway is unavailable it
// returns a structured failure without contacting the backend.
func (g *Gateway) SendMessage(ctx context.Context, req SendMessageRequest) (*SendMessageResponse, error) {
	if !g.IsAvailable() {
		return &SendMessageResponse{Success: false, Error: "chat unavailable: project is not fully ingested"}, nil
	}

	model := req.Model
	if model == "" {
		model = g.models.DefaultModel(ctx)
	}

	var resp sendResponse
	err := g.client.DoJSON(ctx, "POST", "/api/custom-chat/send", sendRequest{
		ProjectID:    req.ProjectID,
		SessionID:    req.SessionID,
		Message:      req.Message,
		Model:        model,
		ContextFiles: req.ContextFiles,
	}, &resp)
	if err != nil {
		g.handleErr(ctx, "sendMessage", req.ProjectID, err)
		return &SendMessageResponse{Success: false, Error: err.Error()}, nil
	}

	return &SendMessageResponse{
		Success:     true,
		SessionID:   resp.SessionID,
		Reply:       resp.Reply,
		Edits:       resp.Edits,
		ContextUsed: resp.ContextUsed,
		MerkleTree:  resp.MerkleTree,
	}, nil
}

// GetSessions lists a project's chat sessions. On failure, returns an empty
// list rather than an error, per the gateway's REST pass-through contract.
func (g *Gateway) GetSessions(ctx context.Context, projectID string) []ChatSession {
	if g.cache != nil {
		if cached := g.cache.LastKnownSessions(projectID); len(cached) > 0 && g.OnCachedSessions != nil {
			g.OnCachedSessions(projectID, cached)
		}
	}

	var resp sessionsResponse
	err := g.client.DoJSON(ctx, "GET", "/api/custom-chat/sessions/"+projectID, nil, &resp)
	if err != nil {
		g.handleErr(ctx, "getSessions", projectID, err)
		return []ChatSession{}
	}

	if g.cache != nil {
		g.cache.StoreSessions(projectID, resp.Sessions)
	}
	return resp.Sessions
}

// GetSessionHistory fetches a session's messages, empty on failure.
func (g *Gateway) GetSessionHistory(ctx context.Context, sessionID string) []ChatMessage {
	if g.cache != nil {
		if cached := g.cache.LastKnownHistory(sessionID); len(cached) > 0 && g.OnCachedHistory != nil {
			g.OnCachedHistory(sessionID, cached)
		}
	}

	var resp historyResponse
	err := g.client.DoJSON(ctx, "GET", "/api/custom-chat/history/"+sessionID, nil, &resp)
	if err != nil {
		g.handleErr(ctx, "getSessionHistory", "", err)
		return []ChatMessage{}
	}

	if g.cache != nil {
		g.cache.StoreHistory(sessionID, resp.Messages)
	}
	return resp.Messages
}

// DeleteSession removes a session server-side.
func (g *Gateway) DeleteSession(ctx context.Context, sessionID string) error {
	var resp deleteSessionResponse
	if err := g.client.DoJSON(ctx, "DELETE", "/api/custom-chat/sessions/"+sessionID, nil, &resp); err != nil {
		g.handleErr(ctx, "deleteSession", "", err)
		return err
	}
	if g.cache != nil {
		g.cache.ForgetSession(sessionID)
	}
	if !resp.OK {
		return fmt.Errorf("delete session %s: server reported not ok", sessionID)
	}
	return nil
}

func (g *Gateway) handleErr(ctx context.Context, operation, projectID string, err error) {
	if g.errHandler == nil {
		return
	}
	g.errHandler.HandleError(ctx, err, observability.ErrorContext{
		Operation: operation,
		ProjectID: projectID,
		Class:     observability.ErrorClassTransport,
		ErrorType: string(observability.ErrorClassTransport),
	})
}
