package chatgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/insien-dev/sync-core/internal/observability"
	"github.com/insien-dev/sync-core/internal/syncengine"
	"github.com/insien-dev/sync-core/internal/transport"
	"github.com/insien-dev/sync-core/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeJSON(r *http.Request, out interface{}) error {
	return json.NewDecoder(r.Body).Decode(out)
}

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

// noopWorkspace reports no roots; these tests drive the gateway directly
// and never exercise the orchestrator's own ingestion flow.
type noopWorkspace struct{}

func (noopWorkspace) Roots(_ context.Context) ([]workspace.Root, error) { return nil, nil }

type noopFileService struct{}

func (noopFileService) Resolve(_ context.Context, _ string) (workspace.ResolveInfo, error) {
	return workspace.ResolveInfo{}, nil
}

func (noopFileService) Read(_ context.Context, _ string) (workspace.ReadResult, error) {
	return workspace.ReadResult{}, nil
}

type fixedModelService struct{ model string }

func (f fixedModelService) DefaultModel(_ context.Context) string { return f.model }

type fakeCache struct {
	storedSessions map[string][]ChatSession
	storedHistory  map[string][]ChatMessage
	forgotten      []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{storedSessions: map[string][]ChatSession{}, storedHistory: map[string][]ChatMessage{}}
}

func (c *fakeCache) LastKnownSessions(projectID string) []ChatSession { return c.storedSessions[projectID] }
func (c *fakeCache) LastKnownHistory(sessionID string) []ChatMessage  { return c.storedHistory[sessionID] }
func (c *fakeCache) StoreSessions(projectID string, sessions []ChatSession) {
	c.storedSessions[projectID] = sessions
}
func (c *fakeCache) StoreHistory(sessionID string, messages []ChatMessage) {
	c.storedHistory[sessionID] = messages
}
func (c *fakeCache) ForgetSession(sessionID string) {
	c.forgotten = append(c.forgotten, sessionID)
}

func newTestGateway(t *testing.T, serverURL string, cache SessionCache) (*Gateway, *syncengine.Orchestrator) {
	t.Helper()
	logger := observability.NewLogger(observability.LoggerConfig{Level: "error", Format: "json", Output: &bytes.Buffer{}})
	tp, err := observability.NewTracerProvider(observability.DefaultTracerConfig())
	require.NoError(t, err)

	orch := syncengine.New(noopWorkspace{}, noopFileService{}, logger, nil, tp.Tracer())
	client := transport.New(serverURL, "")
	errHandler := observability.NewErrorHandler(logger, nil, false)
	gw := New(client, fixedModelService{model: "gemini-2.5-pro"}, cache, errHandler, orch)
	return gw, orch
}

func TestGateway_Unavailable_SendMessageDoesNotContactServer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/custom-chat/send", func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("send should not be called while unavailable")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	gw, _ := newTestGateway(t, server.URL, nil)
	assert.False(t, gw.IsAvailable())

	resp, err := gw.SendMessage(context.Background(), SendMessageRequest{ProjectID: "proj-1", Message: "hi"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func TestGateway_AvailabilityEdgesOnProjectChanged(t *testing.T) {
	server := httptest.NewServer(http.NewServeMux())
	defer server.Close()

	var edges []bool
	gw, orch := newTestGateway(t, server.URL, nil)
	gw.OnAvailabilityChanged = func(available bool, _ string) { edges = append(edges, available) }

	orch.OnProjectChanged(&syncengine.LocalProjectInfo{ProjectID: "proj-2", IngestionStatus: syncengine.StatusProcessing})
	assert.False(t, gw.IsAvailable())
	assert.Empty(t, edges, "no edge fires moving between two unavailable states")

	orch.OnProjectChanged(&syncengine.LocalProjectInfo{ProjectID: "proj-2", IngestionStatus: syncengine.StatusCompleted})
	require.Len(t, edges, 1)
	assert.True(t, edges[0])
	assert.True(t, gw.IsAvailable())
	assert.Equal(t, "proj-2", gw.CurrentProjectID())

	orch.OnProjectChanged(&syncengine.LocalProjectInfo{ProjectID: "proj-2", IngestionStatus: syncengine.StatusCompleted})
	assert.Len(t, edges, 1, "no edge fires on a repeated available state")
}

func TestGateway_SendMessage_ResolvesModelAndPostsWhenAvailable(t *testing.T) {
	var decoded sendRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/api/custom-chat/send", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, decodeJSON(r, &decoded))
		writeJSON(t, w, sendResponse{SessionID: "sess-1", Reply: "hello"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	gw, orch := newTestGateway(t, server.URL, nil)
	orch.OnIngestionComplete("proj-3")

	resp, err := gw.SendMessage(context.Background(), SendMessageRequest{ProjectID: "proj-3", Message: "hi"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "sess-1", resp.SessionID)
	assert.Equal(t, "hello", resp.Reply)
	assert.Equal(t, "gemini-2.5-pro", decoded.Model)
}

func TestGateway_GetSessions_EmptyOnFailure(t *testing.T) {
	server := httptest.NewServer(http.NewServeMux())
	defer server.Close()

	gw, _ := newTestGateway(t, server.URL, nil)
	sessions := gw.GetSessions(context.Background(), "proj-4")
	assert.Empty(t, sessions)
}

func TestGateway_GetSessions_StoresIntoCache(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/custom-chat/sessions/proj-5", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, sessionsResponse{Sessions: []ChatSession{{SessionID: "sess-5", ProjectID: "proj-5"}}})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cache := newFakeCache()
	gw, _ := newTestGateway(t, server.URL, cache)

	sessions := gw.GetSessions(context.Background(), "proj-5")
	require.Len(t, sessions, 1)
	assert.Equal(t, []ChatSession{{SessionID: "sess-5", ProjectID: "proj-5"}}, cache.storedSessions["proj-5"])
}

func TestGateway_GetSessions_PaintsCachedValueBeforeResponding(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/custom-chat/sessions/proj-7", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, sessionsResponse{Sessions: []ChatSession{{SessionID: "sess-7b", ProjectID: "proj-7"}}})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cache := newFakeCache()
	cache.storedSessions["proj-7"] = []ChatSession{{SessionID: "sess-7a", ProjectID: "proj-7"}}
	gw, _ := newTestGateway(t, server.URL, cache)

	var painted []ChatSession
	gw.OnCachedSessions = func(_ string, sessions []ChatSession) { painted = sessions }

	sessions := gw.GetSessions(context.Background(), "proj-7")
	require.Len(t, painted, 1)
	assert.Equal(t, "sess-7a", painted[0].SessionID)
	require.Len(t, sessions, 1)
	assert.Equal(t, "sess-7b", sessions[0].SessionID)
}

func TestGateway_GetSessions_NoCachedCallbackWhenCacheEmpty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/custom-chat/sessions/proj-8", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, sessionsResponse{Sessions: nil})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cache := newFakeCache()
	gw, _ := newTestGateway(t, server.URL, cache)

	called := false
	gw.OnCachedSessions = func(_ string, _ []ChatSession) { called = true }

	gw.GetSessions(context.Background(), "proj-8")
	assert.False(t, called, "no cached callback fires when the cache has nothing for this project")
}

func TestGateway_GetSessionHistory_PaintsCachedValueBeforeResponding(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/custom-chat/history/sess-9", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, historyResponse{Messages: []ChatMessage{{Role: "assistant", Content: "fresh"}}})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cache := newFakeCache()
	cache.storedHistory["sess-9"] = []ChatMessage{{Role: "user", Content: "stale"}}
	gw, _ := newTestGateway(t, server.URL, cache)

	var painted []ChatMessage
	gw.OnCachedHistory = func(_ string, messages []ChatMessage) { painted = messages }

	messages := gw.GetSessionHistory(context.Background(), "sess-9")
	require.Len(t, painted, 1)
	assert.Equal(t, "stale", painted[0].Content)
	require.Len(t, messages, 1)
	assert.Equal(t, "fresh", messages[0].Content)
}

func TestGateway_DeleteSession_ForgetsCache(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/custom-chat/sessions/sess-6", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, deleteSessionResponse{OK: true})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cache := newFakeCache()
	gw, _ := newTestGateway(t, server.URL, cache)

	err := gw.DeleteSession(context.Background(), "sess-6")
	require.NoError(t, err)
	assert.Equal(t, []string{"sess-6"}, cache.forgotten)
}
