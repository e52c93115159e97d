package chatgateway

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSSELine(t *testing.T) {
	evt, ok := parseSSELine(`data: {"type":"start","sessionId":"sess-1"}` + "\n")
	require.True(t, ok)
	assert.Equal(t, StreamStart, evt.Type)
	assert.Equal(t, "sess-1", evt.SessionID)

	_, ok = parseSSELine("\n")
	assert.False(t, ok)

	evt, ok = parseSSELine("data: not json\n")
	require.True(t, ok)
	assert.Equal(t, StreamError, evt.Type)
}

func TestScanEvents_SplitsAcrossChunks(t *testing.T) {
	raw := "data: {\"type\":\"start\"}\ndata: {\"type\":\"resp" +
		"onse\",\"delta\":\"hi\"}\ndata: {\"type\":\"complete\",\"reply\":\"hi\"}\n"

	var events []StreamEvent
	err := scanEvents(bufio.NewReader(iotest.OneByteReader(strings.NewReader(raw))), func(e StreamEvent) {
		events = append(events, e)
	})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, StreamStart, events[0].Type)
	assert.Equal(t, StreamResponse, events[1].Type)
	assert.Equal(t, "hi", events[1].Delta)
	assert.Equal(t, StreamComplete, events[2].Type)
	assert.Equal(t, "hi", events[2].Reply)
}

func TestSendMessageStream_Unavailable(t *testing.T) {
	server := httptest.NewServer(http.NewServeMux())
	defer server.Close()

	gw, _ := newTestGateway(t, server.URL, nil)

	var events []StreamEvent
	err := gw.SendMessageStream(context.Background(), SendMessageRequest{ProjectID: "p", Message: "hi"}, func(e StreamEvent) {
		events = append(events, e)
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, StreamError, events[0].Type)
}

func TestSendMessageStream_AvailableEmitsServerEvents(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/custom-chat/send-stream", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"start\"}\n")
		fmt.Fprint(w, "data: {\"type\":\"complete\",\"reply\":\"done\"}\n")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	gw, orch := newTestGateway(t, server.URL, nil)
	orch.OnIngestionComplete("proj-stream")

	var events []StreamEvent
	err := gw.SendMessageStream(context.Background(), SendMessageRequest{ProjectID: "proj-stream", Message: "hi"}, func(e StreamEvent) {
		events = append(events, e)
	})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, StreamStart, events[0].Type)
	assert.Equal(t, StreamComplete, events[1].Type)
	assert.Equal(t, "done", events[1].Reply)
}
