package chatgateway

import (
	"bufio"
	"context"
	"encoding/json"
	"strings"
)

const ssePrefix = "data: "

// SendMessageStream issues the same request as SendMessage but reads back a
// Server-Sent-Events response, firing onEvent for every `data: <JSON>` line.
// When the gateway is unavailable, a single StreamError event fires and the
// backend is never contacted.
func (g *Gateway) SendMessageStream(ctx context.Context, req SendMessageRequest, onEvent func(StreamEvent)) error {
	if !g.IsAvailable() {
		onEvent(StreamEvent{Type: StreamError, Error: "chat unavailable: project is not fully ingested"})
		return nil
	}

	model := req.Model
	if model == "" {
		model = g.models.DefaultModel(ctx)
	}

	body, err := g.client.Stream(ctx, "/api/custom-chat/send-stream", sendRequest{
		ProjectID:    req.ProjectID,
		SessionID:    req.SessionID,
		Message:      req.Message,
		Model:        model,
		ContextFiles: req.ContextFiles,
	})
	if err != nil {
		g.handleErr(ctx, "sendMessageStream", req.ProjectID, err)
		onEvent(StreamEvent{Type: StreamError, Error: err.Error()})
		return nil
	}
	defer body.Close()

	return scanEvents(bufio.NewReader(body), onEvent)
}

// scanEvents reads r in a rolling buffer, splitting on '\n' and decoding
// every line prefixed "data: " as a StreamEvent. A partial trailing line is
// retained across reads, matching bufio.Reader.ReadString's own behavior on
// EOF without a final newline.
func scanEvents(r *bufio.Reader, onEvent func(StreamEvent)) error {
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			if evt, ok := parseSSELine(line); ok {
				onEvent(evt)
			}
		}
		if err != nil {
			return nil
		}
	}
}

func parseSSELine(line string) (StreamEvent, bool) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, ssePrefix) {
		return StreamEvent{}, false
	}
	payload := strings.TrimPrefix(line, ssePrefix)

	var evt StreamEvent
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		return StreamEvent{Type: StreamError, Error: err.Error()}, true
	}
	return evt, true
}
