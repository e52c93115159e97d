package chatgateway

import (
	"context"

	"github.com/insien-dev/sync-core/internal/transport"
)

// offlineModels is the fixed offline model list. Only its default id,
// offlineDefaultModel, is used: DefaultModel returns it when
// /api/custom-chat/models can't be reached, so sendMessage can still resolve
// a model id without failing the whole call.
var offlineModels = []Model{
	{ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro", Vendor: "google", IsDefault: true},
	{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", Vendor: "google"},
	{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", Vendor: "google"},
}

const offlineDefaultModel = "gemini-2.5-pro"

// RemoteModelService resolves the default chat model from the backend,
// falling back to a fixed offline list when the endpoint is unreachable.
type RemoteModelService struct {
	client *transport.Client
}

// NewRemoteModelService builds a ModelService against a transport client.
func NewRemoteModelService(client *transport.Client) *RemoteModelService {
	return &RemoteModelService{client: client}
}

// DefaultModel returns the backend's reported default model id, or the
// offline fallback default if the models endpoint can't be reached.
func (s *RemoteModelService) DefaultModel(ctx context.Context) string {
	var resp modelsResponse
	if err := s.client.DoJSON(ctx, "GET", "/api/custom-chat/models", nil, &resp); err != nil {
		return offlineDefaultModel
	}
	if resp.Default != "" {
		return resp.Default
	}
	for _, m := range resp.Models {
		if m.IsDefault {
			return m.ID
		}
	}
	return offlineDefaultModel
}
