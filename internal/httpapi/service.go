package httpapi

import (
	"context"

	"litertd/internal/bridge"
	"litertd/internal/downloads"
	"litertd/pkg/types"
)

// Stream is the incremental view over one generation, as consumed by the
// NDJSON handler.
type Stream interface {
	Next(ctx context.Context) (string, error)
	FinishReason(ctx context.Context) (string, error)
	RequestID() int32
}

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Chat(ctx context.Context, req types.ChatRequest) (types.GenerateResult, error)
	OpenStream(ctx context.Context, req types.ChatRequest) (Stream, error)
	ChatStructured(ctx context.Context, req types.StructuredRequest) (types.StructuredResult, error)
	ListModels() []types.Model
	Downloads() []types.ModelInfo
	RegisterModel(name, url string) types.ModelInfo
	StartDownload(ctx context.Context, name string) error
	DeleteModel(name string) error
	Status() types.StatusResponse
	Ready() bool
}

// BridgeService adapts a bridge plus a download manager to the Service
// interface. The download manager may be nil; the download endpoints then
// report 501.
type BridgeService struct {
	*bridge.Bridge
	DL *downloads.Manager
}

func (s BridgeService) OpenStream(ctx context.Context, req types.ChatRequest) (Stream, error) {
	return s.Bridge.ChatStream(ctx, req)
}

func (s BridgeService) Downloads() []types.ModelInfo {
	if s.DL == nil {
		return nil
	}
	return s.DL.List()
}

func (s BridgeService) RegisterModel(name, url string) types.ModelInfo {
	if s.DL == nil {
		return types.ModelInfo{}
	}
	return s.DL.Register(name, url)
}

func (s BridgeService) StartDownload(ctx context.Context, name string) error {
	if s.DL == nil {
		return errDownloadsDisabled
	}
	return s.DL.Start(ctx, name)
}

func (s BridgeService) DeleteModel(name string) error {
	if s.DL == nil {
		return errDownloadsDisabled
	}
	return s.DL.Delete(name)
}
