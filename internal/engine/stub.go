//go:build !litert

package engine

// This file provides a no-CGO stub for the native runtime. It is compiled
// when the 'litert' build tag is NOT set, keeping default builds and CI
// CGO-free. The real binding lives behind the 'litert' tag.

import (
	"context"
	"errors"
)

// ErrRuntimeUnavailable indicates the native runtime is not linked into
// this build.
var ErrRuntimeUnavailable = errors.New("litert runtime not built (missing 'litert' build tag)")

type stubEngine struct {
	events chan Event
}

// New returns the engine for this build. Without the 'litert' tag every
// model operation fails fast; no behavior is mocked in production binaries.
func New() Engine {
	return &stubEngine{events: make(chan Event)}
}

func (e *stubEngine) CreateModel(ModelConfig) (Handle, error) {
	return 0, ErrRuntimeUnavailable
}

func (e *stubEngine) ReleaseModel(Handle) error { return ErrRuntimeUnavailable }

func (e *stubEngine) GenerateResponse(ctx context.Context, _ Handle, _ int32, _ string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	return "", ErrRuntimeUnavailable
}

func (e *stubEngine) GenerateResponseAsync(ctx context.Context, _ Handle, _ int32, _ string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return ErrRuntimeUnavailable
}

func (e *stubEngine) StopGeneration(Handle) error { return ErrRuntimeUnavailable }

func (e *stubEngine) AddImageToSession(Handle, string) error { return ErrRuntimeUnavailable }

func (e *stubEngine) AddAudioToSession(Handle, string) error { return ErrRuntimeUnavailable }

func (e *stubEngine) GenerateStructuredOutput(context.Context, Handle, int32, string, string, string) (string, error) {
	return "", ErrUnsupportedOperation
}

func (e *stubEngine) SupportsStructuredOutput() bool { return false }

func (e *stubEngine) Events() <-chan Event { return e.events }

func (e *stubEngine) Close() error {
	close(e.events)
	return nil
}
