// Package engine defines the boundary to the native on-device inference
// runtime. Everything behind this interface is opaque: model loading,
// tokenization, decoding and sampling happen in native code. The bridge
// layer only sees integer handles, per-request completion, and the
// out-of-band event feed.
package engine

import (
	"context"
	"errors"
)

// Handle identifies a loaded native model instance. Handles are minted by
// CreateModel and are invalid after ReleaseModel.
type Handle int32

// ModelConfig carries the native model creation parameters.
type ModelConfig struct {
	// Path to the model bundle on disk. Exactly one of Path or AssetName
	// must be set.
	Path      string
	AssetName string

	MaxTokens   int
	TopK        int
	Temperature float32
	RandomSeed  int

	// Multimodal capabilities requested at session creation.
	EnableVision bool
	EnableAudio  bool
}

// EventKind discriminates the native event channels.
type EventKind int

const (
	// KindPartial carries an incremental text fragment for an in-flight
	// generation.
	KindPartial EventKind = iota
	// KindError carries a generation failure message.
	KindError
	// KindComplete marks the clean end of a generation. It is emitted
	// after every partial fragment of the same request, so terminal
	// delivery stays ordered behind the text it concludes.
	KindComplete
	// KindLog carries a diagnostic line from the native runtime. Handle
	// and RequestID may be zero.
	KindLog
)

func (k EventKind) String() string {
	switch k {
	case KindPartial:
		return "partial"
	case KindError:
		return "error"
	case KindComplete:
		return "complete"
	case KindLog:
		return "log"
	default:
		return "unknown"
	}
}

// Event is a native-origin event. The feed is a broadcast bus: every event
// is visible to all consumers and must be filtered on (Handle, RequestID).
type Event struct {
	Kind      EventKind
	Handle    Handle
	RequestID int32
	// Partial text, error message, or log line depending on Kind.
	Text string
}

// ErrUnsupportedOperation is returned by engines that lack a capability,
// e.g. structured output. Callers must not retry it.
var ErrUnsupportedOperation = errors.New("operation not supported by engine")

// Engine is the consumed native surface. All methods are safe to call from
// multiple goroutines; at most one generation may be in flight per handle
// (serialization is the caller's responsibility).
type Engine interface {
	// CreateModel loads a model and returns its handle.
	CreateModel(cfg ModelConfig) (Handle, error)
	// ReleaseModel frees the native model. Using the handle afterwards is
	// an error.
	ReleaseModel(h Handle) error

	// GenerateResponse runs a blocking generation and returns the full text.
	GenerateResponse(ctx context.Context, h Handle, requestID int32, prompt string) (string, error)
	// GenerateResponseAsync starts a generation whose fragments stream
	// out-of-band on Events; it returns when the generation completes.
	// Engines emit every KindPartial for the request followed by exactly
	// one KindComplete or KindError before the call returns; the call's
	// own error return covers failures to start and context cancellation.
	GenerateResponseAsync(ctx context.Context, h Handle, requestID int32, prompt string) error
	// StopGeneration cancels whatever generation is active on the handle.
	StopGeneration(h Handle) error

	// AddImageToSession attaches an image file to the session's pending
	// context, in call order.
	AddImageToSession(h Handle, path string) error
	// AddAudioToSession attaches an audio file to the session's pending
	// context, in call order.
	AddAudioToSession(h Handle, path string) error

	// GenerateStructuredOutput runs a constrained generation against the
	// given JSON Schema and returns the raw JSON text. Engines without the
	// capability return ErrUnsupportedOperation.
	GenerateStructuredOutput(ctx context.Context, h Handle, requestID int32, prompt, schemaJSON, systemPrompt string) (string, error)
	// SupportsStructuredOutput reports the structured-output capability.
	SupportsStructuredOutput() bool

	// Events exposes the native event feed. The channel is closed by Close.
	Events() <-chan Event

	// Close releases the engine and closes the event feed.
	Close() error
}
