// Package enginetest provides a scriptable in-memory Engine for tests.
package enginetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"litertd/internal/engine"
)

// Script describes the behavior of one async generation call. Scripts are
// consumed in call order; when the queue is empty the zero Script applies
// (no partials, clean completion).
type Script struct {
	// Partials are emitted as KindPartial events, in order.
	Partials []string
	// Gap, when set, is slept between partial emissions.
	Gap time.Duration
	// ErrorEvent, when non-empty, is emitted as a KindError event instead
	// of KindComplete.
	ErrorEvent string
	// StartErr, when set, is returned immediately without emitting events
	// (the rejection path).
	StartErr error
	// Hang keeps the call open after emitting Partials until
	// StopGeneration fires or the context is canceled. No terminal event
	// is emitted automatically; tests drive Emit* by hand.
	Hang bool
}

// StructuredReply scripts one GenerateStructuredOutput call.
type StructuredReply struct {
	JSON string
	Err  error
}

// StructuredCall records one GenerateStructuredOutput invocation.
type StructuredCall struct {
	Prompt       string
	SchemaJSON   string
	SystemPrompt string
}

// AttachCall records one AddImageToSession/AddAudioToSession invocation.
type AttachCall struct {
	Handle engine.Handle
	Kind   string // "image" or "audio"
	Path   string
}

type modelState struct {
	cfg  engine.ModelConfig
	stop chan struct{}
}

// Fake is a scriptable engine.Engine. The zero value is not usable; call New.
type Fake struct {
	mu         sync.Mutex
	events     chan engine.Event
	closed     bool
	nextHandle engine.Handle
	live       map[engine.Handle]*modelState

	scripts    []Script
	structured []StructuredReply

	// Recorded calls, exposed to tests through the accessor methods.
	attached        []AttachCall
	structuredCalls []StructuredCall
	blockingText    string
	blockingErr     error
	releaseCalls    int
	stopCalls       int
	noStructured    bool
	blockingHang    bool
	createDelay     time.Duration
	generateCalls   []string // prompts, async + blocking
}

// New returns an empty Fake with structured output enabled.
func New() *Fake {
	return &Fake{
		events: make(chan engine.Event, 256),
		live:   make(map[engine.Handle]*modelState),
	}
}

// EnqueueScript appends a script for the next async generation call.
func (f *Fake) EnqueueScript(s Script) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts = append(f.scripts, s)
}

// EnqueueStructured appends a reply for the next structured call.
func (f *Fake) EnqueueStructured(r StructuredReply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.structured = append(f.structured, r)
}

// SetBlockingHang makes GenerateResponse block until stop or cancellation.
func (f *Fake) SetBlockingHang(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockingHang = v
}

// SetBlockingReply fixes the text and error GenerateResponse returns.
func (f *Fake) SetBlockingReply(text string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockingText, f.blockingErr = text, err
}

// SetNoStructured disables the structured-output capability.
func (f *Fake) SetNoStructured(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noStructured = v
}

// SetCreateDelay makes every CreateModel call sleep for d first.
func (f *Fake) SetCreateDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createDelay = d
}

// Attached returns the image/audio attach calls recorded so far.
func (f *Fake) Attached() []AttachCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]AttachCall, len(f.attached))
	copy(out, f.attached)
	return out
}

// StructuredCalls returns the structured-output calls recorded so far.
func (f *Fake) StructuredCalls() []StructuredCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]StructuredCall, len(f.structuredCalls))
	copy(out, f.structuredCalls)
	return out
}

// ReleaseCalls returns the number of ReleaseModel calls so far.
func (f *Fake) ReleaseCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.releaseCalls
}

// StopCalls returns the number of StopGeneration calls so far.
func (f *Fake) StopCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

// GenerateCalls returns the prompts passed to generation calls so far.
func (f *Fake) GenerateCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.generateCalls))
	copy(out, f.generateCalls)
	return out
}

func (f *Fake) emit(ev engine.Event) {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return
	}
	f.events <- ev
}

// EmitPartial pushes a partial-response event onto the feed.
func (f *Fake) EmitPartial(h engine.Handle, requestID int32, text string) {
	f.emit(engine.Event{Kind: engine.KindPartial, Handle: h, RequestID: requestID, Text: text})
}

// EmitError pushes an error-response event onto the feed.
func (f *Fake) EmitError(h engine.Handle, requestID int32, msg string) {
	f.emit(engine.Event{Kind: engine.KindError, Handle: h, RequestID: requestID, Text: msg})
}

// EmitComplete pushes a completion event onto the feed.
func (f *Fake) EmitComplete(h engine.Handle, requestID int32) {
	f.emit(engine.Event{Kind: engine.KindComplete, Handle: h, RequestID: requestID})
}

// EmitLog pushes a log event onto the feed.
func (f *Fake) EmitLog(msg string) {
	f.emit(engine.Event{Kind: engine.KindLog, Text: msg})
}

func (f *Fake) CreateModel(cfg engine.ModelConfig) (engine.Handle, error) {
	f.mu.Lock()
	delay := f.createDelay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextHandle++
	h := f.nextHandle
	f.live[h] = &modelState{cfg: cfg, stop: make(chan struct{}, 1)}
	return h, nil
}

func (f *Fake) ReleaseModel(h engine.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releaseCalls++
	if _, ok := f.live[h]; !ok {
		return fmt.Errorf("release of unknown handle %d", h)
	}
	delete(f.live, h)
	return nil
}

// Config returns the ModelConfig the handle was created with.
func (f *Fake) Config(h engine.Handle) (engine.ModelConfig, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.live[h]
	if !ok {
		return engine.ModelConfig{}, false
	}
	return st.cfg, true
}

func (f *Fake) state(h engine.Handle) (*modelState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.live[h]
	if !ok {
		return nil, fmt.Errorf("unknown handle %d", h)
	}
	return st, nil
}

func (f *Fake) popScript() Script {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.scripts) == 0 {
		return Script{}
	}
	s := f.scripts[0]
	f.scripts = f.scripts[1:]
	return s
}

func (f *Fake) GenerateResponse(ctx context.Context, h engine.Handle, requestID int32, prompt string) (string, error) {
	st, err := f.state(h)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	f.generateCalls = append(f.generateCalls, prompt)
	text, berr, hang := f.blockingText, f.blockingErr, f.blockingHang
	f.mu.Unlock()
	if hang {
		select {
		case <-st.stop:
			return text, berr
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return text, berr
}

func (f *Fake) GenerateResponseAsync(ctx context.Context, h engine.Handle, requestID int32, prompt string) error {
	st, err := f.state(h)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.generateCalls = append(f.generateCalls, prompt)
	f.mu.Unlock()
	s := f.popScript()
	if s.StartErr != nil {
		return s.StartErr
	}
	for _, p := range s.Partials {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.EmitPartial(h, requestID, p)
		if s.Gap > 0 {
			time.Sleep(s.Gap)
		}
	}
	if s.Hang {
		select {
		case <-st.stop:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.ErrorEvent != "" {
		f.EmitError(h, requestID, s.ErrorEvent)
		return nil
	}
	f.EmitComplete(h, requestID)
	return nil
}

func (f *Fake) StopGeneration(h engine.Handle) error {
	st, err := f.state(h)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.stopCalls++
	f.mu.Unlock()
	select {
	case st.stop <- struct{}{}:
	default:
	}
	return nil
}

func (f *Fake) AddImageToSession(h engine.Handle, path string) error {
	if _, err := f.state(h); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attached = append(f.attached, AttachCall{Handle: h, Kind: "image", Path: path})
	return nil
}

func (f *Fake) AddAudioToSession(h engine.Handle, path string) error {
	if _, err := f.state(h); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attached = append(f.attached, AttachCall{Handle: h, Kind: "audio", Path: path})
	return nil
}

func (f *Fake) GenerateStructuredOutput(ctx context.Context, h engine.Handle, requestID int32, prompt, schemaJSON, systemPrompt string) (string, error) {
	if _, err := f.state(h); err != nil {
		return "", err
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.noStructured {
		return "", engine.ErrUnsupportedOperation
	}
	f.generateCalls = append(f.generateCalls, prompt)
	f.structuredCalls = append(f.structuredCalls, StructuredCall{Prompt: prompt, SchemaJSON: schemaJSON, SystemPrompt: systemPrompt})
	if len(f.structured) == 0 {
		return "{}", nil
	}
	r := f.structured[0]
	f.structured = f.structured[1:]
	return r.JSON, r.Err
}

func (f *Fake) SupportsStructuredOutput() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.noStructured
}

func (f *Fake) Events() <-chan engine.Event { return f.events }

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	close(f.events)
	return nil
}
