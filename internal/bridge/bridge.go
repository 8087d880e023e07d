package bridge

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"litertd/internal/engine"
	"litertd/pkg/types"
)

// Bridge multiplexes logical generation requests over native model
// handles. It owns the handle registry, the request-id allocator, and the
// event router, and pumps the engine's event feed into the router.
type Bridge struct {
	cfg       Config
	eng       engine.Engine
	log       zerolog.Logger
	registry  *HandleRegistry
	alloc     *RequestIDAllocator
	router    *EventRouter
	publisher EventPublisher

	mu      sync.Mutex
	byModel map[string]string // model id -> session id
	loading map[string]*modelLoad
	lastErr string

	genTotal   atomic.Uint64
	abortTotal atomic.Uint64

	startTime time.Time
	pumpDone  chan struct{}
	closeOnce sync.Once
}

// New constructs a Bridge over eng and starts the event pump. Callers must
// Close it to stop the pump; the engine itself stays owned by the caller.
func New(eng engine.Engine, cfg Config) *Bridge {
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	b := &Bridge{
		cfg:       cfg,
		eng:       eng,
		log:       logger,
		registry:  NewHandleRegistry(eng, cfg.maxQueueDepth()),
		alloc:     NewRequestIDAllocator(),
		router:    NewEventRouter(),
		publisher: noopPublisher{},
		byModel:   make(map[string]string),
		loading:   make(map[string]*modelLoad),
		startTime: time.Now(),
		pumpDone:  make(chan struct{}),
	}
	go b.pump()
	return b
}

// SetEventPublisher installs a lifecycle event sink. Not safe to swap while
// generations are in flight.
func (b *Bridge) SetEventPublisher(p EventPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	b.publisher = p
}

// pump forwards the engine's broadcast feed into the router, serialized:
// events are dispatched in native emission order, so per-request FIFO holds
// end to end. Log events are consumed here.
func (b *Bridge) pump() {
	defer close(b.pumpDone)
	for ev := range b.eng.Events() {
		if ev.Kind == engine.KindLog {
			b.log.Debug().Int32("handle", int32(ev.Handle)).Msg(ev.Text)
		}
		b.router.Dispatch(ev)
	}
}

// OpenSession loads the model and returns a fresh session id bound to its
// native handle.
func (b *Bridge) OpenSession(ctx context.Context, modelID string) (string, error) {
	mdl, ok := b.modelByID(modelID)
	if !ok {
		return "", ErrNotFound(modelID)
	}
	id, err := b.registry.Acquire(ctx, mdl.ID, b.cfg.modelConfig(mdl))
	if err != nil {
		b.setLastError(err)
		return "", err
	}
	b.publisher.Publish(Event{Name: "session_open", SessionID: id, ModelID: mdl.ID})
	b.log.Info().Str("session", id).Str("model", mdl.ID).Msg("session opened")
	return id, nil
}

// CloseSession releases the session's native model. The session id is dead
// afterwards; any further generate or attach call on it fails NotFound.
func (b *Bridge) CloseSession(id string) error {
	b.mu.Lock()
	for model, sid := range b.byModel {
		if sid == id {
			delete(b.byModel, model)
		}
	}
	b.mu.Unlock()
	if err := b.registry.Release(id); err != nil {
		return err
	}
	b.publisher.Publish(Event{Name: "session_close", SessionID: id})
	return nil
}

// modelLoad marks a model whose first session is being opened. Concurrent
// callers for the same model wait on done instead of loading again.
type modelLoad struct {
	done chan struct{}
	id   string
	err  error
}

// EnsureSession returns the open session for modelID, opening one on first
// use. Empty modelID falls back to the configured default. Exactly one
// native load runs per model: concurrent first requests for the same model
// share the loader's outcome.
func (b *Bridge) EnsureSession(ctx context.Context, modelID string) (string, error) {
	if modelID == "" {
		modelID = b.cfg.DefaultModel
		if modelID == "" {
			return "", ErrNotFound("(unspecified)")
		}
	}
	for {
		b.mu.Lock()
		if id, ok := b.byModel[modelID]; ok {
			b.mu.Unlock()
			if _, err := b.registry.Resolve(id); err == nil {
				return id, nil
			}
			// The cached session was released underneath us; drop the
			// stale mapping and retry.
			b.mu.Lock()
			if b.byModel[modelID] == id {
				delete(b.byModel, modelID)
			}
			b.mu.Unlock()
			continue
		}
		if ld, ok := b.loading[modelID]; ok {
			b.mu.Unlock()
			select {
			case <-ld.done:
			case <-ctx.Done():
				return "", ctx.Err()
			}
			if ld.err != nil {
				return "", ld.err
			}
			return ld.id, nil
		}
		ld := &modelLoad{done: make(chan struct{})}
		b.loading[modelID] = ld
		b.mu.Unlock()

		id, err := b.OpenSession(ctx, modelID)
		b.mu.Lock()
		delete(b.loading, modelID)
		if err == nil {
			b.byModel[modelID] = id
		}
		b.mu.Unlock()
		ld.id, ld.err = id, err
		close(ld.done)
		return id, err
	}
}

// Chat resolves the model's session (opening it on first use) and runs the
// blocking generation path.
func (b *Bridge) Chat(ctx context.Context, req types.ChatRequest) (types.GenerateResult, error) {
	if ctx.Err() != nil {
		return types.GenerateResult{}, ErrAlreadyAborted()
	}
	id, err := b.EnsureSession(ctx, req.Model)
	if err != nil {
		return types.GenerateResult{}, err
	}
	b.genTotal.Add(1)
	res, err := b.ChatSession(ctx, id, req.Messages)
	if err != nil && IsAborted(err) {
		b.abortTotal.Add(1)
	}
	return res, err
}

// ChatStream resolves the model's session and starts a streaming
// generation.
func (b *Bridge) ChatStream(ctx context.Context, req types.ChatRequest) (*Stream, error) {
	if ctx.Err() != nil {
		return nil, ErrAlreadyAborted()
	}
	id, err := b.EnsureSession(ctx, req.Model)
	if err != nil {
		return nil, err
	}
	b.genTotal.Add(1)
	return b.ChatStreamSession(ctx, id, req.Messages)
}

// ChatStructured resolves the model's session and runs the structured
// validator/retry loop.
func (b *Bridge) ChatStructured(ctx context.Context, req types.StructuredRequest) (types.StructuredResult, error) {
	if ctx.Err() != nil {
		return types.StructuredResult{}, ErrAlreadyAborted()
	}
	id, err := b.EnsureSession(ctx, req.Model)
	if err != nil {
		return types.StructuredResult{}, err
	}
	schemaJSON, err := marshalSchema(req.Schema)
	if err != nil {
		return types.StructuredResult{}, err
	}
	b.genTotal.Add(1)
	return b.GenerateStructured(ctx, id, req.Messages, schemaJSON, StructuredOptions{
		MaxRetries:           req.MaxRetries,
		SystemPromptTemplate: req.SystemPromptTemplate,
	})
}

// ListModels returns a copy of the model catalog.
func (b *Bridge) ListModels() []types.Model {
	out := make([]types.Model, len(b.cfg.Catalog))
	copy(out, b.cfg.Catalog)
	return out
}

// Ready reports whether the bridge can serve: the engine is reachable and
// the pump is alive.
func (b *Bridge) Ready() bool {
	select {
	case <-b.pumpDone:
		return false
	default:
		return true
	}
}

func (b *Bridge) modelByID(id string) (types.Model, bool) {
	for _, mdl := range b.cfg.Catalog {
		if mdl.ID == id {
			return mdl, true
		}
	}
	return types.Model{}, false
}

func (b *Bridge) setLastError(err error) {
	if err == nil {
		return
	}
	b.mu.Lock()
	b.lastErr = err.Error()
	b.mu.Unlock()
}

// Close releases every live session and stops the event pump by closing
// the engine. Idempotent.
func (b *Bridge) Close() error {
	var err error
	b.closeOnce.Do(func() {
		err = b.registry.releaseAll()
		if cerr := b.eng.Close(); cerr != nil && err == nil {
			err = cerr
		}
		<-b.pumpDone
	})
	return err
}
