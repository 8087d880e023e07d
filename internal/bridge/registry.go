package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"litertd/internal/engine"
)

// sessionEntry is the registry's view of one live engine session.
type sessionEntry struct {
	id      string
	modelID string
	handle  engine.Handle
	cfg     engine.ModelConfig

	// Admission primitives: single in-flight generation per handle plus a
	// bounded wait queue (the engine does not support concurrent
	// generations on one handle).
	genCh   chan struct{} // size 1
	queueCh chan struct{} // buffered: queue slots

	mu          sync.Mutex
	lastUsed    time.Time
	inflightReq int32 // request id of the active generation, 0 when idle
}

func (s *sessionEntry) touch(requestID int32) {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.inflightReq = requestID
	s.mu.Unlock()
}

// HandleRegistry maps caller-facing session ids to native model handles and
// owns their release lifecycle: exactly one native create per id, at most
// one native release.
type HandleRegistry struct {
	mu       sync.Mutex
	eng      engine.Engine
	sessions map[string]*sessionEntry
	released map[string]struct{}

	queueDepth int
}

// NewHandleRegistry returns an empty registry backed by eng.
func NewHandleRegistry(eng engine.Engine, queueDepth int) *HandleRegistry {
	if queueDepth <= 0 {
		queueDepth = defaultMaxQueueDepth
	}
	return &HandleRegistry{
		eng:        eng,
		sessions:   make(map[string]*sessionEntry),
		released:   make(map[string]struct{}),
		queueDepth: queueDepth,
	}
}

// Acquire creates a native model and stores its handle under a fresh
// session id.
func (r *HandleRegistry) Acquire(ctx context.Context, modelID string, cfg engine.ModelConfig) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	h, err := r.eng.CreateModel(cfg)
	if err != nil {
		return "", ErrEngine(err.Error())
	}
	entry := &sessionEntry{
		id:       uuid.NewString(),
		modelID:  modelID,
		handle:   h,
		cfg:      cfg,
		genCh:    make(chan struct{}, 1),
		queueCh:  make(chan struct{}, r.queueDepth),
		lastUsed: time.Now(),
	}
	r.mu.Lock()
	r.sessions[entry.id] = entry
	r.mu.Unlock()
	return entry.id, nil
}

// Release frees the native model behind id. A second release of the same id
// returns AlreadyReleased; unknown ids return NotFound.
func (r *HandleRegistry) Release(id string) error {
	r.mu.Lock()
	entry, ok := r.sessions[id]
	if !ok {
		_, was := r.released[id]
		r.mu.Unlock()
		if was {
			return ErrAlreadyReleased(id)
		}
		return ErrNotFound(id)
	}
	delete(r.sessions, id)
	r.released[id] = struct{}{}
	r.mu.Unlock()
	if err := r.eng.ReleaseModel(entry.handle); err != nil {
		return ErrEngine(err.Error())
	}
	return nil
}

// Resolve returns the native handle for id, or NotFound if the id is
// unknown or was already released.
func (r *HandleRegistry) Resolve(id string) (engine.Handle, error) {
	entry, err := r.entry(id)
	if err != nil {
		return 0, err
	}
	return entry.handle, nil
}

func (r *HandleRegistry) entry(id string) (*sessionEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound(id)
	}
	return entry, nil
}

// snapshot returns a copy of the live entries for status reporting.
func (r *HandleRegistry) snapshot() []*sessionEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*sessionEntry, 0, len(r.sessions))
	for _, e := range r.sessions {
		out = append(out, e)
	}
	return out
}

// releaseAll frees every live session, returning the last release error.
func (r *HandleRegistry) releaseAll() error {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	var last error
	for _, id := range ids {
		if err := r.Release(id); err != nil {
			last = err
		}
	}
	return last
}
