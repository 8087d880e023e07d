package bridge

import (
	"context"
	"io"
	"strings"
	"sync"

	"litertd/internal/engine"
	"litertd/pkg/types"
)

// sessionState is the per-generation lifecycle. Terminal states are
// one-shot: a new generation always creates a new generation value with a
// fresh request id.
type sessionState int

const (
	stateIdle sessionState = iota
	stateGenerating
	stateCompleted
	stateErrored
	stateAborted
)

func (s sessionState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateGenerating:
		return "generating"
	case stateCompleted:
		return "completed"
	case stateErrored:
		return "errored"
	case stateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// generation mediates between the event router and the caller-facing
// stream for one async request. Fragments are buffered in an unbounded
// queue as partial events arrive and drained pull-style by the consumer,
// decoupling event-arrival speed from read speed.
type generation struct {
	handle    engine.Handle
	requestID int32

	router *EventRouter
	eng    engine.Engine

	mu      sync.Mutex
	state   sessionState
	queue   []string
	acc     strings.Builder
	termErr error
	subs    []Subscription

	notify chan struct{} // cap 1: queue became non-empty
	done   chan struct{} // closed on terminal transition

	release     func()
	releaseOnce sync.Once
}

// startGeneration subscribes, admits, and issues the native async call for
// one request on the session. A context that is already canceled fails with
// AlreadyAborted before any native call is made.
func (b *Bridge) startGeneration(ctx context.Context, entry *sessionEntry, prompt string) (*generation, error) {
	if ctx.Err() != nil {
		return nil, ErrAlreadyAborted()
	}
	release, err := b.beginGeneration(ctx, entry)
	if err != nil {
		if canceled(err) {
			return nil, ErrAlreadyAborted()
		}
		return nil, err
	}
	requestID := b.alloc.Next()
	entry.touch(requestID)

	g := &generation{
		handle:    entry.handle,
		requestID: requestID,
		router:    b.router,
		eng:       b.eng,
		state:     stateGenerating,
		notify:    make(chan struct{}, 1),
		done:      make(chan struct{}),
		release:   release,
	}
	// One subscription set per (handle, requestID); every exit path below
	// removes it, or a request wrapping into a stale id would cross-talk
	// with this listener.
	g.subs = []Subscription{
		b.router.Subscribe(engine.KindPartial, g.handle, requestID, g.onPartial),
		b.router.Subscribe(engine.KindError, g.handle, requestID, g.onError),
		b.router.Subscribe(engine.KindComplete, g.handle, requestID, g.onComplete),
	}

	b.publisher.Publish(Event{Name: "generate_start", SessionID: entry.id, ModelID: entry.modelID,
		Fields: map[string]any{"request_id": requestID}})
	generationsStarted.Inc()

	go func() {
		// The native call runs detached from the caller context; abort is
		// delivered through StopGeneration, mirroring the native surface.
		if err := b.eng.GenerateResponseAsync(context.Background(), g.handle, requestID, prompt); err != nil {
			g.terminal(stateErrored, ErrEngine(err.Error()))
		}
		// On nil the terminal arrives in-band as KindComplete/KindError.
	}()
	go func() {
		select {
		case <-ctx.Done():
			g.abort()
		case <-g.done:
		}
	}()
	return g, nil
}

func (g *generation) onPartial(ev engine.Event) {
	g.mu.Lock()
	if g.state != stateGenerating {
		g.mu.Unlock()
		return
	}
	g.queue = append(g.queue, ev.Text)
	g.acc.WriteString(ev.Text)
	g.mu.Unlock()
	fragmentsTotal.Inc()
	g.signal()
}

func (g *generation) onError(ev engine.Event) {
	g.terminal(stateErrored, ErrEngine(ev.Text))
}

func (g *generation) onComplete(engine.Event) {
	g.terminal(stateCompleted, nil)
}

// terminal performs the one-shot transition out of Generating: listeners
// removed, admission slot released, waiters woken. Later calls are no-ops,
// so a racing error event and async rejection cannot double-fire.
func (g *generation) terminal(st sessionState, err error) {
	g.mu.Lock()
	if g.state != stateGenerating {
		g.mu.Unlock()
		return
	}
	g.state = st
	g.termErr = err
	subs := g.subs
	g.subs = nil
	g.mu.Unlock()
	for _, s := range subs {
		g.router.Unsubscribe(s)
	}
	g.releaseOnce.Do(g.release)
	close(g.done)
	g.signal()
}

// abort is the caller-cancellation path: listeners are removed
// synchronously so no further events reach the consumer, then native
// cancellation is requested best-effort. Only the generation that owns the
// in-flight request may call stop, since stop cancels whatever is active on
// the handle. Fragments already queued stay queued; the consumer drains
// them before observing the Aborted terminal.
func (g *generation) abort() {
	g.mu.Lock()
	if g.state != stateGenerating {
		g.mu.Unlock()
		return
	}
	g.state = stateAborted
	g.termErr = ErrAborted()
	subs := g.subs
	g.subs = nil
	g.mu.Unlock()
	for _, s := range subs {
		g.router.Unsubscribe(s)
	}
	_ = g.eng.StopGeneration(g.handle)
	g.releaseOnce.Do(g.release)
	abortsTotal.Inc()
	close(g.done)
	g.signal()
}

func (g *generation) signal() {
	select {
	case g.notify <- struct{}{}:
	default:
	}
}

// next returns the next queued fragment, blocking while the queue is empty
// and the generation is live. Queued fragments always drain before the
// terminal is surfaced: io.EOF after Completed, the engine error after
// Errored, Aborted after an abort. Already-delivered partial text is never
// silently discarded.
func (g *generation) next(ctx context.Context) (string, error) {
	for {
		g.mu.Lock()
		if len(g.queue) > 0 {
			frag := g.queue[0]
			g.queue = g.queue[1:]
			g.mu.Unlock()
			return frag, nil
		}
		st, termErr := g.state, g.termErr
		g.mu.Unlock()
		switch st {
		case stateCompleted:
			return "", io.EOF
		case stateErrored:
			return "", termErr
		case stateAborted:
			return "", termErr
		}
		select {
		case <-g.notify:
		case <-g.done:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// wait blocks until the terminal transition and reports the accumulated
// text, the finish reason, and the terminal error (nil for Completed).
func (g *generation) wait(ctx context.Context) (string, string, error) {
	select {
	case <-g.done:
	case <-ctx.Done():
		return "", "", ctx.Err()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	switch g.state {
	case stateCompleted:
		return g.acc.String(), types.FinishStop, nil
	case stateErrored:
		return g.acc.String(), types.FinishError, g.termErr
	default:
		return g.acc.String(), types.FinishAborted, g.termErr
	}
}
