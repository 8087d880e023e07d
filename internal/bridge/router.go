package bridge

import (
	"sync"

	"litertd/internal/engine"
)

// Subscription identifies one registered listener. The zero value is never
// issued.
type Subscription int64

// EventRouter demultiplexes the engine's broadcast event feed to
// per-request listeners. The (handle, requestID) filter is enforced here,
// at subscribe time, so a listener can never observe another request's
// events. Dispatch for a single router is serialized: events are delivered
// to matching listeners in arrival order.
type EventRouter struct {
	mu     sync.Mutex
	nextID Subscription
	subs   map[Subscription]*subscription
}

type subscription struct {
	id        Subscription
	kind      engine.EventKind
	handle    engine.Handle
	requestID int32
	fn        func(engine.Event)
}

// NewEventRouter returns an empty router.
func NewEventRouter() *EventRouter {
	return &EventRouter{subs: make(map[Subscription]*subscription)}
}

// Subscribe registers fn for events of the given kind matching (handle,
// requestID). For KindLog, handle and requestID of zero match any event.
func (r *EventRouter) Subscribe(kind engine.EventKind, handle engine.Handle, requestID int32, fn func(engine.Event)) Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.subs[id] = &subscription{id: id, kind: kind, handle: handle, requestID: requestID, fn: fn}
	return id
}

// Unsubscribe removes a listener. Removing an already-removed or unknown
// subscription is a no-op. Safe to call from inside a dispatched callback.
func (r *EventRouter) Unsubscribe(id Subscription) {
	r.mu.Lock()
	delete(r.subs, id)
	r.mu.Unlock()
}

// Len reports the number of registered listeners.
func (r *EventRouter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Dispatch fans ev out to every matching listener. Listeners are invoked
// outside the router lock over a snapshot of the subscription table, so a
// callback may unsubscribe itself (or others) without deadlocking. An event
// with no matching listener is dropped silently: generation is serialized
// per handle, so an unmatched event can only be late.
func (r *EventRouter) Dispatch(ev engine.Event) {
	r.mu.Lock()
	var matched []*subscription
	for _, s := range r.subs {
		if s.kind != ev.Kind {
			continue
		}
		if s.kind != engine.KindLog {
			if s.handle != ev.Handle || s.requestID != ev.RequestID {
				continue
			}
		} else if s.handle != 0 && s.handle != ev.Handle {
			continue
		}
		matched = append(matched, s)
	}
	r.mu.Unlock()
	for _, s := range matched {
		// A listener may have been removed between snapshot and invoke;
		// deliver only if it is still registered.
		r.mu.Lock()
		_, alive := r.subs[s.id]
		r.mu.Unlock()
		if alive {
			s.fn(ev)
		}
	}
}
