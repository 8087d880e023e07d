package bridge

// Event represents a bridge lifecycle event.
// Minimal and stable: name + session/model ids and optional fields.
type Event struct {
	Name      string
	SessionID string
	ModelID   string
	Fields    map[string]any
}

// EventPublisher receives events from the bridge. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
