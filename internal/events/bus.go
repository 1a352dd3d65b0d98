// Package events carries cross-component session signals: auth state
// changes, expiry and pre-expiry warnings. The bus is typed and
// framework-free so any component can subscribe.
package events

import "sync"

// Type identifies an event on the bus
type Type string

const (
	AuthStateChanged Type = "authStateChanged"
	SessionExpired   Type = "sessionExpired"
	SessionWarning   Type = "sessionWarning"
)

// Event is a bus message. ClientID scopes the event to one client;
// RemainingMinutes is set only on SessionWarning.
type Event struct {
	Type             Type
	ClientID         string
	Authenticated    bool
	Reason           string
	RemainingMinutes int
}

// Handler receives published events
type Handler func(Event)

// Bus is a synchronous publish/subscribe hub. Handlers run on the
// publishing goroutine; they must not block.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type]map[int]Handler
	nextID   int
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{handlers: make(map[Type]map[int]Handler)}
}

// Subscribe registers a handler for one event type and returns a cancel
// function
func (b *Bus) Subscribe(t Type, h Handler) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[t] == nil {
		b.handlers[t] = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.handlers[t][id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[t], id)
	}
}

// Publish delivers the event to all handlers subscribed to its type
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	fns := make([]Handler, 0, len(b.handlers[e.Type]))
	for _, h := range b.handlers[e.Type] {
		fns = append(fns, h)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(e)
	}
}
