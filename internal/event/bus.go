// Package event is an in-process publish/subscribe registry keyed by event name.
//
// Handlers run synchronously on the publishing goroutine, in the order they
// were subscribed. The bus does not recover panics: a panicking handler
// aborts delivery to the handlers after it for that publish.
package event

import "sync"

// Handler receives the payload of a published event.
type Handler func(payload any)

// ID identifies one subscription. IDs are unique per Bus.
type ID uint64

type entry struct {
	id      ID
	handler Handler
}

// Bus is the event registry. The zero value is not usable; use NewBus.
// A Bus is safe for concurrent use.
type Bus struct {
	mu       sync.Mutex
	handlers map[string][]entry
	nextID   ID
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]entry)}
}

// Subscribe appends h to the handler list for name.
func (b *Bus) Subscribe(name string, h Handler) ID {
	if h == nil {
		panic("event: nil handler")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[name] = append(b.handlers[name], entry{id: id, handler: h})
	return id
}

// Publish calls every handler registered for name at the time of the call.
// Publishing to a name with no handlers is a no-op.
func (b *Bus) Publish(name string, payload any) {
	b.mu.Lock()
	list := b.handlers[name]
	snapshot := make([]Handler, len(list))
	for i, e := range list {
		snapshot[i] = e.handler
	}
	b.mu.Unlock()

	for _, h := range snapshot {
		h(payload)
	}
}

// Unsubscribe removes the subscription id from name. Unknown ids are ignored.
func (b *Bus) Unsubscribe(name string, id ID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.handlers[name]
	for i, e := range list {
		if e.id == id {
			// copy so that in-flight snapshots keep their view
			next := make([]entry, 0, len(list)-1)
			next = append(next, list[:i]...)
			b.handlers[name] = append(next, list[i+1:]...)
			return
		}
	}
}

// Clear removes every handler for name
func (b *Bus) Clear(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, name)
}

// Count returns the number of handlers subscribed to name
func (b *Bus) Count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[name])
}
