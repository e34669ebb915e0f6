package event

// Topic is a named event whose payload has type T. It gives typed
// Subscribe and Publish on top of a Bus, so each event name carries a
// single payload type.
type Topic[T any] struct {
	name string
}

// NewTopic declares a topic
func NewTopic[T any](name string) Topic[T] {
	return Topic[T]{name: name}
}

// Name returns the event name
func (t Topic[T]) Name() string {
	return t.name
}

// Subscribe registers fn on b. Payloads of another type published under
// the same name are skipped.
func (t Topic[T]) Subscribe(b *Bus, fn func(T)) ID {
	return b.Subscribe(t.name, func(payload any) {
		if v, ok := payload.(T); ok {
			fn(v)
		}
	})
}

// Publish delivers v to the topic's handlers
func (t Topic[T]) Publish(b *Bus, v T) {
	b.Publish(t.name, v)
}

// Unsubscribe removes a subscription made through this topic
func (t Topic[T]) Unsubscribe(b *Bus, id ID) {
	b.Unsubscribe(t.name, id)
}

// Clear removes every handler of this topic
func (t Topic[T]) Clear(b *Bus) {
	b.Clear(t.name)
}
