package recognition

import (
	"sync"

	"github.com/google/uuid"
)

// Subscription removes a single registered handler. Unsubscribe is safe to
// call more than once.
type Subscription interface {
	Unsubscribe()
}

// Hook is an ordered, concurrency-safe list of handlers for one event kind.
// The zero value is ready to use. Recognizer implementations embed one Hook
// per event kind and Invoke it from whatever goroutine produces the event.
type Hook[T any] struct {
	mu       sync.RWMutex
	handlers []hookHandler[T]
}

type hookHandler[T any] struct {
	id      uuid.UUID
	handler func(T)
}

// Add registers handler and returns the subscription that removes it. A nil
// handler is ignored.
func (h *Hook[T]) Add(handler func(T)) Subscription {
	if handler == nil {
		return noopSubscription{}
	}

	id := uuid.New()
	h.mu.Lock()
	h.handlers = append(h.handlers, hookHandler[T]{id: id, handler: handler})
	h.mu.Unlock()

	return &hookSubscription{remove: func() { h.remove(id) }}
}

// Invoke calls every registered handler in registration order. Handlers are
// called without holding the hook lock, so they may subscribe or
// unsubscribe freely.
func (h *Hook[T]) Invoke(value T) {
	h.mu.RLock()
	handlers := make([]func(T), 0, len(h.handlers))
	for _, registered := range h.handlers {
		handlers = append(handlers, registered.handler)
	}
	h.mu.RUnlock()

	for _, handler := range handlers {
		handler(value)
	}
}

// Len reports the number of registered handlers.
func (h *Hook[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.handlers)
}

func (h *Hook[T]) remove(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, registered := range h.handlers {
		if registered.id == id {
			h.handlers = append(h.handlers[:i], h.handlers[i+1:]...)
			return
		}
	}
}

type hookSubscription struct {
	once   sync.Once
	remove func()
}

func (s *hookSubscription) Unsubscribe() {
	s.once.Do(s.remove)
}

type noopSubscription struct{}

func (noopSubscription) Unsubscribe() {}

// Hooks implements the subscription half of Recognizer. Implementations
// embed it and Invoke the matching hook as events arrive.
type Hooks struct {
	Recognizing Hook[Result]
	Recognized  Hook[Result]
	Finished    Hook[SessionEnd]
	Faulted     Hook[SessionEnd]
}

func (h *Hooks) OnRecognizing(handler func(Result)) Subscription {
	return h.Recognizing.Add(handler)
}

func (h *Hooks) OnRecognized(handler func(Result)) Subscription {
	return h.Recognized.Add(handler)
}

func (h *Hooks) OnFinished(handler func(SessionEnd)) Subscription {
	return h.Finished.Add(handler)
}

func (h *Hooks) OnFaulted(handler func(SessionEnd)) Subscription {
	return h.Faulted.Add(handler)
}

// Subscribers reports the total number of registered handlers across all
// four event kinds.
func (h *Hooks) Subscribers() int {
	return h.Recognizing.Len() + h.Recognized.Len() + h.Finished.Len() + h.Faulted.Len()
}
