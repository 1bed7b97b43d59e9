// Package signal provides a latest-value broadcast primitive.
//
// A Signal stores the most recent value and a list of subscribers. New
// subscribers immediately receive the stored value (if any), then every
// subsequent publication, in publication order.
package signal

import "sync"

// Signal is safe for concurrent use. Subscriber callbacks run synchronously
// inside Publish and must not publish to the same Signal.
type Signal[T any] struct {
	deliver sync.Mutex // serializes delivery so all subscribers see one order

	mu     sync.Mutex
	value  T
	has    bool
	nextID int
	subs   map[int]func(T)
}

// New creates a Signal holding initial.
func New[T any](initial T) *Signal[T] {
	s := NewEmpty[T]()
	s.value = initial
	s.has = true
	return s
}

// NewEmpty creates a Signal with no value; subscribers get nothing until the
// first Publish.
func NewEmpty[T any]() *Signal[T] {
	return &Signal[T]{subs: make(map[int]func(T))}
}

// Publish replaces the stored value and delivers it to every subscriber.
func (s *Signal[T]) Publish(v T) {
	s.deliver.Lock()
	defer s.deliver.Unlock()

	s.mu.Lock()
	s.value = v
	s.has = true
	subs := make([]func(T), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(v)
	}
}

// Value returns the stored value and whether one has been published.
func (s *Signal[T]) Value() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.has
}

// Subscribe registers fn and replays the stored value to it. The returned
// function removes the subscription; calling it more than once is harmless.
func (s *Signal[T]) Subscribe(fn func(T)) (cancel func()) {
	s.deliver.Lock()
	defer s.deliver.Unlock()

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	v, has := s.value, s.has
	s.mu.Unlock()

	if has {
		fn(v)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (s *Signal[T]) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
