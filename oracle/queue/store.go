// Package queue holds the in-memory pending observations and the record of
// observations the signer accepted. Nothing here is persisted.
package queue

import (
	"fmt"
	mathbits "math/bits"
	"sync"

	errorsmod "cosmossdk.io/errors"
	"github.com/ef-ds/deque"

	"github.com/GPTx-global/rofl-oracle/oracle/types"
)

// LengthObserver is called with the pending length after every change.
// It runs under the store lock and must not block or call back into the store.
type LengthObserver func(pending int)

// ConstructorOption configures a Store.
type ConstructorOption func(*Store) error

// WithCapacity bounds the number of pending observations accepted by Enqueue.
func WithCapacity(capacity int) ConstructorOption {
	return func(s *Store) error {
		if capacity < 1 {
			return fmt.Errorf("capacity for pending queue must be positive")
		}
		s.capacity = capacity
		return nil
	}
}

// WithLengthObserver installs a callback for pending length changes.
func WithLengthObserver(callback LengthObserver) ConstructorOption {
	return func(s *Store) error {
		if callback == nil {
			return fmt.Errorf("nil is not a valid LengthObserver")
		}
		s.lengthObserver = callback
		return nil
	}
}

// Store is the single owner of the pending queue and the historical record.
// All methods are atomic with respect to each other.
type Store struct {
	mu             sync.Mutex
	pending        deque.Deque
	history        []types.Value
	capacity       int
	lengthObserver LengthObserver
}

func NewStore(options ...ConstructorOption) (*Store, error) {
	s := &Store{
		capacity:       1<<(mathbits.UintSize-1) - 1,
		lengthObserver: func(int) {},
	}
	for _, opt := range options {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("failed to apply constructor option to pending queue: %w", err)
		}
	}
	return s, nil
}

// Enqueue appends value to the tail and returns the new pending length.
// It fails with types.ErrQueueFull when the store is at capacity.
func (s *Store) Enqueue(value types.Value) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending.Len() >= s.capacity {
		return s.pending.Len(), errorsmod.Wrapf(types.ErrQueueFull, "capacity %d reached", s.capacity)
	}

	s.pending.PushBack(value)
	return s.changed(), nil
}

// DequeueHead removes and returns the oldest pending value.
func (s *Store) DequeueHead() (types.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	head, ok := s.pending.PopFront()
	if !ok {
		return types.Value{}, false
	}

	s.changed()
	return head.(types.Value), true
}

// RequeueFront puts a value back at the head after a failed submission. It
// ignores the capacity bound so an in-flight value is never dropped.
func (s *Store) RequeueFront(value types.Value) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending.PushFront(value)
	return s.changed()
}

// PopTail removes and returns the most recently enqueued pending value.
func (s *Store) PopTail() (types.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tail, ok := s.pending.PopBack()
	if !ok {
		return types.Value{}, false
	}

	s.changed()
	return tail.(types.Value), true
}

// RecordSuccess appends a submitted value to the historical record.
func (s *Store) RecordSuccess(value types.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, value)
}

// LastHistorical returns the most recently submitted value.
func (s *Store) LastHistorical() (types.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.history) == 0 {
		return types.Value{}, false
	}
	return s.history[len(s.history)-1], true
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pending.Len()
}

func (s *Store) IsEmpty() bool {
	return s.Len() == 0
}

func (s *Store) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.history)
}

func (s *Store) Capacity() int {
	return s.capacity
}

// Pending returns a head-first copy of the pending values.
func (s *Store) Pending() []types.Value {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.pending.Len()
	out := make([]types.Value, 0, n)
	// rotate once through the deque; order is restored when the loop ends
	for i := 0; i < n; i++ {
		v, _ := s.pending.PopFront()
		out = append(out, v.(types.Value))
		s.pending.PushBack(v)
	}
	return out
}

// History returns a copy of the historical record, oldest first.
func (s *Store) History() []types.Value {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.Value, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Store) changed() int {
	n := s.pending.Len()
	s.lengthObserver(n)
	return n
}
