package vm

import "fmt"

// ---------------------------------------------------------------------------
// Stack: growable LIFO container used for the heap, frame roots and the
// collector's gray worklist
// ---------------------------------------------------------------------------

// Stack is an amortised-growth sequence of handles. The zero value of T is
// the empty sentinel: popped slots are reset to it and RemoveZeros drops it.
//
// Capacity doubles when a push finds the stack full. A Stack may carry a
// limit on how far it is allowed to grow; reaching it is reported as
// ErrAllocation and leaves the stack exactly as it was.
type Stack[T comparable] struct {
	data  []T // len(data) is the capacity
	count int
	limit int // 0 means unbounded
}

type stackOptions struct {
	limit int
}

// StackOption configures a Stack at construction.
type StackOption func(*stackOptions)

// WithLimit bounds the capacity a Stack may ever reach. Zero or a negative
// value removes the bound.
func WithLimit(n int) StackOption {
	return func(o *stackOptions) {
		if n < 0 {
			n = 0
		}
		o.limit = n
	}
}

// NewStack creates an empty stack able to hold capacity handles without
// reallocating.
func NewStack[T comparable](capacity int, opts ...StackOption) (*Stack[T], error) {
	var o stackOptions
	for _, opt := range opts {
		opt(&o)
	}
	if capacity < 0 {
		return nil, fmt.Errorf("stack capacity %d: %w", capacity, ErrAllocation)
	}
	if o.limit > 0 && capacity > o.limit {
		return nil, fmt.Errorf("stack capacity %d exceeds limit %d: %w", capacity, o.limit, ErrAllocation)
	}
	return &Stack[T]{
		data:  make([]T, capacity),
		limit: o.limit,
	}, nil
}

// Len returns the number of handles on the stack.
func (s *Stack[T]) Len() int { return s.count }

// Cap returns the number of handles the stack holds before it must grow.
func (s *Stack[T]) Cap() int { return len(s.data) }

// Limit returns the growth bound, or 0 when unbounded.
func (s *Stack[T]) Limit() int { return s.limit }

// grow allocates a doubled backing array and commits it only once the copy
// has succeeded.
func (s *Stack[T]) grow() error {
	capacity := len(s.data) * 2
	if capacity == 0 {
		capacity = 1
	}
	if s.limit > 0 && capacity > s.limit {
		if len(s.data) >= s.limit {
			return fmt.Errorf("stack limit %d reached: %w", s.limit, ErrAllocation)
		}
		capacity = s.limit
	}

	next := make([]T, capacity)
	copy(next, s.data[:s.count])
	s.data = next
	return nil
}

// Push appends v at the top of the stack, doubling capacity first when the
// stack is full.
func (s *Stack[T]) Push(v T) error {
	if s.count == len(s.data) {
		if err := s.grow(); err != nil {
			return err
		}
	}
	s.data[s.count] = v
	s.count++
	return nil
}

// Pop removes and returns the top handle.
func (s *Stack[T]) Pop() (T, error) {
	var zero T
	if s.count == 0 {
		return zero, ErrEmptyStack
	}
	s.count--
	v := s.data[s.count]
	s.data[s.count] = zero
	return v, nil
}

// Peek returns the top handle without removing it.
func (s *Stack[T]) Peek() (T, error) {
	if s.count == 0 {
		var zero T
		return zero, ErrEmptyStack
	}
	return s.data[s.count-1], nil
}

// At returns the handle at position i, counting from the bottom.
func (s *Stack[T]) At(i int) (T, error) {
	if i < 0 || i >= s.count {
		var zero T
		return zero, fmt.Errorf("stack index %d of %d: %w", i, s.count, ErrOutOfBounds)
	}
	return s.data[i], nil
}

// Set overwrites the handle at position i. Storing the zero value marks the
// slot for removal by RemoveZeros.
func (s *Stack[T]) Set(i int, v T) error {
	if i < 0 || i >= s.count {
		return fmt.Errorf("stack index %d of %d: %w", i, s.count, ErrOutOfBounds)
	}
	s.data[i] = v
	return nil
}

// Each calls fn for every handle from bottom to top until fn returns false.
func (s *Stack[T]) Each(fn func(i int, v T) bool) {
	for i := 0; i < s.count; i++ {
		if !fn(i, s.data[i]) {
			return
		}
	}
}

// Slice returns a copy of the live handles, bottom first.
func (s *Stack[T]) Slice() []T {
	out := make([]T, s.count)
	copy(out, s.data[:s.count])
	return out
}

// RemoveZeros compacts the stack in place, keeping the non-zero handles in
// their original order. Slots past the new count are cleared.
func (s *Stack[T]) RemoveZeros() {
	var zero T
	n := 0
	for i := 0; i < s.count; i++ {
		if s.data[i] != zero {
			s.data[n] = s.data[i]
			n++
		}
	}
	s.count = n
	for i := n; i < len(s.data); i++ {
		s.data[i] = zero
	}
}

// Reset empties the stack, keeping its capacity.
func (s *Stack[T]) Reset() {
	clear(s.data)
	s.count = 0
}
