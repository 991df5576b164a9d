package history

// Stack is a LIFO stack with fixed capacity backed by a ring buffer.
// Pushing onto a full stack overwrites the oldest entry.
type Stack[T any] struct {
	items []T
	head  int // index of the oldest entry
	size  int
}

// NewStack creates a stack holding at most capacity entries.
// A capacity below one is raised to one.
func NewStack[T any](capacity int) *Stack[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Stack[T]{items: make([]T, capacity)}
}

// Push adds v on top and reports whether the oldest entry was evicted.
func (s *Stack[T]) Push(v T) bool {
	if s.size == len(s.items) {
		s.items[s.head] = v
		s.head = (s.head + 1) % len(s.items)
		return true
	}
	s.items[(s.head+s.size)%len(s.items)] = v
	s.size++
	return false
}

// Pop removes and returns the top entry.
func (s *Stack[T]) Pop() (T, bool) {
	var zero T
	if s.size == 0 {
		return zero, false
	}
	i := (s.head + s.size - 1) % len(s.items)
	v := s.items[i]
	s.items[i] = zero
	s.size--
	return v, true
}

// Peek returns the top entry without removing it.
func (s *Stack[T]) Peek() (T, bool) {
	if s.size == 0 {
		var zero T
		return zero, false
	}
	return s.items[(s.head+s.size-1)%len(s.items)], true
}

func (s *Stack[T]) Len() int { return s.size }

func (s *Stack[T]) Cap() int { return len(s.items) }

// Clear empties the stack.
func (s *Stack[T]) Clear() {
	clear(s.items)
	s.head, s.size = 0, 0
}

// Items returns a copy of the entries, oldest first.
func (s *Stack[T]) Items() []T {
	out := make([]T, s.size)
	for i := range out {
		out[i] = s.items[(s.head+i)%len(s.items)]
	}
	return out
}
