package history

import "fmt"

// DefaultMaxSize is the per-stack capacity used when none is given.
const DefaultMaxSize = 50

// Kind is the type of edit an Action records.
type Kind int

const (
	Add Kind = iota + 1
	Remove
)

func (k Kind) String() string {
	switch k {
	case Add:
		return "add"
	case Remove:
		return "remove"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Action is one undoable edit of a collection of T.
type Action[T any] struct {
	Kind Kind
	Item T
}

// Inverse returns the action that cancels a.
func (a Action[T]) Inverse() Action[T] {
	inv := a
	switch a.Kind {
	case Add:
		inv.Kind = Remove
	case Remove:
		inv.Kind = Add
	}
	return inv
}

// Tracker is a two-stack undo/redo ledger.
type Tracker[T any] struct {
	undo *Stack[Action[T]]
	redo *Stack[Action[T]]
}

// NewTracker creates a tracker whose stacks each hold maxSize actions.
// maxSize <= 0 selects DefaultMaxSize.
func NewTracker[T any](maxSize int) *Tracker[T] {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Tracker[T]{
		undo: NewStack[Action[T]](maxSize),
		redo: NewStack[Action[T]](maxSize),
	}
}

// Perform records a new action and discards the redo history.
func (t *Tracker[T]) Perform(a Action[T]) {
	t.undo.Push(a)
	t.redo.Clear()
}

// Undo moves the most recent action to the redo stack and returns it.
// The second result is false when there is nothing to undo.
func (t *Tracker[T]) Undo() (Action[T], bool) {
	a, ok := t.undo.Pop()
	if !ok {
		return a, false
	}
	t.redo.Push(a)
	return a, true
}

// Redo moves the most recently undone action back to the undo stack and
// returns it. The second result is false when there is nothing to redo.
func (t *Tracker[T]) Redo() (Action[T], bool) {
	a, ok := t.redo.Pop()
	if !ok {
		return a, false
	}
	t.undo.Push(a)
	return a, true
}

func (t *Tracker[T]) UndoDepth() int { return t.undo.Len() }

func (t *Tracker[T]) RedoDepth() int { return t.redo.Len() }

// MaxSize is the capacity of each stack.
func (t *Tracker[T]) MaxSize() int { return t.undo.Cap() }

// Reset drops both stacks.
func (t *Tracker[T]) Reset() {
	t.undo.Clear()
	t.redo.Clear()
}

// UndoActions returns the undo stack, oldest first.
func (t *Tracker[T]) UndoActions() []Action[T] { return t.undo.Items() }

// RedoActions returns the redo stack, oldest first.
func (t *Tracker[T]) RedoActions() []Action[T] { return t.redo.Items() }
