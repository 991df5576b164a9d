// Package history implements a bounded, linear undo/redo ledger.
//
// A Tracker keeps two stacks of Actions. Perform pushes onto the undo stack
// and discards any pending redo entries; Undo and Redo move the top entry
// from one stack to the other and hand it back to the caller, who applies
// (or reverses) its effect. Both stacks hold at most MaxSize entries and
// drop their oldest entry when a push would exceed that.
//
// The package is not safe for concurrent use. Owners serialise access.
package history
