// Package session holds the editable detection state of one image.
//
// A Session owns the source image, its grayscale plane, the current blob set
// (in insertion order) and the undo/redo history of manual edits. Automatic
// detection replaces the blob set wholesale and is not recorded in history;
// only ToggleBlobAt edits are undoable.
//
// Sessions are safe for concurrent use. A batch task may still be writing
// its detection result after the batch call has returned, so every mutation
// takes the session lock. Observers are notified after the lock is released.
package session
