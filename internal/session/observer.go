package session

import (
	"sync/atomic"

	"github.com/ironsheep/colony-counter-mcp/internal/logger"
)

// Cause names the operation that changed a session's blobs.
type Cause string

const (
	CauseDetect Cause = "detect"
	CauseToggle Cause = "toggle"
	CauseUndo   Cause = "undo"
	CauseRedo   Cause = "redo"
)

// Event is sent to observers after every change of the blob set.
type Event struct {
	SessionID string `json:"session"`
	Source    string `json:"source"`
	Cause     Cause  `json:"cause"`
	Count     int    `json:"count"`
	Redraw    bool   `json:"redraw"`
}

// Observer receives change notifications. Implementations must not block.
type Observer interface {
	BlobsChanged(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) BlobsChanged(e Event) { f(e) }

// Observers fans one event out to several observers in order.
type Observers []Observer

func (obs Observers) BlobsChanged(e Event) {
	for _, o := range obs {
		if o != nil {
			o.BlobsChanged(e)
		}
	}
}

// ChannelObserver forwards events to a buffered channel and drops them when
// the channel is full.
type ChannelObserver struct {
	events  chan Event
	dropped atomic.Int64
}

// NewChannelObserver creates an observer with a buffer of size events.
func NewChannelObserver(size int) *ChannelObserver {
	if size < 1 {
		size = 1
	}
	return &ChannelObserver{events: make(chan Event, size)}
}

func (c *ChannelObserver) BlobsChanged(e Event) {
	select {
	case c.events <- e:
	default:
		c.dropped.Add(1)
	}
}

// Events is the receive side of the observer.
func (c *ChannelObserver) Events() <-chan Event { return c.events }

// Dropped is the number of events discarded because the buffer was full.
func (c *ChannelObserver) Dropped() int64 { return c.dropped.Load() }

// LoggingObserver writes every event at debug level.
type LoggingObserver struct{}

func (LoggingObserver) BlobsChanged(e Event) {
	logger.WithField("session", e.SessionID).
		WithField("cause", e.Cause).
		WithField("count", e.Count).
		Debug("Blobs changed")
}
