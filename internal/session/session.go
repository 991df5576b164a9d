package session

import (
	"image"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/colony-counter-mcp/internal/apperr"
	"github.com/ironsheep/colony-counter-mcp/internal/detection"
	"github.com/ironsheep/colony-counter-mcp/internal/history"
	"github.com/ironsheep/colony-counter-mcp/internal/imaging"
	"github.com/ironsheep/colony-counter-mcp/internal/logger"
	"github.com/ironsheep/colony-counter-mcp/internal/metadata"
)

// DefaultNewBlobRadius is the radius of manually added blobs.
const DefaultNewBlobRadius = 40

// MinNewBlobRadius is the floor for AdjustNewBlobRadius.
const MinNewBlobRadius = 1

// Direction selects a history step.
type Direction int

const (
	Undo Direction = iota
	Redo
)

func (d Direction) String() string {
	if d == Redo {
		return "redo"
	}
	return "undo"
}

// Options configures a new Session.
type Options struct {
	NewBlobRadius float64  // <= 0 selects DefaultNewBlobRadius
	MaxHistory    int      // <= 0 selects history.DefaultMaxSize
	Observer      Observer // may be nil
}

// Session is the editable detection state of one image.
type Session struct {
	id       string
	source   string
	info     metadata.Info
	original image.Image
	gray     *image.Gray
	observer Observer
	log      *logrus.Entry
	detect   func(*image.Gray, detection.Params) ([]detection.Blob, error)

	mu            sync.Mutex
	settled       *sync.Cond // signalled when pending drops to zero
	pending       int        // Detect calls still running
	generation    uint64     // bumped by every Detect start and manual edit
	blobs         []detection.Blob
	params        detection.Params
	hasParams     bool
	history       *history.Tracker[detection.Blob]
	newBlobRadius float64
}

// New creates a session for img, read from source.
func New(source string, img image.Image, info metadata.Info, opts Options) (*Session, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, apperr.EmptyImage(source + " has zero area")
	}

	radius := opts.NewBlobRadius
	if radius <= 0 {
		radius = DefaultNewBlobRadius
	}

	id := uuid.NewString()
	s := &Session{
		id:            id,
		source:        source,
		info:          info,
		original:      img,
		gray:          imaging.ToGray(img),
		observer:      opts.Observer,
		log:           logger.WithFields(logrus.Fields{"session": id, "source": source}),
		detect:        detection.Detect,
		blobs:         []detection.Blob{},
		history:       history.NewTracker[detection.Blob](opts.MaxHistory),
		newBlobRadius: radius,
	}
	s.settled = sync.NewCond(&s.mu)
	return s, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) Source() string { return s.source }

// Info is the file-name metadata the session was created with.
func (s *Session) Info() metadata.Info { return s.info }

// Original returns the decoded source image. Callers must not modify it.
func (s *Session) Original() image.Image { return s.original }

// Gray returns the grayscale plane detection runs on. Callers must not
// modify it.
func (s *Session) Gray() *image.Gray { return s.gray }

// Detect runs the blob detector with p and replaces the blob set with the
// result. History is left untouched. On error the blob set is unchanged.
//
// A result is only written back if no other Detect started and no manual
// edit happened while it ran; a superseded result is discarded without
// error. This keeps a batch task that outlived its deadline from
// overwriting newer state.
func (s *Session) Detect(p detection.Params) error {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.pending++
	s.mu.Unlock()

	blobs, err := s.detect(s.gray, p)

	s.mu.Lock()
	s.pending--
	if s.pending == 0 {
		s.settled.Broadcast()
	}
	if err != nil {
		s.mu.Unlock()
		s.log.WithError(err).Warn("Detection failed")
		return err
	}
	if gen != s.generation {
		s.mu.Unlock()
		s.log.WithField("count", len(blobs)).Debug("Discarding superseded detection")
		return nil
	}
	s.blobs = blobs
	s.params = p
	s.hasParams = true
	s.mu.Unlock()

	s.log.WithField("count", len(blobs)).Debug("Detection complete")
	s.notify(CauseDetect, len(blobs))
	return nil
}

// ToggleBlobAt removes the first blob (in insertion order) containing
// (x, y), or adds a blob there with the current new-blob radius when none
// does. The recorded action is returned.
func (s *Session) ToggleBlobAt(x, y float64) history.Action[detection.Blob] {
	s.mu.Lock()
	var action history.Action[detection.Blob]
	if i := slices.IndexFunc(s.blobs, func(b detection.Blob) bool { return b.Contains(x, y) }); i >= 0 {
		action = history.Action[detection.Blob]{Kind: history.Remove, Item: s.blobs[i]}
		s.blobs = slices.Delete(s.blobs, i, i+1)
	} else {
		action = history.Action[detection.Blob]{
			Kind: history.Add,
			Item: detection.Blob{X: x, Y: y, Radius: s.newBlobRadius},
		}
		s.blobs = append(s.blobs, action.Item)
	}
	s.history.Perform(action)
	s.generation++
	count := len(s.blobs)
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"action": action.Kind,
		"x":      action.Item.X,
		"y":      action.Item.Y,
	}).Debug("Action performed")
	s.notify(CauseToggle, count)
	return action
}

// ApplyHistoryStep takes one action from history in direction dir and
// applies it: undo applies the inverse, redo replays it. It reports whether
// an action was available.
func (s *Session) ApplyHistoryStep(dir Direction) bool {
	s.mu.Lock()
	var (
		action history.Action[detection.Blob]
		ok     bool
	)
	if dir == Redo {
		action, ok = s.history.Redo()
	} else {
		action, ok = s.history.Undo()
	}
	if !ok {
		s.mu.Unlock()
		s.log.Debugf("No %s history", dir)
		return false
	}

	effect := action
	if dir == Undo {
		effect = action.Inverse()
	}
	s.apply(effect)
	s.generation++
	count := len(s.blobs)
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"action": action.Kind,
		"x":      action.Item.X,
		"y":      action.Item.Y,
	}).Debugf("Applied %s", dir)

	cause := CauseUndo
	if dir == Redo {
		cause = CauseRedo
	}
	s.notify(cause, count)
	return true
}

// apply adds or removes one blob. Removing a blob that is no longer present
// (a detection replaced the set since the edit) is a no-op. Callers hold mu.
func (s *Session) apply(a history.Action[detection.Blob]) {
	switch a.Kind {
	case history.Add:
		s.blobs = append(s.blobs, a.Item)
	case history.Remove:
		if i := slices.Index(s.blobs, a.Item); i >= 0 {
			s.blobs = slices.Delete(s.blobs, i, i+1)
		}
	}
}

// AdjustNewBlobRadius changes the radius of future manual blobs by delta,
// never going below MinNewBlobRadius, and returns the new radius.
func (s *Session) AdjustNewBlobRadius(delta float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.newBlobRadius = max(s.newBlobRadius+delta, MinNewBlobRadius)
	return s.newBlobRadius
}

func (s *Session) NewBlobRadius() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newBlobRadius
}

// Blobs returns a copy of the current blob set in insertion order.
func (s *Session) Blobs() []detection.Blob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.blobs)
}

func (s *Session) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}

// Params returns the parameters of the last successful detection. The
// second result is false if Detect has not succeeded yet.
func (s *Session) Params() (detection.Params, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params, s.hasParams
}

// HistoryDepth returns the sizes of the undo and redo stacks.
func (s *Session) HistoryDepth() (undo, redo int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.UndoDepth(), s.history.RedoDepth()
}

// Snapshot copies the exportable state once every running Detect has
// finished, so it never reflects a detection that is about to land.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.pending > 0 {
		s.settled.Wait()
	}

	keypoints := make([]Keypoint, len(s.blobs))
	for i, b := range s.blobs {
		keypoints[i] = Keypoint{X: b.X, Y: b.Y, Size: b.Size()}
	}
	return Snapshot{
		ID:        s.id,
		Source:    s.source,
		Day:       s.info.Day,
		Sample:    s.info.Sample,
		Dilution:  s.info.Dilution,
		Label:     s.info.Label,
		BlobCount: len(s.blobs),
		Keypoints: keypoints,
	}
}

func (s *Session) notify(cause Cause, count int) {
	if s.observer == nil {
		return
	}
	s.observer.BlobsChanged(Event{
		SessionID: s.id,
		Source:    s.source,
		Cause:     cause,
		Count:     count,
		Redraw:    true,
	})
}
