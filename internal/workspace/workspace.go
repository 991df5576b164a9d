// Package workspace manages the set of plate images being counted: loading a
// folder into sessions, ordering them by sample, running batch detection
// and producing export snapshots.
package workspace

import (
	"cmp"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/ironsheep/colony-counter-mcp/internal/apperr"
	"github.com/ironsheep/colony-counter-mcp/internal/batch"
	"github.com/ironsheep/colony-counter-mcp/internal/detection"
	"github.com/ironsheep/colony-counter-mcp/internal/imaging"
	"github.com/ironsheep/colony-counter-mcp/internal/logger"
	"github.com/ironsheep/colony-counter-mcp/internal/metadata"
	"github.com/ironsheep/colony-counter-mcp/internal/session"
)

// imageExtensions are the file types LoadFolder picks up.
var imageExtensions = []string{".png", ".jpg", ".jpeg"}

// Options wires a Workspace to its collaborators.
type Options struct {
	Cache       *imaging.ImageCache
	Resolver    *metadata.FilenameResolver
	Coordinator *batch.Coordinator
	Session     session.Options
}

// Workspace is an ordered set of sessions, one per image.
//
// Workspace is safe for concurrent use.
type Workspace struct {
	cache       *imaging.ImageCache
	resolver    *metadata.FilenameResolver
	coordinator *batch.Coordinator
	sessionOpts session.Options

	mu       sync.RWMutex
	dir      string
	sessions []*session.Session
}

// New creates an empty workspace. Nil collaborators get defaults.
func New(opts Options) *Workspace {
	w := &Workspace{
		cache:       opts.Cache,
		resolver:    opts.Resolver,
		coordinator: opts.Coordinator,
		sessionOpts: opts.Session,
	}
	if w.cache == nil {
		w.cache = imaging.NewImageCache(0)
	}
	if w.resolver == nil {
		w.resolver, _ = metadata.NewFilenameResolver("3rd")
	}
	if w.coordinator == nil {
		w.coordinator = batch.NewCoordinator(0)
	}
	return w
}

// LoadFolder replaces the workspace contents with one session per image in
// dir (non-recursive). Label photographs are skipped. Images that fail to
// load are left out and reported in the returned error; the others are kept.
func (w *Workspace) LoadFolder(dir string) ([]*session.Session, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperr.ImageNotFound(dir, err)
	}

	log := logger.WithField("dir", dir)
	var (
		loaded []*session.Session
		errs   error
	)
	for _, e := range entries {
		if e.IsDir() || !isImageFile(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if metadata.IsLabelImage(path) {
			log.WithField("file", e.Name()).Info("Skipping label image")
			continue
		}
		s, err := w.newSession(path)
		if err != nil {
			log.WithError(err).Warn("Failed to load image")
			errs = multierr.Append(errs, err)
			continue
		}
		loaded = append(loaded, s)
	}

	if len(loaded) == 0 && errs == nil {
		log.Warn("No images found in folder")
	}

	sortSessions(loaded)

	w.mu.Lock()
	w.dir = dir
	w.sessions = loaded
	w.mu.Unlock()

	log.WithField("count", len(loaded)).Info("Loaded image folder")
	return slices.Clone(loaded), errs
}

// Add loads a single image. An existing session for the same path is
// replaced, discarding its blobs and history.
func (w *Workspace) Add(path string) (*session.Session, error) {
	w.cache.Evict(path)
	s, err := w.newSession(path)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.sessions = slices.DeleteFunc(w.sessions, func(old *session.Session) bool {
		return old.Source() == path
	})
	w.sessions = append(w.sessions, s)
	sortSessions(w.sessions)
	w.mu.Unlock()
	return s, nil
}

// Remove drops the session with the given ID and reports whether it existed.
func (w *Workspace) Remove(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	i := slices.IndexFunc(w.sessions, func(s *session.Session) bool { return s.ID() == id })
	if i < 0 {
		return false
	}
	w.cache.Evict(w.sessions[i].Source())
	w.sessions = slices.Delete(w.sessions, i, i+1)
	return true
}

// Session looks a session up by ID.
func (w *Workspace) Session(id string) (*session.Session, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for _, s := range w.sessions {
		if s.ID() == id {
			return s, nil
		}
	}
	return nil, apperr.SessionNotFound(id)
}

// Sessions returns the sessions in display order.
func (w *Workspace) Sessions() []*session.Session {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.sessions)
}

// Dir is the folder last passed to LoadFolder.
func (w *Workspace) Dir() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.dir
}

// DetectAll runs detection with p over every session as one batch.
func (w *Workspace) DetectAll(p detection.Params, timeout time.Duration, progress batch.Progress) (batch.Result, error) {
	if err := p.Validate(); err != nil {
		return batch.Result{}, err
	}

	sessions := w.Sessions()
	tasks := make([]batch.Task, len(sessions))
	for i, s := range sessions {
		tasks[i] = s
	}
	return w.coordinator.Run(tasks, p, timeout, progress), nil
}

// Snapshots returns an export snapshot per session, in display order.
func (w *Workspace) Snapshots() []session.Snapshot {
	sessions := w.Sessions()
	out := make([]session.Snapshot, len(sessions))
	for i, s := range sessions {
		out[i] = s.Snapshot()
	}
	return out
}

func (w *Workspace) newSession(path string) (*session.Session, error) {
	img, err := w.cache.Load(path)
	if err != nil {
		return nil, err
	}
	info := w.resolver.Resolve(path)
	s, err := session.New(path, img, info, w.sessionOpts)
	if err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{"session": s.ID(), "label": info.Label}).Debug("Session created")
	return s, nil
}

func isImageFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return slices.Contains(imageExtensions, ext)
}

// sortSessions orders by sample number, sessions without one last, then by
// path.
func sortSessions(sessions []*session.Session) {
	slices.SortStableFunc(sessions, func(a, b *session.Session) int {
		sa, sb := a.Info().Sample, b.Info().Sample
		switch {
		case sa != nil && sb == nil:
			return -1
		case sa == nil && sb != nil:
			return 1
		case sa != nil && sb != nil && *sa != *sb:
			return cmp.Compare(*sa, *sb)
		}
		return cmp.Compare(a.Source(), b.Source())
	})
}
