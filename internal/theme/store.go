package theme

import (
	"sync"

	"go.uber.org/zap"

	"github.com/nhle/agora/internal/model"
	"github.com/nhle/agora/internal/observe"
	"github.com/nhle/agora/internal/prefs"
)

// StorageKey is the preference key the theme is persisted under.
const StorageKey = "theme"

// Store keeps a single isDark value consistent across every view. It
// reconciles three sources of change: Set calls in this process, writes to
// the persisted storage from other processes, and direct attribute edits.
type Store struct {
	storage prefs.Storage
	attr    *Attribute
	logger  *zap.Logger

	mu       sync.Mutex
	degraded bool
	fallback model.Theme

	subs          observe.Registry[model.Theme]
	stopStorage   func()
	stopAttribute func()
}

// NewStore resolves the persisted theme synchronously, applies it to attr
// before anything renders, and starts listening for changes. If storage
// fails, the store keeps working in attribute-only mode.
func NewStore(storage prefs.Storage, attr *Attribute, logger *zap.Logger) *Store {
	if storage == nil {
		storage = prefs.Unavailable{}
	}
	if attr == nil {
		attr = NewAttribute(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{
		storage:  storage,
		attr:     attr,
		logger:   logger,
		fallback: model.ThemeLight,
	}

	attr.Set(s.Get())

	s.stopAttribute = attr.Observe(func(t model.Theme) {
		s.persist(t)
		s.subs.Notify(t)
	})

	stop, err := storage.Watch(func(c prefs.Change) {
		if c.Key != StorageKey {
			return
		}
		s.attr.Set(model.ParseTheme(c.Value))
	})
	if err != nil {
		s.markDegraded(err)
		stop = func() {}
	}
	s.stopStorage = stop

	return s
}

// Get reads the persisted theme, defaulting to light when absent. When
// storage is unavailable it returns the in-memory value.
func (s *Store) Get() model.Theme {
	v, ok, err := s.storage.Get(StorageKey)
	if err != nil {
		s.markDegraded(err)
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.fallback
	}
	if !ok {
		return model.ThemeLight
	}
	return model.ParseTheme(v)
}

// Set persists t and applies it to the attribute, which in turn notifies
// subscribers in this process.
func (s *Store) Set(t model.Theme) {
	t = model.ParseTheme(string(t))

	s.mu.Lock()
	s.fallback = t
	s.mu.Unlock()

	if err := s.storage.Set(StorageKey, string(t)); err != nil {
		s.markDegraded(err)
	}
	s.attr.Set(t)
}

// Toggle switches between light and dark and returns the new value.
func (s *Store) Toggle() model.Theme {
	next := s.attr.Value().Opposite()
	s.Set(next)
	return next
}

// IsDark derives the display mode from the attribute, the single value
// every view renders from.
func (s *Store) IsDark() bool {
	return s.attr.Value().IsDark()
}

// Subscribe registers cb for theme changes from any source.
func (s *Store) Subscribe(cb func(model.Theme)) (unsubscribe func()) {
	return s.subs.Add(cb)
}

// Degraded reports whether the store fell back to attribute-only mode.
func (s *Store) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// Close detaches the store from its storage and attribute.
func (s *Store) Close() {
	s.stopStorage()
	s.stopAttribute()
}

// persist writes t when the stored value differs, so direct attribute
// edits reach storage as well.
func (s *Store) persist(t model.Theme) {
	s.mu.Lock()
	s.fallback = t
	s.mu.Unlock()

	if s.Get() == t {
		return
	}
	if err := s.storage.Set(StorageKey, string(t)); err != nil {
		s.markDegraded(err)
	}
}

func (s *Store) markDegraded(err error) {
	s.mu.Lock()
	first := !s.degraded
	s.degraded = true
	s.mu.Unlock()

	if first {
		s.logger.Warn("theme storage unavailable, using in-memory theme", zap.Error(err))
	}
}
