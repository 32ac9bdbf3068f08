package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nhle/agora/internal/observe"
)

// File persists preferences in a YAML file. Writes by other processes are
// picked up through fsnotify and reported to watchers; the handle's own
// writes are suppressed by comparing against the last value it wrote.
type File struct {
	path   string
	logger *zap.Logger

	mu       sync.Mutex
	snapshot map[string]string
	watchers observe.Registry[Change]
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// OpenFile opens (or prepares to create) the preferences file at path.
func OpenFile(path string, logger *zap.Logger) (*File, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating prefs directory %s: %w", dir, err)
	}

	f := &File{path: path, logger: logger}

	values, err := f.read()
	if err != nil {
		return nil, err
	}
	f.snapshot = values

	return f, nil
}

// read loads every key from disk. A missing file is an empty store.
func (f *File) read() (map[string]string, error) {
	v := viper.New()
	v.SetConfigFile(f.path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading prefs %s: %w", f.path, err)
	}

	values := make(map[string]string)
	for _, key := range v.AllKeys() {
		values[key] = v.GetString(key)
	}
	return values, nil
}

// Get returns the value for key as currently stored on disk.
func (f *File) Get(key string) (string, bool, error) {
	values, err := f.read()
	if err != nil {
		return "", false, err
	}

	val, ok := values[key]
	return val, ok, nil
}

// Set writes key=value, preserving other keys in the file.
func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return err
	}
	values[key] = value

	v := viper.New()
	v.SetConfigFile(f.path)
	v.SetConfigType("yaml")
	for k, val := range values {
		v.Set(k, val)
	}

	if err := v.WriteConfigAs(f.path); err != nil {
		return fmt.Errorf("writing prefs %s: %w", f.path, err)
	}

	f.snapshot = values
	return nil
}

// Watch starts watching the file's directory on first use and registers
// fn for changes written by other processes.
func (f *File) Watch(fn func(Change)) (func(), error) {
	f.mu.Lock()
	if f.watcher == nil {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			f.mu.Unlock()
			return func() {}, fmt.Errorf("creating prefs watcher: %w", err)
		}
		if err := w.Add(filepath.Dir(f.path)); err != nil {
			w.Close()
			f.mu.Unlock()
			return func() {}, fmt.Errorf("watching %s: %w", f.path, err)
		}
		f.watcher = w
		f.done = make(chan struct{})
		go f.watchLoop(w, f.done)
	}
	f.mu.Unlock()

	return f.watchers.Add(fn), nil
}

// watchLoop diffs the file against the last known snapshot on every write
// event and notifies watchers of keys whose value changed.
func (f *File) watchLoop(w *fsnotify.Watcher, done chan struct{}) {
	defer close(done)

	target := filepath.Clean(f.path)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			f.reload()

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			f.logger.Warn("prefs watcher error", zap.Error(err))
		}
	}
}

func (f *File) reload() {
	values, err := f.read()
	if err != nil {
		f.logger.Warn("reloading prefs", zap.Error(err))
		return
	}

	f.mu.Lock()
	var changes []Change
	for k, v := range values {
		if old, ok := f.snapshot[k]; !ok || old != v {
			changes = append(changes, Change{Key: k, Value: v})
		}
	}
	f.snapshot = values
	f.mu.Unlock()

	for _, c := range changes {
		f.watchers.Notify(c)
	}
}

// Close stops the file watcher.
func (f *File) Close() error {
	f.mu.Lock()
	w, done := f.watcher, f.done
	f.watcher = nil
	f.mu.Unlock()

	if w == nil {
		return nil
	}
	err := w.Close()
	<-done
	return err
}
