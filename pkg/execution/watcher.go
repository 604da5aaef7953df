package execution

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vigneswara-propelo/harness-core-sub203/pkg/logger"
)

// Applier receives every record of an accepted snapshot. *Registry satisfies it.
type Applier interface {
	ApplyConfiguration(ctx context.Context, rec IteratorConfig) error
}

const (
	DefaultDebounce = 250 * time.Millisecond

	restartBackoffBase = 250 * time.Millisecond
	restartBackoffMax  = 5 * time.Second
)

// Watcher follows the configuration file and applies each accepted snapshot.
// A snapshot that fails to parse is rejected as a whole and the last good one stays in effect.
type Watcher struct {
	path     string
	target   Applier
	logger   *slog.Logger
	debounce time.Duration

	mu       sync.Mutex
	current  []IteratorConfig
	lastHash uint64
}

// WatcherOption is a functional option for configuring a watcher
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger for the watcher
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce sets how long the watcher waits for writes to settle before reloading
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher for path applying records to target.
func NewWatcher(path string, target Applier, opts ...WatcherOption) (*Watcher, error) {
	if path == "" {
		return nil, ErrPathRequired
	}
	if target == nil {
		return nil, ErrApplierNil
	}
	w := &Watcher{
		path:     path,
		target:   target,
		logger:   slog.Default(),
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(logger.Component("config-watcher"), slog.String("path", path))
	return w, nil
}

// Load reads the file and commits it as the current snapshot without applying it.
// Hosts pass the result to Registry.StartIterators.
func (w *Watcher) Load() ([]IteratorConfig, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, err
	}
	records, err := ParseConfigs(data)
	if err != nil {
		return nil, err
	}
	w.commit(records, hashBytes(data))
	return slices.Clone(records), nil
}

// Current returns the last accepted snapshot.
func (w *Watcher) Current() []IteratorConfig {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.current)
}

func (w *Watcher) commit(records []IteratorConfig, h uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.current = records
	w.lastHash = h
}

// Reload reads the file and applies every record of the new snapshot. Unchanged content is
// skipped once it has been applied without errors, so a failed apply is retried on the next
// reload. Records naming unregistered iterators are ignored.
func (w *Watcher) Reload(ctx context.Context) error {
	data, err := os.ReadFile(w.path)
	if err != nil {
		w.logger.Warn("configuration unreadable, keeping last good", logger.Error(err))
		return err
	}
	h := hashBytes(data)
	w.mu.Lock()
	unchanged := h == w.lastHash
	w.mu.Unlock()
	if unchanged {
		w.logger.Debug("configuration unchanged")
		return nil
	}

	records, err := ParseConfigs(data)
	if err != nil {
		w.logger.Warn("configuration rejected, keeping last good", logger.Error(err))
		return err
	}

	var errs []error
	for _, rec := range records {
		if err := w.target.ApplyConfiguration(ctx, rec); err != nil && !errors.Is(err, ErrIteratorNotRegistered) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		// The hash is left alone so the next reload applies the same content again.
		w.commit(records, w.hash())
		w.logger.Warn("configuration applied with errors", slog.Int("iterators", len(records)), slog.Int("failed", len(errs)))
		return errors.Join(errs...)
	}
	w.commit(records, h)
	w.logger.Info("configuration applied", slog.Int("iterators", len(records)))
	return nil
}

func (w *Watcher) hash() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastHash
}

// Watch follows the file until ctx is done. The parent directory is watched so editors that
// replace the file are handled, and the fsnotify watcher is recreated with backoff when it breaks.
func (w *Watcher) Watch(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	file := filepath.Base(w.path)
	backoff := restartBackoffBase

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	schedule := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.debounce, func() {
			if ctx.Err() != nil {
				return
			}
			if err := w.Reload(ctx); err != nil {
				w.logger.Debug("reload finished with errors", logger.Error(err))
			}
		})
	}
	defer func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
	}()

	wait := func() bool {
		d := backoff + rand.N(backoff/2+1)
		backoff = min(backoff*2, restartBackoffMax)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(d):
			return true
		}
	}

	for ctx.Err() == nil {
		fw, err := fsnotify.NewWatcher()
		if err != nil {
			w.logger.Warn("config watch init failed", logger.Error(err))
			if !wait() {
				return nil
			}
			continue
		}
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			w.logger.Warn("config watch add failed", logger.Error(err), slog.String("dir", dir))
			if !wait() {
				return nil
			}
			continue
		}
		backoff = restartBackoffBase
		w.logger.Debug("config watcher started", slog.String("dir", dir))

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = fw.Close()
				return nil
			case ev, ok := <-fw.Events:
				if !ok {
					broken = true
					break
				}
				if filepath.Base(ev.Name) == file && ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
					schedule()
				}
			case err, ok := <-fw.Errors:
				if !ok {
					broken = true
					break
				}
				if errors.Is(err, fsnotify.ErrEventOverflow) {
					w.logger.Warn("config watch overflow, forcing reload")
					schedule()
					continue
				}
				w.logger.Warn("config watch error", logger.Error(err))
				if strings.Contains(strings.ToLower(err.Error()), "closed") {
					broken = true
				}
			}
		}

		_ = fw.Close()
		w.logger.Warn("config watcher stopped, restarting")
		if !wait() {
			return nil
		}
	}
	return nil
}

func hashBytes(b []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
