package config

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// settleDelay coalesces the burst of events one editor save produces.
const settleDelay = 75 * time.Millisecond

// restartSetting is a setting read once at startup.
type restartSetting struct {
	name  string
	value func(*Config) string
}

var restartSettings = []restartSetting{
	{"server.host", func(c *Config) string { return c.Server.Host }},
	{"server.port", func(c *Config) string { return fmt.Sprint(c.Server.Port) }},
	{"server.timezone", func(c *Config) string { return c.Server.Timezone }},
	{"db.name", func(c *Config) string { return c.DB.Name }},
	{"db.driver", func(c *Config) string { return c.DB.Driver }},
	{"ids.format", func(c *Config) string { return c.IDs.Format }},
}

// Holder owns the live configuration of a running server and replaces it
// when the config file changes or the process receives SIGHUP. A reload that
// fails to load or validate leaves the current configuration in place.
type Holder struct {
	reloading sync.Mutex
	mu        sync.RWMutex
	current   *Config
	file      string
	overrides Overrides
	log       zerolog.Logger

	changed []func(*Config)
	failed  []func(error)

	watcher *fsnotify.Watcher
	pending *time.Timer
	done    chan struct{}
	stop    sync.Once
}

// NewHolder loads path and returns a Holder serving the result.
func NewHolder(path string, ov Overrides, logger zerolog.Logger) (*Holder, error) {
	cfg, err := LoadWithOverrides(path, ov)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	file, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	ov.Reset = false
	return &Holder{
		current:   cfg,
		file:      file,
		overrides: ov,
		log:       logger.With().Str("config", file).Logger(),
		done:      make(chan struct{}),
	}, nil
}

// Get returns the live configuration.
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Path returns the absolute path of the config file.
func (h *Holder) Path() string {
	return h.file
}

// OnChange registers fn to run after every successful reload.
func (h *Holder) OnChange(fn func(*Config)) {
	h.mu.Lock()
	h.changed = append(h.changed, fn)
	h.mu.Unlock()
}

// OnError registers fn to run after every failed reload.
func (h *Holder) OnError(fn func(error)) {
	h.mu.Lock()
	h.failed = append(h.failed, fn)
	h.mu.Unlock()
}

// Reload reads the config file again. Reloads run one at a time, so the
// last file read is the last one applied. Callbacks run on the caller's
// goroutine, outside the lock guarding Get.
func (h *Holder) Reload() error {
	h.reloading.Lock()
	defer h.reloading.Unlock()

	next, err := LoadWithOverrides(h.file, h.overrides)
	if err != nil {
		h.mu.RLock()
		failed := h.failed
		h.mu.RUnlock()

		h.log.Error().Err(err).Msg("Reload rejected, keeping current models")
		for _, fn := range failed {
			fn(err)
		}
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	prev := h.current
	h.current = next
	changed := h.changed
	h.mu.Unlock()

	h.describe(prev, next)
	for _, fn := range changed {
		fn(next)
	}
	return nil
}

// WatchFile reloads whenever the config file is written or replaced. The
// parent directory is watched so rename-based saves are seen too.
func (h *Holder) WatchFile() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(h.file)); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(h.file), err)
	}
	h.watcher = w

	go h.watch(w)
	h.log.Info().Msg("Watching config for changes")
	return nil
}

// WatchSignals reloads on SIGHUP until Stop is called.
func (h *Holder) WatchSignals() {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)

	go func() {
		defer signal.Stop(hup)
		for {
			select {
			case <-hup:
				h.log.Info().Msg("SIGHUP received")
				_ = h.Reload()
			case <-h.done:
				return
			}
		}
	}()
}

// Stop ends file and signal watching. It is safe to call more than once.
func (h *Holder) Stop() {
	h.stop.Do(func() {
		close(h.done)
		h.mu.Lock()
		if h.pending != nil {
			h.pending.Stop()
		}
		h.mu.Unlock()
		if h.watcher != nil {
			h.watcher.Close()
		}
	})
}

func (h *Holder) watch(w *fsnotify.Watcher) {
	name := filepath.Base(h.file)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			h.log.Debug().Str("op", ev.Op.String()).Msg("Config file touched")
			h.schedule()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			h.log.Error().Err(err).Msg("Config watcher error")
		case <-h.done:
			return
		}
	}
}

// schedule reloads once the file has been quiet for settleDelay.
func (h *Holder) schedule() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pending != nil {
		h.pending.Reset(settleDelay)
		return
	}
	h.pending = time.AfterFunc(settleDelay, func() {
		select {
		case <-h.done:
		default:
			_ = h.Reload()
		}
	})
}

func (h *Holder) describe(prev, next *Config) {
	added, removed := diffModels(prev, next)
	h.log.Info().
		Int("models", len(next.Models)).
		Strs("added", added).
		Strs("removed", removed).
		Msg("Config reloaded")

	if prev.Logging.Level != next.Logging.Level {
		h.log.Info().Str("from", prev.Logging.Level).Str("to", next.Logging.Level).Msg("Log level changed")
	}
	for _, s := range restartSettings {
		if s.value(prev) != s.value(next) {
			h.log.Warn().Str("setting", s.name).Msg("Change takes effect after a restart")
		}
	}
}

func diffModels(prev, next *Config) (added, removed []string) {
	seen := make(map[string]bool, len(prev.Models))
	for _, m := range prev.Models {
		seen[m.Name] = true
	}
	for _, m := range next.Models {
		if !seen[m.Name] {
			added = append(added, m.Name)
		}
		delete(seen, m.Name)
	}
	for _, m := range prev.Models {
		if seen[m.Name] {
			removed = append(removed, m.Name)
		}
	}
	return added, removed
}

// ReloadableFields lists the settings a reload applies to a running server.
func ReloadableFields() []string {
	return []string{"models", "template", "logging.level", "openapi"}
}

// NonReloadableFields lists the settings that need a restart.
func NonReloadableFields() []string {
	names := make([]string, len(restartSettings))
	for i, s := range restartSettings {
		names[i] = s.name
	}
	return names
}
