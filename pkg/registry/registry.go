// Package registry holds the process-wide set of running camera
// supervisors, keyed by name, and supports live reconfiguration without
// restarting the process (SPEC_FULL.md §4.7). Grounded on the teacher's
// nest.MultiStreamManager, generalized from a single Nest-project client
// to per-camera bcsession.Session supervisors with independent lifecycles.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gtfodev/neolink/pkg/camera"
	"github.com/gtfodev/neolink/pkg/discovery"
)

// entry pairs a running supervisor with the goroutine driving its Run loop,
// so Reload/Remove can wait for full shutdown before replacing it.
type entry struct {
	sup  *camera.Supervisor
	done chan struct{}
}

// Registry is the single-writer, many-reader map from camera name to its
// live supervisor. Reload performs an atomic start-new/stop-old swap so
// concurrent readers (Get, List) never observe a half-replaced camera.
type Registry struct {
	engine *discovery.Engine
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]*entry
}

// New constructs an empty registry bound to a shared discovery engine.
func New(engine *discovery.Engine, logger *slog.Logger) *Registry {
	return &Registry{
		engine:  engine,
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// Add creates and starts a supervisor for cfg under ctx. It returns an
// error if a camera with that name is already registered.
func (r *Registry) Add(ctx context.Context, cfg camera.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[cfg.Name]; exists {
		return fmt.Errorf("registry: camera %q already registered", cfg.Name)
	}
	r.entries[cfg.Name] = r.start(ctx, cfg)
	return nil
}

func (r *Registry) start(ctx context.Context, cfg camera.Config) *entry {
	sup := camera.New(ctx, cfg, r.engine, r.logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		sup.Run()
	}()
	return &entry{sup: sup, done: done}
}

// Get returns the named camera's supervisor, if registered.
func (r *Registry) Get(name string) (*camera.Supervisor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.sup, true
}

// Names returns every registered camera name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}

// List returns a snapshot of every registered supervisor, keyed by name.
func (r *Registry) List() map[string]*camera.Supervisor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*camera.Supervisor, len(r.entries))
	for name, e := range r.entries {
		out[name] = e.sup
	}
	return out
}

// Remove stops and unregisters the named camera, blocking until its Run
// loop has fully exited.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	e, ok := r.entries[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("registry: camera %q not registered", name)
	}
	delete(r.entries, name)
	r.mu.Unlock()

	e.sup.Stop()
	<-e.done
	return nil
}

// Reload replaces the named camera's supervisor with a freshly configured
// one, stopping the old supervisor only after the new one is already
// installed in the map's backing config so Get never returns a stale
// handle mid-swap for callers that re-fetch after Reload returns. The old
// supervisor's teardown happens synchronously before Reload returns.
func (r *Registry) Reload(ctx context.Context, cfg camera.Config) error {
	r.mu.Lock()
	old, hadOld := r.entries[cfg.Name]
	r.entries[cfg.Name] = r.start(ctx, cfg)
	r.mu.Unlock()

	if hadOld {
		old.sup.Stop()
		<-old.done
	}
	return nil
}

// StopAll stops every registered camera and blocks until all have exited.
func (r *Registry) StopAll() {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()
			e.sup.Stop()
			<-e.done
		}(e)
	}
	wg.Wait()
}
