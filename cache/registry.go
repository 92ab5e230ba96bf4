package cache

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sync"
)

// Registry maps archive identities to their Content.
//
// A Registry is meant to be created once by the host application and shared
// by every reader that should see the same cached data.
type Registry struct {
	mu     sync.RWMutex
	caches map[string]*Content
	stat   func(name string) (fs.FileInfo, error)
	logger *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for maintenance events.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry returns an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		caches: make(map[string]*Content),
		stat:   os.Stat,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) log() *slog.Logger {
	if r.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.logger
}

// Get returns the Content for identity, creating it on first use.
// Concurrent first calls for one identity all receive the same Content.
func (r *Registry) Get(identity string) *Content {
	r.mu.RLock()
	c, ok := r.caches[identity]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.caches[identity]; ok {
		return c
	}
	c = NewContent()
	r.caches[identity] = c
	return c
}

// Lookup returns the Content for identity without creating it.
func (r *Registry) Lookup(identity string) (*Content, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caches[identity]
	return c, ok
}

// Evict drops the cached content of identity.
func (r *Registry) Evict(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.caches, identity)
}

// EvictAll drops every cached archive.
func (r *Registry) EvictAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.caches)
}

// Len returns the number of archives with a Content.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.caches)
}

// Identities returns the identities currently held, in no particular order.
func (r *Registry) Identities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.caches))
	for id := range r.caches {
		ids = append(ids, id)
	}
	return ids
}

// PruneMissingFiles evicts every identity whose backing file no longer
// exists and returns how many were evicted. Identities that cannot be
// checked for another reason (permissions, I/O) are kept.
func (r *Registry) PruneMissingFiles() int {
	var missing []string
	for _, id := range r.Identities() {
		if _, err := r.stat(id); errors.Is(err, fs.ErrNotExist) {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	pruned := 0
	for _, id := range missing {
		if _, ok := r.caches[id]; ok {
			delete(r.caches, id)
			pruned++
			r.log().Debug("pruned cache for missing archive", "path", id)
		}
	}
	return pruned
}
