package handle

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Pool creates Slots and counts the archives they open.
// A Pool is safe for concurrent use; the Slots it returns are per worker.
type Pool struct {
	opener Opener
	logger *slog.Logger
	seq    atomic.Uint64
	opens  atomic.Int64
	closes atomic.Int64
}

// Option configures a Pool.
type Option func(*Pool)

// WithOpener replaces the function used to open archives. Defaults to OpenZip.
func WithOpener(opener Opener) Option {
	return func(p *Pool) {
		p.opener = opener
	}
}

// WithLogger sets the logger for handle lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		p.logger = logger
	}
}

// NewPool returns a Pool.
func NewPool(opts ...Option) *Pool {
	p := &Pool{opener: OpenZip}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pool) log() *slog.Logger {
	if p.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.logger
}

// Slot returns a new, empty slot for one worker.
func (p *Pool) Slot() *Slot {
	return &Slot{pool: p}
}

// Opens returns how many archives have been opened through this pool.
func (p *Pool) Opens() int64 {
	return p.opens.Load()
}

// Closes returns how many handles have been closed through this pool.
func (p *Pool) Closes() int64 {
	return p.closes.Load()
}

// Slot holds the single live handle of one worker.
//
// A Slot is intended for one worker at a time. Its methods are internally
// synchronized so that a Lease may be released from another goroutine, for
// example when a stream is closed elsewhere.
type Slot struct {
	pool    *Pool
	mu      sync.Mutex
	current *Handle
}

// Acquire returns a lease on an open handle for identity.
//
// If the slot already holds an open handle for identity, its counter is
// incremented and it is reused. Any handle held for a different identity is
// closed first, whatever its counter.
func (s *Slot) Acquire(identity string) (*Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h := s.current; h != nil && !h.closed && h.identity == identity {
		h.refs++
		s.pool.log().Debug("reusing archive handle", "path", identity, "refs", h.refs)
		return &Lease{slot: s, handle: h}, nil
	}
	if s.current != nil {
		s.closeLocked(s.current)
		s.current = nil
	}

	archive, err := s.pool.opener(identity)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrOpen, identity, err)
	}
	h := &Handle{
		archive:  archive,
		identity: identity,
		seq:      s.pool.seq.Add(1),
		refs:     1,
	}
	s.pool.opens.Add(1)
	s.current = h
	s.pool.log().Debug("opened archive handle", "path", identity, "seq", h.seq)
	return &Lease{slot: s, handle: h}, nil
}

// With acquires a handle for identity, calls fn with it and releases it on
// every exit path, including a panic in fn.
func (s *Slot) With(identity string, fn func(*Handle) error) error {
	lease, err := s.Acquire(identity)
	if err != nil {
		return err
	}
	defer lease.Release()
	return fn(lease.Handle())
}

// Current returns the handle held by the slot, or nil.
func (s *Slot) Current() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Refs returns the usage counter of the held handle, or 0 when empty.
func (s *Slot) Refs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return 0
	}
	return s.current.refs
}

// Close closes and discards the held handle regardless of its counter.
// Outstanding leases become no-ops. The slot may be used again afterwards.
func (s *Slot) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.closeLocked(s.current)
		s.current = nil
	}
}

func (s *Slot) release(h *Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.closed {
		return
	}
	h.refs--
	if h.refs > 0 {
		return
	}
	s.closeLocked(h)
	if s.current == h {
		s.current = nil
	}
}

// closeLocked closes h. Close errors are logged and dropped: this runs on
// cleanup paths where nothing useful can be done with them.
func (s *Slot) closeLocked(h *Handle) {
	if h.closed {
		return
	}
	h.closed = true
	h.refs = 0
	s.pool.closes.Add(1)
	if err := h.archive.Close(); err != nil {
		s.pool.log().Warn("closing archive handle", "path", h.identity, "error", err)
		return
	}
	s.pool.log().Debug("closed archive handle", "path", h.identity, "seq", h.seq)
}

// Lease is one counted reference to a Handle.
type Lease struct {
	slot     *Slot
	handle   *Handle
	released atomic.Bool
}

// Handle returns the leased handle.
func (l *Lease) Handle() *Handle {
	return l.handle
}

// Closed reports whether the leased handle has been closed, either because
// the lease was the last one released or because the slot closed it.
func (l *Lease) Closed() bool {
	l.slot.mu.Lock()
	defer l.slot.mu.Unlock()
	return l.handle.closed
}

// Release gives the reference back. Only the first call has an effect.
func (l *Lease) Release() {
	if l.released.CompareAndSwap(false, true) {
		l.slot.release(l.handle)
	}
}
