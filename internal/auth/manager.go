// Package auth acquires the bearer token from session broadcasts, the
// persisted session, or heuristic fallbacks, and owns the current session.
package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/dtfchat/internal/core/session"
)

// ErrSessionExpired is wrapped in ErrNotAuthenticated errors caused by expiry.
var ErrSessionExpired = errors.New("session expired")

// Options configures a Manager.
type Options struct {
	// Lifetime is added to the time a token is received to compute its expiry.
	Lifetime time.Duration
	// FallbackDelay is how long to wait for a broadcast before trying the fallback.
	FallbackDelay time.Duration
	// WaitTimeout bounds how long Initialize waits for a token.
	WaitTimeout time.Duration
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Change describes a session transition delivered to listeners.
type Change struct {
	Type    session.EventType
	Session session.Session
	Err     error
}

// Authenticated reports whether the change left a usable token behind.
func (c Change) Authenticated() bool {
	return c.Session.Token != ""
}

// Manager is the single source of truth for the current session.
type Manager struct {
	store    session.Store
	sources  []session.EventSource
	fallback session.EventSource
	opts     Options
	log      zerolog.Logger

	startOnce sync.Once
	readyOnce sync.Once
	ready     chan struct{}
	cancel    context.CancelFunc

	mu        sync.RWMutex
	sess      *session.Session
	lastErr   error
	listeners []func(Change)
	unsubs    []func()
}

// NewManager creates a Manager. fallback may be nil.
func NewManager(store session.Store, sources []session.EventSource, fallback session.EventSource, opts Options, log zerolog.Logger) *Manager {
	if opts.Lifetime <= 0 {
		opts.Lifetime = session.DefaultLifetime
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Manager{
		store:    store,
		sources:  sources,
		fallback: fallback,
		opts:     opts,
		log:      log,
		ready:    make(chan struct{}),
	}
}

// Initialize starts token acquisition on the first call and waits until a
// token is available or the wait timeout passes. Later calls wait on the
// same acquisition. Returns session.ErrNotAuthenticated if no token was found.
func (m *Manager) Initialize(ctx context.Context) error {
	m.startOnce.Do(m.start)

	select {
	case <-m.ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	if !m.IsAuthenticated() {
		return session.ErrNotAuthenticated
	}
	return nil
}

func (m *Manager) start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	m.rehydrate(ctx)

	// deadlines start before any Subscribe call, which may block on a dial
	if m.IsAuthenticated() {
		m.resolve()
	} else {
		go m.wait(ctx)
	}

	for _, src := range m.sources {
		go m.subscribe(ctx, src)
	}
}

func (m *Manager) subscribe(ctx context.Context, src session.EventSource) {
	unsub, err := src.Subscribe(ctx, m.HandleEvent)
	if err != nil {
		// recoverable: the remaining sources and the fallback still run
		m.recordError(fmt.Errorf("subscribe to session broadcasts: %w", err))
		return
	}
	m.track(ctx, unsub)
}

// track keeps unsub for Close, or calls it at once when Close already ran.
func (m *Manager) track(ctx context.Context, unsub func()) {
	if unsub == nil {
		return
	}
	m.mu.Lock()
	if ctx.Err() != nil {
		m.mu.Unlock()
		unsub()
		return
	}
	m.unsubs = append(m.unsubs, unsub)
	m.mu.Unlock()
}

// wait runs the fallback after FallbackDelay and gives up after WaitTimeout.
func (m *Manager) wait(ctx context.Context) {
	timeout := time.NewTimer(m.opts.WaitTimeout)
	defer timeout.Stop()

	var fallbackC <-chan time.Time
	if m.fallback != nil {
		fallback := time.NewTimer(m.opts.FallbackDelay)
		defer fallback.Stop()
		fallbackC = fallback.C
	}

	for {
		select {
		case <-m.ready:
			return
		case <-ctx.Done():
			m.resolve()
			return
		case <-fallbackC:
			fallbackC = nil
			if m.IsAuthenticated() {
				continue
			}
			m.log.Debug().Msg("no session broadcast yet, trying fallback sources")
			go m.runFallback(ctx)
		case <-timeout.C:
			m.log.Info().Dur("waited", m.opts.WaitTimeout).Msg("no session received")
			m.resolve()
			return
		}
	}
}

func (m *Manager) runFallback(ctx context.Context) {
	unsub, err := m.fallback.Subscribe(ctx, m.HandleEvent)
	if err != nil {
		m.log.Debug().Err(err).Msg("fallback found no token")
		return
	}
	m.track(ctx, unsub)
}

func (m *Manager) rehydrate(ctx context.Context) {
	rec, err := m.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			m.log.Warn().Err(err).Msg("failed to load persisted session")
		}
		return
	}

	s := rec.Session(m.opts.Lifetime)
	if s.Token == "" {
		return
	}
	if s.Expired(m.opts.Now()) {
		m.log.Info().Msg("persisted session expired, discarding")
		if err := m.store.Delete(ctx); err != nil {
			m.log.Warn().Err(err).Msg("failed to delete expired session")
		}
		return
	}

	m.mu.Lock()
	m.sess = &s
	m.mu.Unlock()
	m.log.Debug().Msg("restored persisted session")
}

func (m *Manager) resolve() {
	m.readyOnce.Do(func() { close(m.ready) })
}

// HandleEvent applies a session broadcast.
func (m *Manager) HandleEvent(ev session.Event) {
	ctx := context.Background()

	switch ev.Type {
	case session.EventUpdated:
		if ev.Detail.Session == nil || ev.Detail.Session.AccessToken == "" {
			m.recordError(fmt.Errorf("session update: %w", session.ErrMissingToken))
			return
		}

		s := session.New(ev.Detail.Session.AccessToken, ev.Detail.Session.User, m.opts.Now(), m.opts.Lifetime)

		m.mu.Lock()
		m.sess = &s
		m.lastErr = nil
		m.mu.Unlock()

		if err := m.store.Save(ctx, s.ToRecord(m.opts.Now())); err != nil {
			m.log.Warn().Err(err).Msg("failed to persist session")
		}

		m.log.Info().Msg("session updated")
		m.resolve()
		m.emit(Change{Type: session.EventUpdated, Session: s})

	case session.EventLogout:
		if err := m.clear(ctx); err != nil {
			m.log.Warn().Err(err).Msg("failed to delete persisted session")
		}
		m.log.Info().Msg("logged out")
		m.emit(Change{Type: session.EventLogout})

	case session.EventError:
		msg := ev.Detail.Error
		if msg == "" {
			msg = "unknown authentication error"
		}
		err := errors.New(msg)
		m.recordError(err)

		m.mu.RLock()
		var current session.Session
		if m.sess != nil {
			current = *m.sess
		}
		m.mu.RUnlock()
		m.emit(Change{Type: session.EventError, Session: current, Err: err})

	default:
		m.log.Debug().Str("type", string(ev.Type)).Msg("ignoring unknown session event")
	}
}

// Logout clears the session. It is the path taken when the server rejects the token.
func (m *Manager) Logout(ctx context.Context) error {
	err := m.clear(ctx)
	m.emit(Change{Type: session.EventLogout})
	return err
}

func (m *Manager) clear(ctx context.Context) error {
	m.mu.Lock()
	m.sess = nil
	m.mu.Unlock()

	if err := m.store.Delete(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Token returns the current bearer token, waiting for Initialize first. An
// expired session is destroyed.
func (m *Manager) Token(ctx context.Context) (string, error) {
	if err := m.Initialize(ctx); err != nil && !errors.Is(err, session.ErrNotAuthenticated) {
		return "", err
	}

	m.mu.RLock()
	s := m.sess
	m.mu.RUnlock()

	if s == nil || s.Token == "" {
		return "", session.ErrNotAuthenticated
	}

	if s.Expired(m.opts.Now()) {
		if err := m.clear(ctx); err != nil {
			m.log.Warn().Err(err).Msg("failed to delete expired session")
		}
		m.emit(Change{Type: session.EventLogout, Err: ErrSessionExpired})
		return "", fmt.Errorf("%w: %w", session.ErrNotAuthenticated, ErrSessionExpired)
	}

	return s.Token, nil
}

// Current returns a copy of the session, if any.
func (m *Manager) Current() (session.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.sess == nil {
		return session.Session{}, false
	}
	return *m.sess, true
}

// IsAuthenticated reports whether a valid token is held.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sess != nil && m.sess.IsAuthenticated(m.opts.Now())
}

// LastError returns the most recent authentication error, cleared by a session update.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// OnChange registers fn to receive every session transition.
func (m *Manager) OnChange(fn func(Change)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Close stops all subscriptions.
func (m *Manager) Close() {
	m.mu.RLock()
	cancel := m.cancel
	m.mu.RUnlock()

	// cancel first so a subscription still in flight releases itself in track
	if cancel != nil {
		cancel()
	}

	m.mu.Lock()
	unsubs := m.unsubs
	m.unsubs = nil
	m.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

func (m *Manager) recordError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
	m.log.Warn().Err(err).Msg("authentication error")
}

func (m *Manager) emit(c Change) {
	m.mu.RLock()
	listeners := slices.Clone(m.listeners)
	m.mu.RUnlock()

	for _, fn := range listeners {
		fn(c)
	}
}
