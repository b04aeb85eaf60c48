package auth

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/dtfchat/internal/core/chat"
	"github.com/hay-kot/dtfchat/internal/core/session"
)

// memStore is an in-memory session.Store.
type memStore struct {
	mu      sync.Mutex
	rec     *session.Record
	deletes int
}

func (m *memStore) Load(ctx context.Context) (session.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil {
		return session.Record{}, session.ErrNotFound
	}
	return *m.rec, nil
}

func (m *memStore) Save(ctx context.Context, r session.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = &r
	return nil
}

func (m *memStore) Delete(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = nil
	m.deletes++
	return nil
}

func (m *memStore) record() *session.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rec
}

// fakeSource captures the handler so tests can emit synthetic events.
type fakeSource struct {
	mu         sync.Mutex
	handler    session.Handler
	subscribes atomic.Int32
	err        error
}

func (f *fakeSource) Subscribe(ctx context.Context, h session.Handler) (func(), error) {
	if f.err != nil {
		f.subscribes.Add(1)
		return nil, f.err
	}
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()
	f.subscribes.Add(1)
	return func() {}, nil
}

// emit waits for the manager to subscribe, then delivers ev.
func (f *fakeSource) emit(ev session.Event) {
	deadline := time.Now().Add(time.Second)
	for {
		f.mu.Lock()
		h := f.handler
		f.mu.Unlock()
		if h != nil {
			h(ev)
			return
		}
		if time.Now().After(deadline) {
			panic("fakeSource: never subscribed")
		}
		time.Sleep(time.Millisecond)
	}
}

func updated(token string) session.Event {
	return session.Event{
		Type: session.EventUpdated,
		Detail: session.EventDetail{
			Session: &session.EventSession{AccessToken: token, User: &chat.UserSummary{ID: "1", DisplayName: "Me"}},
		},
	}
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestManager(store session.Store, sources []session.EventSource, fallback session.EventSource, clk *clock) *Manager {
	opts := Options{
		Lifetime:      time.Hour,
		FallbackDelay: 10 * time.Millisecond,
		WaitTimeout:   200 * time.Millisecond,
	}
	if clk != nil {
		opts.Now = clk.Now
	}
	return NewManager(store, sources, fallback, opts, zerolog.New(io.Discard))
}

func TestManager_RehydratesPersistedSession(t *testing.T) {
	clk := &clock{now: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)}
	store := &memStore{}
	rec := session.New("persisted", nil, clk.Now(), time.Hour).ToRecord(clk.Now())
	store.rec = &rec

	src := &fakeSource{}
	m := newTestManager(store, []session.EventSource{src}, nil, clk)
	defer m.Close()

	require.NoError(t, m.Initialize(context.Background()))

	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "persisted", tok)
	assert.Eventually(t, func() bool { return src.subscribes.Load() == 1 }, time.Second, time.Millisecond,
		"broadcasts are still subscribed for later updates")
}

func TestManager_DiscardsExpiredPersistedSession(t *testing.T) {
	clk := &clock{now: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)}
	store := &memStore{}
	rec := session.New("old", nil, clk.Now().Add(-2*time.Hour), time.Hour).ToRecord(clk.Now())
	store.rec = &rec

	m := newTestManager(store, nil, nil, clk)
	defer m.Close()

	err := m.Initialize(context.Background())
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
	assert.Nil(t, store.record())
}

func TestManager_BroadcastResolvesInitialize(t *testing.T) {
	clk := &clock{now: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)}
	store := &memStore{}
	src := &fakeSource{}
	m := newTestManager(store, []session.EventSource{src}, nil, clk)
	defer m.Close()

	done := make(chan error, 1)
	go func() { done <- m.Initialize(context.Background()) }()

	require.Eventually(t, func() bool { return src.subscribes.Load() == 1 }, time.Second, time.Millisecond)
	src.emit(updated("fresh"))

	require.NoError(t, <-done)

	cur, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "fresh", cur.Token)
	require.NotNil(t, cur.ExpiresAt)
	assert.Equal(t, cur.IssuedAt.Add(time.Hour), *cur.ExpiresAt)

	rec := store.record()
	require.NotNil(t, rec)
	assert.Equal(t, "fresh", rec.AccessToken)
}

func TestManager_InitializeIsIdempotent(t *testing.T) {
	src := &fakeSource{}
	m := newTestManager(&memStore{}, []session.EventSource{src}, nil, nil)
	defer m.Close()

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Initialize(context.Background())
		}()
	}

	require.Eventually(t, func() bool { return src.subscribes.Load() >= 1 }, time.Second, time.Millisecond)
	src.emit(updated("tok"))
	wg.Wait()

	require.NoError(t, m.Initialize(context.Background()))
	assert.Equal(t, int32(1), src.subscribes.Load())
}

func TestManager_TimeoutWithoutToken(t *testing.T) {
	m := newTestManager(&memStore{}, []session.EventSource{&fakeSource{}}, nil, nil)
	defer m.Close()

	start := time.Now()
	err := m.Initialize(context.Background())

	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)

	_, err = m.Token(context.Background())
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
}

func TestManager_TokenAfterLateBroadcast(t *testing.T) {
	src := &fakeSource{}
	m := newTestManager(&memStore{}, []session.EventSource{src}, nil, nil)
	defer m.Close()

	require.ErrorIs(t, m.Initialize(context.Background()), session.ErrNotAuthenticated)

	src.emit(updated("late"))

	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "late", tok)
}

func TestManager_SubscribeFailureStillRunsFallback(t *testing.T) {
	broken := &fakeSource{err: errors.New("unsupported environment")}
	fallback := session.EventSourceFunc(func(ctx context.Context, h session.Handler) (func(), error) {
		h(updated("from-fallback"))
		return func() {}, nil
	})
	m := newTestManager(&memStore{}, []session.EventSource{broken}, fallback, nil)
	defer m.Close()

	require.NoError(t, m.Initialize(context.Background()))

	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from-fallback", tok)
	assert.Nil(t, m.LastError(), "a session update clears the recorded error")
}

func TestManager_SubscribeFailureIsReported(t *testing.T) {
	broken := &fakeSource{err: errors.New("unsupported environment")}
	m := newTestManager(&memStore{}, []session.EventSource{broken}, nil, nil)
	defer m.Close()

	require.ErrorIs(t, m.Initialize(context.Background()), session.ErrNotAuthenticated)
	require.Error(t, m.LastError())
	assert.Contains(t, m.LastError().Error(), "unsupported environment")
}

// blockingSource is an EventSource whose Subscribe blocks until release is closed.
type blockingSource struct {
	release chan struct{}
	unsubs  atomic.Int32
}

func (b *blockingSource) Subscribe(ctx context.Context, h session.Handler) (func(), error) {
	<-b.release
	return func() { b.unsubs.Add(1) }, nil
}

func TestManager_SlowSubscribeKeepsDeadlines(t *testing.T) {
	t.Run("fallback fires on time", func(t *testing.T) {
		slow := &blockingSource{release: make(chan struct{})}
		defer close(slow.release)

		fallback := session.EventSourceFunc(func(ctx context.Context, h session.Handler) (func(), error) {
			h(updated("from-fallback"))
			return func() {}, nil
		})
		m := newTestManager(&memStore{}, []session.EventSource{slow}, fallback, nil)
		defer m.Close()

		start := time.Now()
		require.NoError(t, m.Initialize(context.Background()))
		assert.Less(t, time.Since(start), 150*time.Millisecond)

		tok, err := m.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "from-fallback", tok)
	})

	t.Run("wait timeout still resolves", func(t *testing.T) {
		slow := &blockingSource{release: make(chan struct{})}
		defer close(slow.release)

		m := newTestManager(&memStore{}, []session.EventSource{slow}, nil, nil)
		defer m.Close()

		done := make(chan error, 1)
		go func() { done <- m.Initialize(context.Background()) }()

		select {
		case err := <-done:
			assert.ErrorIs(t, err, session.ErrNotAuthenticated)
		case <-time.After(time.Second):
			t.Fatal("Initialize blocked on a slow subscription")
		}
	})
}

func TestManager_CloseReleasesLateSubscription(t *testing.T) {
	slow := &blockingSource{release: make(chan struct{})}
	m := newTestManager(&memStore{}, []session.EventSource{slow}, nil, nil)

	require.ErrorIs(t, m.Initialize(context.Background()), session.ErrNotAuthenticated)
	m.Close()
	close(slow.release)

	assert.Eventually(t, func() bool { return slow.unsubs.Load() == 1 }, time.Second, time.Millisecond)
}

func seededStore(token string) *memStore {
	now := time.Now()
	rec := session.New(token, nil, now, time.Hour).ToRecord(now)
	return &memStore{rec: &rec}
}

func TestManager_LogoutEvent(t *testing.T) {
	store := seededStore("tok")
	src := &fakeSource{}
	m := newTestManager(store, []session.EventSource{src}, nil, nil)
	defer m.Close()

	var changes []Change
	m.OnChange(func(c Change) { changes = append(changes, c) })
	require.NoError(t, m.Initialize(context.Background()))

	src.emit(session.Event{Type: session.EventLogout})

	assert.False(t, m.IsAuthenticated())
	assert.Nil(t, store.record())
	require.Len(t, changes, 1)
	assert.Equal(t, session.EventLogout, changes[0].Type)
	assert.False(t, changes[0].Authenticated())
}

func TestManager_AuthErrorKeepsToken(t *testing.T) {
	src := &fakeSource{}
	m := newTestManager(seededStore("tok"), []session.EventSource{src}, nil, nil)
	defer m.Close()
	require.NoError(t, m.Initialize(context.Background()))

	var changes []Change
	m.OnChange(func(c Change) { changes = append(changes, c) })

	src.emit(session.Event{Type: session.EventError, Detail: session.EventDetail{Error: "refresh failed"}})

	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)
	require.Error(t, m.LastError())
	assert.Equal(t, "refresh failed", m.LastError().Error())
	require.Len(t, changes, 1)
	assert.True(t, changes[0].Authenticated())
}

func TestManager_LogoutClearsSession(t *testing.T) {
	clk := &clock{now: time.Now()}
	store := &memStore{}
	rec := session.New("tok", nil, clk.Now(), time.Hour).ToRecord(clk.Now())
	store.rec = &rec

	m := newTestManager(store, nil, nil, clk)
	defer m.Close()
	require.NoError(t, m.Initialize(context.Background()))

	require.NoError(t, m.Logout(context.Background()))

	_, err := m.Token(context.Background())
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
	assert.Nil(t, store.record())
}

func TestManager_ExpiryDestroysSession(t *testing.T) {
	clk := &clock{now: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)}
	store := &memStore{}
	rec := session.New("tok", nil, clk.Now(), time.Hour).ToRecord(clk.Now())
	store.rec = &rec

	m := newTestManager(store, nil, nil, clk)
	defer m.Close()
	require.NoError(t, m.Initialize(context.Background()))

	clk.Advance(2 * time.Hour)

	_, err := m.Token(context.Background())
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
	assert.ErrorIs(t, err, ErrSessionExpired)

	_, ok := m.Current()
	assert.False(t, ok)
	assert.Nil(t, store.record())
}
