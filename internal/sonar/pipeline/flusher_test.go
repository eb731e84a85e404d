package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/bathymetry.report/internal/timeutil"
)

// mockPersister implements Persister for testing
type mockPersister struct {
	mu      sync.Mutex
	reasons []string
	pending int
	err     error
}

func (m *mockPersister) Persist(store SnapshotStore, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reasons = append(m.reasons, reason)
	if m.err == nil {
		m.pending = 0
	}
	return m.err
}

func (m *mockPersister) PendingChanges() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

func (m *mockPersister) setPending(n int) {
	m.mu.Lock()
	m.pending = n
	m.mu.Unlock()
}

func (m *mockPersister) getReasons() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.reasons...)
}

// syncBuffer guards a log buffer shared with the flusher goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func startFlusher(t *testing.T, cfg SnapshotFlusherConfig) (*SnapshotFlusher, *timeutil.MockClock, context.CancelFunc, <-chan error) {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	cfg.Clock = clock
	if cfg.Logger == nil {
		cfg.Logger = log.New(&syncBuffer{}, "", 0)
	}
	f := NewSnapshotFlusher(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()
	require.Eventually(t, func() bool { return clock.TickerCount() > 0 }, time.Second, time.Millisecond)
	return f, clock, cancel, done
}

func TestNewSnapshotFlusher_Defaults(t *testing.T) {
	f := NewSnapshotFlusher(SnapshotFlusherConfig{
		Persister: &mockPersister{},
		Store:     &memStore{},
		Interval:  10 * time.Second,
	})
	assert.Equal(t, "periodic_flush", f.reason)
	assert.Equal(t, 10*time.Second, f.interval)
	assert.NotNil(t, f.logger)
	assert.IsType(t, timeutil.RealClock{}, f.clock)
	assert.False(t, f.IsRunning())
}

func TestSnapshotFlusher_ZeroInterval(t *testing.T) {
	var logBuf bytes.Buffer
	f := NewSnapshotFlusher(SnapshotFlusherConfig{
		Persister: &mockPersister{},
		Store:     &memStore{},
		Logger:    log.New(&logBuf, "", 0),
	})
	require.NoError(t, f.Run(context.Background()))
	assert.Contains(t, logBuf.String(), "interval is zero")
}

func TestSnapshotFlusher_PeriodicAndFinal(t *testing.T) {
	p := &mockPersister{}
	f, clock, cancel, done := startFlusher(t, SnapshotFlusherConfig{
		Persister: p,
		Store:     &memStore{},
		Interval:  time.Minute,
		Reason:    "test",
	})
	assert.True(t, f.IsRunning())

	clock.Advance(30 * time.Second)
	clock.Advance(30 * time.Second)
	require.Eventually(t, func() bool { return len(p.getReasons()) == 1 }, time.Second, time.Millisecond)
	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return len(p.getReasons()) == 2 }, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []string{"test", "test", "final_flush"}, p.getReasons())
	assert.False(t, f.IsRunning())
}

func TestSnapshotFlusher_MinChangesSkips(t *testing.T) {
	p := &mockPersister{}
	logs := &syncBuffer{}
	f, clock, _, done := startFlusher(t, SnapshotFlusherConfig{
		Persister:  p,
		Store:      &memStore{},
		Interval:   time.Second,
		MinChanges: 10,
		Logger:     log.New(logs, "", 0),
	})

	p.setPending(3)
	clock.Advance(time.Second)
	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(logs.String()), []byte("skipping flush"))
	}, time.Second, time.Millisecond)
	assert.Empty(t, p.getReasons())

	p.setPending(25)
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return len(p.getReasons()) == 1 }, time.Second, time.Millisecond)

	f.Stop()
	require.NoError(t, <-done)
	assert.Equal(t, []string{"periodic_flush", "final_flush"}, p.getReasons())
}

func TestSnapshotFlusher_StopIsIdempotent(t *testing.T) {
	p := &mockPersister{}
	f, _, cancel, done := startFlusher(t, SnapshotFlusherConfig{
		Persister: p,
		Store:     &memStore{},
		Interval:  time.Hour,
	})
	defer cancel()

	f.Stop()
	f.Stop()
	require.NoError(t, <-done)
	assert.Equal(t, []string{"final_flush"}, p.getReasons())
}

func TestSnapshotFlusher_PersistErrorIsLogged(t *testing.T) {
	p := &mockPersister{err: errors.New("store offline")}
	logs := &syncBuffer{}
	f, clock, _, done := startFlusher(t, SnapshotFlusherConfig{
		Persister: p,
		Store:     &memStore{},
		Interval:  time.Second,
		Logger:    log.New(logs, "", 0),
	})
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return len(p.getReasons()) == 1 }, time.Second, time.Millisecond)
	f.Stop()
	require.NoError(t, <-done)
	assert.Contains(t, logs.String(), "error during periodic_flush: store offline")
}

func TestSnapshotFlusher_FlushNow(t *testing.T) {
	p := &mockPersister{}
	f := NewSnapshotFlusher(SnapshotFlusherConfig{Persister: p, Store: &memStore{}, Interval: time.Minute})
	f.FlushNow()
	assert.Equal(t, []string{"manual"}, p.getReasons())
}

func TestSnapshotFlusher_PrunesAfterFlush(t *testing.T) {
	e := surveyed(t)
	store := &memStore{}
	store.recs = []*SnapshotRecord{{SurveyID: "other-survey", Reason: "old"}}
	logs := &syncBuffer{}
	f := NewSnapshotFlusher(SnapshotFlusherConfig{
		Persister: e,
		Store:     store,
		Interval:  time.Minute,
		Keep:      2,
		Logger:    log.New(logs, "", 0),
	})
	for i := 0; i < 4; i++ {
		f.FlushNow()
	}
	assert.Equal(t, []string{"old", "manual", "manual"}, store.reasons())
	assert.Contains(t, logs.String(), "pruned 1 old snapshots (keep=2)")
}

func TestSnapshotFlusher_KeepZeroRetainsAll(t *testing.T) {
	e := surveyed(t)
	store := &memStore{}
	f := NewSnapshotFlusher(SnapshotFlusherConfig{Persister: e, Store: store, Interval: time.Minute})
	for i := 0; i < 4; i++ {
		f.FlushNow()
	}
	assert.Len(t, store.reasons(), 4)
}

// The flusher writes engine snapshots to a real store end to end.
func TestSnapshotFlusher_Engine(t *testing.T) {
	e := surveyed(t)
	store := &memStore{}
	f, clock, cancel, done := startFlusher(t, SnapshotFlusherConfig{
		Persister:  e,
		Store:      store,
		Interval:   time.Second,
		MinChanges: 1,
	})
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return len(store.reasons()) == 1 }, time.Second, time.Millisecond)

	// Nothing changed since the last flush.
	clock.Advance(time.Second)
	cancel()
	require.NoError(t, <-done)
	assert.False(t, f.IsRunning())
	assert.Equal(t, []string{"periodic_flush", "final_flush"}, store.reasons())
	assert.Equal(t, 0, e.PendingChanges())
}
