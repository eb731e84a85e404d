package pipeline

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/banshee-data/bathymetry.report/internal/timeutil"
)

// Persister is implemented by types that can persist their state.
// Engine implements this interface.
type Persister interface {
	Persist(store SnapshotStore, reason string) error
}

// changeCounter is optionally implemented by a Persister to let the
// flusher skip periodic flushes when nothing changed.
type changeCounter interface {
	PendingChanges() int
}

// surveyIdentifier is optionally implemented by a Persister so the flusher
// can prune the right survey after a flush.
type surveyIdentifier interface {
	SurveyID() string
}

// SnapshotFlusher periodically persists an engine to a SnapshotStore and
// performs a final flush on shutdown.
type SnapshotFlusher struct {
	persister  Persister
	store      SnapshotStore
	interval   time.Duration
	minChanges int
	keep       int
	reason     string
	clock      timeutil.Clock
	logger     *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// SnapshotFlusherConfig contains configuration for SnapshotFlusher.
type SnapshotFlusherConfig struct {
	// Persister is flushed on every tick (typically an Engine).
	Persister Persister
	Store     SnapshotStore
	// Interval between flushes, e.g. 60*time.Second.
	Interval time.Duration
	// MinChanges skips a periodic flush when the persister reports fewer
	// pending cell writes. Zero flushes on every tick.
	MinChanges int
	// Keep prunes the survey down to its newest Keep snapshots after every
	// successful flush when Store implements SnapshotPruner. Zero keeps all.
	Keep int
	// Reason is recorded with periodic flushes (default "periodic_flush").
	Reason string
	// Clock defaults to timeutil.RealClock.
	Clock timeutil.Clock
	// Logger defaults to log.Default().
	Logger *log.Logger
}

// NewSnapshotFlusher creates a SnapshotFlusher.
func NewSnapshotFlusher(cfg SnapshotFlusherConfig) *SnapshotFlusher {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	reason := cfg.Reason
	if reason == "" {
		reason = "periodic_flush"
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &SnapshotFlusher{
		persister:  cfg.Persister,
		store:      cfg.Store,
		interval:   cfg.Interval,
		minChanges: cfg.MinChanges,
		keep:       cfg.Keep,
		reason:     reason,
		clock:      clock,
		logger:     logger,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Run flushes on every tick until ctx is cancelled or Stop is called, then
// flushes once more. Returns nil on clean shutdown.
func (f *SnapshotFlusher) Run(ctx context.Context) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return nil
	}
	f.running = true
	f.stopCh = make(chan struct{})
	f.doneCh = make(chan struct{})
	f.mu.Unlock()

	defer func() {
		close(f.doneCh)
		f.mu.Lock()
		f.running = false
		f.mu.Unlock()
	}()

	if f.interval <= 0 {
		f.logger.Printf("[SnapshotFlusher] interval is zero or negative, not starting")
		return nil
	}

	ticker := f.clock.NewTicker(f.interval)
	defer ticker.Stop()
	f.logger.Printf("[SnapshotFlusher] started: interval=%v min_changes=%d", f.interval, f.minChanges)

	for {
		select {
		case <-ctx.Done():
			f.logger.Printf("[SnapshotFlusher] stopping due to context cancellation")
			f.flushFinal()
			return nil
		case <-f.stopCh:
			f.logger.Printf("[SnapshotFlusher] stopping due to Stop() call")
			f.flushFinal()
			return nil
		case <-ticker.C():
			f.flush()
		}
	}
}

// Stop requests the flusher to stop and waits for the final flush. It is
// safe to call multiple times.
func (f *SnapshotFlusher) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	select {
	case <-f.stopCh:
	default:
		close(f.stopCh)
	}
	done := f.doneCh
	f.mu.Unlock()
	<-done
}

// IsRunning returns whether the flusher is currently running.
func (f *SnapshotFlusher) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// FlushNow triggers an immediate flush outside the regular interval.
func (f *SnapshotFlusher) FlushNow() {
	f.persist("manual")
}

func (f *SnapshotFlusher) flush() {
	if cc, ok := f.persister.(changeCounter); ok && f.minChanges > 0 {
		if n := cc.PendingChanges(); n < f.minChanges {
			f.logger.Printf("[SnapshotFlusher] skipping flush: %d pending changes < %d", n, f.minChanges)
			return
		}
	}
	f.persist(f.reason)
}

func (f *SnapshotFlusher) flushFinal() {
	f.persist("final_flush")
}

func (f *SnapshotFlusher) persist(reason string) {
	if f.persister == nil || f.store == nil {
		return
	}
	if err := f.persister.Persist(f.store, reason); err != nil {
		f.logger.Printf("[SnapshotFlusher] error during %s: %v", reason, err)
		return
	}
	f.logger.Printf("[SnapshotFlusher] %s: grid flushed", reason)
	f.prune()
}

func (f *SnapshotFlusher) prune() {
	if f.keep <= 0 {
		return
	}
	pruner, ok := f.store.(SnapshotPruner)
	if !ok {
		return
	}
	id, ok := f.persister.(surveyIdentifier)
	if !ok {
		return
	}
	n, err := pruner.PruneSnapshots(id.SurveyID(), f.keep)
	if err != nil {
		f.logger.Printf("[SnapshotFlusher] prune failed: %v", err)
		return
	}
	if n > 0 {
		f.logger.Printf("[SnapshotFlusher] pruned %d old snapshots (keep=%d)", n, f.keep)
	}
}
