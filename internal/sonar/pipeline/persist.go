package pipeline

import (
	"encoding/gob"
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/bathymetry.report/internal/monitoring"
	"github.com/banshee-data/bathymetry.report/internal/sonar/l3grid"
	"github.com/banshee-data/bathymetry.report/internal/sonar/l5survey"
)

// SnapshotRecord is one persisted grid and track. It mirrors the
// grid_snapshots table; Track is stored in track_points.
type SnapshotRecord struct {
	SnapshotID     *int64 // set by the store after insert
	SurveyID       string
	TakenUnixNanos int64
	GridSize       int
	CellSizeMeters float64
	ValidCells     int
	ChangedCells   int
	GridBlob       []byte // l3grid.EncodeSnapshot output
	Reason         string // "periodic_flush", "final_flush", "manual"
	Track          []l5survey.TrackPoint
}

// SnapshotStore persists SnapshotRecords.
type SnapshotStore interface {
	InsertSnapshot(rec *SnapshotRecord) (int64, error)
}

// SnapshotPruner drops all but the newest keep snapshots of a survey.
type SnapshotPruner interface {
	PruneSnapshots(surveyID string, keep int) (int64, error)
}

// SnapshotLoader reads back SnapshotRecords.
type SnapshotLoader interface {
	LatestSnapshot(surveyID string) (*SnapshotRecord, error)
}

// record copies the grid and track between packets, then encodes the
// copy with no lock held.
func (e *Engine) record(reason string) (*SnapshotRecord, int, error) {
	e.mutateMu.Lock()
	snap := e.grid.Snapshot()
	track := e.track.Points()
	changes := e.grid.ChangesSinceSnapshot()
	e.mutateMu.Unlock()

	blob, err := l3grid.EncodeSnapshot(snap)
	if err != nil {
		return nil, 0, err
	}
	return &SnapshotRecord{
		SurveyID:       e.cfg.SurveyID,
		TakenUnixNanos: time.Now().UnixNano(),
		GridSize:       snap.Size,
		CellSizeMeters: snap.CellSizeMeters,
		ValidCells:     snap.ValidCount(),
		ChangedCells:   changes,
		GridBlob:       blob,
		Reason:         reason,
		Track:          track,
	}, changes, nil
}

// Persist writes the current grid and track to store.
func (e *Engine) Persist(store SnapshotStore, reason string) error {
	if e == nil || e.grid == nil || store == nil {
		return nil
	}
	rec, changes, err := e.record(reason)
	if err != nil {
		e.counters.SnapshotFailed()
		return err
	}
	id, err := store.InsertSnapshot(rec)
	if err != nil {
		e.counters.SnapshotFailed()
		return fmt.Errorf("insert snapshot: %w", err)
	}
	// Writes that arrived while the snapshot was being stored stay pending.
	e.grid.MarkPersisted(changes)
	e.counters.SnapshotSaved()

	pct := 0.0
	if total := rec.GridSize * rec.GridSize; total > 0 {
		pct = float64(rec.ValidCells) / float64(total) * 100
	}
	monitoring.Logf("[Engine] Persisted snapshot: id=%d survey=%s reason=%s valid_cells=%d/%d (%.2f%%) track=%d blob=%d bytes",
		id, rec.SurveyID, reason, rec.ValidCells, rec.GridSize*rec.GridSize, pct, len(rec.Track), len(rec.GridBlob))
	return nil
}

// PendingChanges returns the number of cell writes not yet persisted.
func (e *Engine) PendingChanges() int { return e.grid.ChangesSinceSnapshot() }

// Restore installs rec. On any error wrapping l3grid.ErrCorruptSnapshot the
// grid and track are left untouched.
func (e *Engine) Restore(rec *SnapshotRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: nil record", l3grid.ErrCorruptSnapshot)
	}
	snap, err := l3grid.DecodeSnapshot(rec.GridBlob)
	if err != nil {
		return err
	}
	return e.install(snap, rec.Track)
}

// RestoreLatest loads the most recent snapshot for the engine's survey.
func (e *Engine) RestoreLatest(loader SnapshotLoader) error {
	rec, err := loader.LatestSnapshot(e.cfg.SurveyID)
	if err != nil {
		return fmt.Errorf("load latest snapshot: %w", err)
	}
	return e.Restore(rec)
}

func (e *Engine) install(snap *l3grid.Snapshot, track []l5survey.TrackPoint) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	if err := snap.CheckFloor(e.cfg.Grid.DepthFloorMeters); err != nil {
		return err
	}
	e.mutateMu.Lock()
	defer e.mutateMu.Unlock()
	if err := e.grid.Replace(snap); err != nil {
		return err
	}
	e.track.Replace(track)
	e.trend.Reset()
	// A freshly loaded grid matches what is stored.
	e.grid.MarkPersisted(e.grid.ChangesSinceSnapshot())
	monitoring.Logf("[Engine] restored snapshot: valid_cells=%d track=%d", snap.ValidCount(), len(track))
	return nil
}

// archive is the file format written by Save.
type archive struct {
	Version  int
	SavedAt  time.Time
	GridBlob []byte
	Track    []l5survey.TrackPoint
}

const archiveVersion = 1

// Save writes the grid and track to w. The grid is copied between packets
// and encoding happens with no lock held.
func (e *Engine) Save(w io.Writer) error {
	rec, _, err := e.record("manual")
	if err != nil {
		return err
	}
	a := archive{
		Version:  archiveVersion,
		SavedAt:  time.Unix(0, rec.TakenUnixNanos).UTC(),
		GridBlob: rec.GridBlob,
		Track:    rec.Track,
	}
	if err := gob.NewEncoder(w).Encode(&a); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}
	return nil
}

// Load replaces the grid and track with the contents of r. Malformed input
// or a grid of different geometry yields an error wrapping
// l3grid.ErrCorruptSnapshot and leaves the engine untouched.
func (e *Engine) Load(r io.Reader) error {
	var a archive
	if err := gob.NewDecoder(r).Decode(&a); err != nil {
		return fmt.Errorf("%w: read archive: %v", l3grid.ErrCorruptSnapshot, err)
	}
	if a.Version != archiveVersion {
		return fmt.Errorf("%w: archive version %d", l3grid.ErrCorruptSnapshot, a.Version)
	}
	snap, err := l3grid.DecodeSnapshot(a.GridBlob)
	if err != nil {
		return err
	}
	return e.install(snap, a.Track)
}
