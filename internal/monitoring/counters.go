package monitoring

import "sync/atomic"

// IngestCounters track the packet stream through the engine. All methods
// are safe for concurrent use.
type IngestCounters struct {
	packetsAccepted atomic.Int64
	packetsRejected atomic.Int64
	packetsDropped  atomic.Int64
	beamsApplied    atomic.Int64
	beamsSkipped    atomic.Int64
	snapshotsSaved  atomic.Int64
	snapshotErrors  atomic.Int64
}

// IngestStats is a point-in-time copy of IngestCounters.
type IngestStats struct {
	PacketsAccepted int64 `json:"packets_accepted"`
	PacketsRejected int64 `json:"packets_rejected"`
	PacketsDropped  int64 `json:"packets_dropped"`
	BeamsApplied    int64 `json:"beams_applied"`
	BeamsSkipped    int64 `json:"beams_skipped"`
	SnapshotsSaved  int64 `json:"snapshots_saved"`
	SnapshotErrors  int64 `json:"snapshot_errors"`
}

// Accepted records one applied packet and its beam outcome.
func (c *IngestCounters) Accepted(applied, skipped int) {
	c.packetsAccepted.Add(1)
	c.beamsApplied.Add(int64(applied))
	c.beamsSkipped.Add(int64(skipped))
}

// Rejected records one invalid packet.
func (c *IngestCounters) Rejected() { c.packetsRejected.Add(1) }

// Dropped records packets lost before reaching the engine.
func (c *IngestCounters) Dropped(n int64) { c.packetsDropped.Add(n) }

// SnapshotSaved records a persisted snapshot.
func (c *IngestCounters) SnapshotSaved() { c.snapshotsSaved.Add(1) }

// SnapshotFailed records a failed persist.
func (c *IngestCounters) SnapshotFailed() { c.snapshotErrors.Add(1) }

// Stats returns a copy of the current values.
func (c *IngestCounters) Stats() IngestStats {
	return IngestStats{
		PacketsAccepted: c.packetsAccepted.Load(),
		PacketsRejected: c.packetsRejected.Load(),
		PacketsDropped:  c.packetsDropped.Load(),
		BeamsApplied:    c.beamsApplied.Load(),
		BeamsSkipped:    c.beamsSkipped.Load(),
		SnapshotsSaved:  c.snapshotsSaved.Load(),
		SnapshotErrors:  c.snapshotErrors.Load(),
	}
}
