// Package metrics keeps lock-free engine counters. Hot paths bump them
// with a single atomic add; Export renders a plaintext dump for logs
// and diagnostics.
package metrics

import (
	"fmt"
	"sync/atomic"
)

type Counters struct {
	eventsRecorded    uint64
	alertsSent        uint64
	mitigations       uint64
	snapshotsCaptured uint64
	restoresCompleted uint64
	rebuildsCompleted uint64
	apiRetries        uint64
}

var std = &Counters{}

// Default returns the process-wide counter set.
func Default() *Counters {
	return std
}

func (c *Counters) IncEventsRecorded() { atomic.AddUint64(&c.eventsRecorded, 1) }
func (c *Counters) IncAlertsSent()     { atomic.AddUint64(&c.alertsSent, 1) }
func (c *Counters) IncMitigations()    { atomic.AddUint64(&c.mitigations, 1) }
func (c *Counters) IncSnapshots()      { atomic.AddUint64(&c.snapshotsCaptured, 1) }
func (c *Counters) IncRestores()       { atomic.AddUint64(&c.restoresCompleted, 1) }
func (c *Counters) IncRebuilds()       { atomic.AddUint64(&c.rebuildsCompleted, 1) }
func (c *Counters) IncAPIRetries()     { atomic.AddUint64(&c.apiRetries, 1) }

// Snapshot returns a point-in-time copy of every counter.
func (c *Counters) Snapshot() map[string]uint64 {
	return map[string]uint64{
		"events_recorded":    atomic.LoadUint64(&c.eventsRecorded),
		"alerts_sent":        atomic.LoadUint64(&c.alertsSent),
		"mitigations":        atomic.LoadUint64(&c.mitigations),
		"snapshots_captured": atomic.LoadUint64(&c.snapshotsCaptured),
		"restores_completed": atomic.LoadUint64(&c.restoresCompleted),
		"rebuilds_completed": atomic.LoadUint64(&c.rebuildsCompleted),
		"api_retries":        atomic.LoadUint64(&c.apiRetries),
	}
}

func (c *Counters) Export() string {
	return fmt.Sprintf(
		"events_recorded %d\nalerts_sent %d\nmitigations %d\nsnapshots_captured %d\nrestores_completed %d\nrebuilds_completed %d\napi_retries %d\n",
		atomic.LoadUint64(&c.eventsRecorded),
		atomic.LoadUint64(&c.alertsSent),
		atomic.LoadUint64(&c.mitigations),
		atomic.LoadUint64(&c.snapshotsCaptured),
		atomic.LoadUint64(&c.restoresCompleted),
		atomic.LoadUint64(&c.rebuildsCompleted),
		atomic.LoadUint64(&c.apiRetries),
	)
}

// Reset zeroes every counter. Test helper.
func (c *Counters) Reset() {
	atomic.StoreUint64(&c.eventsRecorded, 0)
	atomic.StoreUint64(&c.alertsSent, 0)
	atomic.StoreUint64(&c.mitigations, 0)
	atomic.StoreUint64(&c.snapshotsCaptured, 0)
	atomic.StoreUint64(&c.restoresCompleted, 0)
	atomic.StoreUint64(&c.rebuildsCompleted, 0)
	atomic.StoreUint64(&c.apiRetries, 0)
}
