package metrics

import (
	"strconv"
	"time"
)

// FleetSnapshot is the minimal view a Collector needs to publish
// per-node gauges; satisfied by scheduler.Snapshot.
type FleetSnapshot interface {
	NodeStatuses() []bool
	NodeQueueLengths() []int
}

// SnapshotSource produces a FleetSnapshot on demand.
type SnapshotSource func() FleetSnapshot

// Collector periodically samples the fleet and updates the per-node
// gauges. Counters and histograms are updated inline by their owning
// components instead (submit, completion, migration); this collector
// only covers state that has no natural "event" to hang an update off.
type Collector struct {
	source SnapshotSource
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector over source.
func NewCollector(source SnapshotSource) *Collector {
	return &Collector{
		source: source,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics every interval.
func (c *Collector) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	snap := c.source()
	statuses := snap.NodeStatuses()
	lengths := snap.NodeQueueLengths()

	for i, active := range statuses {
		label := strconv.Itoa(i)
		v := 0.0
		if active {
			v = 1
		}
		NodeActive.WithLabelValues(label).Set(v)
	}
	for i, l := range lengths {
		NodeQueueLength.WithLabelValues(strconv.Itoa(i)).Set(float64(l))
	}
}
