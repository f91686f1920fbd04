package buffer

import (
	"sync/atomic"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// poolMetrics holds the pool's OpenTelemetry counters. Constructing the pool
// with a nil meter yields no-op instruments, so embedders without a metrics
// pipeline pay nothing.
type poolMetrics struct {
	reads      metric.Int64Counter
	hits       metric.Int64Counter
	misses     metric.Int64Counter
	evictions  metric.Int64Counter
	writeBacks metric.Int64Counter
}

func newPoolMetrics(meter metric.Meter) (*poolMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("framedb")
	}

	var (
		pm  poolMetrics
		err error
	)
	if pm.reads, err = meter.Int64Counter("framedb.pool.reads",
		metric.WithDescription("Successful page fetches, hits and misses combined")); err != nil {
		return nil, err
	}
	if pm.hits, err = meter.Int64Counter("framedb.pool.hits",
		metric.WithDescription("Fetches served from a resident frame")); err != nil {
		return nil, err
	}
	if pm.misses, err = meter.Int64Counter("framedb.pool.misses",
		metric.WithDescription("Fetches that had to read through the file collaborator")); err != nil {
		return nil, err
	}
	if pm.evictions, err = meter.Int64Counter("framedb.pool.evictions",
		metric.WithDescription("Resident pages released by the clock allocator")); err != nil {
		return nil, err
	}
	if pm.writeBacks, err = meter.Int64Counter("framedb.pool.write_backs",
		metric.WithDescription("Dirty pages written back to their owning file")); err != nil {
		return nil, err
	}
	return &pm, nil
}

// poolStats mirrors the counters with plain atomics so embedders and tests
// can read them without a metrics pipeline.
type poolStats struct {
	reads      atomic.Uint64
	hits       atomic.Uint64
	misses     atomic.Uint64
	evictions  atomic.Uint64
	writeBacks atomic.Uint64
	flushes    atomic.Uint64
}

// Stats is a point-in-time snapshot of the pool's activity counters.
type Stats struct {
	Reads      uint64 // successful fetches
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	WriteBacks uint64
	Flushes    uint64 // completed FlushFile calls
}

// HitRatio returns the fraction of fetches served without file I/O.
func (s Stats) HitRatio() float64 {
	if s.Reads == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Reads)
}
