package telemetry

import (
	"context"
	"time"
)

// Collector is the recording entry point used by the rest of the
// application. A disabled configuration yields a no-op collector.
type Collector interface {
	Record(ctx context.Context, snapshot *Snapshot) error
	Close() error
}

// Store persists snapshots.
type Store interface {
	Record(snapshot *Snapshot) error
	Close() error
}

// Snapshot is one per-instance telemetry row, captured at report time.
type Snapshot struct {
	Timestamp         time.Time
	InstanceID        string
	Mode              string
	AvgFPS            float64
	MinFPS            float64
	MaxFPS            float64
	FrameTimeVariance float64
	FrameDrops        int
	MemoryMB          float64
	ComplianceScore   float64
	AlertCount        int
}
