package sample

import (
	"context"
	"time"
)

// Sample is a single frame timing measurement. Immutable once recorded.
type Sample struct {
	Timestamp       time.Time
	FrameTimeMS     float64
	FPS             float64
	MemoryMB        float64
	TrackedElements int
	ComplianceScore float64
}

// Source delivers one timestamp per rendered frame. It stands in for the
// host's per-frame scheduling primitive; the channel closes when the
// context is canceled.
type Source interface {
	Frames(ctx context.Context) <-chan time.Time
}

// TickerSource emits frame timestamps at a fixed interval. Used by the
// daemon as a synthetic frame clock.
type TickerSource struct {
	Interval time.Duration
}

func (s TickerSource) Frames(ctx context.Context) <-chan time.Time {
	out := make(chan time.Time, 1)

	go func() {
		defer close(out)

		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				select {
				case out <- now:
				default:
					// Receiver is behind; drop the frame rather than block.
				}
			}
		}
	}()

	return out
}

// ChanSource is a manually driven frame source.
type ChanSource chan time.Time

func (s ChanSource) Frames(_ context.Context) <-chan time.Time {
	return s
}
