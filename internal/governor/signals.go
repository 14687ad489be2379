package governor

import (
	"context"
	"time"

	"codeberg.org/mutker/animctl/internal/capability"
	"codeberg.org/mutker/animctl/internal/compliance"
	"codeberg.org/mutker/animctl/internal/errors"
	"codeberg.org/mutker/animctl/internal/logger"
)

// Signal is a discrete host notification the governor subscribes to
// once, globally.
type Signal interface {
	isSignal()
}

// ResizeSignal reports a viewport size change.
type ResizeSignal struct {
	Viewport capability.Viewport
}

// VisibilitySignal reports the host surface becoming hidden or visible.
type VisibilitySignal struct {
	Visible bool
}

// MotionPreferenceSignal reports a change of the reduced-motion
// preference.
type MotionPreferenceSignal struct {
	Reduced bool
}

func (ResizeSignal) isSignal()           {}
func (VisibilitySignal) isSignal()       {}
func (MotionPreferenceSignal) isSignal() {}

// Run consumes host signals until the context is canceled or the
// channel closes.
func (g *Governor) Run(ctx context.Context, signals <-chan Signal) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-signals:
			if !ok {
				return nil
			}
			g.Dispatch(sig)
		}
	}
}

// Dispatch routes one host signal.
func (g *Governor) Dispatch(sig Signal) {
	switch s := sig.(type) {
	case ResizeSignal:
		g.HandleResize(s.Viewport)
	case VisibilitySignal:
		g.HandleVisibility(s.Visible)
	case MotionPreferenceSignal:
		g.HandleReducedMotion(s.Reduced)
	default:
		logger.Warn().Interface("signal", sig).Msg("Unknown host signal")
	}
}

// HandleResize debounces viewport resize signals; only the last size
// observed within the debounce window is applied.
func (g *Governor) HandleResize(vp capability.Viewport) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return
	}

	g.pendingView = vp

	if g.resizeTimer != nil {
		g.resizeTimer.Stop()
	}
	g.resizeTimer = time.AfterFunc(g.opts.ResizeDebounce, g.applyResize)
}

func (g *Governor) applyResize() {
	g.mu.Lock()
	vp := g.pendingView
	flipped := g.haveViewport &&
		(g.lastView.Width > g.lastView.Height) != (vp.Width > vp.Height) &&
		vp.Width != vp.Height
	g.lastView = vp
	g.haveViewport = true
	global := g.global
	targets := g.activeInstancesLocked()
	g.mu.Unlock()

	// Viewport-dependent capability signals are stale now.
	g.caps.Invalidate()

	logger.Debug().
		Int("width", vp.Width).
		Int("height", vp.Height).
		Bool("orientation_change", flipped).
		Msg("Applying viewport resize")

	for _, inst := range targets {
		if !g.opts.MonitorOnly && inst.handle != nil {
			if err := inst.handle.Resize(); err != nil {
				logger.ErrorWithCode(errors.New().Wrap(errors.ErrLifecycleCallback, err)).
					Str("instance", inst.id).
					Msg("Lifecycle resize failed")
			}
		}
		if flipped && inst.monitor != nil {
			inst.monitor.callbacks.dispatchOrientation(vp)
		}
	}

	if flipped {
		global.dispatchOrientation(vp)
	}
}

// HandleVisibility pauses all monitors when the host surface is hidden
// and resumes them when it becomes visible again. Accumulated history
// is preserved across the pause.
func (g *Governor) HandleVisibility(visible bool) {
	g.mu.Lock()
	g.hidden = !visible
	targets := g.activeInstancesLocked()
	g.mu.Unlock()

	for _, inst := range targets {
		if inst.monitor == nil {
			continue
		}
		if visible {
			inst.monitor.resume()
		} else {
			inst.monitor.pause()
		}
	}

	logger.Debug().Bool("visible", visible).Int("monitors", len(targets)).Msg("Visibility changed")
}

// HandleReducedMotion destroys every instance when the preference
// switches to reduced. Irreversible for the session; re-creating
// animations is the caller's responsibility.
func (g *Governor) HandleReducedMotion(reduced bool) {
	g.mu.Lock()
	g.reduced = reduced
	g.mu.Unlock()

	if reduced {
		g.scorer.SetPreference(compliance.PreferenceReduce)
		logger.Info().Msg("Reduced motion preference enabled, destroying all animations")
		g.DestroyAllAnimations()
	} else {
		g.scorer.SetPreference(compliance.PreferenceNoPreference)
	}
}

// instanceView is a point-in-time copy of an instance's fields, taken
// under the registry lock so signal handlers never read them unlocked.
type instanceView struct {
	id      string
	handle  Lifecycle
	monitor *Monitor
}

func (g *Governor) activeInstancesLocked() []instanceView {
	out := make([]instanceView, 0, len(g.instances))
	for _, inst := range g.instances {
		if inst.active {
			out = append(out, instanceView{inst.id, inst.handle, inst.monitor})
		}
	}

	return out
}
