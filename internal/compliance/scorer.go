package compliance

import (
	"math"
	"sync"
)

// MotionPreference mirrors the host's reduced-motion setting.
type MotionPreference string

const (
	PreferenceNoPreference MotionPreference = "no-preference"
	PreferenceReduce       MotionPreference = "reduce"
)

const (
	historyCapacity = 100

	// Weights blending average compliance with consistency, and the
	// deviation ceiling the consistency term is normalized against.
	complianceWeight  = 0.7
	consistencyWeight = 0.3
	maxDeviation      = 25.0
)

// Element is one tracked visually-animated element, as reported by the
// host's element-tree observer.
type Element struct {
	ID                    string
	AnimationClasses      []string
	DeclaresReducedMotion bool
}

// Scorer tracks which animated elements honor the reduced-motion
// preference. It consumes change-feed notifications from the host and
// never walks an element tree itself.
type Scorer struct {
	mu         sync.Mutex
	preference MotionPreference
	elements   map[string]Element
	history    []float64
}

func NewScorer() *Scorer {
	return &Scorer{
		preference: PreferenceNoPreference,
		elements:   make(map[string]Element),
	}
}

// ElementsAdded registers newly observed elements.
func (s *Scorer) ElementsAdded(elements ...Element) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, el := range elements {
		s.elements[el.ID] = el
	}
}

// ElementChanged updates a tracked element after a style or class
// mutation. Unknown elements are tracked from this point on.
func (s *Scorer) ElementChanged(el Element) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.elements[el.ID] = el
}

// ElementsRemoved drops elements from tracking.
func (s *Scorer) ElementsRemoved(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		delete(s.elements, id)
	}
}

// SetPreference updates the motion preference all elements are judged
// against.
func (s *Scorer) SetPreference(p MotionPreference) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.preference = p
}

// Preference returns the current motion preference.
func (s *Scorer) Preference() MotionPreference {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.preference
}

// TrackedCount returns the number of elements currently tracked.
func (s *Scorer) TrackedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.elements)
}

// Score computes the current compliance percentage. With zero tracked
// elements compliance is 100; with no-preference every element counts
// as compliant.
func (s *Scorer) Score() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.scoreLocked()
}

func (s *Scorer) scoreLocked() float64 {
	if len(s.elements) == 0 {
		return 100
	}
	if s.preference != PreferenceReduce {
		return 100
	}

	compliant := 0
	for _, el := range s.elements {
		if el.DeclaresReducedMotion || len(el.AnimationClasses) == 0 {
			compliant++
		}
	}

	return float64(compliant) / float64(len(s.elements)) * 100
}

// RecordSample appends the current score to the bounded compliance
// history used by AccessibilityScore.
func (s *Scorer) RecordSample() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, s.scoreLocked())
	if len(s.history) > historyCapacity {
		s.history = s.history[1:]
	}
}

// AccessibilityScore blends average compliance with a consistency score
// derived from the standard deviation of recorded compliance samples.
func (s *Scorer) AccessibilityScore() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.history) == 0 {
		return s.scoreLocked()
	}

	var sum float64
	for _, v := range s.history {
		sum += v
	}
	mean := sum / float64(len(s.history))

	var variance float64
	for _, v := range s.history {
		d := v - mean
		variance += d * d
	}
	stddev := math.Sqrt(variance / float64(len(s.history)))

	consistency := 1 - math.Min(stddev/maxDeviation, 1)

	return complianceWeight*mean + consistencyWeight*consistency*100
}
