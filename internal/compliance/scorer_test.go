package compliance_test

import (
	"testing"

	"codeberg.org/mutker/animctl/internal/compliance"
	"github.com/stretchr/testify/assert"
)

func TestScoreWithNoElements(t *testing.T) {
	s := compliance.NewScorer()
	assert.InDelta(t, 100.0, s.Score(), 1e-9, "zero tracked elements means full compliance")

	s.SetPreference(compliance.PreferenceReduce)
	assert.InDelta(t, 100.0, s.Score(), 1e-9)
}

func TestScoreWithNoPreference(t *testing.T) {
	s := compliance.NewScorer()
	s.ElementsAdded(
		compliance.Element{ID: "a", AnimationClasses: []string{"particles"}},
		compliance.Element{ID: "b", AnimationClasses: []string{"topology"}},
	)

	assert.InDelta(t, 100.0, s.Score(), 1e-9, "all elements compliant under no-preference")
}

func TestScoreUnderReducedMotion(t *testing.T) {
	s := compliance.NewScorer()
	s.SetPreference(compliance.PreferenceReduce)
	// a and d animate without declaring reduced-motion support, b
	// declares it, c animates nothing: two of four are compliant.
	s.ElementsAdded(
		compliance.Element{ID: "a", AnimationClasses: []string{"particles"}},
		compliance.Element{ID: "b", AnimationClasses: []string{"topology"}, DeclaresReducedMotion: true},
		compliance.Element{ID: "c"},
		compliance.Element{ID: "d", AnimationClasses: []string{"pulse"}},
	)

	assert.InDelta(t, 50.0, s.Score(), 1e-9)

	// The offending elements drop their animations.
	s.ElementChanged(compliance.Element{ID: "a"})
	s.ElementChanged(compliance.Element{ID: "d"})
	assert.InDelta(t, 100.0, s.Score(), 1e-9)

	s.ElementsRemoved("a", "b", "c", "d")
	assert.Equal(t, 0, s.TrackedCount())
	assert.InDelta(t, 100.0, s.Score(), 1e-9)
}

func TestAccessibilityScoreStable(t *testing.T) {
	s := compliance.NewScorer()
	s.SetPreference(compliance.PreferenceReduce)
	s.ElementsAdded(compliance.Element{ID: "a", DeclaresReducedMotion: true})

	for i := 0; i < 20; i++ {
		s.RecordSample()
	}

	// Perfectly stable 100% compliance: 0.7*100 + 0.3*100.
	assert.InDelta(t, 100.0, s.AccessibilityScore(), 1e-9)
}

func TestAccessibilityScoreBlendsConsistency(t *testing.T) {
	s := compliance.NewScorer()
	s.SetPreference(compliance.PreferenceReduce)

	// Alternate between 100 and 0 compliance to maximize deviation.
	for i := 0; i < 10; i++ {
		s.ElementChanged(compliance.Element{ID: "a"})
		s.RecordSample()
		s.ElementChanged(compliance.Element{ID: "a", AnimationClasses: []string{"spin"}})
		s.RecordSample()
	}

	// Mean 50, stddev 50 capped at the max deviation: 0.7*50 + 0.3*0.
	assert.InDelta(t, 35.0, s.AccessibilityScore(), 1e-9)
}
