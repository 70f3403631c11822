package navigation

import (
	"math"
	"sort"
)

// voiceScheduler decides when to announce the upcoming maneuver. The watermark
// is the smallest distance already announced for the current step; it is
// re-armed whenever the (route, step) pair changes.
type voiceScheduler struct {
	thresholds []float64
	enabled    bool

	watermark     float64
	lastStepIndex int
	lastRouteGen  uint64
}

func newVoiceScheduler(thresholds []float64) *voiceScheduler {
	sorted := append([]float64(nil), thresholds...)
	sort.Float64s(sorted)
	v := &voiceScheduler{thresholds: sorted}
	v.reset()
	return v
}

func (v *voiceScheduler) reset() {
	v.watermark = math.Inf(1)
	v.lastStepIndex = -1
	v.lastRouteGen = 0
}

// next returns the text to announce for this sample, if any.
func (v *voiceScheduler) next(routeGen uint64, stepIndex int, distance float64, instruction string) (string, bool) {
	if !v.enabled {
		return "", false
	}
	if stepIndex != v.lastStepIndex || routeGen != v.lastRouteGen {
		v.watermark = math.Inf(1)
		v.lastStepIndex = stepIndex
		v.lastRouteGen = routeGen
	}

	for _, threshold := range v.thresholds {
		if distance <= threshold && v.watermark > threshold {
			v.watermark = distance
			return announcementText(distance, instruction), true
		}
	}
	return "", false
}
