package tuner

const (
	// DefaultKneeProminence is the minimum distance below the diagonal, in the
	// normalized unit square, for Kneedle to report a knee.
	DefaultKneeProminence = 0.1
	// DefaultStepShare is the share of the curve range a single jump must cover
	// for DominantStep to report it.
	DefaultStepShare = 0.5
	// DefaultStepRatio is how many times larger than every other jump a
	// dominant jump must be.
	DefaultStepRatio = 3.0
)

// DefaultKnee is the knee finder used when none is configured: a dominant
// jump wherever it sits on the curve, otherwise Kneedle.
func DefaultKnee(curve []float64) (int, bool) {
	return defaultKnee(curve)
}

var defaultKnee = FirstOf(
	DominantStep(DefaultStepShare, DefaultStepRatio),
	NewKneedle(DefaultKneeProminence),
)

// Kneedle is NewKneedle(DefaultKneeProminence).
func Kneedle(curve []float64) (int, bool) {
	return NewKneedle(DefaultKneeProminence)(curve)
}

// FirstOf returns the first knee reported by finders, tried in order.
func FirstOf(finders ...KneeFunc) KneeFunc {
	return func(curve []float64) (int, bool) {
		for _, find := range finders {
			if idx, ok := find(curve); ok {
				return idx, true
			}
		}
		return -1, false
	}
}

// DominantStep places the knee before the largest jump between consecutive
// points when that jump covers at least minShare of the curve range and is at
// least ratio times every other jump. Unlike Kneedle it does not depend on
// where the jump sits, so a batch with a single duplicate pair among many
// unrelated images still has a knee.
func DominantStep(minShare, ratio float64) KneeFunc {
	return func(curve []float64) (int, bool) {
		n := len(curve)
		if n < 3 {
			return -1, false
		}
		span := curve[n-1] - curve[0]
		if span <= 0 {
			return -1, false
		}

		best, largest, second := -1, 0.0, 0.0
		for i := 0; i+1 < n; i++ {
			gap := curve[i+1] - curve[i]
			switch {
			case gap > largest:
				best, largest, second = i, gap, largest
			case gap > second:
				second = gap
			}
		}
		if best < 0 || largest < minShare*span || largest < ratio*second {
			return -1, false
		}
		return best, true
	}
}

// NewKneedle returns a knee finder for convex increasing curves. The curve is
// normalized to the unit square and the knee is the point farthest below the
// diagonal. The lowest index wins ties.
func NewKneedle(minProminence float64) KneeFunc {
	return func(curve []float64) (int, bool) {
		n := len(curve)
		if n < 3 {
			return -1, false
		}
		lo, hi := curve[0], curve[n-1]
		span := hi - lo
		if span <= 0 {
			return -1, false
		}

		best, bestDiff := -1, 0.0
		for i, v := range curve {
			x := float64(i) / float64(n-1)
			y := (v - lo) / span
			if diff := x - y; diff > bestDiff {
				best, bestDiff = i, diff
			}
		}
		if best < 0 || bestDiff < minProminence {
			return -1, false
		}
		return best, true
	}
}

// MaxGap places the knee before the largest jump between consecutive points.
// It reports no knee when the largest jump is below minGap.
func MaxGap(minGap float64) KneeFunc {
	return func(curve []float64) (int, bool) {
		best, bestGap := -1, 0.0
		for i := 0; i+1 < len(curve); i++ {
			if gap := curve[i+1] - curve[i]; gap > bestGap {
				best, bestGap = i, gap
			}
		}
		if best < 0 || bestGap < minGap {
			return -1, false
		}
		return best, true
	}
}
