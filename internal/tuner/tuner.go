// Package tuner picks the density-clustering radius (eps) from a distance
// matrix alone, using a k-distance knee with deterministic fallbacks.
package tuner

import (
	"math"
	"sort"
)

// Distances is the read-only view of a symmetric distance matrix.
type Distances interface {
	Len() int
	At(i, j int) float64
}

// KneeFunc locates the knee of an ascending curve. It returns the index of
// the last point before the sharp rise, or ok=false when no knee is evident.
type KneeFunc func(curve []float64) (index int, ok bool)

// Method names the stage that produced eps.
type Method string

const (
	MethodKnee       Method = "knee"
	MethodPercentile Method = "percentile"
	MethodMedian     Method = "median"
	MethodFloor      Method = "floor"
)

// Config controls eps estimation. The zero value is not usable; start from DefaultConfig.
type Config struct {
	// K selects the k-th nearest other image for the k-distance curve.
	K int
	// Strictness scales the detected separation down, biasing toward under-grouping.
	Strictness float64
	// Floor is the smallest eps ever returned.
	Floor float64
	// MaxEps is the largest eps considered plausible.
	MaxEps float64
	// Percentile (0-100) of all pairwise distances used by the first fallback.
	Percentile float64
	// FlatTolerance is the minimum curve range for knee detection to be attempted.
	FlatTolerance float64
	// MinPoints is the minimum curve length for knee detection to be attempted.
	MinPoints int
	// Knee is the knee detection strategy; nil means DefaultKnee.
	Knee KneeFunc
}

// DefaultConfig returns the tuning used by the CLI and server.
func DefaultConfig() Config {
	return Config{
		K:             1,
		Strictness:    0.7,
		Floor:         0.05,
		MaxEps:        0.25,
		Percentile:    10,
		FlatTolerance: 0.02,
		MinPoints:     3,
	}
}

// KForMinNeighbors returns the k-distance rank matching a clustering
// minimum-neighbour count that includes the point itself.
func KForMinNeighbors(minNeighbors int) int {
	return max(1, minNeighbors-1)
}

// Result is the tuned eps and how it was obtained.
type Result struct {
	Eps    float64 `json:"eps"`
	Method Method  `json:"method"`
	// KneeIndex is the detected knee position on the curve, or -1.
	KneeIndex int `json:"knee_index"`
}

// KDistances returns, for every image, the distance to its k-th nearest
// other image, sorted ascending. k is clamped to [1, n-1].
func KDistances(d Distances, k int) []float64 {
	n := d.Len()
	if n < 2 {
		return nil
	}
	k = min(max(k, 1), n-1)

	curve := make([]float64, n)
	row := make([]float64, 0, n-1)
	for i := 0; i < n; i++ {
		row = row[:0]
		for j := 0; j < n; j++ {
			if i != j {
				row = append(row, d.At(i, j))
			}
		}
		sort.Float64s(row)
		curve[i] = row[k-1]
	}
	sort.Float64s(curve)
	return curve
}

// Tune estimates eps for d. It never fails.
func Tune(d Distances, cfg Config) Result {
	n := d.Len()
	pairwise := make([]float64, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairwise = append(pairwise, d.At(i, j))
		}
	}
	return TuneCurve(KDistances(d, cfg.K), pairwise, cfg)
}

// TuneCurve estimates eps from an ascending k-distance curve and the batch's
// pairwise distances. The stages are tried in order:
//
//  1. knee separation: midpoint between the knee point and the next point, times Strictness;
//  2. the Percentile of pairwise distances;
//  3. the curve median times Strictness;
//  4. Floor.
//
// A stage is skipped when its value is not finite, not positive, or above
// MaxEps. The result is never below Floor.
func TuneCurve(curve, pairwise []float64, cfg Config) Result {
	knee := cfg.Knee
	if knee == nil {
		knee = DefaultKnee
	}

	if len(curve) >= max(cfg.MinPoints, 2) && curveRange(curve) >= cfg.FlatTolerance {
		if idx, ok := knee(curve); ok && idx >= 0 && idx < len(curve)-1 {
			separation := (curve[idx] + curve[idx+1]) / 2
			if eps := separation * cfg.Strictness; cfg.usable(eps) {
				return cfg.result(eps, MethodKnee, idx)
			}
		}
	}

	if eps := percentile(pairwise, cfg.Percentile); cfg.usable(eps) {
		return cfg.result(eps, MethodPercentile, -1)
	}

	if eps := median(curve) * cfg.Strictness; cfg.usable(eps) {
		return cfg.result(eps, MethodMedian, -1)
	}

	return cfg.result(cfg.Floor, MethodFloor, -1)
}

func (cfg Config) usable(eps float64) bool {
	return !math.IsNaN(eps) && !math.IsInf(eps, 0) && eps > 0 && eps <= cfg.MaxEps
}

func (cfg Config) result(eps float64, method Method, knee int) Result {
	if math.IsNaN(eps) || math.IsInf(eps, 0) || eps < cfg.Floor {
		eps = cfg.Floor
	}
	if eps <= 0 {
		// Misconfigured floor; eps must stay positive for clustering to proceed.
		eps = math.SmallestNonzeroFloat64
	}
	return Result{Eps: eps, Method: method, KneeIndex: knee}
}

func curveRange(curve []float64) float64 {
	if len(curve) == 0 {
		return 0
	}
	return curve[len(curve)-1] - curve[0]
}

// percentile uses linear interpolation between closest ranks.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	p = math.Max(0, math.Min(100, p))
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func median(values []float64) float64 {
	return percentile(values, 50)
}
