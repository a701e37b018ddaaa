package cluster

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dense [][]float64

func (d dense) Len() int            { return len(d) }
func (d dense) At(i, j int) float64 { return d[i][j] }

func filled(n int, v float64) dense {
	d := make(dense, n)
	for i := range d {
		d[i] = make([]float64, n)
		for j := range d[i] {
			if i != j {
				d[i][j] = v
			}
		}
	}
	return d
}

func set(d dense, i, j int, v float64) {
	d[i][j], d[j][i] = v, v
}

func TestPartitionIdentical(t *testing.T) {
	a := Partition(filled(6, 0), 0.05, 2)

	assert.Equal(t, 1, a.Count)
	assert.Equal(t, []int{0, 0, 0, 0, 0, 0}, a.Labels)
	for i := range a.Noise {
		assert.False(t, a.Noise[i])
		assert.True(t, a.Core[i])
	}
}

func TestPartitionAllDissimilar(t *testing.T) {
	a := Partition(filled(5, 0.5), 0.1, 2)

	assert.Equal(t, 5, a.Count)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, a.Labels)
	for i := range a.Noise {
		assert.True(t, a.Noise[i])
	}
}

func TestPartitionGroupsAndSingletons(t *testing.T) {
	// 0,1,2 near duplicates; 3 and 4 unrelated.
	d := filled(5, 0.6)
	set(d, 0, 1, 0.02)
	set(d, 0, 2, 0.04)
	set(d, 1, 2, 0.03)
	set(d, 3, 4, 0.55)

	a := Partition(d, 0.2, 2)

	require.Equal(t, 3, a.Count)
	assert.Equal(t, []int{0, 0, 0, 1, 2}, a.Labels)
	assert.Equal(t, [][]int{{0, 1, 2}, {3}, {4}}, a.Members())
}

func TestPartitionTransitiveChain(t *testing.T) {
	// 0-1 and 1-2 are within eps, 0-2 is not: density reachability joins all three.
	d := filled(4, 0.9)
	set(d, 0, 1, 0.1)
	set(d, 1, 2, 0.1)
	set(d, 0, 2, 0.2)

	a := Partition(d, 0.15, 2)

	assert.Equal(t, []int{0, 0, 0, 1}, a.Labels)
}

func TestPartitionBorderGoesToLowestCluster(t *testing.T) {
	// Cluster X = 0..3, border point 4, cluster Y = 5..8.
	d := filled(9, 0.9)
	for _, g := range [][]int{{0, 1, 2, 3}, {5, 6, 7, 8}} {
		for _, i := range g {
			for _, j := range g {
				if i != j {
					set(d, i, j, 0.05)
				}
			}
		}
	}
	set(d, 4, 3, 0.08)
	set(d, 4, 5, 0.08)

	a := Partition(d, 0.1, 4)

	require.Equal(t, 2, a.Count)
	assert.False(t, a.Core[4])
	assert.False(t, a.Noise[4])
	assert.Equal(t, a.Labels[0], a.Labels[4])
	assert.NotEqual(t, a.Labels[5], a.Labels[4])
}

func TestPartitionMinNeighborsLimitsCores(t *testing.T) {
	// A pair is dense enough for minNeighbors=2 but not 3.
	d := filled(3, 0.9)
	set(d, 0, 1, 0.01)

	assert.Equal(t, 2, Partition(d, 0.05, 2).Count)
	assert.Equal(t, 3, Partition(d, 0.05, 3).Count)
}

func TestPartitionEmpty(t *testing.T) {
	a := Partition(dense{}, 0.1, 2)
	assert.Equal(t, 0, a.Count)
	assert.Empty(t, a.Members())
}

func TestPartitionPermutationInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	n := 12
	groups := []int{0, 0, 0, 1, 1, 2, 3, 3, 3, 3, 4, 5}
	d := filled(n, 0)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if groups[i] == groups[j] {
				set(d, i, j, 0.01+0.02*rng.Float64())
			} else {
				set(d, i, j, 0.4+0.2*rng.Float64())
			}
		}
	}

	base := canonical(Partition(d, 0.1, 2).Members(), nil)

	for trial := 0; trial < 10; trial++ {
		perm := rng.Perm(n)
		pd := make(dense, n)
		for i := range pd {
			pd[i] = make([]float64, n)
			for j := range pd[i] {
				pd[i][j] = d[perm[i]][perm[j]]
			}
		}
		got := canonical(Partition(pd, 0.1, 2).Members(), perm)
		assert.Equal(t, base, got)
	}
}

// canonical maps member indices back through perm and sorts for comparison.
func canonical(groups [][]int, perm []int) [][]int {
	out := make([][]int, 0, len(groups))
	for _, g := range groups {
		mapped := make([]int, len(g))
		for k, i := range g {
			if perm != nil {
				mapped[k] = perm[i]
			} else {
				mapped[k] = i
			}
		}
		sort.Ints(mapped)
		out = append(out, mapped)
	}
	sort.Slice(out, func(a, b int) bool { return out[a][0] < out[b][0] })
	return out
}
