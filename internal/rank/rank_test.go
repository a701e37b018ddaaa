package rank

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRank(t *testing.T) {
	items := []Item{
		{ID: "a.jpg", Overall: 0.62, Size: 1000},
		{ID: "b.jpg", Overall: 0.81, Size: 2000},
		{ID: "c.jpg", Overall: 0.40, Size: 3000},
		{ID: "d.jpg", Overall: 0.90, Size: 4000},
		{ID: "e.jpg", Overall: 0.10, Size: 5000},
	}

	report, err := Rank([]int{0, 0, 0, 1, 2}, items)
	require.NoError(t, err)

	require.Len(t, report.Clusters, 3)
	assert.Equal(t, Cluster{ID: 0, Members: []string{"a.jpg", "b.jpg", "c.jpg"}, Best: "b.jpg"}, report.Clusters[0])
	assert.Equal(t, Cluster{ID: 1, Members: []string{"d.jpg"}, Best: "d.jpg"}, report.Clusters[1])
	assert.Equal(t, Cluster{ID: 2, Members: []string{"e.jpg"}, Best: "e.jpg"}, report.Clusters[2])

	assert.Equal(t, []string{"a.jpg", "c.jpg"}, report.Recommendations.DeletedIDs)
	assert.Equal(t, 2, report.Recommendations.Count)
	assert.Equal(t, int64(4000), report.Recommendations.EstimatedBytesReclaimed)
}

func TestRankTiesGoToLowestID(t *testing.T) {
	items := []Item{
		{ID: "z", Overall: 0.5},
		{ID: "m", Overall: 0.5},
		{ID: "q", Overall: 0.5},
	}

	report, err := Rank([]int{0, 0, 0}, items)
	require.NoError(t, err)

	assert.Equal(t, "m", report.Clusters[0].Best)
	assert.Equal(t, []string{"q", "z"}, report.Recommendations.DeletedIDs)
}

func TestRankNaNLoses(t *testing.T) {
	items := []Item{
		{ID: "a", Overall: math.NaN()},
		{ID: "b", Overall: 0},
	}

	report, err := Rank([]int{0, 0}, items)
	require.NoError(t, err)
	assert.Equal(t, "b", report.Clusters[0].Best)
}

func TestRankInvariants(t *testing.T) {
	labels := []int{2, 0, 1, 0, 2, 2, 3}
	items := make([]Item, len(labels))
	var total int64
	for i := range items {
		items[i] = Item{ID: string(rune('a' + i)), Overall: float64(i%3) / 3, Size: int64(100 * (i + 1))}
		total += items[i].Size
	}

	report, err := Rank(labels, items)
	require.NoError(t, err)

	seen := map[string]int{}
	var kept int64
	for _, c := range report.Clusters {
		assert.Contains(t, c.Members, c.Best)
		for _, m := range c.Members {
			seen[m]++
		}
		for _, it := range items {
			if it.ID == c.Best {
				kept += it.Size
			}
		}
	}
	// Every image belongs to exactly one cluster.
	assert.Len(t, seen, len(items))
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
	assert.Equal(t, len(items)-len(report.Clusters), report.Recommendations.Count)
	assert.Equal(t, total-kept, report.Recommendations.EstimatedBytesReclaimed)
}

func TestRankErrors(t *testing.T) {
	_, err := Rank([]int{0}, nil)
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = Rank([]int{-1}, []Item{{ID: "x"}})
	assert.ErrorIs(t, err, ErrNegativeLabel)
}

func TestRankEmpty(t *testing.T) {
	report, err := Rank(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, report.Clusters)
	assert.NotNil(t, report.Recommendations.DeletedIDs)
	assert.Equal(t, 0, report.Recommendations.Count)
}

func TestClusterDuplicates(t *testing.T) {
	c := Cluster{Members: []string{"a", "b", "c"}, Best: "b"}
	assert.Equal(t, []string{"a", "c"}, c.Duplicates())

	single := Cluster{Members: []string{"a"}, Best: "a"}
	assert.Empty(t, single.Duplicates())
}

func TestClusterDuplicatesZeroValue(t *testing.T) {
	var c Cluster
	assert.NotPanics(t, func() {
		assert.Empty(t, c.Duplicates())
	})
}
