// Package rank picks the image to keep in every cluster and turns the rest
// into deletion recommendations.
package rank

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrLengthMismatch = errors.New("labels and items differ in length")
	ErrNegativeLabel  = errors.New("negative cluster label")
)

// Item is the ranking input for one image.
type Item struct {
	ID      string
	Overall float64
	Size    int64
}

// Cluster is a group of near-duplicate images. A cluster with a single
// member is a unique image.
type Cluster struct {
	ID      int      `json:"id"`
	Members []string `json:"members"`
	Best    string   `json:"best"`
}

// Duplicates returns the members that are not Best.
func (c Cluster) Duplicates() []string {
	out := make([]string, 0, max(len(c.Members)-1, 0))
	for _, id := range c.Members {
		if id != c.Best {
			out = append(out, id)
		}
	}
	return out
}

// Recommendations lists every image that can be deleted.
type Recommendations struct {
	DeletedIDs              []string `json:"deleted_ids"`
	Count                   int      `json:"count"`
	EstimatedBytesReclaimed int64    `json:"estimated_bytes_reclaimed"`
}

// Report is the ranking result for one batch.
type Report struct {
	Clusters        []Cluster       `json:"clusters"`
	Recommendations Recommendations `json:"recommendations"`
}

// Rank groups items by label and keeps the highest scoring member of each
// group. Ties go to the lexicographically lowest ID. labels[i] is the
// cluster of items[i]; clusters are reported in ascending label order and
// members keep the order of items.
func Rank(labels []int, items []Item) (Report, error) {
	if len(labels) != len(items) {
		return Report{}, fmt.Errorf("%w: %d labels, %d items", ErrLengthMismatch, len(labels), len(items))
	}

	groups := make(map[int][]int)
	for i, label := range labels {
		if label < 0 {
			return Report{}, fmt.Errorf("%w: item %q has label %d", ErrNegativeLabel, items[i].ID, label)
		}
		groups[label] = append(groups[label], i)
	}

	ids := make([]int, 0, len(groups))
	for label := range groups {
		ids = append(ids, label)
	}
	sort.Ints(ids)

	report := Report{
		Clusters: make([]Cluster, 0, len(ids)),
		Recommendations: Recommendations{
			DeletedIDs: []string{},
		},
	}

	for _, label := range ids {
		members := groups[label]
		best := members[0]
		for _, m := range members[1:] {
			if better(items[m], items[best]) {
				best = m
			}
		}

		c := Cluster{
			ID:      label,
			Members: make([]string, len(members)),
			Best:    items[best].ID,
		}
		for k, m := range members {
			c.Members[k] = items[m].ID
			if m == best {
				continue
			}
			report.Recommendations.DeletedIDs = append(report.Recommendations.DeletedIDs, items[m].ID)
			report.Recommendations.EstimatedBytesReclaimed += max(items[m].Size, 0)
		}
		report.Clusters = append(report.Clusters, c)
	}

	sort.Strings(report.Recommendations.DeletedIDs)
	report.Recommendations.Count = len(report.Recommendations.DeletedIDs)
	return report, nil
}

// better reports whether a should be kept over b. NaN scores lose to any number.
func better(a, b Item) bool {
	sa, sb := score(a.Overall), score(b.Overall)
	if sa != sb {
		return sa > sb
	}
	return a.ID < b.ID
}

func score(v float64) float64 {
	if math.IsNaN(v) {
		return math.Inf(-1)
	}
	return v
}
