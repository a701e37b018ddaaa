// Package cluster partitions images with density-based clustering over a
// precomputed distance matrix.
package cluster

// Distances is the read-only view of a symmetric distance matrix.
type Distances interface {
	Len() int
	At(i, j int) float64
}

// Assignment is the partition of n images.
type Assignment struct {
	// Labels maps each image index to a dense cluster id in [0, Count).
	Labels []int
	// Core marks images with at least minNeighbors images (itself included) within eps.
	Core []bool
	// Noise marks images that were not density-reachable and form their own singleton.
	Noise []bool
	// Count is the number of clusters, singletons included.
	Count int
}

// Members returns the image indices of every cluster, ascending, indexed by cluster id.
func (a Assignment) Members() [][]int {
	groups := make([][]int, a.Count)
	for i, label := range a.Labels {
		groups[label] = append(groups[label], i)
	}
	return groups
}

const unassigned = -1

// Partition runs DBSCAN with the neighbourhood d(i,j) <= eps. Unlike textbook
// DBSCAN, noise points are kept: each becomes a singleton cluster.
//
// Images are visited in index order, so for a fixed matrix the result is
// deterministic and a border image reachable from several clusters joins the
// one seeded from the lowest index. Cluster ids are numbered in order of
// each cluster's lowest member index.
func Partition(d Distances, eps float64, minNeighbors int) Assignment {
	n := d.Len()
	minNeighbors = max(minNeighbors, 1)

	neighbors := make([][]int, n)
	core := make([]bool, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j || d.At(i, j) <= eps {
				neighbors[i] = append(neighbors[i], j)
			}
		}
		core[i] = len(neighbors[i]) >= minNeighbors
	}

	raw := make([]int, n)
	for i := range raw {
		raw[i] = unassigned
	}

	next := 0
	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if raw[i] != unassigned || !core[i] {
			continue
		}
		label := next
		next++
		raw[i] = label
		queue = append(queue[:0], i)
		for len(queue) > 0 {
			p := queue[0]
			queue = queue[1:]
			if !core[p] {
				continue
			}
			for _, q := range neighbors[p] {
				if raw[q] == unassigned {
					raw[q] = label
					queue = append(queue, q)
				}
			}
		}
	}

	noise := make([]bool, n)
	for i := range raw {
		if raw[i] == unassigned {
			noise[i] = true
			raw[i] = next
			next++
		}
	}

	return Assignment{
		Labels: renumber(raw),
		Core:   core,
		Noise:  noise,
		Count:  next,
	}
}

// renumber relabels clusters in order of their lowest member index.
func renumber(raw []int) []int {
	mapping := make(map[int]int, len(raw))
	labels := make([]int, len(raw))
	for i, r := range raw {
		id, ok := mapping[r]
		if !ok {
			id = len(mapping)
			mapping[r] = id
		}
		labels[i] = id
	}
	return labels
}
