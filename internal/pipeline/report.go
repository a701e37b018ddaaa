package pipeline

import (
	"context"
	"time"

	"github.com/codenamed22/DupliGone/internal/fingerprint"
	"github.com/codenamed22/DupliGone/internal/quality"
	"github.com/codenamed22/DupliGone/internal/rank"
)

// Image is one input of a batch. Bytes come from Data, or from Load when
// Data is nil. Size is the stored size of the image; zero means len(bytes).
type Image struct {
	ID   string
	Data []byte
	Size int64
	Load func(ctx context.Context) ([]byte, error)
}

// Features is everything extracted from one readable image.
type Features struct {
	ID       string          `json:"id"`
	Size     int64           `json:"size"`
	Width    int             `json:"width"`
	Height   int             `json:"height"`
	HashAHex string          `json:"phash"`
	HashBHex string          `json:"dhash"`
	Quality  quality.Metrics `json:"quality"`

	// Cluster and DeleteRecommended are filled in by AnalyzeBatch.
	Cluster           int  `json:"cluster"`
	DeleteRecommended bool `json:"delete_recommended"`

	Fingerprint fingerprint.Fingerprint `json:"-"`
}

// SkippedImage is an image left out of the batch under the Skip policy.
type SkippedImage struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Stats summarizes the cluster structure of a batch.
type Stats struct {
	TotalImages        int         `json:"total_images"`
	TotalClusters      int         `json:"total_clusters"`
	DuplicateGroups    int         `json:"duplicate_groups"`
	UniqueImages       int         `json:"unique_images"`
	AverageClusterSize float64     `json:"average_cluster_size"`
	MaxClusterSize     int         `json:"max_cluster_size"`
	SizeDistribution   map[int]int `json:"size_distribution"`
}

// BatchReport is the result of AnalyzeBatch.
type BatchReport struct {
	RunID           string               `json:"run_id"`
	Clusters        []rank.Cluster       `json:"clusters"`
	Recommendations rank.Recommendations `json:"recommendations"`
	Eps             float64              `json:"eps"`
	EpsMethod       string               `json:"eps_method"`
	Images          []Features           `json:"images"`
	Skipped         []SkippedImage       `json:"skipped"`
	Stats           Stats                `json:"stats"`
	Duration        time.Duration        `json:"duration_ns"`
}

// DuplicateGroups returns the clusters with more than one member.
func (r *BatchReport) DuplicateGroups() []rank.Cluster {
	var out []rank.Cluster
	for _, c := range r.Clusters {
		if len(c.Members) > 1 {
			out = append(out, c)
		}
	}
	return out
}

func computeStats(clusters []rank.Cluster) Stats {
	s := Stats{
		TotalClusters:    len(clusters),
		SizeDistribution: make(map[int]int),
	}
	for _, c := range clusters {
		size := len(c.Members)
		s.TotalImages += size
		s.SizeDistribution[size]++
		s.MaxClusterSize = max(s.MaxClusterSize, size)
		if size > 1 {
			s.DuplicateGroups++
		} else {
			s.UniqueImages++
		}
	}
	if s.TotalClusters > 0 {
		s.AverageClusterSize = float64(s.TotalImages) / float64(s.TotalClusters)
	}
	return s
}
