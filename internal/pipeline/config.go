package pipeline

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/codenamed22/DupliGone/internal/faces"
	"github.com/codenamed22/DupliGone/internal/quality"
	"github.com/codenamed22/DupliGone/internal/tuner"
)

// UnreadablePolicy decides what happens to a batch when one image cannot be
// loaded or decoded.
type UnreadablePolicy int

const (
	// Skip excludes the image and records it in BatchReport.Skipped.
	Skip UnreadablePolicy = iota
	// Abort fails the whole batch with an *UnreadableImageError.
	Abort
)

func (p UnreadablePolicy) String() string {
	switch p {
	case Skip:
		return "skip"
	case Abort:
		return "abort"
	default:
		return "unknown"
	}
}

// Config is the immutable tuning of an Analyzer.
type Config struct {
	// HashSize is the side of both perceptual hashes; hashes carry HashSize² bits.
	HashSize int
	// MinNeighbors is the density threshold of the clustering, the image itself included.
	MinNeighbors int
	// MaxBatchSize caps the number of images of one batch; 0 means no limit.
	MaxBatchSize int
	// Concurrency bounds the number of images extracted at once.
	Concurrency int
	// LoadRetries is how many times a failing Image.Load is retried.
	LoadRetries int
	// RetryInterval is the initial backoff between load attempts.
	RetryInterval time.Duration
	OnUnreadable  UnreadablePolicy

	Tuner   tuner.Config
	Quality quality.Config
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	t := tuner.DefaultConfig()
	t.K = tuner.KForMinNeighbors(2)
	return Config{
		HashSize:      8,
		MinNeighbors:  2,
		Concurrency:   runtime.NumCPU(),
		LoadRetries:   3,
		RetryInterval: 200 * time.Millisecond,
		OnUnreadable:  Skip,
		Tuner:         t,
		Quality:       quality.DefaultConfig(),
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.HashSize == 0 {
		c.HashSize = def.HashSize
	}
	if c.MinNeighbors <= 0 {
		c.MinNeighbors = def.MinNeighbors
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.LoadRetries < 0 {
		c.LoadRetries = 0
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = def.RetryInterval
	}
	if c.Tuner.Strictness == 0 && c.Tuner.MaxEps == 0 {
		knee, k := c.Tuner.Knee, c.Tuner.K
		c.Tuner = def.Tuner
		c.Tuner.Knee, c.Tuner.K = knee, k
	}
	if c.Tuner.K <= 0 {
		c.Tuner.K = tuner.KForMinNeighbors(c.MinNeighbors)
	}
	if c.Quality == (quality.Config{}) {
		c.Quality = def.Quality
	}
	return c
}

// Phase names a stage of AnalyzeBatch for progress reporting.
type Phase string

const (
	PhaseExtracting Phase = "extracting"
	PhaseClustering Phase = "clustering"
	PhaseRanking    Phase = "ranking"
)

// Progress is passed to the progress callback.
type Progress struct {
	Phase   Phase
	Current int
	Total   int
	ImageID string
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the structured logger. By default nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithProgress registers a callback invoked as images are processed.
// Calls are serialized; the callback must not block for long.
func WithProgress(fn func(Progress)) Option {
	return func(a *Analyzer) {
		a.onProgress = fn
	}
}

// WithFaceDetector sets the detector used for the face term of the quality
// score. The detector must be safe for concurrent use. The Analyzer does not
// close it.
func WithFaceDetector(d faces.Detector) Option {
	return func(a *Analyzer) {
		if d != nil {
			a.detector = d
		}
	}
}
