// Package pipeline runs the deduplication of one batch of images: feature
// extraction, distance matrix, eps tuning, clustering and ranking.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/codenamed22/DupliGone/internal/cluster"
	"github.com/codenamed22/DupliGone/internal/distance"
	"github.com/codenamed22/DupliGone/internal/faces"
	"github.com/codenamed22/DupliGone/internal/fingerprint"
	"github.com/codenamed22/DupliGone/internal/quality"
	"github.com/codenamed22/DupliGone/internal/rank"
	"github.com/codenamed22/DupliGone/internal/tuner"
)

// EpsMethodTrivial is reported when a batch has a single usable image and
// no clustering took place.
const EpsMethodTrivial = "trivial"

// Analyzer deduplicates batches. It holds no per-batch state and is safe for
// concurrent use.
type Analyzer struct {
	cfg        Config
	logger     *slog.Logger
	detector   faces.Detector
	onProgress func(Progress)
	progressMu sync.Mutex
}

func New(cfg Config, opts ...Option) *Analyzer {
	a := &Analyzer{
		cfg:      cfg.withDefaults(),
		logger:   slog.New(slog.DiscardHandler),
		detector: faces.None{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Config returns the effective configuration.
func (a *Analyzer) Config() Config { return a.cfg }

// AnalyzeBatch groups near-duplicate images and recommends every cluster
// member but the best for deletion.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, images []Image) (*BatchReport, error) {
	start := time.Now()
	if len(images) == 0 {
		return nil, ErrEmptyBatch
	}
	if limit := a.cfg.MaxBatchSize; limit > 0 && len(images) > limit {
		return nil, fmt.Errorf("%w: %d images, limit %d", ErrBatchTooLarge, len(images), limit)
	}

	runID := uuid.NewString()
	log := a.logger.With("run_id", runID)
	log.InfoContext(ctx, "analyzing batch", "images", len(images), "concurrency", a.cfg.Concurrency)

	feats, unreadable, err := a.extract(ctx, images, log)
	if err != nil {
		return nil, err
	}

	skipped := make([]SkippedImage, len(unreadable))
	for i, u := range unreadable {
		skipped[i] = SkippedImage{ID: u.ID, Reason: u.Err.Error()}
	}
	if len(feats) == 0 {
		return nil, fmt.Errorf("%w: %d of %d images unreadable", ErrNoUsableImages, len(unreadable), len(images))
	}

	a.report(Progress{Phase: PhaseClustering, Total: len(feats)})
	labels, eps, method, err := a.partition(feats)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log.DebugContext(ctx, "clustered batch", "eps", eps, "method", method)

	a.report(Progress{Phase: PhaseRanking, Total: len(feats)})
	items := make([]rank.Item, len(feats))
	for i, f := range feats {
		items[i] = rank.Item{ID: f.ID, Overall: f.Quality.Overall, Size: f.Size}
	}
	ranked, err := rank.Rank(labels, items)
	if err != nil {
		return nil, fmt.Errorf("ranking clusters: %w", err)
	}

	deleted := make(map[string]bool, ranked.Recommendations.Count)
	for _, id := range ranked.Recommendations.DeletedIDs {
		deleted[id] = true
	}
	for i := range feats {
		feats[i].Cluster = labels[i]
		feats[i].DeleteRecommended = deleted[feats[i].ID]
	}

	report := &BatchReport{
		RunID:           runID,
		Clusters:        ranked.Clusters,
		Recommendations: ranked.Recommendations,
		Eps:             eps,
		EpsMethod:       method,
		Images:          feats,
		Skipped:         skipped,
		Stats:           computeStats(ranked.Clusters),
		Duration:        time.Since(start),
	}

	log.InfoContext(ctx, "batch analyzed",
		"clusters", len(report.Clusters),
		"duplicate_groups", report.Stats.DuplicateGroups,
		"deletions", report.Recommendations.Count,
		"skipped", len(skipped),
		"duration", report.Duration,
	)
	return report, nil
}

func (a *Analyzer) partition(feats []Features) ([]int, float64, string, error) {
	if len(feats) == 1 {
		return []int{0}, 0, EpsMethodTrivial, nil
	}

	fps := make([]fingerprint.Fingerprint, len(feats))
	for i, f := range feats {
		fps[i] = f.Fingerprint
	}
	m, err := distance.Build(fps)
	if err != nil {
		return nil, 0, "", fmt.Errorf("building distance matrix: %w", err)
	}

	tuned := tuner.Tune(m, a.cfg.Tuner)
	assignment := cluster.Partition(m, tuned.Eps, a.cfg.MinNeighbors)
	return assignment.Labels, tuned.Eps, string(tuned.Method), nil
}

// Extract runs feature extraction alone. Features are returned in ascending
// ID order. Under the Skip policy unreadable images are returned separately;
// under Abort the unreadable image with the lowest ID is returned as the error.
func (a *Analyzer) Extract(ctx context.Context, images []Image) ([]Features, []*UnreadableImageError, error) {
	return a.extract(ctx, images, a.logger)
}

func (a *Analyzer) extract(ctx context.Context, images []Image, log *slog.Logger) ([]Features, []*UnreadableImageError, error) {
	if !fingerprint.ValidHashSize(a.cfg.HashSize) {
		return nil, nil, fmt.Errorf("%w: %d", fingerprint.ErrInvalidHashSize, a.cfg.HashSize)
	}
	sorted, err := sortedByID(images)
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	results := make([]*Features, len(sorted))
	failures := make([]*UnreadableImageError, len(sorted))
	var done int

	// Under Abort, abortAt is the lowest index of an unreadable image seen so
	// far. Images above it are no longer extracted; images below it still are,
	// so the reported failure is always the lowest ID that fails.
	var abortAt atomic.Int64
	abortAt.Store(int64(len(sorted)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Concurrency)

	for i, img := range sorted {
		if int64(i) > abortAt.Load() {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if int64(i) > abortAt.Load() {
				return nil
			}

			f, err := a.extractOne(gctx, img)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				ue := &UnreadableImageError{ID: img.ID, Err: err}
				failures[i] = ue
				if a.cfg.OnUnreadable == Abort {
					lowerTo(&abortAt, int64(i))
					return nil
				}
				log.WarnContext(gctx, "skipping unreadable image", "id", img.ID, "error", err)
			} else {
				results[i] = &f
			}

			a.progressMu.Lock()
			done++
			if a.onProgress != nil {
				a.onProgress(Progress{Phase: PhaseExtracting, Current: done, Total: len(sorted), ImageID: img.ID})
			}
			a.progressMu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		return nil, nil, err
	}
	if at := abortAt.Load(); at < int64(len(sorted)) {
		return nil, nil, failures[at]
	}

	feats := make([]Features, 0, len(sorted))
	var unreadable []*UnreadableImageError
	for i := range sorted {
		switch {
		case results[i] != nil:
			feats = append(feats, *results[i])
		case failures[i] != nil:
			unreadable = append(unreadable, failures[i])
		}
	}
	return feats, unreadable, nil
}

// lowerTo stores v in x unless x already holds a smaller value.
func lowerTo(x *atomic.Int64, v int64) {
	for {
		cur := x.Load()
		if v >= cur || x.CompareAndSwap(cur, v) {
			return
		}
	}
}

func (a *Analyzer) extractOne(ctx context.Context, img Image) (Features, error) {
	data, err := a.load(ctx, img)
	if err != nil {
		return Features{}, err
	}

	decoded, err := fingerprint.Decode(data)
	if err != nil {
		return Features{}, err
	}

	fp, err := fingerprint.Compute(img.ID, decoded, a.cfg.HashSize)
	if err != nil {
		return Features{}, fmt.Errorf("%w: %w", fingerprint.ErrUnreadable, err)
	}

	size := img.Size
	if size <= 0 {
		size = int64(len(data))
	}
	bounds := decoded.Bounds()

	return Features{
		ID:          img.ID,
		Size:        size,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		HashAHex:    fp.HashA.Hex(),
		HashBHex:    fp.HashB.Hex(),
		Quality:     quality.Analyze(decoded, a.detector, a.cfg.Quality),
		Fingerprint: fp,
	}, nil
}

// load returns the image bytes, retrying Image.Load with exponential backoff.
// Missing files and permission errors are not retried.
func (a *Analyzer) load(ctx context.Context, img Image) ([]byte, error) {
	if img.Data != nil {
		return img.Data, nil
	}
	if img.Load == nil {
		return nil, fmt.Errorf("%w: no data and no loader", fingerprint.ErrUnreadable)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = a.cfg.RetryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(a.cfg.LoadRetries)), ctx)

	data, err := backoff.RetryWithData(func() ([]byte, error) {
		data, err := img.Load(ctx)
		if err != nil && (errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission)) {
			return nil, backoff.Permanent(err)
		}
		return data, err
	}, policy)
	if err != nil {
		return nil, fmt.Errorf("loading: %w", err)
	}
	return data, nil
}

func (a *Analyzer) report(p Progress) {
	if a.onProgress == nil {
		return
	}
	a.progressMu.Lock()
	defer a.progressMu.Unlock()
	a.onProgress(p)
}

// sortedByID returns a copy of images in ascending ID order, so results do
// not depend on the order the caller supplied.
func sortedByID(images []Image) ([]Image, error) {
	seen := make(map[string]struct{}, len(images))
	for _, img := range images {
		if _, ok := seen[img.ID]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateID, img.ID)
		}
		seen[img.ID] = struct{}{}
	}

	sorted := make([]Image, len(images))
	copy(sorted, images)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return sorted, nil
}
