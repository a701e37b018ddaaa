//go:build !gocv

package faces

import "image"

// Cascade is unavailable without the gocv build tag.
type Cascade struct{}

// NewCascade always fails with ErrUnavailable in builds without gocv.
func NewCascade(string, CascadeParams) (*Cascade, error) {
	return nil, ErrUnavailable
}

// Count always returns zero.
func (*Cascade) Count(image.Image) (int, error) { return 0, nil }

// Close is a no-op.
func (*Cascade) Close() error { return nil }
