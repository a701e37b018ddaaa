package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyBatch is returned when AnalyzeBatch is called without images.
	ErrEmptyBatch = errors.New("empty batch")
	// ErrNoUsableImages is returned when every image of a batch was skipped.
	ErrNoUsableImages = errors.New("no usable images in batch")
	// ErrBatchTooLarge is returned when a batch holds more images than Config.MaxBatchSize.
	ErrBatchTooLarge = errors.New("batch too large")
	// ErrDuplicateID is returned when two images of a batch share an ID.
	ErrDuplicateID = errors.New("duplicate image id")
)

// UnreadableImageError reports an image whose bytes could not be loaded or decoded.
//
// The underlying error can be accessed via errors.Unwrap.
type UnreadableImageError struct {
	ID  string
	Err error
}

func (e *UnreadableImageError) Error() string {
	return fmt.Sprintf("unreadable image %q: %v", e.ID, e.Err)
}

func (e *UnreadableImageError) Unwrap() error { return e.Err }
