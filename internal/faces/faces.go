// Package faces counts frontal faces in decoded images.
//
// Two backends are available. Pigo runs pigo's pure Go cascades (such as
// "facefinder") and is always compiled in. Cascade runs OpenCV Haar cascade
// XML files and is only compiled with the "gocv" build tag; without it
// NewCascade returns ErrUnavailable. Load picks the backend from the cascade
// file, and None reports zero faces when no cascade is configured.
package faces

import (
	"errors"
	"image"
	"path/filepath"
	"strings"
)

// ErrUnavailable is returned when the binary was built without a face detector backend.
var ErrUnavailable = errors.New("face detection not available in this build")

// Detector counts frontal faces. Implementations must be safe for concurrent use.
type Detector interface {
	Count(img image.Image) (int, error)
}

// None is a Detector that never finds a face.
type None struct{}

// Count always returns zero.
func (None) Count(image.Image) (int, error) { return 0, nil }

// CascadeParams are the detection window settings shared by both backends.
type CascadeParams struct {
	ScaleFactor float64
	MinSize     int // minimum face side in pixels
	MaxSize     int // maximum face side in pixels; 0 means the shorter image side

	// MinNeighbors is the Haar detectMultiScale neighbour count.
	MinNeighbors int

	// ShiftFactor is the pigo window step as a fraction of the window size.
	ShiftFactor float64
	// MinQuality is the pigo detection score a face must exceed.
	MinQuality float64
}

// DefaultCascadeParams returns the parameters used for portrait detection.
func DefaultCascadeParams() CascadeParams {
	return CascadeParams{
		ScaleFactor:  1.1,
		MinSize:      30,
		MinNeighbors: 4,
		ShiftFactor:  0.1,
		MinQuality:   5,
	}
}

// Load returns a detector for the cascade at path, or None when path is
// empty. Haar cascades (.xml) use the OpenCV backend; any other file is read
// as a pigo cascade.
func Load(path string, params CascadeParams) (Detector, error) {
	if path == "" {
		return None{}, nil
	}
	if strings.EqualFold(filepath.Ext(path), ".xml") {
		c, err := NewCascade(path, params)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	p, err := LoadPigo(path, params)
	if err != nil {
		return nil, err
	}
	return p, nil
}
