package faces

import (
	"fmt"
	"image"
	"math"
	"os"

	pigo "github.com/esimov/pigo/core"
)

// clusterIoU is the overlap above which pigo detections are merged into one face.
const clusterIoU = 0.2

// Pigo detects frontal faces with a pigo pixel-intensity-comparison cascade
// such as pigo's "facefinder". It needs no cgo and is safe for concurrent use.
type Pigo struct {
	classifier *pigo.Pigo
	params     CascadeParams
}

// NewPigo unpacks a pigo cascade.
func NewPigo(cascade []byte, params CascadeParams) (*Pigo, error) {
	if len(cascade) < 16 {
		return nil, fmt.Errorf("pigo cascade too short: %d bytes", len(cascade))
	}
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpacking pigo cascade: %w", err)
	}
	return &Pigo{classifier: classifier, params: params}, nil
}

// LoadPigo reads a pigo cascade file.
func LoadPigo(path string, params CascadeParams) (*Pigo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading face cascade: %w", err)
	}
	return NewPigo(data, params)
}

// Count returns the number of faces found in img.
func (p *Pigo) Count(img image.Image) (int, error) {
	bounds := img.Bounds()
	rows, cols := bounds.Dy(), bounds.Dx()
	if rows == 0 || cols == 0 {
		return 0, nil
	}

	scaleFactor := p.params.ScaleFactor
	if scaleFactor <= 1 {
		scaleFactor = DefaultCascadeParams().ScaleFactor
	}
	// Window sizes are truncated to int after scaling; below this size they would stop growing.
	minSize := max(p.params.MinSize, int(math.Ceil(1/(scaleFactor-1))))
	maxSize := p.params.MaxSize
	if maxSize <= 0 {
		maxSize = min(rows, cols)
	}
	shift := p.params.ShiftFactor
	if shift <= 0 {
		shift = DefaultCascadeParams().ShiftFactor
	}

	cp := pigo.CascadeParams{
		MinSize:     minSize,
		MaxSize:     maxSize,
		ShiftFactor: shift,
		ScaleFactor: scaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(img),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := p.classifier.RunCascade(cp, 0)
	dets = p.classifier.ClusterDetections(dets, clusterIoU)

	n := 0
	for _, d := range dets {
		if float64(d.Q) > p.params.MinQuality {
			n++
		}
	}
	return n, nil
}
