//go:build gocv

package faces

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Cascade detects frontal faces with an OpenCV Haar cascade.
type Cascade struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
	params     CascadeParams
}

// NewCascade loads a Haar cascade XML file such as haarcascade_frontalface_default.xml.
func NewCascade(path string, params CascadeParams) (*Cascade, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("failed to load face cascade %s", path)
	}
	return &Cascade{classifier: classifier, params: params}, nil
}

// Count returns the number of frontal faces found in img.
func (c *Cascade) Count(img image.Image) (int, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return 0, fmt.Errorf("convert image: %w", err)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorRGBToGray)

	minSize := image.Pt(c.params.MinSize, c.params.MinSize)

	// CascadeClassifier is not safe for concurrent use.
	c.mu.Lock()
	rects := c.classifier.DetectMultiScaleWithParams(gray, c.params.ScaleFactor, c.params.MinNeighbors, 0, minSize, image.Point{})
	c.mu.Unlock()

	return len(rects), nil
}

// Close releases the underlying classifier.
func (c *Cascade) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.classifier.Close()
}
