// Package quality scores how good a photo looks so the best member of a
// duplicate group can be kept.
package quality

import (
	"image"
	"math"

	"github.com/codenamed22/DupliGone/internal/faces"
	"golang.org/x/image/draw"
)

// Metrics is the quality breakdown of one image.
type Metrics struct {
	Sharpness  float64 `json:"sharpness"`  // variance of the Laplacian response
	Brightness float64 `json:"brightness"` // mean gray level, 0-255
	Contrast   float64 `json:"contrast"`   // standard deviation of gray levels
	FaceCount  int     `json:"face_count"`
	Overall    float64 `json:"overall"`
}

// Weights are the relative contributions of each normalized term to Overall.
type Weights struct {
	Sharpness  float64 `yaml:"sharpness" json:"sharpness"`
	Brightness float64 `yaml:"brightness" json:"brightness"`
	Contrast   float64 `yaml:"contrast" json:"contrast"`
	Faces      float64 `yaml:"faces" json:"faces"`
}

func (w Weights) sum() float64 {
	return w.Sharpness + w.Brightness + w.Contrast + w.Faces
}

// Config controls metric extraction and the overall score.
type Config struct {
	Weights Weights

	// SharpnessRef is the Laplacian variance at which the sharpness term reaches 0.5.
	SharpnessRef float64
	// ContrastRef is the standard deviation at which the contrast term reaches 0.5.
	ContrastRef float64
	// IdealBrightness is the mean gray level that scores a perfect exposure term.
	IdealBrightness float64
	// MaxDimension bounds the longest side of the image before metrics are computed.
	MaxDimension int
}

// DefaultConfig returns the weights and references used by the CLI and server.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Sharpness:  0.4,
			Brightness: 0.2,
			Contrast:   0.2,
			Faces:      0.2,
		},
		SharpnessRef:    100,
		ContrastRef:     50,
		IdealBrightness: 127.5,
		MaxDimension:    1024,
	}
}

// Analyze computes the metrics of img and its overall score.
// A failing face detector counts as zero faces.
func Analyze(img image.Image, detector faces.Detector, cfg Config) Metrics {
	rgba := downscale(img, cfg.MaxDimension)
	gray := toGrayscale(rgba)

	mean, std := meanStd(gray.pix)
	m := Metrics{
		Sharpness:  laplacianVariance(gray),
		Brightness: mean,
		Contrast:   std,
	}

	if detector != nil {
		if n, err := detector.Count(rgba); err == nil && n > 0 {
			m.FaceCount = n
		}
	}

	m.Overall = Score(m, cfg)
	return m
}

// Score combines the metrics into a value in [0,1]. Each term is normalized to
// [0,1] before weighting and the result is divided by the weight sum, so no
// term dominates because of its numeric range. Non-finite metrics score zero.
func Score(m Metrics, cfg Config) float64 {
	w := cfg.Weights

	faceTerm := 0.0
	if m.FaceCount > 0 {
		faceTerm = 1
	}

	total := w.Sharpness*saturate(m.Sharpness, cfg.SharpnessRef) +
		w.Brightness*exposure(m.Brightness, cfg.IdealBrightness) +
		w.Contrast*saturate(m.Contrast, cfg.ContrastRef) +
		w.Faces*faceTerm

	sum := w.sum()
	if sum <= 0 {
		return 0
	}
	return finite(total / sum)
}

// saturate maps [0,inf) onto [0,1) with v == ref landing on 0.5.
func saturate(v, ref float64) float64 {
	v = finite(v)
	if v <= 0 || ref <= 0 {
		return 0
	}
	return v / (v + ref)
}

// exposure penalizes under- and over-exposure symmetrically around ideal.
func exposure(brightness, ideal float64) float64 {
	brightness = finite(brightness)
	if ideal <= 0 {
		return 0
	}
	t := 1 - math.Abs(brightness-ideal)/ideal
	return math.Max(0, math.Min(1, t))
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

type grayImage struct {
	width  int
	height int
	pix    []float64
}

func (g grayImage) at(x, y int) float64 {
	return g.pix[y*g.width+x]
}

// downscale scales img so its longest side is at most maxDim, keeping aspect ratio.
func downscale(img image.Image, maxDim int) *image.RGBA {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	newWidth, newHeight := width, height
	if maxDim > 0 && (width > maxDim || height > maxDim) {
		if width > height {
			newWidth = maxDim
			newHeight = max(1, int(float64(height)*float64(maxDim)/float64(width)))
		} else {
			newHeight = maxDim
			newWidth = max(1, int(float64(width)*float64(maxDim)/float64(height)))
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	if newWidth == width && newHeight == height {
		draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
		return dst
	}
	draw.BiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}

// toGrayscale converts an image to grayscale values (0-255) using ITU-R BT.601 luma.
func toGrayscale(img *image.RGBA) grayImage {
	bounds := img.Bounds()
	g := grayImage{
		width:  bounds.Dx(),
		height: bounds.Dy(),
		pix:    make([]float64, bounds.Dx()*bounds.Dy()),
	}
	for y := range g.height {
		row := img.Pix[y*img.Stride:]
		for x := range g.width {
			r, gr, b := row[x*4], row[x*4+1], row[x*4+2]
			g.pix[y*g.width+x] = 0.299*float64(r) + 0.587*float64(gr) + 0.114*float64(b)
		}
	}
	return g
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

// laplacianVariance applies the 4-neighbour Laplacian kernel to interior pixels
// and returns the variance of the response. Images smaller than 3x3 score 0.
func laplacianVariance(g grayImage) float64 {
	if g.width < 3 || g.height < 3 {
		return 0
	}
	resp := make([]float64, 0, (g.width-2)*(g.height-2))
	for y := 1; y < g.height-1; y++ {
		for x := 1; x < g.width-1; x++ {
			v := g.at(x-1, y) + g.at(x+1, y) + g.at(x, y-1) + g.at(x, y+1) - 4*g.at(x, y)
			resp = append(resp, v)
		}
	}
	_, std := meanStd(resp)
	return finite(std * std)
}
