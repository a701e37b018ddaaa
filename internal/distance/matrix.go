// Package distance builds the pairwise dissimilarity matrix of a batch of fingerprints.
package distance

import (
	"errors"
	"fmt"

	"github.com/codenamed22/DupliGone/internal/fingerprint"
)

var (
	// ErrInsufficientData is returned when fewer than two fingerprints are supplied.
	ErrInsufficientData = errors.New("at least two images are required to build a distance matrix")

	// ErrHashLength is returned when fingerprints in one batch have different hash lengths.
	ErrHashLength = errors.New("fingerprints have inconsistent hash lengths")
)

// Matrix is a dense symmetric n x n dissimilarity matrix with a zero diagonal.
// Values are in [0,1].
type Matrix struct {
	n    int
	data []float64
}

// NewMatrix wraps a row-major n*n slice. It is intended for tests and callers
// that computed distances elsewhere; Build is the normal constructor.
func NewMatrix(n int, data []float64) (*Matrix, error) {
	if n < 0 || len(data) != n*n {
		return nil, fmt.Errorf("matrix data has %d values, want %d", len(data), n*n)
	}
	cp := make([]float64, len(data))
	copy(cp, data)
	return &Matrix{n: n, data: cp}, nil
}

// Len returns the number of rows.
func (m *Matrix) Len() int { return m.n }

// At returns the distance between images i and j.
func (m *Matrix) At(i, j int) float64 { return m.data[i*m.n+j] }

// Row returns a copy of row i.
func (m *Matrix) Row(i int) []float64 {
	row := make([]float64, m.n)
	copy(row, m.data[i*m.n:(i+1)*m.n])
	return row
}

// Pairwise returns the strict upper triangle in row-major order, n*(n-1)/2 values.
func (m *Matrix) Pairwise() []float64 {
	out := make([]float64, 0, m.n*(m.n-1)/2)
	for i := 0; i < m.n; i++ {
		for j := i + 1; j < m.n; j++ {
			out = append(out, m.At(i, j))
		}
	}
	return out
}

// Combined is the average of the two normalized Hamming distances, so both
// hashes weigh the same regardless of their bit lengths.
func Combined(a, b fingerprint.Fingerprint) (float64, error) {
	dA, err := fingerprint.NormalizedDistance(a.HashA, b.HashA)
	if err != nil {
		return 0, fmt.Errorf("hash A of %s and %s: %w", a.ImageID, b.ImageID, err)
	}
	dB, err := fingerprint.NormalizedDistance(a.HashB, b.HashB)
	if err != nil {
		return 0, fmt.Errorf("hash B of %s and %s: %w", a.ImageID, b.ImageID, err)
	}
	return (dA + dB) / 2, nil
}

// Build computes the exact pairwise matrix; row i corresponds to fps[i].
func Build(fps []fingerprint.Fingerprint) (*Matrix, error) {
	n := len(fps)
	if n < 2 {
		return nil, ErrInsufficientData
	}

	bitsA, bitsB := fps[0].HashA.Bits, fps[0].HashB.Bits
	for _, fp := range fps[1:] {
		if fp.HashA.Bits != bitsA || fp.HashB.Bits != bitsB {
			return nil, fmt.Errorf("%w: %s has %d/%d bits, want %d/%d",
				ErrHashLength, fp.ImageID, fp.HashA.Bits, fp.HashB.Bits, bitsA, bitsB)
		}
	}

	m := &Matrix{n: n, data: make([]float64, n*n)}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d, err := Combined(fps[i], fps[j])
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrHashLength, err)
			}
			m.data[i*n+j] = d
			m.data[j*n+i] = d
		}
	}
	return m, nil
}
