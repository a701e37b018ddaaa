package faces

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNone(t *testing.T) {
	n, err := None{}.Count(image.NewGray(image.Rect(0, 0, 10, 10)))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestLoadEmptyPath(t *testing.T) {
	d, err := Load("", DefaultCascadeParams())
	require.NoError(t, err)
	assert.IsType(t, None{}, d)
}

func TestDefaultCascadeParams(t *testing.T) {
	p := DefaultCascadeParams()
	assert.Greater(t, p.ScaleFactor, 1.0)
	assert.Positive(t, p.MinNeighbors)
	assert.Positive(t, p.MinSize)
}
