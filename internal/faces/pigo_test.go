package faces

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testCascade builds a pigo cascade with a single depth-1 tree whose leaves
// both predict pred. Every window scores pred-threshold, so threshold
// decides whether the whole image is accepted or rejected.
func testCascade(t *testing.T, pred, threshold float32) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(make([]byte, 8)) // version and training header, skipped by Unpack
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(1)))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(1)))
	buf.Write([]byte{0, 0, 0, 0}) // compares the window centre with itself
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, []float32{pred, pred}))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, threshold))
	return buf.Bytes()
}

func portrait() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 96, 96))
	for x := 0; x < 96; x++ {
		for y := 0; y < 96; y++ {
			img.Set(x, y, color.RGBA{uint8(x * 2), uint8(y * 2), 128, 255})
		}
	}
	return img
}

func testParams() CascadeParams {
	p := DefaultCascadeParams()
	p.MinSize = 40
	p.MinQuality = 0
	return p
}

func TestPigoCountsDetections(t *testing.T) {
	d, err := NewPigo(testCascade(t, 1, 0), testParams())
	require.NoError(t, err)

	n, err := d.Count(portrait())
	require.NoError(t, err)
	assert.Positive(t, n)
}

func TestPigoRejectingCascadeFindsNothing(t *testing.T) {
	d, err := NewPigo(testCascade(t, 1, 2), testParams())
	require.NoError(t, err)

	n, err := d.Count(portrait())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPigoMinQuality(t *testing.T) {
	params := testParams()
	params.MinQuality = 1e9

	d, err := NewPigo(testCascade(t, 1, 0), params)
	require.NoError(t, err)

	n, err := d.Count(portrait())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPigoSmallWindows(t *testing.T) {
	params := testParams()
	params.MinSize = 1 // raised internally so window sizes keep growing

	d, err := NewPigo(testCascade(t, 1, 2), params)
	require.NoError(t, err)

	n, err := d.Count(image.NewGray(image.Rect(0, 0, 24, 24)))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPigoEmptyImage(t *testing.T) {
	d, err := NewPigo(testCascade(t, 1, 0), testParams())
	require.NoError(t, err)

	n, err := d.Count(image.NewGray(image.Rect(0, 0, 0, 0)))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNewPigoTooShort(t *testing.T) {
	_, err := NewPigo([]byte{1, 2, 3}, DefaultCascadeParams())
	assert.Error(t, err)
}

func TestLoadPigoCascade(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facefinder")
	require.NoError(t, os.WriteFile(path, testCascade(t, 1, 0), 0o600))

	d, err := Load(path, testParams())
	require.NoError(t, err)
	require.IsType(t, &Pigo{}, d)

	n, err := d.Count(portrait())
	require.NoError(t, err)
	assert.Positive(t, n)
}

func TestLoadMissingPigoCascade(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing"), DefaultCascadeParams())
	assert.ErrorIs(t, err, os.ErrNotExist)
}
