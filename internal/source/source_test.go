package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codenamed22/DupliGone/internal/pipeline"
)

func TestIsImageFile(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"photo.jpg", true},
		{"photo.JPEG", true},
		{"scan.tif", true},
		{"image.webp", true},
		{"notes.txt", false},
		{"raw.cr2", false},
		{"noext", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsImageFile(tc.name))
		})
	}
}

func TestDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.png"), "bbbb")
	writeFile(t, filepath.Join(root, "a.jpg"), "aa")
	writeFile(t, filepath.Join(root, "readme.md"), "ignored")
	writeFile(t, filepath.Join(root, "trip", "c.jpeg"), "cccccc")

	flat, err := Dir(root, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "b.png"}, ids(flat))
	assert.Equal(t, int64(2), flat[0].Size)
	assert.Nil(t, flat[0].Data)

	deep, err := Dir(root, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "b.png", "trip/c.jpeg"}, ids(deep))

	data, err := deep[2].Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cccccc", string(data))
}

func TestDirErrors(t *testing.T) {
	_, err := Dir(filepath.Join(t.TempDir(), "missing"), false)
	assert.ErrorIs(t, err, os.ErrNotExist)

	file := filepath.Join(t.TempDir(), "x.jpg")
	writeFile(t, file, "x")
	_, err = Dir(file, false)
	assert.ErrorContains(t, err, "not a directory")
}

func TestFileLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone.jpg")
	img := File("gone.jpg", path, 10)

	_, err := img.Load(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = img.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func ids(images []pipeline.Image) []string {
	out := make([]string, len(images))
	for i, img := range images {
		out[i] = img.ID
	}
	return out
}
