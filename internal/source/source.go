// Package source turns a directory of photos into a batch for the pipeline.
package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/codenamed22/DupliGone/internal/pipeline"
)

var supported = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".tiff": true,
	".tif":  true,
	".bmp":  true,
}

// IsImageFile checks if a file has an extension the decoder understands.
func IsImageFile(name string) bool {
	return supported[strings.ToLower(filepath.Ext(name))]
}

// Dir lists the image files under root. Each image's ID is its slash-separated
// path relative to root and its bytes are read lazily when the pipeline loads it.
// Without recursive only the files directly in root are listed.
func Dir(root string, recursive bool) ([]pipeline.Image, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("cannot access folder %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var images []pipeline.Image
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !IsImageFile(d.Name()) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		images = append(images, File(filepath.ToSlash(rel), path, fi.Size()))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cannot walk folder %s: %w", root, err)
	}
	return images, nil
}

// File returns an image that reads path on demand.
func File(id, path string, size int64) pipeline.Image {
	return pipeline.Image{
		ID:   id,
		Size: size,
		Load: func(ctx context.Context) ([]byte, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return os.ReadFile(path)
		},
	}
}
