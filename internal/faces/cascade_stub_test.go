//go:build !gocv

package faces

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadWithoutBackend(t *testing.T) {
	d, err := Load("/usr/share/opencv4/haarcascades/haarcascade_frontalface_default.xml", DefaultCascadeParams())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Nil(t, d)
}
