package fingerprint

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math/bits"
	"strings"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	// ErrUnreadable wraps every decode or hashing failure of a single image.
	ErrUnreadable = errors.New("unreadable image")

	// ErrLengthMismatch is returned when two hashes of different bit lengths are compared.
	ErrLengthMismatch = errors.New("hash length mismatch")

	// ErrInvalidHashSize is returned for hash sizes that are not a power of two.
	ErrInvalidHashSize = errors.New("hash size must be a power of two between 4 and 16")
)

// Hash is a fixed-length bit vector packed into 64-bit words, most significant bit first.
type Hash struct {
	Words []uint64
	Bits  int
}

// Hex renders the hash as zero-padded hex, one 16-character group per word.
func (h Hash) Hex() string {
	var sb strings.Builder
	for _, w := range h.Words {
		fmt.Fprintf(&sb, "%016x", w)
	}
	return sb.String()
}

// Fingerprint holds the two perceptual hashes of one image.
type Fingerprint struct {
	ImageID string
	HashA   Hash // DCT perceptual hash, tolerant of scaling and re-encoding
	HashB   Hash // horizontal gradient hash, tolerant of crops and local edits
}

// ValidHashSize reports whether size can be used for both hashes.
func ValidHashSize(size int) bool {
	return size >= 4 && size <= 16 && size&(size-1) == 0
}

// Decode decodes image bytes, applying EXIF orientation.
// Any failure, including a zero-size image, wraps ErrUnreadable.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty data", ErrUnreadable)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode image: %v", ErrUnreadable, err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: zero-size image", ErrUnreadable)
	}
	return img, nil
}

// Compute computes both hashes of img. Each hash has hashSize*hashSize bits.
func Compute(imageID string, img image.Image, hashSize int) (Fingerprint, error) {
	if !ValidHashSize(hashSize) {
		return Fingerprint{}, fmt.Errorf("%w: got %d", ErrInvalidHashSize, hashSize)
	}
	bitLen := hashSize * hashSize

	pHash, err := goimagehash.ExtPerceptionHash(img, hashSize, hashSize)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("%w: perceptual hash: %v", ErrUnreadable, err)
	}
	dHash, err := goimagehash.ExtDifferenceHash(img, hashSize, hashSize)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("%w: difference hash: %v", ErrUnreadable, err)
	}

	return Fingerprint{
		ImageID: imageID,
		HashA:   newHash(pHash.GetHash(), bitLen),
		HashB:   newHash(dHash.GetHash(), bitLen),
	}, nil
}

func newHash(words []uint64, bitLen int) Hash {
	cp := make([]uint64, len(words))
	copy(cp, words)
	return Hash{Words: cp, Bits: bitLen}
}

// HammingDistance counts the differing bits of two equal-length hashes.
func HammingDistance(a, b Hash) (int, error) {
	if a.Bits != b.Bits || len(a.Words) != len(b.Words) {
		return 0, fmt.Errorf("%w: %d vs %d bits", ErrLengthMismatch, a.Bits, b.Bits)
	}
	distance := 0
	for i := range a.Words {
		distance += bits.OnesCount64(a.Words[i] ^ b.Words[i])
	}
	return distance, nil
}

// NormalizedDistance returns the Hamming distance divided by the hash length, in [0,1].
func NormalizedDistance(a, b Hash) (float64, error) {
	d, err := HammingDistance(a, b)
	if err != nil {
		return 0, err
	}
	if a.Bits == 0 {
		return 0, nil
	}
	return float64(d) / float64(a.Bits), nil
}
