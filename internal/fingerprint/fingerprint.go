// Package fingerprint computes and compares perceptual fingerprints.
//
// A fingerprint is the lowercase hex encoding of a DCT perceptual hash bit
// grid, sixteen hex characters per 64 bits. The encoding is stable across
// process restarts so cached values stay comparable.
package fingerprint

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"

	"github.com/AnyUserName/mediadup/internal/media"
	"github.com/corona10/goimagehash"
)

// Unmatchable is the distance reported for fingerprints that cannot be
// compared. It exceeds every valid threshold.
const Unmatchable = math.MaxInt32

const wordHex = 16

var errMalformed = errors.New("malformed fingerprint")

// Compute hashes img over a hashSize×hashSize grid.
func Compute(img image.Image, hashSize int) (string, error) {
	if hashSize == 8 {
		h, err := goimagehash.PerceptionHash(img)
		if err != nil {
			return "", fmt.Errorf("perception hash: %w", err)
		}
		return encode([]uint64{h.GetHash()}), nil
	}
	h, err := goimagehash.ExtPerceptionHash(img, hashSize, hashSize)
	if err != nil {
		return "", fmt.Errorf("perception hash %dx%d: %w", hashSize, hashSize, err)
	}
	return encode(h.GetHash()), nil
}

// Distance returns the Hamming distance between two encoded fingerprints.
// Malformed or differently sized inputs yield Unmatchable.
func Distance(a, b string) int {
	wa, err := decode(a)
	if err != nil {
		return Unmatchable
	}
	wb, err := decode(b)
	if err != nil || len(wa) != len(wb) {
		return Unmatchable
	}

	var d int
	if len(wa) == 1 {
		d, err = goimagehash.NewImageHash(wa[0], goimagehash.PHash).
			Distance(goimagehash.NewImageHash(wb[0], goimagehash.PHash))
	} else {
		bits := len(wa) * 64
		d, err = goimagehash.NewExtImageHash(wa, goimagehash.PHash, bits).
			Distance(goimagehash.NewExtImageHash(wb, goimagehash.PHash, bits))
	}
	if err != nil {
		return Unmatchable
	}
	return d
}

// Similarity converts a distance into a percentage, 100 meaning identical.
func Similarity(distance, maxDistance int) float64 {
	if maxDistance <= 0 {
		return 0
	}
	return media.Round2((1 - float64(distance)/float64(maxDistance)) * 100)
}

// Valid reports whether s decodes as a fingerprint.
func Valid(s string) bool {
	_, err := decode(s)
	return err == nil
}

func encode(words []uint64) string {
	var b strings.Builder
	b.Grow(len(words) * wordHex)
	for _, w := range words {
		fmt.Fprintf(&b, "%016x", w)
	}
	return b.String()
}

func decode(s string) ([]uint64, error) {
	if s == "" || len(s)%wordHex != 0 {
		return nil, errMalformed
	}
	words := make([]uint64, 0, len(s)/wordHex)
	for i := 0; i < len(s); i += wordHex {
		w, err := strconv.ParseUint(s[i:i+wordHex], 16, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errMalformed, err)
		}
		words = append(words, w)
	}
	return words, nil
}
