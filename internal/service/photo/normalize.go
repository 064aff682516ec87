package photo

import (
	"image"
	"math"

	"yorae/internal/logger"
)

// Normalizer caps the width of captured stills and re-encodes them as JPEG.
type Normalizer struct {
	maxWidth int
	quality  int
	logger   *logger.Logger
}

// NewNormalizer creates a Normalizer for the given width cap and JPEG quality.
func NewNormalizer(maxWidth, quality int, logger *logger.Logger) *Normalizer {
	return &Normalizer{
		maxWidth: maxWidth,
		quality:  quality,
		logger:   logger,
	}
}

// Normalize downsamples data to at most maxWidth pixels wide, keeping the
// aspect ratio. Images already narrow enough keep their size but are still
// re-encoded. Any failure returns data unchanged so a bad resize never blocks
// the capture flow.
func (n *Normalizer) Normalize(data []byte) []byte {
	mat, err := decode(data)
	if err != nil {
		n.logger.Warning("Normalize skipped, passing original bytes through: %v", err)
		return data
	}
	defer mat.Close()

	size := ScaleToWidth(image.Pt(mat.Cols(), mat.Rows()), n.maxWidth)

	out := mat
	if size.X != mat.Cols() || size.Y != mat.Rows() {
		resized, err := resize(mat, image.Rect(0, 0, mat.Cols(), mat.Rows()), size)
		if err != nil {
			n.logger.Warning("Normalize skipped, passing original bytes through: %v", err)
			return data
		}
		defer resized.Close()
		out = resized
	}

	encoded, err := encodeMat(out, n.quality)
	if err != nil {
		n.logger.Warning("Normalize skipped, passing original bytes through: %v", err)
		return data
	}

	n.logger.Debug("Normalized %dx%d -> %dx%d (%d bytes)", mat.Cols(), mat.Rows(), size.X, size.Y, len(encoded))
	return encoded
}

// ScaleToWidth returns size capped at maxWidth with the height scaled
// proportionally and rounded to the nearest pixel.
func ScaleToWidth(size image.Point, maxWidth int) image.Point {
	if size.X <= maxWidth {
		return size
	}
	return image.Pt(maxWidth, scaled(size.Y, maxWidth, size.X))
}

// scaled computes round(v * num / den), never below one pixel.
func scaled(v, num, den int) int {
	s := int(math.Round(float64(v) * float64(num) / float64(den)))
	if s < 1 {
		return 1
	}
	return s
}
