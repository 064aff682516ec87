package photo

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// ErrDecode is returned when bytes cannot be decoded as an image.
var ErrDecode = errors.New("failed to decode image")

// decode turns encoded bytes into a BGR Mat. The caller owns the returned Mat.
func decode(data []byte) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.Mat{}, fmt.Errorf("%w: empty buffer", ErrDecode)
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if mat.Empty() {
		mat.Close()
		return gocv.Mat{}, fmt.Errorf("%w: decoded image is empty", ErrDecode)
	}
	return mat, nil
}

// Dimensions decodes data and reports its pixel size.
func Dimensions(data []byte) (image.Point, error) {
	mat, err := decode(data)
	if err != nil {
		return image.Point{}, err
	}
	defer mat.Close()

	return image.Pt(mat.Cols(), mat.Rows()), nil
}

// resize scales src (or the region of it) to size. The caller owns the result.
func resize(src gocv.Mat, region image.Rectangle, size image.Point) (gocv.Mat, error) {
	roi := src.Region(region)
	defer roi.Close()

	dst := gocv.NewMat()
	gocv.Resize(roi, &dst, size, 0, 0, gocv.InterpolationArea)
	if dst.Empty() {
		dst.Close()
		return gocv.Mat{}, fmt.Errorf("failed to resize image to %dx%d", size.X, size.Y)
	}
	return dst, nil
}

// encodeMat writes mat as JPEG at the given quality.
func encodeMat(mat gocv.Mat, quality int) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}

// encodeImage writes a Go image as JPEG at the given quality.
func encodeImage(img image.Image, quality int) ([]byte, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert canvas: %w", err)
	}
	defer mat.Close()

	return encodeMat(mat, quality)
}
