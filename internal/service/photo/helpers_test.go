package photo

import (
	"io"
	"testing"
	"yorae/internal/logger"

	"gocv.io/x/gocv"
)

// ========================================
// Test Setup Helpers
// ========================================

func testLogger() *logger.Logger {
	return logger.NewWithWriter(io.Discard)
}

// testJPEG encodes a solid-color image of the given size.
func testJPEG(t *testing.T, width, height int) []byte {
	t.Helper()

	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(40, 120, 200, 0), height, width, gocv.MatTypeCV8UC3)
	defer mat.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out
}

func mustDimensions(t *testing.T, data []byte) (int, int) {
	t.Helper()

	size, err := Dimensions(data)
	if err != nil {
		t.Fatalf("Failed to decode output: %v", err)
	}
	return size.X, size.Y
}
