package preprocess

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"
)

var (
	black = color.RGBA{R: 0, G: 0, B: 0, A: 255}
)

var letterboxCases = []struct {
	srcWidth      int
	srcHeight     int
	resizeWidth   int
	resizeHeight  int
	expectedXPad  int
	expectedYPad  int
	expectedScale float32
}{
	{1280, 720, 640, 640, 0, 140, 0.50},
	{800, 1000, 640, 640, 64, 0, 0.64},
	{800, 800, 640, 640, 0, 0, 0.8},
	{1920, 1080, 640, 640, 0, 140, 1.0 / 3},
}

func TestLetterboxGeometry(t *testing.T) {

	for _, tc := range letterboxCases {
		l := NewLetterbox(tc.srcWidth, tc.srcHeight, tc.resizeWidth, tc.resizeHeight)

		assert.Equal(t, tc.expectedXPad, l.XPad(), "src %dx%d", tc.srcWidth, tc.srcHeight)
		assert.Equal(t, tc.expectedYPad, l.YPad(), "src %dx%d", tc.srcWidth, tc.srcHeight)
		assert.InDelta(t, tc.expectedScale, l.ScaleFactor(), 1e-6)
		assert.True(t, l.Matches(tc.srcWidth, tc.srcHeight))
	}
}

func TestLetterBoxResize(t *testing.T) {

	for _, tc := range letterboxCases {
		img := gocv.NewMatWithSize(tc.srcHeight, tc.srcWidth, gocv.MatTypeCV8UC3)

		resizedImg := gocv.NewMat()

		resizer := NewResizer(tc.srcWidth, tc.srcHeight, tc.resizeWidth, tc.resizeHeight)

		resizer.LetterBoxResize(img, &resizedImg, black)

		if resizedImg.Cols() != tc.resizeWidth || resizedImg.Rows() != tc.resizeHeight {
			t.Errorf("Test failed for src (%d, %d): expected %dx%d output, got %dx%d",
				tc.srcWidth, tc.srcHeight, tc.resizeWidth, tc.resizeHeight,
				resizedImg.Cols(), resizedImg.Rows())
		}

		img.Close()
		resizedImg.Close()
		resizer.Close()
	}
}
