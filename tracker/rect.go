package tracker

import (
	"math"

	"github.com/courtvision/hooptrack"
)

// Xyah (center x, center y, aspect ratio, height) is the measurement space
// of the Kalman filter
type Xyah [4]float64

// Rect represents a rectangle in top, left, width, height format
type Rect struct {
	X, Y, W, H float64
}

// RectFromBox converts a corner format bounding box to a Rect
func RectFromBox(b hooptrack.BoundingBox) Rect {
	c := b.Canon()
	return Rect{X: c.X1, Y: c.Y1, W: c.X2 - c.X1, H: c.Y2 - c.Y1}
}

// RectFromXyah creates a Rect from center, aspect ratio and height
func RectFromXyah(m Xyah) Rect {
	w := m[2] * m[3]
	return Rect{X: m[0] - w/2, Y: m[1] - m[3]/2, W: w, H: m[3]}
}

// Box converts the rectangle back to corner format
func (r Rect) Box() hooptrack.BoundingBox {
	return hooptrack.NewBoundingBox(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// Xyah converts the rectangle to center, aspect ratio, height format
func (r Rect) Xyah() Xyah {
	return Xyah{r.X + r.W/2, r.Y + r.H/2, r.W / r.H, r.H}
}

// Usable reports whether the rectangle has an area and finite coordinates
// so it can be tracked
func (r Rect) Usable() bool {
	for _, v := range []float64{r.X, r.Y, r.W, r.H} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return r.W > 0 && r.H > 0
}

// IoU calculates the Intersection over Union with another rectangle
func (r Rect) IoU(other Rect) float64 {

	iw := math.Min(r.X+r.W, other.X+other.W) - math.Max(r.X, other.X)

	if iw <= 0 {
		return 0
	}

	ih := math.Min(r.Y+r.H, other.Y+other.H) - math.Max(r.Y, other.Y)

	if ih <= 0 {
		return 0
	}

	inter := iw * ih

	return inter / (r.W*r.H + other.W*other.H - inter)
}

// iouDistance returns the cost matrix 1-IoU between every rectangle of a
// and b, rows follow a
func iouDistance(a, b []*STrack) [][]float64 {

	if len(a) == 0 || len(b) == 0 {
		return nil
	}

	cost := make([][]float64, len(a))

	for i, ta := range a {
		cost[i] = make([]float64, len(b))

		for j, tb := range b {
			cost[i][j] = 1 - ta.rect.IoU(tb.rect)
		}
	}

	return cost
}
