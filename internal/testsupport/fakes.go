// Package testsupport provides deterministic stand-ins for the external
// detector, tracker and classifier capabilities.
package testsupport

import (
	"errors"
	"image"
	"image/color"
	"sync"

	"github.com/courtvision/hooptrack"
)

// Labels is the class table reported by FakeDetector
var Labels = hooptrack.ClassTable{"Ball", "Hoop", "Player", "Referee"}

const (
	ClassBall    = 0
	ClassHoop    = 1
	ClassPlayer  = 2
	ClassReferee = 3
)

// ErrInjected is returned by fakes configured to fail
var ErrInjected = errors.New("injected failure")

// Frame is a tiny uniform image which also carries its position in the
// sequence so fakes can script per frame output
type Frame struct {
	Index int
	Fill  color.RGBA
	Size  int
}

func (f Frame) ColorModel() color.Model { return color.RGBAModel }

func (f Frame) Bounds() image.Rectangle {
	size := f.Size
	if size == 0 {
		size = 64
	}
	return image.Rect(0, 0, size, size)
}

func (f Frame) At(x, y int) color.Color { return f.Fill }

// Frames returns n frames numbered from zero
func Frames(n int) []hooptrack.Frame {
	out := make([]hooptrack.Frame, n)
	for i := range out {
		out[i] = Frame{Index: i}
	}
	return out
}

// Det is a shorthand constructor for a Detection
func Det(class int, conf float32, x1, y1, x2, y2 float64) hooptrack.Detection {
	return hooptrack.Detection{
		Box:        hooptrack.NewBoundingBox(x1, y1, x2, y2),
		Class:      class,
		Confidence: conf,
	}
}

// FakeDetector returns scripted detections keyed by frame index
type FakeDetector struct {
	// Script holds the detections for each frame index, frames not present
	// have no detections
	Script map[int][]hooptrack.Detection
	// FailAt makes Predict fail when a batch contains this frame index,
	// negative disables failures
	FailAt int
	// Names overrides the class table returned, nil uses Labels
	Names hooptrack.ClassTable

	mu          sync.Mutex
	calls       int
	batchSizes  []int
	confidences []float32
}

// NewFakeDetector returns a detector with the given script
func NewFakeDetector(script map[int][]hooptrack.Detection) *FakeDetector {
	return &FakeDetector{Script: script, FailAt: -1}
}

func (d *FakeDetector) Predict(frames []hooptrack.Frame, confidence float32) ([]hooptrack.DetectionSet, error) {

	d.mu.Lock()
	d.calls++
	d.batchSizes = append(d.batchSizes, len(frames))
	d.confidences = append(d.confidences, confidence)
	d.mu.Unlock()

	names := d.Names
	if names == nil {
		names = Labels
	}

	out := make([]hooptrack.DetectionSet, 0, len(frames))

	for _, f := range frames {
		idx := f.(Frame).Index

		if idx == d.FailAt {
			return nil, ErrInjected
		}

		var dets []hooptrack.Detection
		for _, det := range d.Script[idx] {
			if det.Confidence >= confidence {
				dets = append(dets, det)
			}
		}

		out = append(out, hooptrack.DetectionSet{Detections: dets, Names: names})
	}

	return out, nil
}

// Calls returns the number of Predict calls made
func (d *FakeDetector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// BatchSizes returns the number of frames passed on each call
func (d *FakeDetector) BatchSizes() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.batchSizes...)
}

// Confidences returns the confidence floor passed on each call
func (d *FakeDetector) Confidences() []float32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]float32(nil), d.confidences...)
}

// FakeTracker assigns each detection an identity equal to its position
// within the frame plus one, so identities are stable when the scripted
// detections keep their order
type FakeTracker struct {
	// FailAt makes Update fail on this call number (zero based), negative
	// disables failures
	FailAt int

	calls  int
	resets int
}

// NewFakeTracker returns a tracker which never fails
func NewFakeTracker() *FakeTracker {
	return &FakeTracker{FailAt: -1}
}

func (t *FakeTracker) Update(set hooptrack.DetectionSet) (hooptrack.DetectionSet, error) {

	call := t.calls
	t.calls++

	if call == t.FailAt {
		return hooptrack.DetectionSet{}, ErrInjected
	}

	out := hooptrack.DetectionSet{Names: set.Names}

	for i, det := range set.Detections {
		det.TrackID = i + 1
		out.Detections = append(out.Detections, det)
	}

	return out, nil
}

func (t *FakeTracker) Reset() {
	t.resets++
}

// Calls returns the number of Update calls made
func (t *FakeTracker) Calls() int {
	return t.calls
}

// Resets returns the number of Reset calls made
func (t *FakeTracker) Resets() int {
	return t.resets
}

// FakeClassifier returns a fixed label and counts its calls
type FakeClassifier struct {
	// Label is returned from every call unless Fn is set
	Label string
	// Fn computes the label from the region when set
	Fn func(region image.Image, labels []string) string
	// Err is returned from every call when set
	Err error

	calls   int
	regions []image.Rectangle
}

func (c *FakeClassifier) Classify(region image.Image, labels []string) (string, error) {

	c.calls++
	c.regions = append(c.regions, region.Bounds())

	if c.Err != nil {
		return "", c.Err
	}

	if c.Fn != nil {
		return c.Fn(region, labels), nil
	}

	return c.Label, nil
}

// Calls returns the number of Classify calls made
func (c *FakeClassifier) Calls() int {
	return c.calls
}

// Regions returns the bounds of each region classified
func (c *FakeClassifier) Regions() []image.Rectangle {
	return append([]image.Rectangle(nil), c.regions...)
}
