package hooptrack

import (
	"image"
	"math"
	"sort"
)

// Frame is a single decoded video image.  Only its position in the frame
// sequence is significant to tracking.
type Frame = image.Image

// BoundingBox are the pixel coordinates of a detected object, (X1,Y1) being
// the top left corner and (X2,Y2) the bottom right corner
type BoundingBox struct {
	X1 float64 `cbor:"1,keyasint"`
	Y1 float64 `cbor:"2,keyasint"`
	X2 float64 `cbor:"3,keyasint"`
	Y2 float64 `cbor:"4,keyasint"`
}

// NewBoundingBox returns a BoundingBox from its corner coordinates
func NewBoundingBox(x1, y1, x2, y2 float64) BoundingBox {
	return BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// Canon returns the box with its corners ordered so that X1 <= X2 and
// Y1 <= Y2.  Boxes coming from a detector are not guaranteed to be ordered.
func (b BoundingBox) Canon() BoundingBox {
	if b.X1 > b.X2 {
		b.X1, b.X2 = b.X2, b.X1
	}
	if b.Y1 > b.Y2 {
		b.Y1, b.Y2 = b.Y2, b.Y1
	}
	return b
}

// Valid reports whether all coordinates are finite numbers
func (b BoundingBox) Valid() bool {
	for _, v := range b.Coords() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Coords returns the box as a slice ordered x1, y1, x2, y2
func (b BoundingBox) Coords() []float64 {
	return []float64{b.X1, b.Y1, b.X2, b.Y2}
}

// TopLeft returns the x,y coordinate of the top left corner
func (b BoundingBox) TopLeft() []float64 {
	return []float64{b.X1, b.Y1}
}

// Center returns the integer center point of the box
func (b BoundingBox) Center() image.Point {
	return image.Pt(int((b.X1+b.X2)/2), int((b.Y1+b.Y2)/2))
}

// Width of the box
func (b BoundingBox) Width() float64 {
	return b.X2 - b.X1
}

// Height of the box
func (b BoundingBox) Height() float64 {
	return b.Y2 - b.Y1
}

// Rect converts the box to an image.Rectangle, truncating coordinates the
// same way array slicing of a frame would
func (b BoundingBox) Rect() image.Rectangle {
	c := b.Canon()
	return image.Rect(int(c.X1), int(c.Y1), int(c.X2), int(c.Y2))
}

// Detection is a single object found by the detector in one frame
type Detection struct {
	// Box is the location of the object
	Box BoundingBox
	// Class is the index into the ClassTable of the DetectionSet
	Class int
	// Confidence is the detector score in the range [0,1]
	Confidence float32
	// TrackID is the persistent identity assigned by a multi-object tracker,
	// zero when the detection has not been through a tracker
	TrackID int
	// ID is a unique number for the detection, used to match tracker output
	// back to its input
	ID int64
}

// DetectionSet holds all detections for a single frame along with the class
// name table needed to resolve their labels
type DetectionSet struct {
	Detections []Detection
	Names      ClassTable
}

// Identity distinguishes tracked entities within one frame
type Identity int

// BallIdentity is the fixed identity used for the single ball of interest
const BallIdentity Identity = 1

// TrackEntry maps each identity observed in a frame to its bounding box.  An
// identity missing from the entry was not observed in that frame.
type TrackEntry map[Identity]BoundingBox

// Identities returns the identities of the entry in ascending order
func (e TrackEntry) Identities() []Identity {
	ids := make([]Identity, 0, len(e))
	for id := range e {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// TrackSequence holds one TrackEntry per frame, index aligned with the frame
// sequence
type TrackSequence []TrackEntry

// Len returns the number of frames covered
func (s TrackSequence) Len() int {
	return len(s)
}

// Clone returns a deep copy of the sequence
func (s TrackSequence) Clone() TrackSequence {
	out := make(TrackSequence, len(s))
	for i, entry := range s {
		out[i] = make(TrackEntry, len(entry))
		for id, box := range entry {
			out[i][id] = box
		}
	}
	return out
}

// BallBoxes flattens a ball track sequence to one optional box per frame
func (s TrackSequence) BallBoxes() []*BoundingBox {
	out := make([]*BoundingBox, len(s))
	for i, entry := range s {
		if box, ok := entry[BallIdentity]; ok {
			b := box
			out[i] = &b
		}
	}
	return out
}

// BallSequence builds a ball track sequence from one optional box per frame
func BallSequence(boxes []*BoundingBox) TrackSequence {
	out := make(TrackSequence, len(boxes))
	for i, box := range boxes {
		out[i] = TrackEntry{}
		if box != nil {
			out[i][BallIdentity] = *box
		}
	}
	return out
}

// Team is the team label assigned to a player
type Team int

const (
	Team1 Team = 1
	Team2 Team = 2
)

// TeamAssignment maps the player identities of one frame to their team
type TeamAssignment map[Identity]Team

// TeamAssignmentSequence holds one TeamAssignment per frame, index aligned
// with the frame sequence
type TeamAssignmentSequence []TeamAssignment

// Len returns the number of frames covered
func (s TeamAssignmentSequence) Len() int {
	return len(s)
}
