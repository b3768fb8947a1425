// Package postprocess decodes raw detector output tensors into detections.
package postprocess

import (
	"fmt"

	"github.com/courtvision/hooptrack"
)

// Letterbox describes how a source frame was scaled and padded into the
// model input, used to map boxes back to frame coordinates
type Letterbox interface {
	ScaleFactor() float32
	XPad() int
	YPad() int
	SrcWidth() int
	SrcHeight() int
}

// YOLOv8 defines the struct for YOLOv8 model inference post processing
type YOLOv8 struct {
	// Params are the Model configuration parameters
	Params YOLOv8Params
	// idGen provides the next number for each detection ID
	idGen *IDGenerator
}

// YOLOv8Params defines the struct containing the YOLOv8 parameters to use
// for post processing operations
type YOLOv8Params struct {
	// BoxThreshold is the minimum class score required for a box to be
	// considered
	BoxThreshold float32
	// NMSThreshold is the maximum allowed Intersection Over Union (IoU)
	// between two boxes of the same class for both to be kept
	NMSThreshold float32
	// ObjectClassNum is the number of classes the Model was trained with
	ObjectClassNum int
	// MaxObjectNumber is the maximum number of detections returned per frame
	MaxObjectNumber int
}

// YOLOv8DefaultParams returns parameters for a Model trained on the
// basketball dataset of ball, hoop, player and referee classes
func YOLOv8DefaultParams() YOLOv8Params {
	return YOLOv8Params{
		BoxThreshold:    0.5,
		NMSThreshold:    0.45,
		ObjectClassNum:  4,
		MaxObjectNumber: 100,
	}
}

// NewYOLOv8 returns an instance of the YOLOv8 post processor
func NewYOLOv8(p YOLOv8Params) *YOLOv8 {
	return &YOLOv8{
		Params: p,
		idGen:  NewIDGenerator(),
	}
}

// DetectObjects decodes the output of an exported YOLOv8 ONNX model for a
// single frame.  output is the [4+classes, anchors] tensor in row major
// order where the first four rows are the box center x, center y, width
// and height in input tensor pixels and the remaining rows the class
// scores.  confidence raises BoxThreshold for this call when higher.
func (y *YOLOv8) DetectObjects(output []float32, anchors int, lb Letterbox,
	confidence float32) ([]hooptrack.Detection, error) {

	rows := 4 + y.Params.ObjectClassNum

	if anchors <= 0 || len(output) != rows*anchors {
		return nil, fmt.Errorf("output tensor has %d values, expected %d rows of %d anchors",
			len(output), rows, anchors)
	}

	thresh := max(y.Params.BoxThreshold, confidence)

	var cands []candidate

	for a := 0; a < anchors; a++ {

		maxScore := float32(-1)
		maxClass := -1

		for c := 0; c < y.Params.ObjectClassNum; c++ {
			score := output[(4+c)*anchors+a]

			if score > maxScore {
				maxScore = score
				maxClass = c
			}
		}

		if maxScore < thresh {
			continue
		}

		cx := output[a]
		cy := output[anchors+a]
		w := output[2*anchors+a]
		h := output[3*anchors+a]

		cands = append(cands, candidate{
			x1:    cx - w/2,
			y1:    cy - h/2,
			x2:    cx + w/2,
			y2:    cy + h/2,
			score: maxScore,
			class: maxClass,
		})
	}

	kept := nms(cands, y.Params.NMSThreshold, y.Params.MaxObjectNumber)

	dets := make([]hooptrack.Detection, 0, len(kept))

	for _, c := range kept {
		dets = append(dets, hooptrack.Detection{
			Box:        unletterbox(c, lb),
			Class:      c.class,
			Confidence: c.score,
			ID:         y.idGen.GetNext(),
		})
	}

	return dets, nil
}

// unletterbox maps a box from input tensor space to source frame space,
// clamped to the frame
func unletterbox(c candidate, lb Letterbox) hooptrack.BoundingBox {

	scale := float64(lb.ScaleFactor())
	xPad := float64(lb.XPad())
	yPad := float64(lb.YPad())
	w := float64(lb.SrcWidth())
	h := float64(lb.SrcHeight())

	return hooptrack.NewBoundingBox(
		clamp((float64(c.x1)-xPad)/scale, 0, w),
		clamp((float64(c.y1)-yPad)/scale, 0, h),
		clamp((float64(c.x2)-xPad)/scale, 0, w),
		clamp((float64(c.y2)-yPad)/scale, 0, h),
	)
}

// clamp restricts val to the range lo to hi
func clamp(val, lo, hi float64) float64 {
	return min(max(val, lo), hi)
}
