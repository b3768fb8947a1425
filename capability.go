package hooptrack

import "image"

// Detector runs object detection on a batch of frames.  It must return
// exactly one DetectionSet per input frame, in input order, containing only
// detections with a confidence of at least the given floor.
type Detector interface {
	Predict(frames []Frame, confidence float32) ([]DetectionSet, error)
}

// DetectionSource produces one DetectionSet per frame for a whole frame
// sequence.  DetectionAdapter and SharedDetections implement it.
type DetectionSource interface {
	Detect(frames []Frame) ([]DetectionSet, error)
}

// MultiObjectTracker associates detections across frames and assigns them
// persistent identities.  Update is called exactly once per frame in frame
// order and returns the detections it is tracking with TrackID set.
type MultiObjectTracker interface {
	Update(set DetectionSet) (DetectionSet, error)
	// Reset clears all association state so a new pass can begin
	Reset()
}

// Classifier maps an image region to the best matching of the given text
// labels
type Classifier interface {
	Classify(region image.Image, labels []string) (string, error)
}
