package tracker

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// STrackState represents the state of a tracked object
type STrackState int

const (
	// New object just detected
	New STrackState = iota
	// Tracked object matched in the latest frame
	Tracked
	// Lost object not matched recently but may still be recovered
	Lost
	// Removed object no longer tracked
	Removed
)

// shared motion model, the filter holds no per track state
var sharedKalman = NewKalmanFilter(1.0/20, 1.0/160)

// STrack is a single track of an object
type STrack struct {
	mean       *mat.VecDense
	covariance *mat.SymDense
	rect       Rect
	state      STrackState
	// isActivated is set once the track has been confirmed by a second
	// detection, or immediately for tracks started on the first frame
	isActivated  bool
	score        float32
	trackID      int
	frameID      int
	startFrameID int
	trackletLen  int
	// detection is the index into the input DetectionSet of the detection
	// last associated with this track
	detection int
	class     int
}

// newSTrack creates an unactivated track from a detection
func newSTrack(rect Rect, score float32, detection, class int) *STrack {
	return &STrack{
		rect:      rect,
		state:     New,
		score:     score,
		detection: detection,
		class:     class,
	}
}

// Rect returns the current bounding box estimate
func (s *STrack) Rect() Rect {
	return s.rect
}

// State returns the current state of the track
func (s *STrack) State() STrackState {
	return s.state
}

// IsActivated reports whether the track is confirmed
func (s *STrack) IsActivated() bool {
	return s.isActivated
}

// Score returns the latest detection score
func (s *STrack) Score() float32 {
	return s.score
}

// TrackID returns the persistent identity of the track
func (s *STrack) TrackID() int {
	return s.trackID
}

// FrameID returns the last frame the track was matched on
func (s *STrack) FrameID() int {
	return s.frameID
}

// Detection returns the input index of the last matched detection
func (s *STrack) Detection() int {
	return s.detection
}

// activate starts the track with the given frame and track IDs
func (s *STrack) activate(frameID, trackID int) {

	s.mean, s.covariance = sharedKalman.Initiate(s.rect.Xyah())
	s.updateRect()

	s.state = Tracked

	if frameID == 1 {
		s.isActivated = true
	}

	s.trackID = trackID
	s.frameID = frameID
	s.startFrameID = frameID
	s.trackletLen = 0
}

// reActivate recovers a lost track with a new detection
func (s *STrack) reActivate(det *STrack, frameID int) error {

	if err := s.update(det, frameID); err != nil {
		return err
	}

	s.trackletLen = 0

	return nil
}

// predict advances the state one frame
func (s *STrack) predict() {

	// a track not seen this frame stops growing in height
	if s.state != Tracked {
		s.mean.SetVec(7, 0)
	}

	sharedKalman.Predict(s.mean, s.covariance)
	s.updateRect()
}

// update corrects the track with a matched detection
func (s *STrack) update(det *STrack, frameID int) error {

	if err := sharedKalman.Update(s.mean, s.covariance, det.rect.Xyah()); err != nil {
		return fmt.Errorf("error updating track %d: %w", s.trackID, err)
	}

	s.updateRect()

	s.state = Tracked
	s.isActivated = true
	s.score = det.score
	s.detection = det.detection
	s.class = det.class
	s.frameID = frameID
	s.trackletLen++

	return nil
}

func (s *STrack) markLost() {
	s.state = Lost
}

func (s *STrack) markRemoved() {
	s.state = Removed
}

// updateRect refreshes the bounding box from the state mean
func (s *STrack) updateRect() {
	s.rect = RectFromXyah(Xyah{
		s.mean.AtVec(0), s.mean.AtVec(1), s.mean.AtVec(2), s.mean.AtVec(3),
	})
}
