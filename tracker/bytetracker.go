// Package tracker is a ByteTrack multi-object tracker.  Detections are
// associated with existing tracks by IoU in two stages, first the high
// confidence detections then the low confidence ones, so objects which are
// briefly occluded keep their identity.
package tracker

import (
	"fmt"

	"github.com/courtvision/hooptrack"
)

// BYTETracker represents the BYTE Tracker
type BYTETracker struct {
	// trackThresh splits detections into the high and low score groups
	trackThresh float32
	// highThresh is the minimum score to start a new track
	highThresh float32
	// matchThresh is the maximum IoU distance for the first association
	matchThresh float64
	// maxTimeLost is the number of frames a lost track is kept for
	maxTimeLost int
	// frameID is the number of frames seen since the last Reset
	frameID int
	// trackIDCount is the last track ID handed out
	trackIDCount int

	trackedStracks []*STrack
	lostStracks    []*STrack
}

// NewBYTETracker initializes and returns a new BYTETracker
func NewBYTETracker(frameRate int, trackBuffer int, trackThresh float32,
	highThresh float32, matchThresh float32) *BYTETracker {

	return &BYTETracker{
		trackThresh: trackThresh,
		highThresh:  highThresh,
		matchThresh: float64(matchThresh),
		maxTimeLost: int(float64(frameRate) / 30.0 * float64(trackBuffer)),
	}
}

// NewFromConfig returns a BYTETracker using the tracker section of the
// configuration
func NewFromConfig(cfg hooptrack.TrackerConfig) *BYTETracker {
	return NewBYTETracker(cfg.FrameRate, cfg.TrackBuffer, cfg.TrackThresh,
		cfg.HighThresh, cfg.MatchThresh)
}

// Reset clears all tracks and restarts track IDs from one
func (bt *BYTETracker) Reset() {
	bt.frameID = 0
	bt.trackIDCount = 0
	bt.trackedStracks = nil
	bt.lostStracks = nil
}

// Update associates the detections of the next frame with the current
// tracks and returns the detections belonging to a confirmed track, in
// input order, with TrackID set
func (bt *BYTETracker) Update(set hooptrack.DetectionSet) (hooptrack.DetectionSet, error) {

	stracks, err := bt.update(set.Detections)

	if err != nil {
		return hooptrack.DetectionSet{}, err
	}

	trackOf := make(map[int]int, len(stracks))

	for _, s := range stracks {
		trackOf[s.Detection()] = s.TrackID()
	}

	out := hooptrack.DetectionSet{Names: set.Names}

	for i, det := range set.Detections {
		id, ok := trackOf[i]

		if !ok {
			continue
		}

		det.TrackID = id
		out.Detections = append(out.Detections, det)
	}

	return out, nil
}

// update runs one ByteTrack step and returns the active tracks matched on
// this frame
func (bt *BYTETracker) update(detections []hooptrack.Detection) ([]*STrack, error) {

	bt.frameID++

	// Step 1: split detections by score
	var detStracks, detLowStracks []*STrack

	for i, det := range detections {

		rect := RectFromBox(det.Box)

		if !rect.Usable() {
			continue
		}

		s := newSTrack(rect, det.Confidence, i, det.Class)

		if det.Confidence >= bt.trackThresh {
			detStracks = append(detStracks, s)
		} else {
			detLowStracks = append(detLowStracks, s)
		}
	}

	var activeStracks, unconfirmedStracks []*STrack

	for _, s := range bt.trackedStracks {
		if s.isActivated {
			activeStracks = append(activeStracks, s)
		} else {
			unconfirmedStracks = append(unconfirmedStracks, s)
		}
	}

	strackPool := jointStracks(activeStracks, bt.lostStracks)

	for _, s := range strackPool {
		s.predict()
	}

	// Step 2: first association with high score detections
	var currentTracked, remainTracked, remainDets, refound []*STrack

	matches, unmatchedTracks, unmatchedDets := linearAssignment(
		iouDistance(strackPool, detStracks), len(strackPool), len(detStracks), bt.matchThresh)

	for _, m := range matches {
		track, det := strackPool[m[0]], detStracks[m[1]]

		if track.state == Tracked {
			if err := track.update(det, bt.frameID); err != nil {
				return nil, fmt.Errorf("first association: %w", err)
			}
			currentTracked = append(currentTracked, track)
		} else {
			if err := track.reActivate(det, bt.frameID); err != nil {
				return nil, fmt.Errorf("first association: %w", err)
			}
			refound = append(refound, track)
		}
	}

	for _, i := range unmatchedDets {
		remainDets = append(remainDets, detStracks[i])
	}

	for _, i := range unmatchedTracks {
		if strackPool[i].state == Tracked {
			remainTracked = append(remainTracked, strackPool[i])
		}
	}

	// Step 3: second association of the remaining tracks with low score
	// detections
	var currentLost []*STrack

	matches, unmatchedTracks, _ = linearAssignment(
		iouDistance(remainTracked, detLowStracks), len(remainTracked), len(detLowStracks), 0.5)

	for _, m := range matches {
		track, det := remainTracked[m[0]], detLowStracks[m[1]]

		if err := track.update(det, bt.frameID); err != nil {
			return nil, fmt.Errorf("second association: %w", err)
		}
		currentTracked = append(currentTracked, track)
	}

	for _, i := range unmatchedTracks {
		track := remainTracked[i]
		if track.state != Lost {
			track.markLost()
			currentLost = append(currentLost, track)
		}
	}

	// Step 4: confirm unconfirmed tracks and start new ones
	var currentRemoved []*STrack

	matches, unmatchedUnconfirmed, unmatchedDets := linearAssignment(
		iouDistance(unconfirmedStracks, remainDets), len(unconfirmedStracks), len(remainDets), 0.7)

	for _, m := range matches {
		track := unconfirmedStracks[m[0]]
		if err := track.update(remainDets[m[1]], bt.frameID); err != nil {
			return nil, fmt.Errorf("confirming track: %w", err)
		}
		currentTracked = append(currentTracked, track)
	}

	for _, i := range unmatchedUnconfirmed {
		track := unconfirmedStracks[i]
		track.markRemoved()
		currentRemoved = append(currentRemoved, track)
	}

	for _, i := range unmatchedDets {
		track := remainDets[i]
		if track.score < bt.highThresh {
			continue
		}
		bt.trackIDCount++
		track.activate(bt.frameID, bt.trackIDCount)
		currentTracked = append(currentTracked, track)
	}

	// Step 5: expire tracks lost for too long
	for _, s := range bt.lostStracks {
		if bt.frameID-s.frameID > bt.maxTimeLost {
			s.markRemoved()
			currentRemoved = append(currentRemoved, s)
		}
	}

	bt.trackedStracks = jointStracks(currentTracked, refound)
	bt.lostStracks = subStracks(jointStracks(subStracks(bt.lostStracks, bt.trackedStracks), currentLost),
		currentRemoved)
	bt.trackedStracks, bt.lostStracks = removeDuplicateStracks(bt.trackedStracks, bt.lostStracks)

	var output []*STrack

	for _, s := range bt.trackedStracks {
		if s.isActivated {
			output = append(output, s)
		}
	}

	return output, nil
}

// jointStracks combines two lists of tracks, skipping track IDs of b already
// in a
func jointStracks(a, b []*STrack) []*STrack {

	exists := make(map[int]bool, len(a)+len(b))
	res := make([]*STrack, 0, len(a)+len(b))

	for _, s := range a {
		exists[s.trackID] = true
		res = append(res, s)
	}

	for _, s := range b {
		if !exists[s.trackID] {
			exists[s.trackID] = true
			res = append(res, s)
		}
	}

	return res
}

// subStracks returns the tracks of a whose track ID is not in b, keeping
// the order of a
func subStracks(a, b []*STrack) []*STrack {

	drop := make(map[int]bool, len(b))

	for _, s := range b {
		drop[s.trackID] = true
	}

	var res []*STrack

	for _, s := range a {
		if !drop[s.trackID] {
			res = append(res, s)
		}
	}

	return res
}

// removeDuplicateStracks drops a tracked and lost track pair covering the
// same object, keeping whichever has been tracked longer
func removeDuplicateStracks(a, b []*STrack) (aRes, bRes []*STrack) {

	dist := iouDistance(a, b)
	aDup := make([]bool, len(a))
	bDup := make([]bool, len(b))

	for i := range dist {
		for j := range dist[i] {
			if dist[i][j] >= 0.15 {
				continue
			}

			timeP := a[i].frameID - a[i].startFrameID
			timeQ := b[j].frameID - b[j].startFrameID

			if timeP > timeQ {
				bDup[j] = true
			} else {
				aDup[i] = true
			}
		}
	}

	for i, dup := range aDup {
		if !dup {
			aRes = append(aRes, a[i])
		}
	}

	for i, dup := range bDup {
		if !dup {
			bRes = append(bRes, b[i])
		}
	}

	return aRes, bRes
}
