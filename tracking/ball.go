package tracking

import (
	"fmt"

	"github.com/courtvision/hooptrack"
	"github.com/courtvision/hooptrack/stub"
	"github.com/courtvision/hooptrack/trajectory"
	"go.uber.org/zap"
)

// BallTracker finds the ball in each frame.  There is only one ball of
// interest so no persistent tracker is used, the most confident ball
// detection of each frame is selected and trajectory repair handles the
// temporal consistency afterwards.
type BallTracker struct {
	detector hooptrack.DetectionSource
	// class is the detector class name of the ball
	class    string
	store    *stub.Store[hooptrack.TrackSequence]
	repairer *trajectory.Repairer
	log      *zap.Logger
}

// NewBallTracker returns a BallTracker.  store may be nil to disable
// caching.
func NewBallTracker(detector hooptrack.DetectionSource, store *stub.Store[hooptrack.TrackSequence],
	logger *zap.Logger) *BallTracker {

	logger = hooptrack.OrNop(logger)

	return &BallTracker{
		detector: detector,
		class:    DefaultBallClass,
		store:    store,
		repairer: trajectory.NewRepairer(logger),
		log:      logger.With(zap.String("component", "ball_tracker")),
	}
}

// SetClass changes the detector class name treated as the ball
func (b *BallTracker) SetClass(name string) {
	b.class = name
}

// SetMaxDistance changes the per frame distance allowed by
// RemoveWrongDetections
func (b *BallTracker) SetMaxDistance(d float64) {
	b.repairer.MaxDistance = d
}

// GetObjectTracks returns one TrackEntry per frame holding the ball under
// hooptrack.BallIdentity, or an empty entry when no ball was detected
func (b *BallTracker) GetObjectTracks(frames []hooptrack.Frame, readFromStub bool) (hooptrack.TrackSequence, error) {

	if tracks, ok, err := loadCached(b.store, readFromStub, len(frames), b.log); err != nil || ok {
		return tracks, err
	}

	detections, err := b.detector.Detect(frames)

	if err != nil {
		return nil, fmt.Errorf("error detecting ball: %w", err)
	}

	tracks := make(hooptrack.TrackSequence, 0, len(detections))
	found := 0

	for frameNum, set := range detections {

		box, ok, err := b.selectBall(set)

		if err != nil {
			return nil, hooptrack.NewCapabilityError(hooptrack.CapabilityDetector, frameNum, err)
		}

		entry := hooptrack.TrackEntry{}

		if ok {
			entry[hooptrack.BallIdentity] = box
			found++
		}

		tracks = append(tracks, entry)
	}

	b.log.Info("ball tracks computed",
		zap.Int("frames", len(tracks)),
		zap.Int("detected", found),
	)

	if err := b.store.Save(tracks); err != nil {
		return nil, err
	}

	return tracks, nil
}

// selectBall returns the box of the most confident ball detection.  Ties
// keep the first detection seen.
func (b *BallTracker) selectBall(set hooptrack.DetectionSet) (hooptrack.BoundingBox, bool, error) {

	if len(set.Detections) == 0 {
		return hooptrack.BoundingBox{}, false, nil
	}

	ballClass, ok := set.Names.Index(b.class)

	if !ok {
		return hooptrack.BoundingBox{}, false,
			fmt.Errorf("class table %v has no %q class", set.Names, b.class)
	}

	var (
		chosen  hooptrack.BoundingBox
		found   bool
		maxConf float32
	)

	for _, det := range set.Detections {
		if det.Class != ballClass {
			continue
		}

		if !found || det.Confidence > maxConf {
			chosen = det.Box
			maxConf = det.Confidence
			found = true
		}
	}

	return chosen, found, nil
}

// RemoveWrongDetections drops ball positions that moved further than is
// physically possible since the last accepted position.  tracks is
// modified in place and returned.
func (b *BallTracker) RemoveWrongDetections(tracks hooptrack.TrackSequence) hooptrack.TrackSequence {
	return b.repairer.RemoveWrongDetections(tracks)
}

// InterpolateBallPositions fills frames without a ball position by linear
// interpolation between neighbouring positions
func (b *BallTracker) InterpolateBallPositions(tracks hooptrack.TrackSequence) (hooptrack.TrackSequence, error) {
	return b.repairer.Interpolate(tracks)
}

// RepairTrajectory runs both repair passes on a copy of tracks
func (b *BallTracker) RepairTrajectory(tracks hooptrack.TrackSequence) (hooptrack.TrackSequence, trajectory.Stats, error) {
	return b.repairer.Repair(tracks)
}
