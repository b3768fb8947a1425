// Package tracking turns per-frame detections into index aligned track
// sequences for players and the ball, using a stub.Store to skip the work
// when a previous run already produced the result.
package tracking

import (
	"fmt"

	"github.com/courtvision/hooptrack"
	"github.com/courtvision/hooptrack/stub"
	"go.uber.org/zap"
)

const (
	// KindPlayerTracks names player track records in a stub.Store
	KindPlayerTracks = "player_tracks"
	// KindBallTracks names ball track records in a stub.Store
	KindBallTracks = "ball_tracks"

	// DefaultPlayerClass is the detector class name of players
	DefaultPlayerClass = "player"
	// DefaultBallClass is the detector class name of the ball
	DefaultBallClass = "ball"
)

// NewTrackStore returns a stub.Store for track sequences of the given kind
func NewTrackStore(path, kind string) *stub.Store[hooptrack.TrackSequence] {
	return stub.New[hooptrack.TrackSequence](path, kind)
}

// PlayerTracker detects players and follows them across frames with a
// multi-object tracker so each player keeps the same Identity while visible
type PlayerTracker struct {
	detector hooptrack.DetectionSource
	tracker  hooptrack.MultiObjectTracker
	// class is the detector class name kept as a player
	class string
	store *stub.Store[hooptrack.TrackSequence]
	log   *zap.Logger
}

// NewPlayerTracker returns a PlayerTracker.  store may be nil to disable
// caching.
func NewPlayerTracker(detector hooptrack.DetectionSource, tracker hooptrack.MultiObjectTracker,
	store *stub.Store[hooptrack.TrackSequence], logger *zap.Logger) *PlayerTracker {

	return &PlayerTracker{
		detector: detector,
		tracker:  tracker,
		class:    DefaultPlayerClass,
		store:    store,
		log:      hooptrack.OrNop(logger).With(zap.String("component", "player_tracker")),
	}
}

// SetClass changes the detector class name treated as a player
func (p *PlayerTracker) SetClass(name string) {
	p.class = name
}

// GetObjectTracks returns one TrackEntry of player identities per frame.
// A cached result is returned unchanged when readFromStub is set and it
// covers exactly the given frames, otherwise tracks are computed and saved.
func (p *PlayerTracker) GetObjectTracks(frames []hooptrack.Frame, readFromStub bool) (hooptrack.TrackSequence, error) {

	if tracks, ok, err := loadCached(p.store, readFromStub, len(frames), p.log); err != nil || ok {
		return tracks, err
	}

	detections, err := p.detector.Detect(frames)

	if err != nil {
		return nil, fmt.Errorf("error detecting players: %w", err)
	}

	p.tracker.Reset()

	tracks := make(hooptrack.TrackSequence, 0, len(detections))

	for frameNum, set := range detections {

		tracked, err := p.tracker.Update(set)

		if err != nil {
			return nil, hooptrack.NewCapabilityError(hooptrack.CapabilityTracker, frameNum, err)
		}

		entry := hooptrack.TrackEntry{}

		if len(tracked.Detections) > 0 {
			playerClass, ok := tracked.Names.Index(p.class)

			if !ok {
				return nil, hooptrack.NewCapabilityError(hooptrack.CapabilityDetector, frameNum,
					fmt.Errorf("class table %v has no %q class", tracked.Names, p.class))
			}

			for _, det := range tracked.Detections {
				if det.Class != playerClass || det.TrackID <= 0 {
					continue
				}
				entry[hooptrack.Identity(det.TrackID)] = det.Box
			}
		}

		tracks = append(tracks, entry)
	}

	p.log.Info("player tracks computed",
		zap.Int("frames", len(tracks)),
		zap.Int("identities", countIdentities(tracks)),
	)

	if err := p.store.Save(tracks); err != nil {
		return nil, err
	}

	return tracks, nil
}

// loadCached attempts to read a cached result and reports ok only when it
// covers exactly frames frames
func loadCached[T stub.Lengther](store *stub.Store[T], enabled bool, frames int,
	log *zap.Logger) (T, bool, error) {

	cached, status, err := stub.LoadAligned(store, enabled, frames)

	if err != nil {
		return cached, false, err
	}

	switch status {
	case stub.Stale:
		log.Debug("discarding stale cache record",
			zap.String("path", store.Path()),
			zap.Int("frames", frames),
		)
	case stub.Hit:
		log.Debug("using cache record",
			zap.String("path", store.Path()),
			zap.Int("frames", frames),
		)
	}

	return cached, status == stub.Hit, nil
}

func countIdentities(tracks hooptrack.TrackSequence) int {
	seen := make(map[hooptrack.Identity]struct{})
	for _, entry := range tracks {
		for id := range entry {
			seen[id] = struct{}{}
		}
	}
	return len(seen)
}
