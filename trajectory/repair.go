// Package trajectory cleans up a raw per-frame ball track.  Positions which
// jump further than the ball could have travelled are discarded, then the
// missing frames are filled by linear interpolation.
package trajectory

import (
	"errors"
	"fmt"

	"github.com/courtvision/hooptrack"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
)

// DefaultMaxDistance is the distance in pixels the ball top-left corner may
// move per elapsed frame
const DefaultMaxDistance = 25.0

// ErrAllMissing is returned by Interpolate when no frame holds a ball
// position, there is nothing to interpolate from and the sequence should be
// treated as never rendered
var ErrAllMissing = errors.New("no ball positions to interpolate from")

// Stats summarises the effect of Repair
type Stats struct {
	// Observed is the number of frames with a detected position
	Observed int
	// Rejected is the number of observed positions discarded as outliers
	Rejected int
	// Filled is the number of frames given an interpolated position
	Filled int
}

// Repairer removes outliers from and interpolates a ball track sequence
type Repairer struct {
	// MaxDistance is the allowed top-left corner movement per elapsed frame
	MaxDistance float64
	log         *zap.Logger
}

// NewRepairer returns a Repairer using DefaultMaxDistance
func NewRepairer(logger *zap.Logger) *Repairer {
	return &Repairer{
		MaxDistance: DefaultMaxDistance,
		log:         hooptrack.OrNop(logger).With(zap.String("component", "trajectory")),
	}
}

// RemoveWrongDetections walks the sequence forward comparing each ball
// position against the last accepted one.  A position whose top-left corner
// is further away than MaxDistance times the number of frames since the
// last accepted position is removed and the reference stays where it was.
// The first position seen is always accepted.  tracks is modified in place
// and returned.
func (r *Repairer) RemoveWrongDetections(tracks hooptrack.TrackSequence) hooptrack.TrackSequence {
	r.removeWrong(tracks)
	return tracks
}

func (r *Repairer) removeWrong(tracks hooptrack.TrackSequence) (rejected int) {

	lastGood := -1

	for i := range tracks {

		current, ok := tracks[i][hooptrack.BallIdentity]

		if !ok {
			continue
		}

		if lastGood == -1 {
			lastGood = i
			continue
		}

		lastBox := tracks[lastGood][hooptrack.BallIdentity]
		gap := float64(i - lastGood)
		allowed := r.MaxDistance * gap

		if floats.Distance(lastBox.TopLeft(), current.TopLeft(), 2) > allowed {
			tracks[i] = hooptrack.TrackEntry{}
			rejected++
			continue
		}

		lastGood = i
	}

	return rejected
}

// Interpolate fills every frame without a ball position.  Each coordinate is
// interpolated independently and linearly between the nearest positions on
// either side.  Frames before the first position take the first position and
// frames after the last position take the last position.  When no frame has
// a position the sequence is returned unchanged along with ErrAllMissing.
func (r *Repairer) Interpolate(tracks hooptrack.TrackSequence) (hooptrack.TrackSequence, error) {
	_, err := r.interpolate(tracks)
	return tracks, err
}

func (r *Repairer) interpolate(tracks hooptrack.TrackSequence) (filled int, err error) {

	var (
		xs     []float64
		coords [4][]float64
	)

	for i, entry := range tracks {
		box, ok := entry[hooptrack.BallIdentity]

		if !ok {
			continue
		}

		xs = append(xs, float64(i))

		for c, v := range box.Coords() {
			coords[c] = append(coords[c], v)
		}
	}

	switch len(xs) {
	case 0:
		return 0, ErrAllMissing

	case len(tracks):
		return 0, nil

	case 1:
		// a single position is held for the whole sequence
		only := tracks[int(xs[0])][hooptrack.BallIdentity]

		for i := range tracks {
			if _, ok := tracks[i][hooptrack.BallIdentity]; !ok {
				tracks[i] = hooptrack.TrackEntry{hooptrack.BallIdentity: only}
				filled++
			}
		}

		return filled, nil
	}

	// PiecewiseLinear predicts the end values outside of the fitted range
	// which gives the back fill before the first and forward fill after the
	// last known position
	var series [4]interp.PiecewiseLinear

	for c := range series {
		if err := series[c].Fit(xs, coords[c]); err != nil {
			return 0, fmt.Errorf("error fitting coordinate %d: %w", c, err)
		}
	}

	for i := range tracks {

		if _, ok := tracks[i][hooptrack.BallIdentity]; ok {
			continue
		}

		x := float64(i)

		tracks[i] = hooptrack.TrackEntry{
			hooptrack.BallIdentity: hooptrack.NewBoundingBox(
				series[0].Predict(x),
				series[1].Predict(x),
				series[2].Predict(x),
				series[3].Predict(x),
			),
		}
		filled++
	}

	return filled, nil
}

// Repair returns a cleaned copy of tracks with outliers removed and gaps
// filled.  The input is not modified.  ErrAllMissing is returned with the
// empty copy when there is no position to work from.
func (r *Repairer) Repair(tracks hooptrack.TrackSequence) (hooptrack.TrackSequence, Stats, error) {

	out := tracks.Clone()

	var stats Stats

	for _, entry := range out {
		if _, ok := entry[hooptrack.BallIdentity]; ok {
			stats.Observed++
		}
	}

	stats.Rejected = r.removeWrong(out)

	filled, err := r.interpolate(out)
	stats.Filled = filled

	if errors.Is(err, ErrAllMissing) {
		r.log.Warn("ball never detected, trajectory left empty", zap.Int("frames", len(out)))
		return out, stats, err
	}

	if err != nil {
		return nil, stats, err
	}

	r.log.Info("ball trajectory repaired",
		zap.Int("frames", len(out)),
		zap.Int("observed", stats.Observed),
		zap.Int("rejected", stats.Rejected),
		zap.Int("filled", stats.Filled),
	)

	return out, stats, nil
}
